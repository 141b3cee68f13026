package filters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adminerrors "github.com/joefour/SnapJS-AdminServer/admin/errors"
	"github.com/joefour/SnapJS-AdminServer/admin/registry"
	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	"github.com/joefour/SnapJS-AdminServer/internal/testutil"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(&registry.ResourceType{
		Name:       "user",
		Collection: "users",
		Fields:     []string{"objectId", "username", "verified", "score"},
	}))
	require.NoError(t, reg.Register(&registry.ResourceType{
		Name:       "post",
		Collection: "posts",
		Fields:     []string{"objectId", "body", "ownerUserId"},
		Relations:  map[string]string{"ownerUserId": "user"},
	}))
	return reg
}

func TestCompilePlainConditions(t *testing.T) {
	reg := newTestRegistry(t)
	userType, _ := reg.Lookup("user")
	compiler := NewCompiler(new(testutil.MockRepository), reg)
	ctx := context.Background()

	t.Run("equals maps to =", func(t *testing.T) {
		query, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "username", Operator: OpEquals, Value: "alice"},
		})
		require.NoError(t, err)
		require.Len(t, query.Conditions, 1)
		cond := query.Conditions[0]
		assert.Equal(t, "username", cond.Name)
		assert.Equal(t, "=", cond.Operator)
		assert.Equal(t, "alice", cond.Value)
		assert.True(t, cond.IsJSONB)
	})

	t.Run("like maps to case-insensitive regex", func(t *testing.T) {
		query, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "username", Operator: OpLike, Value: "ali"},
		})
		require.NoError(t, err)
		assert.Equal(t, "REGEX_I", query.Conditions[0].Operator)
	})

	t.Run("boolean operators carry the literal", func(t *testing.T) {
		query, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "verified", Operator: OpTrue},
		})
		require.NoError(t, err)
		cond := query.Conditions[0]
		assert.Equal(t, "=", cond.Operator)
		assert.Equal(t, true, cond.Value)
		assert.Equal(t, "::boolean", cond.JSONBCast)
	})

	t.Run("numeric comparisons coerce the value", func(t *testing.T) {
		query, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "score", Operator: OpGreaterThan, Value: "10"},
		})
		require.NoError(t, err)
		cond := query.Conditions[0]
		assert.Equal(t, ">", cond.Operator)
		assert.Equal(t, float64(10), cond.Value)
		assert.Equal(t, "::numeric", cond.JSONBCast)
	})

	t.Run("unknown operator is rejected", func(t *testing.T) {
		_, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "username", Operator: "between", Value: "x"},
		})
		assert.ErrorIs(t, err, adminerrors.ErrInvalidFilterOperator)
	})
}

func TestCompileTimestampConditions(t *testing.T) {
	reg := newTestRegistry(t)
	userType, _ := reg.Lookup("user")
	compiler := NewCompiler(new(testutil.MockRepository), reg)
	ctx := context.Background()

	t.Run("createdAt targets the envelope column", func(t *testing.T) {
		query, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "createdAt", Operator: OpGreaterThan, Value: "2024-03-07"},
		})
		require.NoError(t, err)
		cond := query.Conditions[0]
		assert.Equal(t, "created_date", cond.Name)
		assert.False(t, cond.IsJSONB)
		assert.Equal(t, ">", cond.Operator)
		assert.IsType(t, int64(0), cond.Value)
	})

	t.Run("epoch milliseconds pass through", func(t *testing.T) {
		query, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "updatedAt", Operator: OpLessThan, Value: "1709823000000"},
		})
		require.NoError(t, err)
		assert.Equal(t, "last_updated", query.Conditions[0].Name)
		assert.Equal(t, int64(1709823000000), query.Conditions[0].Value)
	})

	t.Run("unparseable dates are rejected", func(t *testing.T) {
		_, err := compiler.Compile(ctx, userType, []Descriptor{
			{Field: "createdAt", Operator: OpEquals, Value: "not-a-date"},
		})
		assert.ErrorIs(t, err, adminerrors.ErrInvalidFilterValue)
	})
}

func TestCompileRelationshipFilters(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves to a membership condition", func(t *testing.T) {
		reg := newTestRegistry(t)
		postType, _ := reg.Lookup("post")
		repo := new(testutil.MockRepository)
		repo.On("Find", mock.Anything, "users", mock.MatchedBy(func(q *interfaces.Query) bool {
			return len(q.Conditions) == 1 &&
				q.Conditions[0].Name == "username" &&
				q.Conditions[0].Operator == "REGEX_I"
		}), (*interfaces.FindOptions)(nil)).Return(testutil.QueryResultFromDocs(
			map[string]interface{}{"objectId": "id-1"},
			map[string]interface{}{"objectId": "id-2"},
		))

		compiler := NewCompiler(repo, reg)
		query, err := compiler.Compile(ctx, postType, []Descriptor{
			{Field: "ownerUserId.username", Operator: OpLike, Value: "ali"},
		})
		require.NoError(t, err)
		require.Len(t, query.Conditions, 1)
		cond := query.Conditions[0]
		assert.Equal(t, "ownerUserId", cond.Name)
		assert.ElementsMatch(t, []string{"id-1", "id-2"}, cond.Value)
		repo.AssertExpectations(t)
	})

	t.Run("no related matches compiles to empty membership", func(t *testing.T) {
		reg := newTestRegistry(t)
		postType, _ := reg.Lookup("post")
		repo := new(testutil.MockRepository)
		repo.On("Find", mock.Anything, "users", mock.Anything, (*interfaces.FindOptions)(nil)).
			Return(testutil.QueryResultFromDocs())

		compiler := NewCompiler(repo, reg)
		query, err := compiler.Compile(ctx, postType, []Descriptor{
			{Field: "ownerUserId.username", Operator: OpEquals, Value: "nobody"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{}, query.Conditions[0].Value)
	})

	t.Run("undeclared relation is rejected", func(t *testing.T) {
		reg := newTestRegistry(t)
		postType, _ := reg.Lookup("post")
		compiler := NewCompiler(new(testutil.MockRepository), reg)

		_, err := compiler.Compile(ctx, postType, []Descriptor{
			{Field: "category.name", Operator: OpEquals, Value: "x"},
		})
		assert.ErrorIs(t, err, adminerrors.ErrUnknownRelation)
	})

	t.Run("multiple relationship filters resolve concurrently", func(t *testing.T) {
		reg := newTestRegistry(t)
		postType, _ := reg.Lookup("post")
		repo := new(testutil.MockRepository)
		// Fresh cursor per expected call; cursors are stateful
		repo.On("Find", mock.Anything, "users", mock.Anything, (*interfaces.FindOptions)(nil)).
			Return(testutil.QueryResultFromDocs(map[string]interface{}{"objectId": "id-1"})).
			Once()
		repo.On("Find", mock.Anything, "users", mock.Anything, (*interfaces.FindOptions)(nil)).
			Return(testutil.QueryResultFromDocs(map[string]interface{}{"objectId": "id-1"})).
			Once()

		compiler := NewCompiler(repo, reg)
		query, err := compiler.Compile(ctx, postType, []Descriptor{
			{Field: "ownerUserId.username", Operator: OpEquals, Value: "a"},
			{Field: "ownerUserId.username", Operator: OpNotEqual, Value: "b"},
		})
		require.NoError(t, err)
		assert.Len(t, query.Conditions, 2)
		repo.AssertExpectations(t)
	})
}
