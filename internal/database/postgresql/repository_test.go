package postgresql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
)

func TestBuildWhereClause(t *testing.T) {
	repo := &PostgreSQLRepository{}

	t.Run("empty query renders TRUE", func(t *testing.T) {
		clause, named, positional, err := repo.buildWhereClause(nil)
		require.NoError(t, err)
		assert.Equal(t, "TRUE", clause)
		assert.Empty(t, named)
		assert.Empty(t, positional)
	})

	t.Run("document fields render through the JSONB path", func(t *testing.T) {
		clause, named, _, err := repo.buildWhereClause(&interfaces.Query{
			Conditions: []interfaces.Field{
				{Name: "username", IsJSONB: true, Operator: "=", Value: "alice"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "data->>'username' = :p0", clause)
		assert.Equal(t, "alice", named["p0"])
	})

	t.Run("envelope columns render as-is", func(t *testing.T) {
		clause, _, _, err := repo.buildWhereClause(&interfaces.Query{
			Conditions: []interfaces.Field{
				{Name: "created_date", Operator: ">", Value: int64(100)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "created_date > :p0", clause)
	})

	t.Run("casts wrap the column expression", func(t *testing.T) {
		clause, _, _, err := repo.buildWhereClause(&interfaces.Query{
			Conditions: []interfaces.Field{
				{Name: "score", IsJSONB: true, JSONBCast: "::numeric", Operator: ">", Value: 10.0},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "(data->>'score')::numeric > :p0", clause)
	})

	t.Run("REGEX_I renders a case-insensitive match", func(t *testing.T) {
		clause, _, _, err := repo.buildWhereClause(&interfaces.Query{
			Conditions: []interfaces.Field{
				{Name: "username", IsJSONB: true, Operator: "REGEX_I", Value: "ali"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "data->>'username' ~* :p0", clause)
	})

	t.Run("slice values render membership with an array argument", func(t *testing.T) {
		clause, _, positional, err := repo.buildWhereClause(&interfaces.Query{
			Conditions: []interfaces.Field{
				{Name: "ownerUserId", IsJSONB: true, Operator: "=", Value: []string{"a", "b"}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "data->>'ownerUserId' = ANY(__ARRAY_PARAM_0__)", clause)
		assert.Len(t, positional, 1)
	})

	t.Run("empty membership set matches nothing", func(t *testing.T) {
		clause, _, positional, err := repo.buildWhereClause(&interfaces.Query{
			Conditions: []interfaces.Field{
				{Name: "ownerUserId", IsJSONB: true, Operator: "=", Value: []string{}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "FALSE", clause)
		assert.Empty(t, positional)
	})

	t.Run("or groups join with OR inside parentheses", func(t *testing.T) {
		clause, _, _, err := repo.buildWhereClause(&interfaces.Query{
			OrGroups: [][]interfaces.Field{{
				{Name: "a", IsJSONB: true, Operator: "=", Value: 1},
				{Name: "b", IsJSONB: true, Operator: "=", Value: 2},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, "(data->>'a' = :p0 OR data->>'b' = :p1)", clause)
	})
}

func TestBuildOrderByClause(t *testing.T) {
	repo := &PostgreSQLRepository{}

	t.Run("envelope columns sort on the column", func(t *testing.T) {
		assert.Equal(t, "created_date DESC",
			repo.buildOrderByClause(map[string]int{"created_date": -1}))
	})

	t.Run("document fields sort on the body", func(t *testing.T) {
		assert.Equal(t, "data->>'username' ASC",
			repo.buildOrderByClause(map[string]int{"username": 1}))
	})
}
