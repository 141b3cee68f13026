package importer

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

func userResource(t *testing.T) *registry.ResourceType {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(&registry.ResourceType{
		Name:       "user",
		Collection: "users",
		Fields:     []string{"objectId", "username", "email", "tags"},
	}))
	rt, _ := reg.Lookup("user")
	return rt
}

func TestImportHeaderValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown header rejects the whole batch", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		rec := NewReconciler(repo)

		_, err := rec.Import(ctx, userResource(t), [][]string{
			{"username", "ghostColumn"},
			{"alice", "x"},
		})
		assert.ErrorIs(t, err, adminerrors.ErrUnknownCSVHeader)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty file is rejected", func(t *testing.T) {
		rec := NewReconciler(new(testutil.MockRepository))

		_, err := rec.Import(ctx, userResource(t), [][]string{})
		assert.ErrorIs(t, err, adminerrors.ErrEmptyCSV)

		_, err = rec.Import(ctx, userResource(t), [][]string{{""}})
		assert.ErrorIs(t, err, adminerrors.ErrEmptyCSV)
	})

	t.Run("header only imports nothing", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		rec := NewReconciler(repo)

		report, err := rec.Import(ctx, userResource(t), [][]string{{"username"}})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Total)
	})
}

func TestImportRows(t *testing.T) {
	ctx := context.Background()

	t.Run("rows without objectId create documents", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		repo.On("Save", mock.Anything, "users", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(data interface{}) bool {
				doc := data.(map[string]interface{})
				return doc["username"] == "alice" && doc["objectId"] != ""
			})).Return(interfaces.RepositoryResult{Result: "1"})

		rec := NewReconciler(repo)
		report, err := rec.Import(ctx, userResource(t), [][]string{
			{"username", "email"},
			{"alice", "a@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
		assert.Empty(t, report.Failed)
		repo.AssertExpectations(t)
	})

	t.Run("rows with a known objectId merge into the stored document", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		repo.On("FindOne", mock.Anything, "users", mock.MatchedBy(func(q *interfaces.Query) bool {
			return q.Conditions[0].Name == "object_id" && q.Conditions[0].Value == "id-1"
		})).Return(testutil.SingleResultFromDoc(map[string]interface{}{
			"objectId": "id-1",
			"username": "old-name",
			"email":    "keep@example.com",
		}))
		repo.On("Update", mock.Anything, "users", mock.Anything,
			mock.MatchedBy(func(data interface{}) bool {
				doc := data.(map[string]interface{})
				return doc["username"] == "new-name" && doc["email"] == "keep@example.com"
			}), (*interfaces.UpdateOptions)(nil)).Return(interfaces.RepositoryResult{Result: int64(1)})

		rec := NewReconciler(repo)
		report, err := rec.Import(ctx, userResource(t), [][]string{
			{"objectId", "username"},
			{"id-1", "new-name"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
		repo.AssertExpectations(t)
	})

	t.Run("unknown objectId creates a fresh document", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		repo.On("FindOne", mock.Anything, "users", mock.Anything).
			Return(testutil.SingleResultNotFound())
		repo.On("Save", mock.Anything, "users", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(interfaces.RepositoryResult{Result: "1"})

		rec := NewReconciler(repo)
		report, err := rec.Import(ctx, userResource(t), [][]string{
			{"objectId", "username"},
			{"gone-id", "alice"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
		assert.Empty(t, report.Failed)
		repo.AssertExpectations(t)
	})

	t.Run("bracketed cells parse as embedded JSON", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		repo.On("Save", mock.Anything, "users", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(data interface{}) bool {
				doc := data.(map[string]interface{})
				tags, ok := doc["tags"].([]interface{})
				return ok && len(tags) == 2
			})).Return(interfaces.RepositoryResult{Result: "1"})

		rec := NewReconciler(repo)
		report, err := rec.Import(ctx, userResource(t), [][]string{
			{"username", "tags"},
			{"alice", `["go","csv"]`},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
	})

	t.Run("malformed JSON fails the row but not the batch", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		repo.On("Save", mock.Anything, "users", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(data interface{}) bool {
				return data.(map[string]interface{})["username"] == "bob"
			})).Return(interfaces.RepositoryResult{Result: "1"})

		rec := NewReconciler(repo)
		report, err := rec.Import(ctx, userResource(t), [][]string{
			{"username", "tags"},
			{"alice", `["broken`},
			{"bob", `["ok"]`},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 1, report.Succeeded)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, 2, report.Failed[0].Row)
		repo.AssertExpectations(t)
	})

	t.Run("store failures are collected per row", func(t *testing.T) {
		repo := new(testutil.MockRepository)
		repo.On("Save", mock.Anything, "users", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(interfaces.RepositoryResult{Error: interfaces.ErrDuplicateKey})

		rec := NewReconciler(repo)
		report, err := rec.Import(ctx, userResource(t), [][]string{
			{"username"},
			{"alice"},
			{"bob"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Succeeded)
		assert.Len(t, report.Failed, 2)
	})
}

func TestReportErrorBody(t *testing.T) {
	t.Run("few errors list in full", func(t *testing.T) {
		report := &Report{Total: 3, Failed: []RowError{
			{Row: 2, Message: "boom"},
		}}
		body := report.ErrorBody()["errors"].(map[string]interface{})
		assert.Len(t, body["rows"], 1)
		assert.NotContains(t, body, "summary")
	})

	t.Run("overflow collapses into a summary", func(t *testing.T) {
		failed := make([]RowError, 8)
		for i := range failed {
			failed[i] = RowError{Row: i + 2, Message: "boom"}
		}
		report := &Report{Total: 8, Failed: failed}

		body := report.ErrorBody()["errors"].(map[string]interface{})
		assert.Len(t, body["rows"], MaxReportedErrors)
		assert.Equal(t, "3 more errors", body["summary"])
	})
}
