// Package testutil provides test doubles shared across the service and
// handler test suites.
package testutil

import (
	"context"
	"encoding/json"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
)

// MockRepository is a testify mock of the document repository. Every
// method settles its channel immediately with the configured result.
type MockRepository struct {
	mock.Mock
}

var _ interfaces.Repository = (*MockRepository)(nil)

func (m *MockRepository) Save(ctx context.Context, collectionName string, objectID uuid.UUID, createdDate, lastUpdated int64, data interface{}) <-chan interfaces.RepositoryResult {
	args := m.Called(ctx, collectionName, objectID, createdDate, lastUpdated, data)
	ch := make(chan interfaces.RepositoryResult, 1)
	ch <- args.Get(0).(interfaces.RepositoryResult)
	return ch
}

func (m *MockRepository) Find(ctx context.Context, collectionName string, query *interfaces.Query, opts *interfaces.FindOptions) <-chan interfaces.QueryResult {
	args := m.Called(ctx, collectionName, query, opts)
	ch := make(chan interfaces.QueryResult, 1)
	ch <- args.Get(0).(interfaces.QueryResult)
	return ch
}

func (m *MockRepository) FindOne(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.SingleResult {
	args := m.Called(ctx, collectionName, query)
	ch := make(chan interfaces.SingleResult, 1)
	ch <- args.Get(0).(interfaces.SingleResult)
	return ch
}

func (m *MockRepository) Update(ctx context.Context, collectionName string, query *interfaces.Query, data interface{}, opts *interfaces.UpdateOptions) <-chan interfaces.RepositoryResult {
	args := m.Called(ctx, collectionName, query, data, opts)
	ch := make(chan interfaces.RepositoryResult, 1)
	ch <- args.Get(0).(interfaces.RepositoryResult)
	return ch
}

func (m *MockRepository) Delete(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.RepositoryResult {
	args := m.Called(ctx, collectionName, query)
	ch := make(chan interfaces.RepositoryResult, 1)
	ch <- args.Get(0).(interfaces.RepositoryResult)
	return ch
}

func (m *MockRepository) Count(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.CountResult {
	args := m.Called(ctx, collectionName, query)
	ch := make(chan interfaces.CountResult, 1)
	ch <- args.Get(0).(interfaces.CountResult)
	return ch
}

func (m *MockRepository) Ping(ctx context.Context) <-chan error {
	args := m.Called(ctx)
	ch := make(chan error, 1)
	ch <- args.Error(0)
	return ch
}

func (m *MockRepository) Close() error {
	return m.Called().Error(0)
}

// QueryResultFromDocs builds a cursor over in-memory documents.
func QueryResultFromDocs(docs ...map[string]interface{}) interfaces.QueryResult {
	return &sliceQueryResult{docs: docs}
}

// QueryResultError builds a cursor that failed before yielding.
func QueryResultError(err error) interfaces.QueryResult {
	return &sliceQueryResult{err: err}
}

type sliceQueryResult struct {
	docs []map[string]interface{}
	pos  int
	err  error
}

func (r *sliceQueryResult) Next() bool {
	if r.err != nil || r.pos >= len(r.docs) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceQueryResult) Decode(v interface{}) error {
	raw, err := json.Marshal(r.docs[r.pos-1])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (r *sliceQueryResult) Close()       {}
func (r *sliceQueryResult) Error() error { return r.err }

// SingleResultFromDoc builds a single-document result.
func SingleResultFromDoc(doc map[string]interface{}) interfaces.SingleResult {
	return &singleResult{doc: doc}
}

// SingleResultNotFound builds an empty single-document result. Like the
// real backends it reports nothing until Decode is called; only then do
// NoResult and the ErrNoDocuments error surface.
func SingleResultNotFound() interfaces.SingleResult {
	return &singleResult{missing: true}
}

// SingleResultError builds a failed single-document result.
func SingleResultError(err error) interfaces.SingleResult {
	return &singleResult{err: err}
}

type singleResult struct {
	doc      map[string]interface{}
	err      error
	missing  bool
	noResult bool
}

func (r *singleResult) Decode(v interface{}) error {
	if r.missing {
		r.noResult = true
		return interfaces.ErrNoDocuments
	}
	if r.err != nil {
		return r.err
	}
	raw, err := json.Marshal(r.doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (r *singleResult) Error() error {
	return r.err
}

func (r *singleResult) NoResult() bool {
	return r.noResult
}
