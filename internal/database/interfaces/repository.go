package interfaces

import (
	"context"
	"time"

	uuid "github.com/gofrs/uuid"
)

// Repository defines the document-store collaborator used by the admin
// layer. Every operation is asynchronous and settles exactly once on the
// returned channel.
type Repository interface {
	Save(ctx context.Context, collectionName string, objectID uuid.UUID, createdDate, lastUpdated int64, data interface{}) <-chan RepositoryResult
	Find(ctx context.Context, collectionName string, query *Query, opts *FindOptions) <-chan QueryResult
	FindOne(ctx context.Context, collectionName string, query *Query) <-chan SingleResult
	Update(ctx context.Context, collectionName string, query *Query, data interface{}, opts *UpdateOptions) <-chan RepositoryResult
	Delete(ctx context.Context, collectionName string, query *Query) <-chan RepositoryResult
	Count(ctx context.Context, collectionName string, query *Query) <-chan CountResult

	// Connection management
	Ping(ctx context.Context) <-chan error
	Close() error
}

// FindOptions represents options for find operations
type FindOptions struct {
	Limit *int64
	Skip  *int64
	Sort  map[string]int // Field: 1 (asc) or -1 (desc)
}

// UpdateOptions represents options for update operations
type UpdateOptions struct {
	Upsert *bool
}

// RepositoryResult represents the result of a repository operation
type RepositoryResult struct {
	Result interface{}
	Error  error
}

// QueryResult represents a query result cursor
type QueryResult interface {
	Next() bool
	Decode(v interface{}) error
	Close()
	Error() error
}

// SingleResult represents a single document result
type SingleResult interface {
	Decode(v interface{}) error
	Error() error
	NoResult() bool
}

// CountResult represents the result of a count operation
type CountResult struct {
	Count int64
	Error error
}

// Database configuration constants
const (
	DatabaseTypeMongoDB    = "mongodb"
	DatabaseTypePostgreSQL = "postgresql"
)

// Common errors
var (
	ErrNoDocuments      = NewRepositoryError("no documents found", "NOT_FOUND")
	ErrDuplicateKey     = NewRepositoryError("duplicate key error", "DUPLICATE_KEY")
	ErrInvalidFilter    = NewRepositoryError("invalid filter", "INVALID_FILTER")
	ErrConnectionFailed = NewRepositoryError("database connection failed", "CONNECTION_FAILED")
)

// RepositoryError represents a repository specific error
type RepositoryError struct {
	Message string
	Code    string
	Time    time.Time
}

func (e *RepositoryError) Error() string {
	return e.Message
}

// NewRepositoryError creates a new repository error
func NewRepositoryError(message, code string) *RepositoryError {
	return &RepositoryError{
		Message: message,
		Code:    code,
		Time:    time.Now(),
	}
}
