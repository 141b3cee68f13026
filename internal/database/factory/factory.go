package factory

import (
	"context"
	"fmt"

	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	"github.com/joefour/SnapJS-AdminServer/internal/database/mongodb"
	"github.com/joefour/SnapJS-AdminServer/internal/database/postgresql"
)

// RepositoryFactory creates repository instances based on configuration
type RepositoryFactory struct {
	config *interfaces.RepositoryConfig
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(config *interfaces.RepositoryConfig) *RepositoryFactory {
	return &RepositoryFactory{config: config}
}

// ValidateConfig checks that the configuration is complete for the
// selected database type.
func (f *RepositoryFactory) ValidateConfig() error {
	if f.config == nil {
		return fmt.Errorf("repository configuration is required")
	}
	switch f.config.DatabaseType {
	case interfaces.DatabaseTypeMongoDB:
		if f.config.MongoConfig == nil || f.config.MongoConfig.URI == "" {
			return fmt.Errorf("mongodb URI is required")
		}
	case interfaces.DatabaseTypePostgreSQL:
		if f.config.PostgresConfig == nil || f.config.PostgresConfig.Host == "" {
			return fmt.Errorf("postgresql host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", f.config.DatabaseType)
	}
	if f.config.DatabaseName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// CreateRepository constructs the repository for the configured backend.
func (f *RepositoryFactory) CreateRepository(ctx context.Context) (interfaces.Repository, error) {
	switch f.config.DatabaseType {
	case interfaces.DatabaseTypeMongoDB:
		return mongodb.NewMongoRepository(ctx, f.config.MongoConfig, f.config.DatabaseName)
	case interfaces.DatabaseTypePostgreSQL:
		return postgresql.NewPostgreSQLRepository(ctx, f.config.PostgresConfig, f.config.DatabaseName)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", f.config.DatabaseType)
	}
}
