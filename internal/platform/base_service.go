package platform

import (
	"context"
	"fmt"

	"github.com/joefour/SnapJS-AdminServer/internal/database/factory"
	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	platformconfig "github.com/joefour/SnapJS-AdminServer/internal/platform/config"
)

// BaseService carries the shared collaborators every service needs.
type BaseService struct {
	Repository interfaces.Repository
	config     *ServiceConfig
}

// ServiceConfig represents service configuration
type ServiceConfig struct {
	DatabaseType string
	DatabaseName string
}

// NewBaseService creates a new base service instance from platform config
func NewBaseService(ctx context.Context, cfg *platformconfig.Config) (*BaseService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("platform configuration is required")
	}

	factoryConfig := &interfaces.RepositoryConfig{
		DatabaseType: cfg.Database.Type,
		DatabaseName: databaseNameFromConfig(cfg),
		MongoConfig: &interfaces.MongoDBConfig{
			URI:      cfg.Database.MongoDB.URI,
			Database: cfg.Database.MongoDB.Database,
		},
		PostgresConfig: &interfaces.PostgreSQLConfig{
			Host:               cfg.Database.Postgres.Host,
			Port:               cfg.Database.Postgres.Port,
			Username:           cfg.Database.Postgres.Username,
			Password:           cfg.Database.Postgres.Password,
			Database:           cfg.Database.Postgres.Database,
			SSLMode:            cfg.Database.Postgres.SSLMode,
			MaxOpenConnections: cfg.Database.Postgres.MaxOpenConns,
			MaxIdleConnections: cfg.Database.Postgres.MaxIdleConns,
			MaxLifetime:        int(cfg.Database.Postgres.ConnMaxLifetime.Seconds()),
			ConnectTimeout:     10,
		},
	}

	repositoryFactory := factory.NewRepositoryFactory(factoryConfig)
	if err := repositoryFactory.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	repository, err := repositoryFactory.CreateRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	return &BaseService{
		Repository: repository,
		config: &ServiceConfig{
			DatabaseType: cfg.Database.Type,
			DatabaseName: factoryConfig.DatabaseName,
		},
	}, nil
}

func databaseNameFromConfig(cfg *platformconfig.Config) string {
	switch cfg.Database.Type {
	case interfaces.DatabaseTypeMongoDB:
		return cfg.Database.MongoDB.Database
	case interfaces.DatabaseTypePostgreSQL:
		return cfg.Database.Postgres.Database
	default:
		return "snapjs_admin"
	}
}

// NewBaseServiceWithRepo creates a BaseService with an existing repository.
// Tests use this to inject mocks.
func NewBaseServiceWithRepo(repo interfaces.Repository, config *ServiceConfig) *BaseService {
	return &BaseService{
		Repository: repo,
		config:     config,
	}
}

// HealthCheck performs a health check on the repository
func (s *BaseService) HealthCheck(ctx context.Context) error {
	return <-s.Repository.Ping(ctx)
}

// Close closes the service and its resources
func (s *BaseService) Close() error {
	if s.Repository != nil {
		return s.Repository.Close()
	}
	return nil
}

// GetDatabaseType returns the configured database type
func (s *BaseService) GetDatabaseType() string {
	if s.config == nil {
		return ""
	}
	return s.config.DatabaseType
}
