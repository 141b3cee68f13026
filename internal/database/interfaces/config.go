package interfaces

// RepositoryConfig holds the configuration needed to construct a repository
type RepositoryConfig struct {
	DatabaseType   string
	DatabaseName   string
	MongoConfig    *MongoDBConfig
	PostgresConfig *PostgreSQLConfig
}

// MongoDBConfig holds MongoDB-specific connection settings
type MongoDBConfig struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout int // seconds
}

// PostgreSQLConfig holds PostgreSQL-specific connection settings
type PostgreSQLConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Database           string
	SSLMode            string
	Schema             string
	MaxOpenConnections int
	MaxIdleConnections int
	MaxLifetime        int // seconds
	ConnectTimeout     int // seconds
}
