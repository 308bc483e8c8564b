package registry

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RepositoryConfig contains configuration for creating a device session repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
	// Redis is required for Redis repositories
	Redis redis.UniversalClient
	// DataDir is required for file-based repositories
	DataDir string
	// Options for the repository (active window, etc.)
	// If not provided, DefaultRepositoryOptions() will be used
	Options *RepositoryOptions
}

// NewRepository creates a new device session repository based on the persistence type
func NewRepository(persistenceType string, config RepositoryConfig) (Repository, error) {
	options := DefaultRepositoryOptions()
	if config.Options != nil {
		options = *config.Options
	}

	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresRepositoryWithOptions(config.DB, options), nil
	case "redis":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis repository")
		}
		return NewRedisRepository(config.Redis, options), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileRepository(config.DataDir, options)
	case "inmem", "memory":
		return NewInMemRepositoryWithOptions(options), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, redis, file, inmem)", persistenceType)
	}
}
