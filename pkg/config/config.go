package config

import "fmt"

// DbConfig holds the PostgreSQL connection settings for the registry.
type DbConfig struct {
	Host     string `env:"REGISTRY_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"REGISTRY_PG_PORT" env-default:"5432"`
	Database string `env:"REGISTRY_PG_DATABASE" env-default:"registry_db"`
	User     string `env:"REGISTRY_PG_USER" env-default:"registry"`
	Password string `env:"REGISTRY_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"REGISTRY_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL builds the pgx connection string.
func (d DbConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// RedisConfig holds the Redis connection settings for the registry.
type RedisConfig struct {
	Addr     string `env:"REGISTRY_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REGISTRY_REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REGISTRY_REDIS_DB" env-default:"0"`
}

// JwtConfig holds the session token verification settings.
type JwtConfig struct {
	Secret   string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer   string `env:"JWT_ISSUER" env-default:"wealthtrack"`
	Audience string `env:"JWT_AUDIENCE" env-default:"wealthtrack"`
}

// RegistryConfig holds the registry server settings.
type RegistryConfig struct {
	// Persistence selects the repository backend: postgres, redis, file, inmem.
	Persistence string `env:"REGISTRY_PERSISTENCE" env-default:"inmem"`
	DataDir     string `env:"REGISTRY_DATA_DIR" env-default:"./data"`

	RateLimitEnabled  bool    `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	RateLimitCapacity int     `env:"RATE_LIMIT_CAPACITY" env-default:"100"`
	RateLimitRate     float64 `env:"RATE_LIMIT_RATE" env-default:"1.67"`
}

// ClientConfig holds the settings of the device management client tooling.
type ClientConfig struct {
	BaseURL    string `env:"REGISTRY_BASE_URL" env-default:"http://localhost:4000/api/devices"`
	AppVersion string `env:"APP_VERSION" env-default:"dev"`
	UserAgent  string `env:"CLIENT_USER_AGENT" env-default:""`
}
