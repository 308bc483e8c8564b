package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"

	"github.com/wealthtrack/device-trust/pkg/authn"
	pkgconfig "github.com/wealthtrack/device-trust/pkg/config"
	"github.com/wealthtrack/device-trust/pkg/ratelimit"
	"github.com/wealthtrack/device-trust/pkg/registry"
	registryapi "github.com/wealthtrack/device-trust/pkg/registry/api"
)

type Config struct {
	RegistryConfig pkgconfig.RegistryConfig
	DbConfig       pkgconfig.DbConfig
	RedisConfig    pkgconfig.RedisConfig
	JwtConfig      pkgconfig.JwtConfig
	AppConfig      app.AppConfig
}

func loadEnvFile() {
	envFile := ".env"
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		execPath, err := os.Executable()
		if err != nil {
			return
		}
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			return
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "path", envFile, "error", err)
		return
	}
	slog.Info("Loaded environment from file", "path", envFile)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	config := Config{}
	cleanenv.ReadEnv(&config)

	repo, err := buildRepository(&config)
	if err != nil {
		slog.Error("Failed creating device session repository", "persistence", config.RegistryConfig.Persistence, "error", err)
		os.Exit(-1)
	}

	service := registry.NewService(repo)
	handle := registryapi.NewHandle(service)

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)

	rateLimitMiddleware := ratelimit.NewMiddleware(ratelimit.Config{
		Enabled:    config.RegistryConfig.RateLimitEnabled,
		Capacity:   config.RegistryConfig.RateLimitCapacity,
		RefillRate: config.RegistryConfig.RateLimitRate,
		BucketTTL:  1 * time.Hour,
	})
	server.R.Use(rateLimitMiddleware.Handler)

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.Secret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(registryapi.EnvelopeAuthenticator)
		r.Use(authn.Middleware)
		r.Mount("/api/devices", registryapi.Routes(handle))
	})

	slog.Info("Device trust registry starting", "persistence", config.RegistryConfig.Persistence)
	server.Run()
}

func buildRepository(config *Config) (registry.Repository, error) {
	repoConfig := registry.RepositoryConfig{
		DataDir: config.RegistryConfig.DataDir,
	}

	switch config.RegistryConfig.Persistence {
	case "postgres", "postgresql":
		pool, err := pgxpool.New(context.Background(), config.DbConfig.ToDatabaseURL())
		if err != nil {
			return nil, err
		}
		repoConfig.DB = pool
	case "redis":
		repoConfig.Redis = redis.NewClient(&redis.Options{
			Addr:     config.RedisConfig.Addr,
			Password: config.RedisConfig.Password,
			DB:       config.RedisConfig.DB,
		})
	}

	return registry.NewRepository(config.RegistryConfig.Persistence, repoConfig)
}
