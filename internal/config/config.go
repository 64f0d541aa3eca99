// Package config provides configuration management for the mint engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chain    ChainConfig
	Worker   WorkerConfig
	Relayer  RelayerConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds chain node and contract configuration
type ChainConfig struct {
	RPCURL          string
	WSURL           string
	ContractAddress string
}

// WorkerConfig holds render worker configuration
type WorkerConfig struct {
	Workers          int
	PollInterval     time.Duration
	RenderTimeout    time.Duration
	ClaimLease       time.Duration
	RenderServiceURL string
}

// RelayerConfig holds aggregator/relayer configuration
type RelayerConfig struct {
	Schedule      string // cron expression, "@daily" in this deployment
	SubmitTimeout time.Duration
	PrivateKey    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestsPerSec:  getEnvAsInt("SERVER_REQUESTS_PER_SEC", 10),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "mint_engine"),
				User:           getEnv("POSTGRES_USER", "mint"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("CHAIN_RPC_URL", ""),
			WSURL:           getEnv("CHAIN_WS_URL", ""),
			ContractAddress: getEnv("CHAIN_CONTRACT_ADDRESS", ""),
		},
		Worker: WorkerConfig{
			Workers:          getEnvAsInt("WORKER_COUNT", 4),
			PollInterval:     getEnvAsDuration("WORKER_POLL_INTERVAL", 1*time.Second),
			RenderTimeout:    getEnvAsDuration("WORKER_RENDER_TIMEOUT", 10*time.Minute),
			ClaimLease:       getEnvAsDuration("WORKER_CLAIM_LEASE", 15*time.Minute),
			RenderServiceURL: getEnv("WORKER_RENDER_URL", "http://localhost:9090"),
		},
		Relayer: RelayerConfig{
			Schedule:      getEnv("RELAYER_SCHEDULE", "@daily"),
			SubmitTimeout: getEnvAsDuration("RELAYER_SUBMIT_TIMEOUT", 2*time.Minute),
			PrivateKey:    getEnv("RELAYER_PRIVATE_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks that configuration values are usable
func validate(cfg *Config) error {
	if cfg.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", cfg.Database.Postgres.MaxConnections)
	}
	if cfg.Worker.Workers <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", cfg.Worker.Workers)
	}
	if cfg.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive, got %v", cfg.Worker.PollInterval)
	}
	if cfg.Worker.RenderTimeout <= 0 {
		return fmt.Errorf("WORKER_RENDER_TIMEOUT must be positive, got %v", cfg.Worker.RenderTimeout)
	}
	return nil
}

// PostgresURL builds a connection URL for migrations and tooling
func (c *PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration retrieves an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
