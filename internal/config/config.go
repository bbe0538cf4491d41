// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted in TASKBOARD_BACKEND.
const (
	BackendPostgREST = "postgrest"
	BackendSQL       = "sql"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	Server      ServerConfig
	Backend     string
	Remote      RemoteConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Credentials CredentialsConfig
	Locale      string
}

type ServerConfig struct {
	HealthPort  string
	Environment string
}

// RemoteConfig points at a hosted backend exposing PostgREST and GoTrue.
type RemoteConfig struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SQLitePath  string
	AutoMigrate bool
}

type JWTConfig struct {
	AccessSecret         string
	RefreshSecret        string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// CredentialsConfig holds the account the headless host signs in with.
type CredentialsConfig struct {
	Email    string
	Password string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			HealthPort:  getEnv("HEALTH_PORT", "50051"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Backend: strings.ToLower(getEnv("TASKBOARD_BACKEND", BackendSQL)),
		Remote: RemoteConfig{
			URL:     strings.TrimRight(getEnv("REMOTE_URL", ""), "/"),
			AnonKey: getEnv("REMOTE_ANON_KEY", ""),
			Timeout: getEnvAsDuration("REMOTE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", DriverSQLite),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "taskboard"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:  getEnv("DB_SQLITE_PATH", "file:taskboard.db?_fk=1"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			AccessSecret:         getEnv("JWT_ACCESS_SECRET", getEnv("JWT_SECRET", "dev-access-secret-change-in-production")),
			RefreshSecret:        getEnv("JWT_REFRESH_SECRET", getEnv("JWT_SECRET", "dev-refresh-secret-change-in-production")),
			AccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", time.Hour),
			RefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
		},
		Credentials: CredentialsConfig{
			Email:    getEnv("TASKBOARD_EMAIL", ""),
			Password: getEnv("TASKBOARD_PASSWORD", ""),
		},
		Locale: getEnv("TASKBOARD_LOCALE", "en"),
	}, nil
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendPostgREST:
		if c.Remote.URL == "" {
			errs = append(errs, errors.New("REMOTE_URL is required for the postgrest backend"))
		}
		if c.Remote.AnonKey == "" {
			errs = append(errs, errors.New("REMOTE_ANON_KEY is required for the postgrest backend"))
		}
	case BackendSQL:
		switch c.Database.Driver {
		case DriverPostgres, DriverSQLite:
		default:
			errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
		}
		if c.IsProduction() && strings.HasPrefix(c.JWT.AccessSecret, "dev-") {
			errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported TASKBOARD_BACKEND %q", c.Backend))
	}

	if c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("REMOTE_TIMEOUT must be positive"))
	}
	if (c.Credentials.Email == "") != (c.Credentials.Password == "") {
		errs = append(errs, errors.New("TASKBOARD_EMAIL and TASKBOARD_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// PostgresDSN builds a lib/pq connection string.
func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// DSN returns the data source name for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	return d.PostgresDSN()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	// Try parsing as duration string (e.g., "15m", "24h")
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}

	return defaultValue
}
