// Package config handles loading server configuration from environment
// variables. All server config is centralized here so no other package reads
// env vars directly. Development defaults let `go run ./cmd/server` work
// against a local MariaDB, Redis, and filesystem object store.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all server configuration. Populated from environment
// variables at startup and passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for storage URLs and mail links.
	BaseURL string

	// AllowedOrigins lists extra CORS origins (comma-separated CORS_ORIGINS).
	AllowedOrigins []string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	SMTP     SMTPConfig
}

// DatabaseConfig holds MariaDB connection parameters. If DATABASE_URL is
// set it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address; ":3306" is appended when no port is given.
	Host     string
	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. Built with the
// driver's Config.FormatDSN() so special characters in passwords are safe.
// multiStatements is enabled because migration files hold several statements.
// clientFoundRows makes UPDATE report matched rows, so an ownership-scoped
// update that rewrites identical values is not mistaken for a miss.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds token settings for the auth provider.
type AuthConfig struct {
	// JWTSecret signs access tokens (HS256). 32+ characters in production.
	JWTSecret string

	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long an unused refresh token stays valid.
	RefreshTokenTTL time.Duration

	// RecoveryTokenTTL is how long a password recovery link stays valid.
	RecoveryTokenTTL time.Duration
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	// Driver is "local" (filesystem) or "s3".
	Driver string

	// LocalPath is the root directory for the local driver.
	LocalPath string

	// MaxSize is the maximum object size in bytes.
	MaxSize int64

	// S3 settings, used when Driver == "s3". Endpoint may point at MinIO.
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	// S3BucketPrefix is prepended to logical bucket names ("avatars" ->
	// "scribe-avatars") so one S3 account can host several deployments.
	S3BucketPrefix string
}

// SMTPConfig holds outbound mail settings. An empty Host disables delivery;
// recovery links are then written to the log instead.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string

	// Encryption is "starttls", "ssl", or "none".
	Encryption string
}

// Load reads configuration from environment variables with defaults.
// Returns an error if required production variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		AllowedOrigins: getEnvList("CORS_ORIGINS"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "scribe"),
			Password:        getEnv("DB_PASSWORD", "scribe"),
			Name:            getEnv("DB_NAME", "scribe"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			RecoveryTokenTTL: getEnvDuration("RECOVERY_TOKEN_TTL", time.Hour),
		},

		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			LocalPath:      getEnv("STORAGE_PATH", "./objects"),
			MaxSize:        getEnvInt64("MAX_UPLOAD_SIZE", 5*1024*1024), // 5MB
			S3Endpoint:     getEnv("S3_ENDPOINT", ""),
			S3Region:       getEnv("S3_REGION", "us-east-1"),
			S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
			S3BucketPrefix: getEnv("S3_BUCKET_PREFIX", "scribe-"),
		},

		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvInt("SMTP_PORT", 587),
			Username:    getEnv("SMTP_USERNAME", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			FromAddress: getEnv("SMTP_FROM", "no-reply@localhost"),
			FromName:    getEnv("SMTP_FROM_NAME", "Scribe"),
			Encryption:  strings.ToLower(getEnv("SMTP_ENCRYPTION", "starttls")),
		},
	}

	switch cfg.Storage.Driver {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be \"local\" or \"s3\", got %q", cfg.Storage.Driver)
	}

	if cfg.IsProduction() {
		if cfg.Auth.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(cfg.Auth.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}

	// Dev-only default so local runs work without a .env file.
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "dev-secret-key-do-not-use-in-production!!"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" or "prod" in any case.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// --- Helper functions for reading environment variables ---

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated env var, dropping empty entries.
func getEnvList(key string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
