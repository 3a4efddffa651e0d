package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the nkstore API.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	BlobStorage BlobStorageConfig
	Auth        AuthConfig
	Metrics     MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// BlobStorageConfig controls the on-disk blob byte store and its limits.
type BlobStorageConfig struct {
	Dir                  string
	MaxBlobSizeBytes     int64
	MaxCryptoHeaderBytes int
	SweepInterval        time.Duration
	StaleAge             time.Duration
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	SessionTTL           time.Duration
	PBKDF2Iterations     int
	InitialAdminPassword string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
// Read/write timeouts default high because blob uploads and downloads are
// long-lived streaming requests.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("NKSTORE_API_HOST", "0.0.0.0"),
			Port:         getInt("NKSTORE_API_PORT", 9041),
			ReadTimeout:  getDuration("NKSTORE_API_READ_TIMEOUT", 15*time.Minute),
			WriteTimeout: getDuration("NKSTORE_API_WRITE_TIMEOUT", 15*time.Minute),
			IdleTimeout:  getDuration("NKSTORE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "nkstore_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "nkstore"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		BlobStorage: BlobStorageConfig{
			Dir:                  getString("NKSTORE_BLOB_DIR", "./nkstore-blobs"),
			MaxBlobSizeBytes:     getInt64("NKSTORE_BLOB_MAX_SIZE_BYTES", 512*1024*1024),
			MaxCryptoHeaderBytes: getInt("NKSTORE_BLOB_MAX_CRYPTO_HEADER_BYTES", 4096),
			SweepInterval:        getDuration("NKSTORE_BLOB_SWEEP_INTERVAL", 15*time.Minute),
			StaleAge:             getDuration("NKSTORE_BLOB_STALE_AGE", 24*time.Hour),
		},
		Auth: AuthConfig{
			SessionTTL:           getDuration("NKSTORE_AUTH_SESSION_TTL", 7*24*time.Hour),
			PBKDF2Iterations:     getInt("NKSTORE_AUTH_PBKDF2_ITERATIONS", 10302),
			InitialAdminPassword: getString("NKSTORE_AUTH_INITIAL_ADMIN_PASSWORD", "PleaseChangeMe@YourEarliest2Day"),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("NKSTORE_METRICS_PATH", "/metrics"),
		},
	}

	if cfg.BlobStorage.MaxBlobSizeBytes <= 0 {
		return Config{}, fmt.Errorf("NKSTORE_BLOB_MAX_SIZE_BYTES must be positive")
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
