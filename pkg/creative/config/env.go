package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the environment surface. Fields without a value keep the
// defaults already present on ServerConfig.
type envConfig struct {
	Port        string `env:"PORT"`
	Environment string `env:"ENVIRONMENT"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBSchema    string `env:"DB_SCHEMA"`
	RedisURL    string `env:"REDIS_URL"`

	StorageURL string `env:"STORAGE_URL"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION"`

	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`

	AzureAccountKey       string `env:"AZURE_STORAGE_KEY"`
	AzureConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING"`

	RetrievalMaxAttempts int           `env:"RETRIEVAL_MAX_ATTEMPTS"`
	RetrievalInterval    time.Duration `env:"RETRIEVAL_INTERVAL"`
	PersistMaxAttempts   int           `env:"PERSIST_MAX_ATTEMPTS"`
	PersistInterval      time.Duration `env:"PERSIST_INTERVAL"`
	Concurrency          int           `env:"ANALYSIS_CONCURRENCY"`
	FFProbePath          string        `env:"FFPROBE_PATH"`
	BackupContainer      string        `env:"BACKUP_CONTAINER"`

	EventsURL          string `env:"EVENTS_SINK_URL"`
	EnableEventLogging string `env:"ENABLE_EVENT_LOGGING"`
	EnableMetrics      string `env:"ENABLE_METRICS"`
}

// WithEnv applies environment variable overrides.
//
// Server:
//
//	PORT, ENVIRONMENT
//
// Metadata store:
//
//	DATABASE_URL - "memory" (default) or "postgres://..."; DB_SCHEMA sets search_path
//	REDIS_URL    - "redis://host:6379/0", used when DATABASE_URL is not postgres
//
// Object store:
//
//	STORAGE_URL - memory://, file:///path, s3://, minio://host:port, azblob://account
//	plus AWS_*, MINIO_* and AZURE_STORAGE_* credentials
//
// Pipeline:
//
//	RETRIEVAL_MAX_ATTEMPTS, RETRIEVAL_INTERVAL, PERSIST_MAX_ATTEMPTS,
//	PERSIST_INTERVAL, ANALYSIS_CONCURRENCY, FFPROBE_PATH, BACKUP_CONTAINER,
//	EVENTS_SINK_URL
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return env.apply(c)
	}
}

func (e *envConfig) apply(c *ServerConfig) error {
	setString(&c.Port, e.Port)
	setString(&c.Environment, e.Environment)
	setString(&c.DBSchema, e.DBSchema)

	if err := applyDatabaseEnv(e, c); err != nil {
		return err
	}
	if err := applyStorageEnv(e, c); err != nil {
		return err
	}

	setInt(&c.Analysis.RetrievalMaxAttempts, e.RetrievalMaxAttempts)
	setDuration(&c.Analysis.RetrievalInterval, e.RetrievalInterval)
	setInt(&c.Analysis.PersistMaxAttempts, e.PersistMaxAttempts)
	setDuration(&c.Analysis.PersistInterval, e.PersistInterval)
	setInt(&c.Analysis.Concurrency, e.Concurrency)
	setString(&c.Analysis.FFProbePath, e.FFProbePath)
	setString(&c.Analysis.BackupContainer, e.BackupContainer)

	setString(&c.EventsURL, e.EventsURL)
	if err := setBool(&c.EnableEventLogging, "ENABLE_EVENT_LOGGING", e.EnableEventLogging); err != nil {
		return err
	}
	return setBool(&c.EnableMetrics, "ENABLE_METRICS", e.EnableMetrics)
}

// applyDatabaseEnv picks the metadata store from DATABASE_URL and REDIS_URL
func applyDatabaseEnv(e *envConfig, c *ServerConfig) error {
	switch {
	case strings.HasPrefix(e.DatabaseURL, "postgresql://"), strings.HasPrefix(e.DatabaseURL, "postgres://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = e.DatabaseURL
	case e.DatabaseURL == "" || e.DatabaseURL == "memory":
		if e.RedisURL != "" {
			c.DatabaseType = DatabaseRedis
		}
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", e.DatabaseURL)
	}
	setString(&c.RedisURL, e.RedisURL)
	return nil
}

// applyStorageEnv parses STORAGE_URL and attaches credentials for its type
func applyStorageEnv(e *envConfig, c *ServerConfig) error {
	if e.StorageURL == "" {
		return nil
	}
	backend, err := ParseStorageURL(e.StorageURL)
	if err != nil {
		return err
	}

	switch backend.Type {
	case StorageS3:
		setConfig(backend.Config, "access_key_id", e.AWSAccessKeyID)
		setConfig(backend.Config, "secret_access_key", e.AWSSecretAccessKey)
		setConfig(backend.Config, "region", e.AWSRegion)
	case StorageMinio:
		setConfig(backend.Config, "access_key", e.MinioAccessKey)
		setConfig(backend.Config, "secret_key", e.MinioSecretKey)
	case StorageAzblob:
		setConfig(backend.Config, "account_key", e.AzureAccountKey)
		setConfig(backend.Config, "connection_string", e.AzureConnectionString)
	}

	c.Storage = backend
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, key, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setConfig(config map[string]interface{}, key, v string) {
	if v != "" {
		config[key] = v
	}
}
