package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Metadata store types.
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseRedis    = "redis"
)

// Object store types.
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageMinio  = "minio"
	StorageAzblob = "azblob"
)

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: DatabaseMemory,
		DBSchema:     "creative",
		Storage: StorageBackendConfig{
			Type:   StorageMemory,
			Config: map[string]interface{}{},
		},
		Analysis: AnalysisConfig{
			RetrievalMaxAttempts: analyzer.DefaultRetrievalAttempts,
			RetrievalInterval:    analyzer.DefaultRetrievalInterval,
			PersistMaxAttempts:   analyzer.DefaultPersistAttempts,
			PersistInterval:      analyzer.DefaultPersistInterval,
			Concurrency:          analyzer.DefaultConcurrency,
		},
		EnableEventLogging: true,
		EnableMetrics:      true,
	}
}

// ServerConfig represents configuration for the creative analysis service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Metadata store configuration
	DatabaseType string // "memory", "postgres", "redis"
	DatabaseURL  string
	DBSchema     string // Postgres schema to use (default: creative)
	RedisURL     string

	// Object store configuration
	Storage StorageBackendConfig

	Analysis AnalysisConfig

	// EventsURL receives a CloudEvent per persisted record when set.
	EventsURL          string
	EnableEventLogging bool
	EnableMetrics      bool
}

// StorageBackendConfig represents configuration for the object store
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3", "minio", "azblob"
	Config map[string]interface{}
}

// AnalysisConfig holds the pipeline knobs.
type AnalysisConfig struct {
	RetrievalMaxAttempts int
	RetrievalInterval    time.Duration
	PersistMaxAttempts   int
	PersistInterval      time.Duration
	Concurrency          int
	FFProbePath          string
	BackupContainer      string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case DatabaseRedis:
		if c.RedisURL == "" {
			return errors.New("redis_url is required when using redis")
		}
	default:
		return fmt.Errorf("database_type must be one of memory, postgres, redis; got %q", c.DatabaseType)
	}

	switch c.Storage.Type {
	case StorageMemory, StorageS3:
	case StorageFS:
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("filesystem storage requires base_dir")
		}
	case StorageMinio:
		if getString(c.Storage.Config, "endpoint", "") == "" {
			return errors.New("minio storage requires an endpoint")
		}
	case StorageAzblob:
		if getString(c.Storage.Config, "connection_string", "") == "" && getString(c.Storage.Config, "account", "") == "" {
			return errors.New("azblob storage requires an account or connection string")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.Analysis.RetrievalMaxAttempts < 1 || c.Analysis.PersistMaxAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}
	if c.Analysis.RetrievalInterval < 0 || c.Analysis.PersistInterval < 0 {
		return errors.New("retry intervals cannot be negative")
	}
	if c.Analysis.Concurrency < 1 {
		return errors.New("analysis concurrency must be at least 1")
	}
	return nil
}

// ParseStorageURL maps a STORAGE_URL onto a backend configuration.
//
//	memory://
//	file:///var/data
//	s3://?region=us-east-1&endpoint=http://localhost:9000&path_style=true&create=uploads,backups
//	minio://localhost:9000?ssl=false
//	azblob://account
func ParseStorageURL(raw string) (StorageBackendConfig, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return StorageBackendConfig{Type: StorageMemory, Config: map[string]interface{}{}}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return StorageBackendConfig{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	q := u.Query()
	backend := StorageBackendConfig{Config: map[string]interface{}{}}

	switch u.Scheme {
	case "file":
		path := u.Host + u.Path
		if path == "" {
			return StorageBackendConfig{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		backend.Type = StorageFS
		backend.Config["base_dir"] = path
	case "s3":
		backend.Type = StorageS3
		backend.Config["region"] = valueOr(q.Get("region"), "us-east-1")
		if v := q.Get("endpoint"); v != "" {
			backend.Config["endpoint"] = v
		}
		if v := q.Get("path_style"); v != "" {
			backend.Config["use_path_style"] = v
		}
		var buckets []string
		if u.Host != "" {
			buckets = append(buckets, u.Host)
		}
		if v := q.Get("create"); v != "" {
			buckets = append(buckets, strings.Split(v, ",")...)
		}
		if len(buckets) > 0 {
			backend.Config["create_buckets"] = strings.Join(buckets, ",")
		}
	case "minio":
		if u.Host == "" {
			return StorageBackendConfig{}, errors.New("minio endpoint cannot be empty in STORAGE_URL")
		}
		backend.Type = StorageMinio
		backend.Config["endpoint"] = u.Host
		backend.Config["use_ssl"] = valueOr(q.Get("ssl"), "true")
		if v := q.Get("region"); v != "" {
			backend.Config["region"] = v
		}
	case "azblob":
		backend.Type = StorageAzblob
		if u.Host != "" {
			backend.Config["account"] = u.Host
		}
		if v := q.Get("service_url"); v != "" {
			backend.Config["service_url"] = v
		}
	default:
		return StorageBackendConfig{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use memory://, file://, s3://, minio:// or azblob://)", raw)
	}
	return backend, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func getList(config map[string]interface{}, key string) []string {
	raw := getString(config, key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
