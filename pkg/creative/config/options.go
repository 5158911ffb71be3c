package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the Postgres or in-memory metadata store
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != DatabaseMemory && dbType != DatabasePostgres {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == DatabasePostgres && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithRedis selects the Redis metadata store
func WithRedis(url string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
		c.DatabaseType = DatabaseRedis
		c.RedisURL = url
		return nil
	}
}

// WithStorageURL selects the object store from a STORAGE_URL style string
func WithStorageURL(raw string) Option {
	return func(c *ServerConfig) error {
		backend, err := ParseStorageURL(raw)
		if err != nil {
			return err
		}
		c.Storage = backend
		return nil
	}
}

// WithFilesystemStorage stores objects under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type:   StorageFS,
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithStorageCredentials attaches credentials to the configured object store
func WithStorageCredentials(accessKey, secretKey string) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Config == nil {
			c.Storage.Config = map[string]interface{}{}
		}
		switch c.Storage.Type {
		case StorageS3:
			c.Storage.Config["access_key_id"] = accessKey
			c.Storage.Config["secret_access_key"] = secretKey
		case StorageMinio:
			c.Storage.Config["access_key"] = accessKey
			c.Storage.Config["secret_key"] = secretKey
		case StorageAzblob:
			c.Storage.Config["account_key"] = secretKey
		default:
			return fmt.Errorf("storage type %s takes no credentials", c.Storage.Type)
		}
		return nil
	}
}

// WithRetrieval sets the retrieval retry budget
func WithRetrieval(maxAttempts int, interval time.Duration) Option {
	return func(c *ServerConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("retrieval attempts must be positive, got: %d", maxAttempts)
		}
		c.Analysis.RetrievalMaxAttempts = maxAttempts
		c.Analysis.RetrievalInterval = interval
		return nil
	}
}

// WithPersistence sets the persistence retry budget
func WithPersistence(maxAttempts int, interval time.Duration) Option {
	return func(c *ServerConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("persist attempts must be positive, got: %d", maxAttempts)
		}
		c.Analysis.PersistMaxAttempts = maxAttempts
		c.Analysis.PersistInterval = interval
		return nil
	}
}

// WithConcurrency bounds batch analysis
func WithConcurrency(n int) Option {
	return func(c *ServerConfig) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be positive, got: %d", n)
		}
		c.Analysis.Concurrency = n
		return nil
	}
}

// WithFFProbePath sets the ffprobe binary
func WithFFProbePath(path string) Option {
	return func(c *ServerConfig) error {
		c.Analysis.FFProbePath = path
		return nil
	}
}

// WithBackupContainer sets where extracted backup images go
func WithBackupContainer(container string) Option {
	return func(c *ServerConfig) error {
		c.Analysis.BackupContainer = container
		return nil
	}
}

// WithEventsURL posts a CloudEvent per persisted record to url
func WithEventsURL(url string) Option {
	return func(c *ServerConfig) error {
		c.EventsURL = url
		return nil
	}
}

// WithEventLogging logs completion events when no EventsURL is set
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithMetrics toggles Prometheus metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}
