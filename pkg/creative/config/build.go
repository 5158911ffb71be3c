package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
	"github.com/tendant/creative-analysis/pkg/creative/events"
	"github.com/tendant/creative-analysis/pkg/creative/extract"
	"github.com/tendant/creative-analysis/pkg/creative/metrics"
	"github.com/tendant/creative-analysis/pkg/creative/repo/memory"
	repopg "github.com/tendant/creative-analysis/pkg/creative/repo/postgres"
	reporedis "github.com/tendant/creative-analysis/pkg/creative/repo/redis"
	azstorage "github.com/tendant/creative-analysis/pkg/creative/storage/azblob"
	fsstorage "github.com/tendant/creative-analysis/pkg/creative/storage/fs"
	memorystorage "github.com/tendant/creative-analysis/pkg/creative/storage/memory"
	miniostorage "github.com/tendant/creative-analysis/pkg/creative/storage/minio"
	s3storage "github.com/tendant/creative-analysis/pkg/creative/storage/s3"
)

// ReadinessCheck probes one dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Runtime is everything BuildAnalyzer wired together.
type Runtime struct {
	Analyzer analyzer.Analyzer
	Objects  creative.ObjectStore
	Metadata creative.MetadataStore

	// Registry is nil when metrics are disabled.
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Checks  []ReadinessCheck
	closers []func()
}

// Ready runs every readiness check and joins the failures.
func (r *Runtime) Ready(ctx context.Context) error {
	var errs []error
	for _, c := range r.Checks {
		if err := c.Check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases pools and clients in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// BuildAnalyzer creates the stores, metrics and event sink described by the
// configuration and an Analyzer on top of them. Extra analyzer options are
// applied last.
func (c *ServerConfig) BuildAnalyzer(ctx context.Context, logger *slog.Logger, extra ...analyzer.Option) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	objects, err := c.buildObjectStore()
	if err != nil {
		return nil, &creative.ConfigurationError{Component: "object store", Err: err}
	}
	rt.Objects = objects

	if err := c.buildMetadataStore(ctx, rt); err != nil {
		rt.Close()
		return nil, &creative.ConfigurationError{Component: "metadata store", Err: err}
	}

	options := []analyzer.Option{
		analyzer.WithObjectStore(rt.Objects),
		analyzer.WithMetadataStore(rt.Metadata),
		analyzer.WithLogger(logger),
		analyzer.WithRetrieval(c.Analysis.RetrievalMaxAttempts, c.Analysis.RetrievalInterval),
		analyzer.WithPersistence(c.Analysis.PersistMaxAttempts, c.Analysis.PersistInterval),
		analyzer.WithConcurrency(c.Analysis.Concurrency),
		analyzer.WithProber(extract.NewBreakerProber(extract.NewFFProbe(c.Analysis.FFProbePath), extract.BreakerSettings{
			Name:   "ffprobe",
			Logger: logger,
		})),
	}
	if c.Analysis.BackupContainer != "" {
		options = append(options, analyzer.WithBackupContainer(c.Analysis.BackupContainer))
	}

	if c.EnableMetrics {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.Metrics = metrics.New(rt.Registry)
		options = append(options, analyzer.WithMetrics(rt.Metrics))
	}

	sink, err := c.buildEventSink(logger)
	if err != nil {
		rt.Close()
		return nil, &creative.ConfigurationError{Component: "event sink", Err: err}
	}
	options = append(options, analyzer.WithEventSink(sink))

	a, err := analyzer.New(append(options, extra...)...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Analyzer = a
	return rt, nil
}

func (c *ServerConfig) buildEventSink(logger *slog.Logger) (analyzer.EventSink, error) {
	switch {
	case c.EventsURL != "":
		w, err := events.NewHTTPWriter(c.EventsURL)
		if err != nil {
			return nil, err
		}
		return events.NewSink(w), nil
	case c.EnableEventLogging:
		return events.NewSink(&events.LogWriter{Logger: logger}), nil
	default:
		return analyzer.NoopEventSink{}, nil
	}
}

// buildMetadataStore creates the metadata store and registers its readiness
// check and closer on rt
func (c *ServerConfig) buildMetadataStore(ctx context.Context, rt *Runtime) error {
	switch c.DatabaseType {
	case DatabaseMemory:
		rt.Metadata = memory.New()
	case DatabasePostgres:
		pool, err := OpenPostgres(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return err
		}
		rt.Metadata = repopg.NewWithPool(pool)
		rt.Checks = append(rt.Checks, ReadinessCheck{Name: "postgres", Check: pool.Ping})
		rt.closers = append(rt.closers, pool.Close)
	case DatabaseRedis:
		repo, err := reporedis.NewFromURL(c.RedisURL)
		if err != nil {
			return err
		}
		rt.Metadata = repo
		rt.Checks = append(rt.Checks, ReadinessCheck{Name: "redis", Check: repo.Ping})
		rt.closers = append(rt.closers, func() { _ = repo.Close() })
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
	return nil
}

// buildObjectStore creates the ObjectStore based on the backend configuration
func (c *ServerConfig) buildObjectStore() (creative.ObjectStore, error) {
	config := c.Storage.Config
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config, "base_dir", "./data/storage"),
		})

	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:          getString(config, "region", "us-east-1"),
			AccessKeyID:     getString(config, "access_key_id", ""),
			SecretAccessKey: getString(config, "secret_access_key", ""),
			Endpoint:        getString(config, "endpoint", ""),
			UsePathStyle:    getBool(config, "use_path_style", false),
			EnableSSE:       getBool(config, "enable_sse", false),
			SSEAlgorithm:    getString(config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:     getString(config, "sse_kms_key_id", ""),
			CreateBuckets:   getList(config, "create_buckets"),
		})

	case StorageMinio:
		return miniostorage.New(
			miniostorage.WithEndpoint(getString(config, "endpoint", "")),
			miniostorage.WithAccessKey(getString(config, "access_key", "")),
			miniostorage.WithSecretKey(getString(config, "secret_key", "")),
			miniostorage.WithRegion(getString(config, "region", "")),
			miniostorage.WithSSL(getBool(config, "use_ssl", true)),
		)

	case StorageAzblob:
		return azstorage.New(azstorage.Config{
			ConnectionString: getString(config, "connection_string", ""),
			AccountName:      getString(config, "account", ""),
			AccountKey:       getString(config, "account_key", ""),
			ServiceURL:       getString(config, "service_url", ""),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

// OpenPostgres creates a pool whose sessions use schema as search_path.
func OpenPostgres(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured schema.
func PingPostgres(databaseURL, schema string) error {
	pool, err := OpenPostgres(context.Background(), databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// MigratePostgres creates the schema when missing and applies migrations.
func (c *ServerConfig) MigratePostgres(ctx context.Context) error {
	if c.DatabaseType != DatabasePostgres {
		return fmt.Errorf("migrations require a postgres DATABASE_URL, database type is %s", c.DatabaseType)
	}
	pool, err := OpenPostgres(ctx, c.DatabaseURL, "")
	if err != nil {
		return err
	}
	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			pool.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}
	pool.Close()

	pool, err = OpenPostgres(ctx, c.DatabaseURL, c.DBSchema)
	if err != nil {
		return err
	}
	defer pool.Close()
	return repopg.Migrate(ctx, pool)
}
