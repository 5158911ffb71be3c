package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// Option configures the MinIO backend.
type Option func(c *config)

type config struct {
	endpoint        string
	accessKey       string
	secretAccessKey string
	region          string
	useSSL          bool
}

func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.endpoint = endpoint
	}
}

func WithAccessKey(accessKey string) Option {
	return func(c *config) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) Option {
	return func(c *config) {
		c.secretAccessKey = secretKey
	}
}

// WithRegion skips bucket location lookups when set.
func WithRegion(region string) Option {
	return func(c *config) {
		c.region = region
	}
}

func WithSSL(useSSL bool) Option {
	return func(c *config) {
		c.useSSL = useSSL
	}
}

// Backend is a MinIO implementation of the creative.ObjectStore interface.
// Locator containers are bucket names.
type Backend struct {
	client *minio.Client
}

// New creates a MinIO object store. The endpoint is host[:port] without scheme.
func New(opts ...Option) (*Backend, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Backend{client: client}, nil
}

// Get downloads the whole object
func (b *Backend) Get(ctx context.Context, loc creative.Locator) ([]byte, error) {
	object, err := b.client.GetObject(ctx, loc.Container, loc.Name, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.wrap(loc, "get", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, b.wrap(loc, "get", err)
	}
	return data, nil
}

// Put uploads data with the given content type
func (b *Backend) Put(ctx context.Context, loc creative.Locator, data []byte, contentType string) (creative.Locator, error) {
	_, err := b.client.PutObject(ctx, loc.Container, loc.Name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return creative.Locator{}, b.wrap(loc, "put", err)
	}
	return loc, nil
}

func (b *Backend) wrap(loc creative.Locator, op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", loc, creative.ErrObjectNotFound)
	}
	return &creative.StorageError{Backend: "minio", Key: loc.String(), Op: op, Err: err}
}
