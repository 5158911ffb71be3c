package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/creative-analysis/pkg/creative"
)

const defaultKeyPrefix = "creative"

// Repository implements creative.MetadataStore on Redis. Side metadata lives
// in a hash per content id so merges only touch the fields they carry;
// records are stored as encoded envelopes under a plain key.
type Repository struct {
	client redis.UniversalClient
	prefix string
}

// Option configures the repository.
type Option func(*Repository)

// WithKeyPrefix namespaces every key, default "creative".
func WithKeyPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) *Repository {
	r := &Repository{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromURL parses a redis:// URL and connects lazily.
func NewFromURL(url string, opts ...Option) (*Repository, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(options), opts...), nil
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) sideKey(contentID string) string {
	return r.prefix + ":side:" + contentID
}

func (r *Repository) recordKey(contentID string) string {
	return r.prefix + ":record:" + contentID
}

func (r *Repository) GetSideMetadata(ctx context.Context, contentID string) (*creative.SideMetadata, error) {
	fields, err := r.client.HGetAll(ctx, r.sideKey(contentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get side metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil, creative.ErrSideMetadataNotFound
	}

	meta := &creative.SideMetadata{ContentID: contentID, ObjectName: fields["object_name"]}
	if v, ok := fields["is_ctv"]; ok {
		meta.IsCtv, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("get side metadata: invalid is_ctv %q", v)
		}
	}
	return meta, nil
}

func (r *Repository) MergeSideMetadata(ctx context.Context, meta *creative.SideMetadata) error {
	if meta == nil || meta.ContentID == "" {
		return creative.ErrMissingContentID
	}

	values := []interface{}{"is_ctv", strconv.FormatBool(meta.IsCtv)}
	if meta.ObjectName != "" {
		values = append(values, "object_name", meta.ObjectName)
	}
	if err := r.client.HSet(ctx, r.sideKey(meta.ContentID), values...).Err(); err != nil {
		return fmt.Errorf("merge side metadata: %w", err)
	}
	return nil
}

func (r *Repository) ReplaceRecord(ctx context.Context, record *creative.AnalysisRecord) error {
	doc, err := creative.EncodeRecord(record)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.recordKey(record.ContentID), doc, 0).Err(); err != nil {
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, contentID string) (*creative.AnalysisRecord, error) {
	doc, err := r.client.Get(ctx, r.recordKey(contentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, creative.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return creative.DecodeRecord(doc)
}
