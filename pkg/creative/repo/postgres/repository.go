package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements creative.MetadataStore using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "22P02", "22032": // invalid_text_representation, invalid_json_text
			return fmt.Errorf("%w: %s", creative.ErrCorruptRecord, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) GetSideMetadata(ctx context.Context, contentID string) (*creative.SideMetadata, error) {
	query := `SELECT content_id, is_ctv, object_name FROM side_metadata WHERE content_id = $1`

	var meta creative.SideMetadata
	err := r.db.QueryRow(ctx, query, contentID).Scan(&meta.ContentID, &meta.IsCtv, &meta.ObjectName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, creative.ErrSideMetadataNotFound
		}
		return nil, handlePostgresError("get side metadata", err)
	}
	return &meta, nil
}

// MergeSideMetadata upserts side metadata. An empty object name keeps the
// stored one, matching creative.MergeSideMetadata.
func (r *Repository) MergeSideMetadata(ctx context.Context, meta *creative.SideMetadata) error {
	if meta == nil || meta.ContentID == "" {
		return creative.ErrMissingContentID
	}

	query := `
		INSERT INTO side_metadata (content_id, is_ctv, object_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (content_id) DO UPDATE SET
			is_ctv = EXCLUDED.is_ctv,
			object_name = COALESCE(NULLIF(EXCLUDED.object_name, ''), side_metadata.object_name),
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, meta.ContentID, meta.IsCtv, meta.ObjectName); err != nil {
		return handlePostgresError("merge side metadata", err)
	}
	return nil
}

// ReplaceRecord overwrites the whole stored document for the record's content id.
func (r *Repository) ReplaceRecord(ctx context.Context, record *creative.AnalysisRecord) error {
	doc, err := creative.EncodeRecord(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_records (content_id, category, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (content_id) DO UPDATE SET
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			document = EXCLUDED.document,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, record.ContentID, string(record.Category), string(record.Status), doc); err != nil {
		return handlePostgresError("replace record", err)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, contentID string) (*creative.AnalysisRecord, error) {
	query := `SELECT document FROM analysis_records WHERE content_id = $1`

	var doc []byte
	if err := r.db.QueryRow(ctx, query, contentID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, creative.ErrRecordNotFound
		}
		return nil, handlePostgresError("get record", err)
	}
	return creative.DecodeRecord(doc)
}

// ListRecordsByStatus returns content ids whose latest record has the given status.
func (r *Repository) ListRecordsByStatus(ctx context.Context, status creative.Status) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT content_id FROM analysis_records WHERE status = $1 ORDER BY updated_at DESC`, string(status))
	if err != nil {
		return nil, handlePostgresError("list records", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, handlePostgresError("list records", err)
	}
	return ids, nil
}
