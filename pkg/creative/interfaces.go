package creative

import (
	"context"
)

// ObjectStore is the object-store collaborator. The analysis core only
// reads uploaded objects and writes extracted backup images; URL issuance
// and signing live elsewhere.
type ObjectStore interface {
	// Get returns the full body of an object. A missing object yields an
	// error wrapping ErrObjectNotFound.
	Get(ctx context.Context, loc Locator) ([]byte, error)

	// Put stores data under loc with the given content type and returns the
	// locator it was written to.
	Put(ctx context.Context, loc Locator, data []byte, contentType string) (Locator, error)
}

// MetadataStore is the metadata-store collaborator.
//
// Each entity has a fixed update mode:
//   - MergeSideMetadata merges into any existing side metadata entry.
//   - ReplaceRecord replaces the whole analysis record for its ContentID.
type MetadataStore interface {
	// GetSideMetadata returns ErrSideMetadataNotFound when nothing was written.
	GetSideMetadata(ctx context.Context, contentID string) (*SideMetadata, error)

	// MergeSideMetadata upserts side metadata with Merge semantics.
	MergeSideMetadata(ctx context.Context, meta *SideMetadata) error

	// ReplaceRecord upserts a record with Replace semantics.
	ReplaceRecord(ctx context.Context, record *AnalysisRecord) error

	// GetRecord returns ErrRecordNotFound when no run has persisted yet and
	// ErrCorruptRecord when the stored document cannot be decoded.
	GetRecord(ctx context.Context, contentID string) (*AnalysisRecord, error)
}
