package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/creative-analysis/pkg/creative"
)

// Repository implements creative.MetadataStore using in-memory storage.
// Records are kept in their encoded envelope form so reads go through the
// same decoder as the persistent backends.
type Repository struct {
	mu           sync.RWMutex
	sideMetadata map[string]*creative.SideMetadata
	records      map[string][]byte
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		sideMetadata: make(map[string]*creative.SideMetadata),
		records:      make(map[string][]byte),
	}
}

func (r *Repository) GetSideMetadata(ctx context.Context, contentID string) (*creative.SideMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.sideMetadata[contentID]
	if !exists {
		return nil, creative.ErrSideMetadataNotFound
	}
	// Return a copy to prevent external modifications
	metaCopy := *meta
	return &metaCopy, nil
}

func (r *Repository) MergeSideMetadata(ctx context.Context, meta *creative.SideMetadata) error {
	if meta == nil || meta.ContentID == "" {
		return creative.ErrMissingContentID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sideMetadata[meta.ContentID] = creative.MergeSideMetadata(r.sideMetadata[meta.ContentID], meta)
	return nil
}

func (r *Repository) ReplaceRecord(ctx context.Context, record *creative.AnalysisRecord) error {
	data, err := creative.EncodeRecord(record)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ContentID] = data
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, contentID string) (*creative.AnalysisRecord, error) {
	r.mu.RLock()
	data, exists := r.records[contentID]
	r.mu.RUnlock()

	if !exists {
		return nil, creative.ErrRecordNotFound
	}
	return creative.DecodeRecord(data)
}

// ListRecordsByStatus returns the sorted content ids whose record has the
// given status. Undecodable records are skipped.
func (r *Repository) ListRecordsByStatus(ctx context.Context, status creative.Status) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, data := range r.records {
		rec, err := creative.DecodeRecord(data)
		if err != nil {
			continue
		}
		if rec.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SetRawRecord stores an already encoded document as is. Tests use it to
// seed fixtures; nothing validates the bytes until GetRecord.
func (r *Repository) SetRawRecord(contentID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[contentID] = append([]byte(nil), data...)
}

// RawRecord returns the encoded envelope last stored for contentID.
func (r *Repository) RawRecord(contentID string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, exists := r.records[contentID]
	if !exists {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
