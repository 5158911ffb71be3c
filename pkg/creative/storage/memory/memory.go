package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/creative-analysis/pkg/creative"
)

// Backend is an in-memory implementation of the creative.ObjectStore interface
type Backend struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string
}

// New creates a new in-memory object store
func New() *Backend {
	return &Backend{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func key(loc creative.Locator) string {
	return loc.Container + "/" + loc.Name
}

// Get returns a copy of the stored object
func (b *Backend) Get(ctx context.Context, loc creative.Locator) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key(loc)]
	if !exists {
		return nil, fmt.Errorf("%s: %w", loc, creative.ErrObjectNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a copy of data
func (b *Backend) Put(ctx context.Context, loc creative.Locator, data []byte, contentType string) (creative.Locator, error) {
	if loc.Container == "" || loc.Name == "" {
		return creative.Locator{}, creative.ErrInvalidLocator
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key(loc)] = stored
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.contentTypes[key(loc)] = contentType
	return loc, nil
}

// ContentType returns the content type an object was stored with
func (b *Backend) ContentType(loc creative.Locator) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ct, ok := b.contentTypes[key(loc)]
	return ct, ok
}

// Delete removes an object
func (b *Backend) Delete(ctx context.Context, loc creative.Locator) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key(loc)]; !exists {
		return fmt.Errorf("%s: %w", loc, creative.ErrObjectNotFound)
	}
	delete(b.objects, key(loc))
	delete(b.contentTypes, key(loc))
	return nil
}
