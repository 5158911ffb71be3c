package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/creative-analysis/pkg/creative"
)

// Backend is a filesystem implementation of the creative.ObjectStore
// interface. Containers map to directories under BaseDir.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing objects
}

// New creates a new filesystem object store
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	abs, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &Backend{baseDir: abs}, nil
}

// path resolves loc inside baseDir and rejects names escaping it.
func (b *Backend) path(loc creative.Locator) (string, error) {
	if loc.Container == "" || loc.Name == "" {
		return "", creative.ErrInvalidLocator
	}
	p := filepath.Join(b.baseDir, loc.Container, filepath.FromSlash(loc.Name))
	if !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes base directory", creative.ErrInvalidLocator, loc)
	}
	return p, nil
}

// Get reads the whole object from disk
func (b *Backend) Get(ctx context.Context, loc creative.Locator) ([]byte, error) {
	p, err := b.path(loc)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", loc, creative.ErrObjectNotFound)
	} else if err != nil {
		return nil, &creative.StorageError{Backend: "fs", Key: loc.String(), Op: "get", Err: err}
	}
	return data, nil
}

// Put writes data atomically through a temporary file. The filesystem does
// not keep the content type.
func (b *Backend) Put(ctx context.Context, loc creative.Locator, data []byte, contentType string) (creative.Locator, error) {
	p, err := b.path(loc)
	if err != nil {
		return creative.Locator{}, err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return creative.Locator{}, &creative.StorageError{Backend: "fs", Key: loc.String(), Op: "put", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return creative.Locator{}, &creative.StorageError{Backend: "fs", Key: loc.String(), Op: "put", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return creative.Locator{}, &creative.StorageError{Backend: "fs", Key: loc.String(), Op: "put", Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return creative.Locator{}, &creative.StorageError{Backend: "fs", Key: loc.String(), Op: "put", Err: err}
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return creative.Locator{}, &creative.StorageError{Backend: "fs", Key: loc.String(), Op: "put", Err: err}
	}
	return loc, nil
}
