package azblob_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	azstorage "github.com/tendant/creative-analysis/pkg/creative/storage/azblob"
)

type fakeBlobService struct {
	mu           sync.Mutex
	blobs        map[string][]byte
	contentTypes map[string]string
}

func (f *fakeBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodGet:
		data, ok := f.blobs[key]
		if !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("x-ms-blob-type", "BlockBlob")
		_, _ = w.Write(data)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.blobs[key] = data
		f.contentTypes[key] = r.Header.Get("x-ms-blob-content-type")
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestAzblobBackend(t *testing.T) {
	fake := &fakeBlobService{blobs: map[string][]byte{}, contentTypes: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	backend, err := azstorage.New(azstorage.Config{ServiceURL: srv.URL + "/"})
	require.NoError(t, err)
	ctx := context.Background()
	loc := creative.Locator{Container: "backups", Name: "abc_extracted_backup.png"}

	t.Run("Put", func(t *testing.T) {
		got, err := backend.Put(ctx, loc, []byte("png-bytes"), "image/png")
		require.NoError(t, err)
		assert.Equal(t, loc, got)
		assert.Equal(t, "image/png", fake.contentTypes["backups/abc_extracted_backup.png"])
	})

	t.Run("Get", func(t *testing.T) {
		data, err := backend.Get(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := backend.Get(ctx, creative.Locator{Container: "backups", Name: "nope.png"})
		assert.ErrorIs(t, err, creative.ErrObjectNotFound)
	})
}

func TestAzblobBackend_RequiresAccount(t *testing.T) {
	_, err := azstorage.New(azstorage.Config{})
	assert.Error(t, err)
}
