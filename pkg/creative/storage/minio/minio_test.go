package minio_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	miniostorage "github.com/tendant/creative-analysis/pkg/creative/storage/minio"
)

func newServer(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		body, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>`+key+`</Key></Error>`)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMinioBackend_New(t *testing.T) {
	_, err := miniostorage.New()
	assert.Error(t, err)
}

func TestMinioBackend_Get(t *testing.T) {
	srv := newServer(t, map[string]string{"uploads/spot.mp3": "mp3-bytes"})

	backend, err := miniostorage.New(
		miniostorage.WithEndpoint(strings.TrimPrefix(srv.URL, "http://")),
		miniostorage.WithAccessKey("minio"),
		miniostorage.WithSecretKey("minio123"),
		miniostorage.WithRegion("us-east-1"),
	)
	require.NoError(t, err)

	data, err := backend.Get(context.Background(), creative.Locator{Container: "uploads", Name: "spot.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))

	_, err = backend.Get(context.Background(), creative.Locator{Container: "uploads", Name: "missing.mp3"})
	assert.ErrorIs(t, err, creative.ErrObjectNotFound)
}
