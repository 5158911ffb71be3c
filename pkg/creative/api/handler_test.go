package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
	"github.com/tendant/creative-analysis/pkg/creative/extract"
	"github.com/tendant/creative-analysis/pkg/creative/repo/memory"
	memorystorage "github.com/tendant/creative-analysis/pkg/creative/storage/memory"
)

const contentID = "3f2b8c1e-9d4a-4e6b-8a7c-1b2c3d4e5f60"

type stubProber struct{}

func (stubProber) Probe(context.Context, []byte, string) (*extract.MediaInfo, error) {
	return nil, errors.New("no ffprobe in tests")
}

// contextProber reports a 30s audio spot unless ctx is done.
type contextProber struct{}

func (contextProber) Probe(ctx context.Context, _ []byte, _ string) (*extract.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	duration, bitrate := 30.0, 192
	return &extract.MediaInfo{Duration: &duration, BitrateKbps: &bitrate}, nil
}

type brokenRepo struct {
	*memory.Repository
}

func (brokenRepo) ReplaceRecord(context.Context, *creative.AnalysisRecord) error {
	return errors.New("database unavailable")
}

type testEnv struct {
	objects *memorystorage.Backend
	repo    *memory.Repository
	router  http.Handler
}

// setupTest wires a handler over in-memory stores
func setupTest(t *testing.T, metadata creative.MetadataStore, ready ReadyFunc) *testEnv {
	t.Helper()
	return setupTestWithProber(t, metadata, ready, stubProber{})
}

func setupTestWithProber(t *testing.T, metadata creative.MetadataStore, ready ReadyFunc, prober extract.Prober) *testEnv {
	t.Helper()
	env := &testEnv{objects: memorystorage.New(), repo: memory.New()}
	if metadata == nil {
		metadata = env.repo
	}
	a, err := analyzer.New(
		analyzer.WithObjectStore(env.objects),
		analyzer.WithMetadataStore(metadata),
		analyzer.WithProber(prober),
		analyzer.WithRetrieval(2, time.Millisecond),
		analyzer.WithPersistence(1, 0),
	)
	require.NoError(t, err)
	env.router = NewRouter(NewAnalysisHandler(a, ready, nil), WithRegistry(prometheus.NewRegistry()))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) uploadPNG(t *testing.T, name string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 250))))
	_, err := e.objects.Put(context.Background(), creative.Locator{Container: "uploads", Name: name}, buf.Bytes(), "image/png")
	require.NoError(t, err)
}

func blobCreated(id, url string) string {
	return `{"id":"` + id + `","eventType":"Microsoft.Storage.BlobCreated","subject":"s","eventTime":"2024-01-01T00:00:00Z","data":{"url":"` + url + `"}}`
}

func TestHandleEvents_EventGrid(t *testing.T) {
	env := setupTest(t, nil, nil)
	env.uploadPNG(t, contentID+"-banner 1.png")

	body := "[" + blobCreated("1", "https://acct.blob.core.windows.net/uploads/"+contentID+"-banner%201.png") + "," +
		`{"id":"2","eventType":"Microsoft.Storage.BlobDeleted","data":{}}` + "]"
	w := env.do(t, http.MethodPost, "/api/v1/events", []byte(body), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 0, resp.Failed)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "unsupported event type", resp.Skipped[0].Reason)

	w = env.do(t, http.MethodGet, "/api/v1/results/"+contentID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec creative.AnalysisRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, creative.StatusCompleted, rec.Status)
	assert.Equal(t, "banner 1.png", rec.DisplayName)
}

func TestHandleEvents_RunOutlivesRequestContext(t *testing.T) {
	env := setupTestWithProber(t, nil, nil, contextProber{})
	_, err := env.objects.Put(context.Background(), creative.Locator{Container: "uploads", Name: contentID + "-spot.mp3"}, []byte("audio"), "audio/mpeg")
	require.NoError(t, err)

	body := "[" + blobCreated("1", "https://acct.blob.core.windows.net/uploads/"+contentID+"-spot.mp3") + "]"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader([]byte(body))).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := env.repo.GetRecord(context.Background(), contentID)
	require.NoError(t, err)
	assert.Equal(t, creative.CategoryAudio, rec.Category)
	assert.Equal(t, creative.StatusCompleted, rec.Status, "checks: %+v", rec.ValidationChecks)
	require.NotNil(t, rec.Duration)
	assert.InDelta(t, 30.0, *rec.Duration, 1e-9)
}

func TestHandleEvents_SubscriptionValidation(t *testing.T) {
	env := setupTest(t, nil, nil)

	w := env.do(t, http.MethodPost, "/api/v1/events",
		[]byte(`[{"id":"v","eventType":"Microsoft.EventGrid.SubscriptionValidationEvent","data":{"validationCode":"code-1"}}]`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"validationResponse":"code-1"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/events",
		[]byte(`[{"id":"v","eventType":"Microsoft.EventGrid.SubscriptionValidationEvent","data":{}}]`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvents_CloudEvent(t *testing.T) {
	env := setupTest(t, nil, nil)
	env.uploadPNG(t, contentID+"-banner.png")

	w := env.do(t, http.MethodPost, "/api/v1/events",
		[]byte(`{"bucket":"uploads","key":"`+contentID+`-banner.png"}`),
		map[string]string{
			"ce-specversion": "1.0",
			"ce-id":          "1",
			"ce-source":      "minio:uploads",
			"ce-type":        "s3:ObjectCreated:Put",
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err := env.repo.GetRecord(context.Background(), contentID)
	assert.NoError(t, err)
}

func TestHandleEvents_RetrievalFailureIsRecorded(t *testing.T) {
	env := setupTest(t, nil, nil)

	body := "[" + blobCreated("1", "https://acct.blob.core.windows.net/uploads/"+contentID+"-missing.png") + "]"
	w := env.do(t, http.MethodPost, "/api/v1/events", []byte(body), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Failed)

	rec, err := env.repo.GetRecord(context.Background(), contentID)
	require.NoError(t, err)
	assert.Equal(t, creative.StatusError, rec.Status)
}

func TestHandleEvents_PersistenceFailureAsksForRedelivery(t *testing.T) {
	env := setupTest(t, brokenRepo{memory.New()}, nil)
	env.uploadPNG(t, contentID+"-banner.png")

	body := "[" + blobCreated("1", "https://acct.blob.core.windows.net/uploads/"+contentID+"-banner.png") + "]"
	w := env.do(t, http.MethodPost, "/api/v1/events", []byte(body), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleEvents_Malformed(t *testing.T) {
	env := setupTest(t, nil, nil)
	w := env.do(t, http.MethodPost, "/api/v1/events", []byte(`{"oops":`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWebhookValidation(t *testing.T) {
	env := setupTest(t, nil, nil)

	w := env.do(t, http.MethodOptions, "/api/v1/events", nil, map[string]string{"WebHook-Request-Origin": "eventgrid.azure.net"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eventgrid.azure.net", w.Header().Get("WebHook-Allowed-Origin"))

	w = env.do(t, http.MethodOptions, "/api/v1/events", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetSideMetadata(t *testing.T) {
	env := setupTest(t, nil, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantID     string
	}{
		{"content id", `{"contentId":"c1","isCtv":true}`, http.StatusOK, "c1"},
		{"object name", `{"objectName":"` + contentID + `-spot.mp4","isCtv":true}`, http.StatusOK, contentID},
		{"missing flag", `{"contentId":"c1"}`, http.StatusBadRequest, ""},
		{"missing id", `{"isCtv":true}`, http.StatusBadRequest, ""},
		{"invalid json", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/metadata", []byte(tt.body), nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantID == "" {
				return
			}
			meta, err := env.repo.GetSideMetadata(context.Background(), tt.wantID)
			require.NoError(t, err)
			assert.True(t, meta.IsCtv)
		})
	}
}

func TestGetResult(t *testing.T) {
	env := setupTest(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/v1/results/"+contentID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.repo.SetRawRecord(contentID, []byte(`{"schemaVersion":1,"record":{"contentId":"x","bogus":true}}`))
	w = env.do(t, http.MethodGet, "/api/v1/results/"+contentID, nil, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var rec creative.AnalysisRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, creative.StatusError, rec.Status)
	require.Len(t, rec.ValidationChecks, 1)
	assert.Equal(t, "Result Parsing", rec.ValidationChecks[0].CheckName)
}

func TestHealth(t *testing.T) {
	env := setupTest(t, nil, nil)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz/ready", nil, nil).Code)

	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "creative_analysis_http_requests_total")

	failing := setupTest(t, nil, func(context.Context) error { return errors.New("postgres: connection refused") })
	assert.Equal(t, http.StatusServiceUnavailable, failing.do(t, http.MethodGet, "/healthz/ready", nil, nil).Code)
}
