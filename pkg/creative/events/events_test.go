package events_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/events"
)

type memoryWriter struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (w *memoryWriter) Write(_ context.Context, e cloudevents.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	return nil
}

func (w *memoryWriter) Close(context.Context) error { return nil }

func failedRecord() *creative.AnalysisRecord {
	rec := creative.NewAnalysisRecord("c1", "ad.zip", creative.Locator{Container: "uploads", Name: "c1-ad.zip"}, 100)
	rec.Category = creative.CategoryHTML5
	rec.Html5Info = &creative.Html5Info{ExtractedBackupContentID: "c1-backup.png"}
	rec.AddCheck(
		creative.ValidationCheck{CheckName: "File Count (HTML5)", Status: creative.CheckPass},
		creative.ValidationCheck{CheckName: "Primary HTML (HTML5)", Status: creative.CheckFail},
	)
	rec.Finalize()
	return rec
}

func TestSink_AnalysisCompleted(t *testing.T) {
	w := &memoryWriter{}
	sink := events.NewSink(w, events.WithSource("test"))

	require.NoError(t, sink.AnalysisCompleted(context.Background(), failedRecord()))
	require.Len(t, w.events, 1)

	e := w.events[0]
	assert.Equal(t, events.AnalysisCompletedType, e.Type())
	assert.Equal(t, "test", e.Source())
	assert.Equal(t, "c1", e.Subject())
	assert.NoError(t, e.Validate())

	var summary events.Summary
	require.NoError(t, e.DataAs(&summary))
	assert.Equal(t, creative.StatusError, summary.Status)
	assert.Equal(t, []string{"Primary HTML (HTML5)"}, summary.FailedChecks)
	assert.Equal(t, "c1-backup.png", summary.BackupID)
}

func TestHTTPWriter(t *testing.T) {
	var (
		mu      sync.Mutex
		gotType string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotType = r.Header.Get("Ce-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := events.NewHTTPWriter(srv.URL)
	require.NoError(t, err)
	sink := events.NewSink(w)
	require.NoError(t, sink.AnalysisCompleted(context.Background(), failedRecord()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.AnalysisCompletedType, gotType)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &summary))
	assert.Equal(t, "c1", summary["contentId"])
}

func TestHTTPWriter_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, err := events.NewHTTPWriter(srv.URL)
	require.NoError(t, err)
	assert.Error(t, events.NewSink(w).AnalysisCompleted(context.Background(), failedRecord()))
}

func TestLogWriter(t *testing.T) {
	sink := events.NewSink(&events.LogWriter{})
	assert.NoError(t, sink.AnalysisCompleted(context.Background(), failedRecord()))
	assert.NoError(t, sink.Close(context.Background()))
}
