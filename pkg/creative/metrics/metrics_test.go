package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative/metrics"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RunFinished("display", "Completed")
	m.RunFinished("display", "Completed")
	m.RunFinished("html5", "Error")
	m.RetrievalRetried(3)
	m.PersistRetried(0)
	m.ObserveStage(metrics.StageExtract, time.Now())
	m.BackupUploaded(true)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["creative_analysis_runs_total"])
	assert.True(t, found["creative_analysis_retrieval_retries_total"])
	assert.True(t, found["creative_analysis_stage_duration_seconds"])
	assert.True(t, found["creative_analysis_backup_uploads_total"])

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "creative_analysis_runs_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RunFinished("audio", "Completed")
		m.RetrievalRetried(1)
		m.ObserveStage(metrics.StagePersist, time.Now())
		m.BackupUploaded(false)
	})
}

func TestMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := metrics.NewMiddleware(reg)

	r := chi.NewRouter()
	r.Use(mw.Handler)
	r.Get("/api/v1/results/{contentID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "creative_analysis_http_requests_total"))
}
