// Package metrics exposes Prometheus collectors for the analysis pipeline
// and its HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "creative_analysis"

	categoryLabel = "category"
	statusLabel   = "status"
	stageLabel    = "stage"
	resultLabel   = "result"
)

// Stage names used with ObserveStage.
const (
	StageRetrieve = "retrieve"
	StageClassify = "classify"
	StageExtract  = "extract"
	StageEvaluate = "evaluate"
	StagePersist  = "persist"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runs             *prometheus.CounterVec
	retrievalRetries prometheus.Counter
	persistRetries   prometheus.Counter
	stageDuration    *prometheus.HistogramVec
	backupUploads    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of analysis runs partitioned by category and final status.",
		}, []string{categoryLabel, statusLabel}),
		retrievalRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_retries_total",
			Help:      "Number of object retrieval attempts that were retried.",
		}),
		persistRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_retries_total",
			Help:      "Number of record writes that were retried.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60},
		}, []string{stageLabel}),
		backupUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_uploads_total",
			Help:      "Backup images extracted from HTML5 bundles, by upload result.",
		}, []string{resultLabel}),
	}
	reg.MustRegister(m.runs, m.retrievalRetries, m.persistRetries, m.stageDuration, m.backupUploads)
	return m
}

// RunFinished counts a finished run.
func (m *Metrics) RunFinished(category, status string) {
	if m == nil {
		return
	}
	m.runs.With(prometheus.Labels{categoryLabel: category, statusLabel: status}).Inc()
}

// RetrievalRetried counts retrieval retries.
func (m *Metrics) RetrievalRetried(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retrievalRetries.Add(float64(n))
}

// PersistRetried counts persistence retries.
func (m *Metrics) PersistRetried(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.persistRetries.Add(float64(n))
}

// ObserveStage records the duration of a stage started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.With(prometheus.Labels{stageLabel: stage}).Observe(time.Since(start).Seconds())
}

// BackupUploaded counts a backup upload attempt.
func (m *Metrics) BackupUploaded(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.backupUploads.With(prometheus.Labels{resultLabel: result}).Inc()
}
