package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/metrics"
)

func isRetryablePersist(err error) bool {
	return !errors.Is(err, creative.ErrMissingContentID) && !errors.Is(err, context.Canceled)
}

// persist writes rec with Replace semantics, retrying transient failures.
func (a *analyzer) persist(ctx context.Context, rec *creative.AnalysisRecord, logger *slog.Logger) error {
	start := time.Now()
	defer a.metrics.ObserveStage(metrics.StagePersist, start)

	res, err := a.persistPolicy(logger).Do(ctx, func(ctx context.Context) error {
		return a.metadata.ReplaceRecord(ctx, rec)
	})
	a.metrics.PersistRetried(res.Attempts - 1)
	if err != nil {
		logger.Error("Failed to persist analysis record", "stage", metrics.StagePersist, "attempts", res.Attempts, "error", err)
		return &creative.PersistenceError{ContentID: rec.ContentID, Attempts: res.Attempts, Err: err}
	}
	return nil
}
