package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/metrics"
)

// IsRetryableRetrieval reports whether a fetch failure may be an
// eventual-consistency race: the object is not visible yet or has no body.
func IsRetryableRetrieval(err error) bool {
	return errors.Is(err, creative.ErrObjectNotFound) || errors.Is(err, creative.ErrEmptyObject)
}

// retrieve fetches the object at loc, retrying while it is missing or empty.
func (a *analyzer) retrieve(ctx context.Context, loc creative.Locator, logger *slog.Logger) ([]byte, error) {
	start := time.Now()
	defer a.metrics.ObserveStage(metrics.StageRetrieve, start)

	var data []byte
	res, err := a.retrievalPolicy(logger).Do(ctx, func(ctx context.Context) error {
		b, err := a.objects.Get(ctx, loc)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return creative.ErrEmptyObject
		}
		data = b
		return nil
	})
	a.metrics.RetrievalRetried(res.Attempts - 1)
	if err != nil {
		rerr := &creative.RetrievalError{Locator: loc, Attempts: res.Attempts, Err: err}
		logger.Error("Retrieval failed", "stage", metrics.StageRetrieve, "attempts", res.Attempts, "error", err)
		return nil, rerr
	}
	logger.Debug("Retrieved object", "bytes", len(data), "attempts", res.Attempts)
	return data, nil
}
