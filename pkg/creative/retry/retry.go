// Package retry provides the fixed-interval retry policy shared by every
// collaborator call that can race with eventual consistency.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy retries an operation up to MaxAttempts times, waiting Interval
// between attempts, as long as Retryable accepts the error.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Interval is the fixed delay between two attempts.
	Interval time.Duration

	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool

	// Name labels log lines, e.g. "retrieval" or "persist".
	Name string

	// Logger receives one line per scheduled retry. Defaults to slog.Default().
	Logger *slog.Logger
}

// Result describes how a Do call ended.
type Result struct {
	Attempts int
}

// ErrExhausted is wrapped by the error Do returns when every attempt failed
// with a retryable error.
var ErrExhausted = errors.New("retry budget exhausted")

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error is returned, joined with
// ErrExhausted when the budget ran out.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) (Result, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	var lastErr error
	operation := func() error {
		res.Attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var bo backoff.BackOff = backoff.NewConstantBackOff(p.Interval)
	bo = backoff.WithMaxRetries(bo, uint64(maxAttempts-1))
	bo = backoff.WithContext(bo, ctx)

	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying operation",
			"policy", p.Name,
			"attempt", res.Attempts,
			"max_attempts", maxAttempts,
			"wait", wait,
			"error", err)
	}

	err := backoff.RetryNotify(operation, bo, notify)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return res, errors.Join(lastErr, ctxErr)
	}
	if res.Attempts >= maxAttempts && (p.Retryable == nil || p.Retryable(err)) {
		return res, errors.Join(ErrExhausted, err)
	}
	return res, err
}
