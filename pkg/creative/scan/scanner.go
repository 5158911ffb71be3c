// Package scan walks persisted analysis records and hands each one to a
// Processor, e.g. to re-run analysis for records left in the Error state.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
)

// ErrNoSource marks a record that does not remember where its object lives.
var ErrNoSource = errors.New("record has no source locator")

// RecordLister is the subset of a metadata store the scanner reads.
type RecordLister interface {
	ListRecordsByStatus(ctx context.Context, status creative.Status) ([]string, error)
	GetRecord(ctx context.Context, contentID string) (*creative.AnalysisRecord, error)
}

// Processor handles one record found by a scan. An error marks the record
// as failed; the scan continues.
type Processor interface {
	Process(ctx context.Context, rec *creative.AnalysisRecord) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, rec *creative.AnalysisRecord) error

func (f ProcessorFunc) Process(ctx context.Context, rec *creative.AnalysisRecord) error {
	return f(ctx, rec)
}

// Options configures a scan.
type Options struct {
	// Status selects the records to visit.
	Status creative.Status

	// Processor is required unless DryRun is set.
	Processor Processor

	// DryRun reports what would be processed without calling Processor.
	DryRun bool

	// OnProgress is called after every record.
	OnProgress func(done, total int)
}

// Result counts the outcome of a scan.
type Result struct {
	TotalFound     int
	TotalProcessed int
	TotalSkipped   int
	TotalFailed    int
	FailedIDs      []string
}

// Scanner queries records by status and processes them in order.
type Scanner struct {
	records RecordLister
	logger  *slog.Logger
}

// New creates a Scanner. A nil logger uses slog.Default().
func New(records RecordLister, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{records: records, logger: logger}
}

// Scan lists the records with opts.Status and processes each one. Failures
// of individual records are collected in the Result; only listing errors
// and context cancellation abort the scan.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{}
	if !opts.DryRun && opts.Processor == nil {
		return result, errors.New("processor is required when DryRun is false")
	}

	ids, err := s.records.ListRecordsByStatus(ctx, opts.Status)
	if err != nil {
		return result, fmt.Errorf("failed to list records: %w", err)
	}
	result.TotalFound = len(ids)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.visit(ctx, id, opts, result)
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(ids))
		}
	}
	return result, nil
}

func (s *Scanner) visit(ctx context.Context, id string, opts Options, result *Result) {
	logger := s.logger.With("content_id", id)

	rec, err := s.records.GetRecord(ctx, id)
	if err != nil {
		logger.Error("Failed to load record", "error", err)
		result.TotalFailed++
		result.FailedIDs = append(result.FailedIDs, id)
		return
	}

	if opts.DryRun {
		logger.Info("Would process record", "category", rec.Category, "status", rec.Status, "source", rec.Source.String())
		result.TotalProcessed++
		return
	}

	switch err := opts.Processor.Process(ctx, rec); {
	case err == nil:
		result.TotalProcessed++
	case errors.Is(err, ErrNoSource):
		logger.Warn("Skipping record", "error", err)
		result.TotalSkipped++
	default:
		logger.Error("Failed to process record", "error", err)
		result.TotalFailed++
		result.FailedIDs = append(result.FailedIDs, id)
	}
}

// Reanalyze returns a Processor that runs the pipeline again on the object
// a record was produced from. The new record replaces the old one.
func Reanalyze(a analyzer.Analyzer) Processor {
	return ProcessorFunc(func(ctx context.Context, rec *creative.AnalysisRecord) error {
		if rec.Source.Container == "" || rec.Source.Name == "" {
			return ErrNoSource
		}
		_, err := a.Analyze(ctx, analyzer.Request{
			Source:      rec.Source,
			ContentID:   rec.ContentID,
			DisplayName: rec.DisplayName,
		})
		return err
	})
}
