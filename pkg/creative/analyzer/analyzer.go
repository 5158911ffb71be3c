// Package analyzer runs the creative analysis pipeline: retrieval,
// classification, category-gated extraction, rule evaluation and
// persistence of the resulting AnalysisRecord.
package analyzer

import (
	"context"
	"strings"

	"github.com/tendant/creative-analysis/pkg/creative"
)

// Analyzer is the entry point of the analysis pipeline.
type Analyzer interface {
	// Analyze fetches the object named by req and runs the full pipeline.
	// A RetrievalError still yields a persisted Error record. When ctx ends
	// mid-run nothing is persisted and the error wraps ctx.Err().
	Analyze(ctx context.Context, req Request) (*creative.AnalysisRecord, error)

	// AnalyzeContent runs the pipeline on bytes the caller already holds.
	AnalyzeContent(ctx context.Context, req Request, data []byte) (*creative.AnalysisRecord, error)

	// AnalyzeBatch analyzes independent requests concurrently. Every request
	// is attempted; the returned error joins the individual failures.
	AnalyzeBatch(ctx context.Context, reqs []Request) error

	// SetSideMetadata records side metadata with Merge semantics.
	SetSideMetadata(ctx context.Context, meta *creative.SideMetadata) error

	// GetResult returns the persisted record for contentID.
	GetResult(ctx context.Context, contentID string) (*creative.AnalysisRecord, error)
}

// Request identifies one object to analyze.
type Request struct {
	Source      creative.Locator
	ContentID   string
	DisplayName string
}

// NewRequest derives ContentID and DisplayName from the decoded object name.
func NewRequest(source creative.Locator) Request {
	id, name := creative.ParseObjectName(source.Name)
	return Request{Source: source, ContentID: id, DisplayName: name}
}

func (r Request) validate() error {
	if strings.TrimSpace(r.ContentID) == "" {
		return creative.ErrMissingContentID
	}
	return nil
}

func (r Request) fileName() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Source.Name
}

// EventSink is notified after a record has been persisted.
type EventSink interface {
	AnalysisCompleted(ctx context.Context, record *creative.AnalysisRecord) error
}

// NoopEventSink ignores every notification.
type NoopEventSink struct{}

// AnalysisCompleted does nothing and returns nil.
func (NoopEventSink) AnalysisCompleted(context.Context, *creative.AnalysisRecord) error {
	return nil
}
