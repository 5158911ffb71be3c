// Package events publishes a CloudEvent for every persisted analysis record.
package events

import (
	"context"
	"fmt"
	"log/slog"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/tendant/creative-analysis/pkg/creative"
)

const (
	// AnalysisCompletedType is the CloudEvent type emitted after persistence.
	AnalysisCompletedType = "com.creative-analysis.analysis.completed"

	defaultSource = "creative-analysis"
)

// Writer is the interface to be implemented by the underlying transport.
type Writer interface {
	Write(ctx context.Context, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// Summary is the event payload. The full record stays in the metadata store.
type Summary struct {
	ContentID    string            `json:"contentId"`
	DisplayName  string            `json:"displayName,omitempty"`
	Category     creative.Category `json:"category"`
	Status       creative.Status   `json:"status"`
	FailedChecks []string          `json:"failedChecks,omitempty"`
	BackupID     string            `json:"extractedBackupContentId,omitempty"`
}

// NewSummary condenses a record.
func NewSummary(rec *creative.AnalysisRecord) Summary {
	s := Summary{
		ContentID:   rec.ContentID,
		DisplayName: rec.DisplayName,
		Category:    rec.Category,
		Status:      rec.Status,
	}
	for _, c := range rec.ValidationChecks {
		if c.Status == creative.CheckFail {
			s.FailedChecks = append(s.FailedChecks, c.CheckName)
		}
	}
	if rec.Html5Info != nil {
		s.BackupID = rec.Html5Info.ExtractedBackupContentID
	}
	return s
}

// Sink adapts a Writer to analyzer.EventSink.
type Sink struct {
	writer Writer
	source string
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithSource overrides the CloudEvent source attribute.
func WithSource(source string) SinkOption {
	return func(s *Sink) {
		s.source = source
	}
}

func NewSink(w Writer, opts ...SinkOption) *Sink {
	s := &Sink{writer: w, source: defaultSource}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AnalysisCompleted builds and writes the completion event.
func (s *Sink) AnalysisCompleted(ctx context.Context, rec *creative.AnalysisRecord) error {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(s.source)
	e.SetType(AnalysisCompletedType)
	e.SetSubject(rec.ContentID)
	if err := e.SetData(cloudevents.ApplicationJSON, NewSummary(rec)); err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	return s.writer.Write(ctx, e)
}

func (s *Sink) Close(ctx context.Context) error {
	return s.writer.Close(ctx)
}

// LogWriter writes events to a structured logger. Used in development.
type LogWriter struct {
	Logger *slog.Logger
}

func (w *LogWriter) Write(ctx context.Context, e cloudevents.Event) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event written", "type", e.Type(), "subject", e.Subject(), "id", e.ID(), "data", string(e.Data()))
	return nil
}

func (w *LogWriter) Close(context.Context) error {
	return nil
}
