package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
	"github.com/tendant/creative-analysis/pkg/creative/trigger"
)

// maxEventBodyBytes bounds an event delivery; Event Grid batches stay below 1 MB.
const maxEventBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ValidationResponse answers the Event Grid subscription handshake
type ValidationResponse struct {
	ValidationResponse string `json:"validationResponse"`
}

// EventsResponse summarizes a processed delivery
type EventsResponse struct {
	Accepted int               `json:"accepted"`
	Skipped  []SkippedResponse `json:"skipped,omitempty"`
	Failed   int               `json:"failed,omitempty"`
}

// SkippedResponse describes an ignored notification
type SkippedResponse struct {
	EventID string `json:"eventId,omitempty"`
	Type    string `json:"type,omitempty"`
	Reason  string `json:"reason"`
}

// SideMetadataRequest is the request body for POST /metadata. ContentID may
// be omitted when ObjectName carries it as a prefix.
type SideMetadataRequest struct {
	ContentID  string `json:"contentId"`
	ObjectName string `json:"objectName"`
	IsCtv      *bool  `json:"isCtv"`
}

// ReadyFunc reports whether the service's dependencies are reachable
type ReadyFunc func(ctx context.Context) error

// AnalysisHandler serves the trigger, side metadata and result endpoints
type AnalysisHandler struct {
	analyzer analyzer.Analyzer
	ready    ReadyFunc
	logger   *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler. ready may be nil.
func NewAnalysisHandler(a analyzer.Analyzer, ready ReadyFunc, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{analyzer: a, ready: ready, logger: logger}
}

// Routes returns the routes for the v1 API
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/events", h.HandleEvents)
	r.Options("/events", h.HandleWebhookValidation)
	r.Post("/metadata", h.SetSideMetadata)
	r.Get("/results/{contentID}", h.GetResult)

	return r
}

// HandleEvents analyzes every object announced by an Event Grid or
// CloudEvents delivery before answering, so a non-2xx status lets the
// broker redeliver.
func (h *AnalysisHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes))
	if err != nil {
		h.error(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	var batch *trigger.Batch
	if trigger.IsCloudEventRequest(r) {
		r.Body = io.NopCloser(bytes.NewReader(body))
		batch, err = trigger.DecodeCloudEventRequest(r)
	} else {
		batch, err = trigger.DecodeEventGrid(body)
	}
	if err != nil {
		h.logger.Warn("Rejected event delivery", "error", err)
		h.error(w, r, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}

	if batch.ValidationCode != "" {
		h.logger.Info("Answering subscription validation")
		render.JSON(w, r, ValidationResponse{ValidationResponse: batch.ValidationCode})
		return
	}

	resp := EventsResponse{Accepted: len(batch.Requests)}
	for _, s := range batch.Skipped {
		h.logger.Info("Skipping event", "event_id", s.EventID, "event_type", s.EventType, "reason", s.Reason, "detail", s.Detail)
		resp.Skipped = append(resp.Skipped, SkippedResponse{EventID: s.EventID, Type: s.EventType, Reason: string(s.Reason)})
	}

	if err := h.analyzer.AnalyzeBatch(context.WithoutCancel(r.Context()), batch.Requests); err != nil {
		resp.Failed = countJoined(err)
		if redeliverable(err) {
			h.logger.Error("Analysis could not be recorded", "error", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, resp)
			return
		}
		h.logger.Warn("Analysis finished with errors", "error", err)
	}
	render.JSON(w, r, resp)
}

// HandleWebhookValidation implements the CloudEvents webhook abuse
// protection handshake used by Event Grid's CloudEvents schema.
func (h *AnalysisHandler) HandleWebhookValidation(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("WebHook-Request-Origin")
	if origin == "" {
		h.error(w, r, http.StatusBadRequest, "invalid_request", "WebHook-Request-Origin header is required")
		return
	}
	w.Header().Set("WebHook-Allowed-Origin", origin)
	w.Header().Set("WebHook-Allowed-Rate", "*")
	w.WriteHeader(http.StatusOK)
}

// SetSideMetadata records the connected-TV flag for a content id
func (h *AnalysisHandler) SetSideMetadata(w http.ResponseWriter, r *http.Request) {
	var req SideMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.IsCtv == nil {
		h.error(w, r, http.StatusBadRequest, "invalid_body", "isCtv is required")
		return
	}

	meta := &creative.SideMetadata{ContentID: req.ContentID, IsCtv: *req.IsCtv, ObjectName: req.ObjectName}
	if meta.ContentID == "" && meta.ObjectName != "" {
		meta.ContentID, _ = creative.ParseObjectName(meta.ObjectName)
	}
	if meta.ContentID == "" {
		h.error(w, r, http.StatusBadRequest, "invalid_body", "contentId or objectName is required")
		return
	}

	if err := h.analyzer.SetSideMetadata(r.Context(), meta); err != nil {
		h.logger.Error("Failed to store side metadata", "content_id", meta.ContentID, "error", err)
		h.error(w, r, statusFor(err), "side_metadata_failed", err.Error())
		return
	}
	h.logger.Info("Side metadata stored", "content_id", meta.ContentID, "is_ctv", meta.IsCtv)
	render.JSON(w, r, meta)
}

// GetResult returns the persisted analysis record
func (h *AnalysisHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	rec, err := h.analyzer.GetResult(r.Context(), contentID)
	switch {
	case err == nil:
		render.JSON(w, r, rec)
	case errors.Is(err, creative.ErrRecordNotFound):
		h.error(w, r, http.StatusNotFound, "not_found", "analysis result not available yet")
	case errors.Is(err, creative.ErrCorruptRecord):
		h.logger.Error("Stored analysis result is unreadable", "content_id", contentID, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resultParsingFailure(contentID))
	default:
		h.logger.Error("Failed to load analysis result", "content_id", contentID, "error", err)
		h.error(w, r, statusFor(err), "result_failed", err.Error())
	}
}

// resultParsingFailure is returned in place of a record that cannot be decoded
func resultParsingFailure(contentID string) *creative.AnalysisRecord {
	rec := creative.NewAnalysisRecord(contentID, "", creative.Locator{}, 0)
	rec.AddCheck(creative.ValidationCheck{
		CheckName: "Result Parsing",
		Status:    creative.CheckFail,
		Message:   "Stored analysis result could not be parsed.",
	})
	rec.Finalize()
	return rec
}

// Healthz reports liveness
func (h *AnalysisHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Ready reports whether the metadata store is reachable
func (h *AnalysisHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("Readiness check failed", "error", err)
			h.error(w, r, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ready"})
}

func (h *AnalysisHandler) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: code, Message: message})
}

func statusFor(err error) int {
	var cerr *creative.ConfigurationError
	switch {
	case errors.Is(err, creative.ErrMissingContentID):
		return http.StatusBadRequest
	case errors.As(err, &cerr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// redeliverable reports whether a broker retry could change the outcome.
// Retrieval failures already left an Error record behind.
func redeliverable(err error) bool {
	var perr *creative.PersistenceError
	var cerr *creative.ConfigurationError
	return errors.As(err, &perr) || errors.As(err, &cerr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func countJoined(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
