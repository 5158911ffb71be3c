package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/classify"
	"github.com/tendant/creative-analysis/pkg/creative/extract"
	"github.com/tendant/creative-analysis/pkg/creative/metrics"
	"github.com/tendant/creative-analysis/pkg/creative/retry"
	"github.com/tendant/creative-analysis/pkg/creative/rules"
)

// Defaults for the retry budgets and batch concurrency.
const (
	DefaultRetrievalAttempts = 5
	DefaultRetrievalInterval = 6 * time.Second
	DefaultPersistAttempts   = 3
	DefaultPersistInterval   = 2 * time.Second
	DefaultConcurrency       = 4
)

// ErrNotConfigured is wrapped by ConfigurationError when a store is missing.
var ErrNotConfigured = errors.New("not configured")

type analyzer struct {
	objects         creative.ObjectStore
	metadata        creative.MetadataStore
	prober          extract.Prober
	engine          *rules.Engine
	maxBundleBytes  int64
	sink            EventSink
	metrics         *metrics.Metrics
	logger          *slog.Logger
	backupContainer string
	concurrency     int

	retrievalAttempts int
	retrievalInterval time.Duration
	persistAttempts   int
	persistInterval   time.Duration
}

// Option configures the analyzer.
type Option func(*analyzer)

// WithObjectStore sets the object store objects are read from and backup
// images are written to.
func WithObjectStore(store creative.ObjectStore) Option {
	return func(a *analyzer) {
		a.objects = store
	}
}

// WithMetadataStore sets the metadata store for side metadata and records.
func WithMetadataStore(store creative.MetadataStore) Option {
	return func(a *analyzer) {
		a.metadata = store
	}
}

// WithProber replaces the default ffprobe-backed prober.
func WithProber(p extract.Prober) Option {
	return func(a *analyzer) {
		a.prober = p
	}
}

// WithLimits replaces the built-in limits table.
func WithLimits(limits rules.SpecLimits) Option {
	return func(a *analyzer) {
		a.engine = rules.New(limits)
		a.maxBundleBytes = int64(limits.HTML5.MaxUncompressedMB) << 20
	}
}

// WithEventSink sets the sink notified after each persisted record.
func WithEventSink(sink EventSink) Option {
	return func(a *analyzer) {
		a.sink = sink
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *analyzer) {
		a.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *analyzer) {
		a.logger = logger
	}
}

// WithBackupContainer writes extracted backup images to container instead
// of the source object's container.
func WithBackupContainer(container string) Option {
	return func(a *analyzer) {
		a.backupContainer = container
	}
}

// WithConcurrency bounds AnalyzeBatch.
func WithConcurrency(n int) Option {
	return func(a *analyzer) {
		a.concurrency = n
	}
}

// WithRetrieval sets the retrieval retry budget.
func WithRetrieval(maxAttempts int, interval time.Duration) Option {
	return func(a *analyzer) {
		a.retrievalAttempts = maxAttempts
		a.retrievalInterval = interval
	}
}

// WithPersistence sets the persistence retry budget.
func WithPersistence(maxAttempts int, interval time.Duration) Option {
	return func(a *analyzer) {
		a.persistAttempts = maxAttempts
		a.persistInterval = interval
	}
}

// New creates an Analyzer. An object store is required. A missing metadata
// store is tolerated: runs then finish with a Configuration failure.
func New(options ...Option) (Analyzer, error) {
	limits := rules.DefaultLimits()
	a := &analyzer{
		engine:            rules.New(limits),
		maxBundleBytes:    int64(limits.HTML5.MaxUncompressedMB) << 20,
		sink:              NoopEventSink{},
		logger:            slog.Default(),
		concurrency:       DefaultConcurrency,
		retrievalAttempts: DefaultRetrievalAttempts,
		retrievalInterval: DefaultRetrievalInterval,
		persistAttempts:   DefaultPersistAttempts,
		persistInterval:   DefaultPersistInterval,
	}

	for _, option := range options {
		option(a)
	}

	if a.objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if a.prober == nil {
		a.prober = extract.NewBreakerProber(extract.NewFFProbe(""), extract.BreakerSettings{Logger: a.logger})
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}

	return a, nil
}

func (a *analyzer) Analyze(ctx context.Context, req Request) (*creative.AnalysisRecord, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	logger := a.runLogger(req)

	if a.metadata == nil {
		return a.configurationFailure(req, 0, logger)
	}

	data, err := a.retrieve(ctx, req.Source, logger)
	if err != nil && ctx.Err() != nil {
		logger.Warn("Analysis aborted during retrieval", "error", err)
		return nil, abortError(ctx, err)
	}
	if err != nil {
		rec := creative.NewAnalysisRecord(req.ContentID, req.DisplayName, req.Source, 0)
		rec.AddCheck(creative.ValidationCheck{
			CheckName: "Retrieval",
			Status:    creative.CheckFail,
			Message:   "Could not retrieve the uploaded object.",
			Value:     req.Source.String(),
		})
		rec.Finalize()
		a.metrics.RunFinished(string(rec.Category), string(rec.Status))
		if perr := a.persist(ctx, rec, logger); perr != nil {
			return rec, errors.Join(err, perr)
		}
		return rec, err
	}

	return a.analyzeContent(ctx, req, data, logger)
}

func (a *analyzer) AnalyzeContent(ctx context.Context, req Request, data []byte) (*creative.AnalysisRecord, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	logger := a.runLogger(req)
	if a.metadata == nil {
		return a.configurationFailure(req, int64(len(data)), logger)
	}
	return a.analyzeContent(ctx, req, data, logger)
}

func (a *analyzer) analyzeContent(ctx context.Context, req Request, data []byte, logger *slog.Logger) (*creative.AnalysisRecord, error) {
	rec := creative.NewAnalysisRecord(req.ContentID, req.DisplayName, req.Source, int64(len(data)))
	rec.IsCtv = a.lookupIsCtv(ctx, req.ContentID, logger)

	if err := a.evaluate(ctx, req, rec, data, logger); err != nil {
		logger.Warn("Analysis aborted", "category", rec.Category, "error", err)
		return nil, err
	}
	rec.Finalize()

	logger.Info("Analysis finished",
		"category", rec.Category,
		"status", rec.Status,
		"checks", len(rec.ValidationChecks))
	a.metrics.RunFinished(string(rec.Category), string(rec.Status))

	if err := a.persist(ctx, rec, logger); err != nil {
		return rec, err
	}
	if err := a.sink.AnalysisCompleted(ctx, rec); err != nil {
		logger.Warn("Event sink failed", "error", err)
	}
	return rec, nil
}

// evaluate classifies data, runs the extractor for its category and appends
// the rule checks to rec. An error means ctx ended while extracting and rec
// must not be recorded.
func (a *analyzer) evaluate(ctx context.Context, req Request, rec *creative.AnalysisRecord, data []byte, logger *slog.Logger) error {
	start := time.Now()
	cls := classify.Classify(data, req.fileName(), rec.IsCtv)
	rec.MimeType = cls.MimeType
	rec.Extension = cls.Extension
	rec.Category = cls.Category
	if check, ok := cls.Check(); ok {
		rec.AddCheck(check)
	}
	a.metrics.ObserveStage(metrics.StageClassify, start)
	logger = logger.With("category", rec.Category)
	logger.Debug("Classified", "mime_type", rec.MimeType, "is_ctv", rec.IsCtv, "from_extension", cls.FromExtension)

	facts := rules.Facts{MimeType: rec.MimeType, SizeBytes: rec.SizeBytes}

	start = time.Now()
	switch {
	case rec.Category == creative.CategoryDisplay:
		dims, _, err := extract.ImageDimensions(data)
		if err != nil {
			logger.Warn("Failed to read image dimensions", "stage", metrics.StageExtract, "error", err)
		} else {
			facts.Dimensions = &dims
			rec.Dimensions = &dims
		}
	case rec.Category.IsMedia():
		info, err := a.prober.Probe(ctx, data, req.fileName())
		if err != nil && ctx.Err() != nil {
			return abortError(ctx, err)
		}
		if err != nil {
			logger.Error("Failed to read media metadata", "stage", metrics.StageExtract, "error", err)
			rec.AddCheck(creative.ValidationCheck{
				CheckName: "Media Metadata",
				Status:    creative.CheckFail,
				Message:   "Could not read media properties (duration, bitrate, etc.).",
			})
			break
		}
		facts.Media = info
		rec.Duration = info.Duration
		rec.BitrateKbps = info.BitrateKbps
		if rec.Category != creative.CategoryAudio {
			rec.Dimensions = info.Dimensions()
			rec.FrameRate = info.FrameRate
		}
	case rec.Category == creative.CategoryHTML5:
		info, err := extract.InspectArchive(data, a.maxBundleBytes)
		if err != nil {
			logger.Warn("Failed to open html5 bundle", "stage", metrics.StageExtract, "error", err)
			break
		}
		facts.Archive = info
		rec.Html5Info = info.Html5Info()
		a.publishBackup(ctx, rec, info, logger)
	}
	a.metrics.ObserveStage(metrics.StageExtract, start)

	start = time.Now()
	rec.AddCheck(a.engine.Evaluate(rec.Category, facts)...)
	a.metrics.ObserveStage(metrics.StageEvaluate, start)
	return nil
}

// abortError wraps the context error that ended a run so callers can match
// it with errors.Is.
func abortError(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if errors.Is(err, ctxErr) {
		return fmt.Errorf("analysis aborted: %w", err)
	}
	return fmt.Errorf("analysis aborted: %w", errors.Join(ctxErr, err))
}

// publishBackup stores the backup candidate of an HTML5 bundle. Failure is
// logged only.
func (a *analyzer) publishBackup(ctx context.Context, rec *creative.AnalysisRecord, info *extract.ArchiveInfo, logger *slog.Logger) {
	if info.BackupName == "" {
		return
	}
	if info.Oversized {
		logger.Warn("Skipping backup image of oversized bundle", "entry", info.BackupName, "total_uncompressed", info.TotalUncompressed)
		return
	}
	if len(info.BackupData) == 0 {
		logger.Warn("Backup image could not be read from bundle", "entry", info.BackupName)
		return
	}

	container := a.backupContainer
	if container == "" {
		container = rec.Source.Container
	}
	loc := creative.Locator{Container: container, Name: creative.BackupContentID(rec.ContentID, info.BackupExt)}

	stored, err := a.objects.Put(ctx, loc, info.BackupData, classify.ContentTypeForExtension(info.BackupExt))
	a.metrics.BackupUploaded(err == nil)
	if err != nil {
		logger.Warn("Failed to upload backup image", "entry", info.BackupName, "target", loc.String(), "error", err)
		return
	}
	rec.Html5Info.ExtractedBackupContentID = stored.Name
	logger.Info("Uploaded backup image", "entry", info.BackupName, "target", stored.String())
}

func (a *analyzer) lookupIsCtv(ctx context.Context, contentID string, logger *slog.Logger) bool {
	meta, err := a.metadata.GetSideMetadata(ctx, contentID)
	switch {
	case errors.Is(err, creative.ErrSideMetadataNotFound):
		logger.Debug("No side metadata, assuming isCtv=false")
		return false
	case err != nil:
		logger.Warn("Failed to read side metadata, assuming isCtv=false", "error", err)
		return false
	}
	return meta.IsCtv
}

func (a *analyzer) configurationFailure(req Request, size int64, logger *slog.Logger) (*creative.AnalysisRecord, error) {
	rec := creative.NewAnalysisRecord(req.ContentID, req.DisplayName, req.Source, size)
	rec.AddCheck(creative.ValidationCheck{
		CheckName: "Configuration",
		Status:    creative.CheckFail,
		Message:   "Server configuration error: metadata store missing.",
	})
	rec.Finalize()
	err := &creative.ConfigurationError{Component: "metadata store", Err: ErrNotConfigured}
	logger.Error("Analysis aborted", "error", err)
	a.metrics.RunFinished(string(rec.Category), string(rec.Status))
	return rec, err
}

func (a *analyzer) AnalyzeBatch(ctx context.Context, reqs []Request) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(a.concurrency)

	for _, req := range reqs {
		g.Go(func() error {
			if _, err := a.Analyze(ctx, req); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", req.Source, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (a *analyzer) SetSideMetadata(ctx context.Context, meta *creative.SideMetadata) error {
	if meta == nil || meta.ContentID == "" {
		return creative.ErrMissingContentID
	}
	if a.metadata == nil {
		return &creative.ConfigurationError{Component: "metadata store", Err: ErrNotConfigured}
	}
	return a.metadata.MergeSideMetadata(ctx, meta)
}

func (a *analyzer) GetResult(ctx context.Context, contentID string) (*creative.AnalysisRecord, error) {
	if contentID == "" {
		return nil, creative.ErrMissingContentID
	}
	if a.metadata == nil {
		return nil, &creative.ConfigurationError{Component: "metadata store", Err: ErrNotConfigured}
	}
	return a.metadata.GetRecord(ctx, contentID)
}

func (a *analyzer) runLogger(req Request) *slog.Logger {
	return a.logger.With("content_id", req.ContentID, "object", req.Source.String())
}

func (a *analyzer) retrievalPolicy(logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: a.retrievalAttempts,
		Interval:    a.retrievalInterval,
		Retryable:   IsRetryableRetrieval,
		Name:        "retrieval",
		Logger:      logger,
	}
}

func (a *analyzer) persistPolicy(logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: a.persistAttempts,
		Interval:    a.persistInterval,
		Retryable:   isRetryablePersist,
		Name:        "persist",
		Logger:      logger,
	}
}
