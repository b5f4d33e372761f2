package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/outlet-scraper/internal/charset"
	"github.com/maltedev/outlet-scraper/internal/models"
	"github.com/maltedev/outlet-scraper/internal/parser"
	"github.com/maltedev/outlet-scraper/internal/storage"
)

type CaptureRequest struct {
	Target    string
	Selector  string
	Extractor string
}

type ExtractRequest struct {
	Raw       []byte
	PathHint  string
	Extractor string
	// Persist hands the result to the configured sink.
	Persist bool
}

type Result struct {
	Run      models.Run
	Records  []models.Record
	Encoding *charset.Decision
}

// Service runs one target through the document source, the extraction
// engine and the sinks.
type Service struct {
	source     Source
	registry   *parser.Registry
	normalizer *charset.Normalizer
	sink       storage.Sink
	notifier   storage.Sink
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithSource(src Source) Option {
	return func(s *Service) { s.source = src }
}

func WithRegistry(r *parser.Registry) Option {
	return func(s *Service) { s.registry = r }
}

func WithSink(sink storage.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithNotifier sets the sink told about a run once every store succeeded.
func WithNotifier(n storage.Sink) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(normalizer *charset.Normalizer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = charset.NewNormalizer(logger)
	}
	s := &Service{
		registry:   parser.Default(),
		normalizer: normalizer,
		logger:     logger.With("component", "scraper"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extractors lists the registered extractor names.
func (s *Service) Extractors() []string {
	return s.registry.Names()
}

// Capture renders the target, extracts records when the extractor resolves
// and stores every artifact. An unresolved extractor yields no records.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (*Result, error) {
	if req.Target == "" {
		return nil, ErrMissingTarget
	}
	if s.source == nil {
		return nil, ErrNoSource
	}

	started := s.now()
	s.logger.Info("capture started",
		"target", req.Target,
		"selector", req.Selector,
		"extractor", req.Extractor)

	snap, err := s.source.Snapshot(ctx, req.Target, req.Selector)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", req.Target, err)
	}

	records := []models.Record{}
	extractorName := ""
	if e, ok := s.registry.Lookup(req.Extractor, s.logger); ok {
		extractorName = e.Name()
		s.logger.Info("using extractor", "extractor", extractorName)
		records, err = parser.ExtractHTML(e, snap.HTML)
		if err != nil {
			return nil, err
		}
	} else {
		s.logger.Info("no extractor specified or found, skipping data extraction", "extractor", req.Extractor)
	}

	run := s.newRun(req.Target, extractorName, snap.Charset, len(records), started)
	result := &Result{Run: run, Records: records}

	capture := &storage.Capture{
		Run:        run,
		Records:    records,
		Screenshot: snap.Screenshot,
		HTML:       snap.HTML,
	}
	if err := s.store(ctx, capture); err != nil {
		return result, err
	}

	s.logger.Info("capture finished", "run_id", run.ID, "records", len(records))
	return result, nil
}

// Extract runs the named extractor over raw page bytes without a browser.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (*Result, error) {
	e, ok := s.registry.Lookup(req.Extractor, s.logger)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, req.Extractor)
	}

	started := s.now()
	normalized, err := s.normalizer.Normalize(req.Raw, req.PathHint)
	if err != nil {
		return nil, err
	}

	records, err := parser.ExtractDocument(e, normalized.Document)
	if err != nil {
		return nil, err
	}

	target := req.PathHint
	run := s.newRun(target, e.Name(), normalized.Decision.Charset, len(records), started)
	decision := normalized.Decision
	result := &Result{Run: run, Records: records, Encoding: &decision}

	if req.Persist {
		if err := s.store(ctx, &storage.Capture{Run: run, Records: records}); err != nil {
			return result, err
		}
	}

	s.logger.Debug("extract finished",
		"run_id", run.ID,
		"charset", decision.Charset,
		"source", decision.Source,
		"records", len(records))
	return result, nil
}

func (s *Service) Close() error {
	var err error
	if s.source != nil {
		err = s.source.Close()
	}
	for _, c := range []storage.Sink{s.sink, s.notifier} {
		if c == nil {
			continue
		}
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// store saves c to the sink and, only when that succeeded, hands it to the
// notifier.
func (s *Service) store(ctx context.Context, c *storage.Capture) error {
	if s.sink != nil {
		if err := s.sink.Save(ctx, c); err != nil {
			return fmt.Errorf("failed to store run %s: %w", c.Run.ID, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Save(ctx, c); err != nil {
			return fmt.Errorf("failed to announce run %s: %w", c.Run.ID, err)
		}
	}
	return nil
}

func (s *Service) newRun(target, extractor, cs string, count int, started time.Time) models.Run {
	return models.Run{
		ID:          uuid.NewString(),
		Target:      target,
		Extractor:   extractor,
		Charset:     cs,
		RecordCount: count,
		StartedAt:   started,
		FinishedAt:  s.now(),
	}
}
