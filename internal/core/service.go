// Package core wires recognition, fusion and aggregation behind the two
// search entry points.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopvision/internal/aggregator"
	"shopvision/internal/config"
	"shopvision/internal/fusion"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/internal/normalizer"
	"shopvision/internal/ranker"
	"shopvision/internal/recognizer"
	"shopvision/internal/sources"
	"shopvision/internal/store"
)

// ErrEmptyQuery is returned by SearchByText for a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// Search modes recorded in history.
const (
	ModeImage = "image"
	ModeText  = "text"
)

// HistoryRecorder persists completed searches.
type HistoryRecorder interface {
	Record(ctx context.Context, mode, userQuery string, result *models.AggregationResult) error
}

// Service is the search core.
type Service struct {
	ensemble *recognizer.Ensemble
	engine   *fusion.Engine
	pipeline *aggregator.Pipeline
	history  HistoryRecorder
	logger   *logger.Logger
	closers  []func() error
}

// New assembles a service from already-built stages.
func New(ensemble *recognizer.Ensemble, engine *fusion.Engine, pipeline *aggregator.Pipeline, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}

	if ensemble == nil {
		ensemble = recognizer.NewEnsemble(0, log)
	}

	if engine == nil {
		engine = fusion.NewEngine(fusion.DefaultOptions(), log)
	}

	return &Service{
		ensemble: ensemble,
		engine:   engine,
		pipeline: pipeline,
		logger:   log.Component("core"),
	}
}

// NewFromConfig builds every stage from cfg. Recognition needs
// recognizer.address; history needs storage.dsn. Call Close when done.
func NewFromConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Discard()
	}

	adapters, err := sources.NewEnabled(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build source adapters: %w", err)
	}

	pipeline := aggregator.New(
		adapters,
		normalizer.NewProcessor(nil, log),
		ranker.New(cfg.Ranking, log),
		aggregator.NewBackoffRegistry(cfg.Aggregation.DefaultBackoff()),
		aggregator.OptionsFromConfig(cfg),
		log,
	)

	var recognizers []recognizer.Recognizer

	var closers []func() error

	if addr := strings.TrimSpace(cfg.Recognizer.Address); addr != "" {
		client, err := recognizer.NewClient(cfg.Recognizer, log)
		if err != nil {
			return nil, err
		}

		recognizers = client.Recognizers()
		closers = append(closers, client.Close)
	} else {
		log.Warn("no recognizer address configured, image search needs a user query")
	}

	svc := New(
		recognizer.NewEnsemble(cfg.Recognizer.Timeout(), log, recognizers...),
		fusion.NewEngine(fusion.OptionsFromConfig(cfg.Fusion), log),
		pipeline,
		log,
	)
	svc.closers = closers

	if cfg.Storage.Enabled() {
		history, err := store.Open(ctx, cfg.Storage, log)
		if err != nil {
			_ = svc.Close()

			return nil, err
		}

		svc.closers = append(svc.closers, history.Close)

		if err := history.EnsureSchema(ctx); err != nil {
			_ = svc.Close()

			return nil, err
		}

		svc.history = history
	}

	return svc, nil
}

// WithHistory sets the recorder completed searches are written to.
func (s *Service) WithHistory(h HistoryRecorder) *Service {
	s.history = h

	return s
}

// Sources returns the source names searched, in dispatch order.
func (s *Service) Sources() []string {
	return s.pipeline.Sources()
}

// Close releases the recognizer connection and the history store.
func (s *Service) Close() error {
	var errs []error

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	s.closers = nil

	return errors.Join(errs...)
}

// DetectAndSearch recognizes img, fuses the signals with the optional user
// query and searches every source. Recognizer failures only reduce the
// signal set; the search fails only when nothing usable remains.
func (s *Service) DetectAndSearch(ctx context.Context, img models.Image, query string) (*models.AggregationResult, error) {
	var signals []models.RecognitionSignal

	if !img.Empty() {
		var failures []error

		signals, failures = s.ensemble.Recognize(ctx, img)
		if len(failures) > 0 {
			s.logger.Info("continuing with partial recognition", "signals", len(signals), "failures", len(failures))
		}
	}

	queries, err := s.engine.Fuse(signals, query)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fused queries", "queries", queries)

	return s.search(ctx, ModeImage, query, queries)
}

// SearchByText searches every source for query, skipping recognition.
func (s *Service) SearchByText(ctx context.Context, query string) (*models.AggregationResult, error) {
	text := fusion.NormalizeQuery(query)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	return s.search(ctx, ModeText, query, []models.CanonicalQuery{{Text: text, Confidence: 1, Rank: 0}})
}

func (s *Service) search(ctx context.Context, mode, userQuery string, queries []models.CanonicalQuery) (*models.AggregationResult, error) {
	result, attempts, err := s.pipeline.AggregateWithLog(ctx, queries)
	if err != nil {
		return nil, err
	}

	for _, a := range attempts {
		s.logger.Debug("dispatch",
			"source", a.Source,
			"round", a.Round,
			"query", a.Query,
			"listings", a.Listings,
			"latency_ms", a.Latency.Milliseconds(),
			"skipped", a.Skipped,
			"kind", a.Kind,
			"error", a.Err,
		)
	}

	if s.history != nil {
		if err := s.history.Record(ctx, mode, userQuery, result); err != nil {
			s.logger.Warn("failed to record search history", "error", err)
		}
	}

	return result, nil
}
