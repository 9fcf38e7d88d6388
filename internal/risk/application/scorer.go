package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"smart-maintenance/internal/observability/metrics"
	risk "smart-maintenance/internal/risk/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

const defaultHistoryWindow = 100

// Scorer evaluates samples against stored device history.
type Scorer struct {
	store  telemetry.HistoryStore
	cfg    risk.Config
	logger zerolog.Logger
}

// ScorerOption customizes the scorer.
type ScorerOption func(*Scorer)

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) ScorerOption {
	return func(s *Scorer) {
		s.logger = logger
	}
}

// NewScorer constructs a scorer.
func NewScorer(store telemetry.HistoryStore, cfg risk.Config, opts ...ScorerOption) (*Scorer, error) {
	if store == nil {
		return nil, errors.New("scorer: nil history store")
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scorer := &Scorer{store: store, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(scorer)
	}
	return scorer, nil
}

// Config returns the active rule configuration.
func (s *Scorer) Config() risk.Config {
	return s.cfg
}

// Score evaluates the sample and appends it to the device history.
// Invalid samples are never recorded.
func (s *Scorer) Score(ctx context.Context, sample telemetry.Sample) (risk.Assessment, error) {
	if s == nil || s.store == nil {
		return risk.Assessment{}, errors.New("scorer: not initialized")
	}
	if err := sample.Validate(); err != nil {
		return risk.Assessment{}, err
	}
	history, err := s.store.Recent(ctx, sample.DeviceID, s.cfg.HistoryWindow)
	if err != nil {
		return risk.Assessment{}, fmt.Errorf("scorer: load history: %w", err)
	}
	assessment, err := Evaluate(sample, history, s.cfg)
	if err != nil {
		return risk.Assessment{}, err
	}
	sample.RiskScore = telemetry.Float(assessment.RiskScore)
	if err := s.store.Append(ctx, sample, s.cfg.HistoryWindow); err != nil {
		return risk.Assessment{}, fmt.Errorf("scorer: append history: %w", err)
	}
	metrics.ObserveRiskScore(assessment.RiskScore)
	s.logger.Debug().
		Str("device_id", sample.DeviceID).
		Float64("risk_score", assessment.RiskScore).
		Strs("failure_modes", assessment.FailureModes).
		Int("history_length", assessment.HistoryLength).
		Msg("risk scored")
	return assessment, nil
}
