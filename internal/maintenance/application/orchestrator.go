package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	alerts "smart-maintenance/internal/alerts/domain"
	evidence "smart-maintenance/internal/evidence/domain"
	maintenance "smart-maintenance/internal/maintenance/domain"
	"smart-maintenance/internal/observability/metrics"
	plan "smart-maintenance/internal/plan/domain"
	risk "smart-maintenance/internal/risk/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

const defaultAlertThreshold = 0.7

// RiskScorer scores a sample against device history.
type RiskScorer interface {
	Score(ctx context.Context, sample telemetry.Sample) (risk.Assessment, error)
}

// EvidenceRetriever fetches supporting evidence.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, failureModes []string, breached []telemetry.Signal, k int) ([]evidence.Snippet, error)
}

// PlanGenerator builds a repair plan.
type PlanGenerator interface {
	Generate(assessment risk.Assessment, snippets []evidence.Snippet) (plan.RepairPlan, error)
}

// AlertDispatcher decides and delivers alerts.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, assessment risk.Assessment, threshold float64) alerts.Event
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// RunOptions carries per-request overrides.
type RunOptions struct {
	TenantID       string
	AlertThreshold *float64
	TopK           int
}

// Orchestrator drives a sample through scoring, retrieval, planning and dispatch.
type Orchestrator struct {
	scorer     RiskScorer
	retriever  EvidenceRetriever
	generator  PlanGenerator
	dispatcher AlertDispatcher
	store      maintenance.ReportSink
	sinks      []maintenance.ReportSink
	threshold  float64
	batchLimit int
	clock      Clock
	logger     zerolog.Logger
	newID      func() string
	locks      *deviceLocks
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithReportStore sets the store of record. It is written last on completion
// and a failure to save fails the run.
func WithReportStore(store maintenance.ReportSink) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithSinks registers best-effort report sinks such as archives. They are
// written before the store of record and a failure only degrades the report.
func WithSinks(sinks ...maintenance.ReportSink) Option {
	return func(o *Orchestrator) {
		for _, sink := range sinks {
			if sink != nil {
				o.sinks = append(o.sinks, sink)
			}
		}
	}
}

// WithAlertThreshold sets the default alert threshold.
func WithAlertThreshold(threshold float64) Option {
	return func(o *Orchestrator) {
		o.threshold = threshold
	}
}

// WithBatchConcurrency bounds how many devices a batch processes at once.
func WithBatchConcurrency(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.batchLimit = limit
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithIDGenerator overrides report id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// NewOrchestrator constructs an orchestrator.
func NewOrchestrator(scorer RiskScorer, retriever EvidenceRetriever, generator PlanGenerator, dispatcher AlertDispatcher, opts ...Option) (*Orchestrator, error) {
	if scorer == nil {
		return nil, errors.New("orchestrator: nil scorer")
	}
	if retriever == nil {
		return nil, errors.New("orchestrator: nil retriever")
	}
	if generator == nil {
		return nil, errors.New("orchestrator: nil generator")
	}
	if dispatcher == nil {
		return nil, errors.New("orchestrator: nil dispatcher")
	}
	o := &Orchestrator{
		scorer:     scorer,
		retriever:  retriever,
		generator:  generator,
		dispatcher: dispatcher,
		threshold:  defaultAlertThreshold,
		batchLimit: 4,
		clock:      systemClock{},
		logger:     zerolog.Nop(),
		newID:      func() string { return uuid.NewString() },
		locks:      newDeviceLocks(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run processes one sample with default options.
func (o *Orchestrator) Run(ctx context.Context, sample telemetry.Sample) (*maintenance.Report, error) {
	return o.RunWithOptions(ctx, sample, RunOptions{})
}

// RunWithOptions processes one sample. Fatal stage errors return a *RunError
// and no report; recoverable failures only add degraded markers.
func (o *Orchestrator) RunWithOptions(ctx context.Context, sample telemetry.Sample, opts RunOptions) (*maintenance.Report, error) {
	if o == nil {
		return nil, errors.New("orchestrator: nil orchestrator")
	}
	start := time.Now()
	run := &runState{
		report: &maintenance.Report{
			ID:       o.newID(),
			TenantID: opts.TenantID,
			DeviceID: sample.DeviceID,
			States:   []maintenance.State{maintenance.StateIdle},
		},
	}
	logger := o.logger.With().Str("run_id", run.report.ID).Str("device_id", sample.DeviceID).Logger()

	unlock := o.locks.lock(sample.DeviceID)
	defer unlock()

	report, err := o.execute(ctx, sample, opts, run, logger)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveRun(result, time.Since(start))
	return report, err
}

type runState struct {
	report *maintenance.Report
}

func (r *runState) enter(state maintenance.State) {
	r.report.States = append(r.report.States, state)
}

func (r *runState) current() maintenance.State {
	return r.report.States[len(r.report.States)-1]
}

func (o *Orchestrator) execute(ctx context.Context, sample telemetry.Sample, opts RunOptions, run *runState, logger zerolog.Logger) (*maintenance.Report, error) {
	report := run.report

	run.enter(maintenance.StateScoringRisk)
	if err := ctx.Err(); err != nil {
		return nil, o.fail(run, sample.DeviceID, err, logger)
	}
	assessment, err := o.scorer.Score(ctx, sample)
	if err != nil {
		return nil, o.fail(run, sample.DeviceID, err, logger)
	}
	report.Assessment = assessment

	run.enter(maintenance.StateRetrievingEvidence)
	snippets, err := o.retriever.Retrieve(ctx, assessment.FailureModes, assessment.BreachedSignals, opts.TopK)
	switch {
	case errors.Is(err, evidence.ErrRetrievalUnavailable):
		o.degrade(run, err, logger)
		snippets = []evidence.Snippet{}
	case err != nil:
		return nil, o.fail(run, sample.DeviceID, err, logger)
	}
	report.Evidence = snippets

	run.enter(maintenance.StateGeneratingPlan)
	repairPlan, err := o.generator.Generate(assessment, snippets)
	if err != nil {
		return nil, o.fail(run, sample.DeviceID, err, logger)
	}
	report.Plan = repairPlan

	run.enter(maintenance.StateDispatching)
	threshold := o.threshold
	if opts.AlertThreshold != nil {
		threshold = *opts.AlertThreshold
	}
	event := o.dispatcher.Dispatch(ctx, assessment, threshold)
	if event.Failed() {
		o.degrade(run, errors.New(event.DeliveryError), logger)
	}
	report.Alert = event

	run.enter(maintenance.StateDone)
	report.GeneratedAt = o.clock.Now().UTC()
	if report.Degraded == nil {
		report.Degraded = []maintenance.DegradedMarker{}
	}
	for _, sink := range o.sinks {
		if err := sink.Save(ctx, report); err != nil {
			o.degrade(run, fmt.Errorf("report sink: %w", err), logger)
		}
	}
	if o.store != nil {
		if err := o.store.Save(ctx, report); err != nil {
			metrics.IncStageFailure(string(maintenance.StateDone))
			logger.Error().Err(err).Msg("report store failed")
			return nil, &maintenance.RunError{DeviceID: sample.DeviceID, Stage: maintenance.StateDone, Err: err}
		}
	}

	logger.Info().
		Float64("risk_score", assessment.RiskScore).
		Strs("failure_modes", assessment.FailureModes).
		Bool("alert_triggered", event.Triggered).
		Int("degraded", len(report.Degraded)).
		Msg("maintenance run completed")
	return report, nil
}

func (o *Orchestrator) fail(run *runState, deviceID string, err error, logger zerolog.Logger) error {
	stage := run.current()
	run.enter(maintenance.StateFailed)
	metrics.IncStageFailure(string(stage))
	logger.Error().Err(err).Str("stage", string(stage)).Msg("maintenance run failed")
	return &maintenance.RunError{DeviceID: deviceID, Stage: stage, Err: err}
}

func (o *Orchestrator) degrade(run *runState, err error, logger zerolog.Logger) {
	stage := run.current()
	run.report.Degraded = append(run.report.Degraded, maintenance.DegradedMarker{Stage: stage, Reason: err.Error()})
	metrics.IncDegraded(string(stage))
	logger.Warn().Err(err).Str("stage", string(stage)).Msg("maintenance run degraded")
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
