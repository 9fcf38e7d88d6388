package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	alerts "smart-maintenance/internal/alerts/domain"
	"smart-maintenance/internal/alerts/notify"
	"smart-maintenance/internal/observability/metrics"
	risk "smart-maintenance/internal/risk/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Dispatcher decides whether an assessment warrants an alert and delivers it.
type Dispatcher struct {
	transport      alerts.Transport
	template       *notify.Template
	clock          Clock
	logger         zerolog.Logger
	requestTimeout time.Duration
}

// Option customizes the dispatcher.
type Option func(*Dispatcher)

// WithTemplate overrides the message template.
func WithTemplate(template *notify.Template) Option {
	return func(d *Dispatcher) {
		if template != nil {
			d.template = template
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithRequestTimeout bounds each transport call.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.requestTimeout = timeout
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(transport alerts.Transport, opts ...Option) (*Dispatcher, error) {
	if transport == nil {
		return nil, errors.New("alert dispatcher: nil transport")
	}
	template, err := notify.NewTemplate("")
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		transport:      transport,
		template:       template,
		clock:          systemClock{},
		logger:         zerolog.Nop(),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch always returns an event. The transport is called only when the
// score reaches the threshold; delivery failures are recorded, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, assessment risk.Assessment, threshold float64) alerts.Event {
	event := alerts.Event{
		DeviceID:  assessment.DeviceID,
		RiskScore: assessment.RiskScore,
		Threshold: threshold,
		Triggered: assessment.RiskScore >= threshold,
		Timestamp: d.clock.Now().UTC(),
	}
	if !event.Triggered {
		metrics.IncAlert(metrics.AlertNotTriggered)
		return event
	}

	if err := d.send(ctx, assessment, threshold, event.Timestamp); err != nil {
		event.DeliveryError = err.Error()
		metrics.IncAlert(metrics.AlertFailed)
		d.logger.Error().Err(err).
			Str("device_id", event.DeviceID).
			Float64("risk_score", event.RiskScore).
			Msg("alert delivery failed")
		return event
	}
	event.Delivered = true
	metrics.IncAlert(metrics.AlertDelivered)
	return event
}

func (d *Dispatcher) send(ctx context.Context, assessment risk.Assessment, threshold float64, at time.Time) error {
	n := alerts.Notification{
		DeviceID:     assessment.DeviceID,
		RiskScore:    assessment.RiskScore,
		Threshold:    threshold,
		FailureModes: assessment.FailureModes,
	}
	message, err := d.template.Render(notify.BuildTemplateData(n, at))
	if err != nil {
		return fmt.Errorf("%w: render: %v", alerts.ErrTransportFailure, err)
	}
	n.Message = message

	if d.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.requestTimeout)
		defer cancel()
	}
	if err := d.transport.Send(ctx, n); err != nil {
		return fmt.Errorf("%w: %v", alerts.ErrTransportFailure, err)
	}
	return nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
