package notify

import (
	"context"

	"github.com/rs/zerolog"

	alerts "smart-maintenance/internal/alerts/domain"
)

// LogTransport writes alerts to the structured log only.
type LogTransport struct {
	logger zerolog.Logger
}

// NewLogTransport constructs a log transport.
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send logs the alert.
func (l *LogTransport) Send(_ context.Context, n alerts.Notification) error {
	if l == nil {
		return nil
	}
	l.logger.Warn().
		Str("device_id", n.DeviceID).
		Float64("risk_score", n.RiskScore).
		Float64("threshold", n.Threshold).
		Strs("failure_modes", n.FailureModes).
		Msg("maintenance alert")
	return nil
}
