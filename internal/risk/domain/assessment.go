package risk

import telemetry "smart-maintenance/internal/telemetry/domain"

// Assessment is the scored outcome for one sample.
type Assessment struct {
	DeviceID        string             `json:"device_id"`
	RiskScore       float64            `json:"risk_score"`
	FailureModes    []string           `json:"failure_modes"`
	BreachedSignals []telemetry.Signal `json:"breached_signals"`
	HistoryLength   int                `json:"history_length"`
	PreviousRisk    float64            `json:"previous_risk"`
}

// HasFailureModes reports whether any rule fired.
func (a Assessment) HasFailureModes() bool {
	return len(a.FailureModes) > 0
}
