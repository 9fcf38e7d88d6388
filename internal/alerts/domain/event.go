package alerts

import (
	"context"
	"errors"
	"time"
)

// ErrTransportFailure indicates the alert transport rejected or lost a notification.
var ErrTransportFailure = errors.New("alerts: transport failure")

// Event records the alert decision for one assessment.
type Event struct {
	DeviceID      string    `json:"device_id"`
	RiskScore     float64   `json:"risk_score"`
	Threshold     float64   `json:"threshold"`
	Triggered     bool      `json:"triggered"`
	Timestamp     time.Time `json:"timestamp"`
	Delivered     bool      `json:"delivered"`
	DeliveryError string    `json:"delivery_error,omitempty"`
}

// Failed reports whether a triggered alert could not be delivered.
func (e Event) Failed() bool {
	return e.Triggered && !e.Delivered
}

// Notification is the payload handed to a transport.
type Notification struct {
	DeviceID     string
	RiskScore    float64
	Threshold    float64
	FailureModes []string
	Message      string
}

// Transport delivers notifications to an external system.
type Transport interface {
	Send(ctx context.Context, n Notification) error
}
