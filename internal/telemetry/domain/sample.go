package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidInput indicates a sample is missing required fields.
var ErrInvalidInput = errors.New("telemetry: invalid input")

// Signal names a numeric telemetry channel.
type Signal string

const (
	SignalTemperature Signal = "temperature"
	SignalPressure    Signal = "pressure"
	SignalCPULoad     Signal = "cpu_load"
)

// Signals lists every supported signal in a stable order.
var Signals = []Signal{SignalCPULoad, SignalPressure, SignalTemperature}

// Valid reports whether the signal is supported.
func (s Signal) Valid() bool {
	switch s {
	case SignalTemperature, SignalPressure, SignalCPULoad:
		return true
	default:
		return false
	}
}

// Sample is a single telemetry reading for a device.
// A nil value means the field was absent; NaN means it was present but unusable.
type Sample struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	Pressure    *float64  `json:"pressure"`
	CPULoad     *float64  `json:"cpu_load"`
	// RiskScore is the score recorded when the sample entered history.
	RiskScore *float64 `json:"-"`
}

// NewSample builds a sample with all signals present.
func NewSample(deviceID string, at time.Time, temperature, pressure, cpuLoad float64) Sample {
	return Sample{
		DeviceID:    deviceID,
		Timestamp:   at,
		Temperature: Float(temperature),
		Pressure:    Float(pressure),
		CPULoad:     Float(cpuLoad),
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Value returns the signal value and whether it is present and a real number.
func (s Sample) Value(signal Signal) (float64, bool) {
	var ptr *float64
	switch signal {
	case SignalTemperature:
		ptr = s.Temperature
	case SignalPressure:
		ptr = s.Pressure
	case SignalCPULoad:
		ptr = s.CPULoad
	}
	if ptr == nil || math.IsNaN(*ptr) {
		return 0, false
	}
	return *ptr, true
}

// Validate checks that the device id and all numeric fields are present.
func (s Sample) Validate() error {
	if s.DeviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidInput)
	}
	if s.Temperature == nil {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, SignalTemperature)
	}
	if s.Pressure == nil {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, SignalPressure)
	}
	if s.CPULoad == nil {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, SignalCPULoad)
	}
	return nil
}

// HistoryStore keeps a bounded, ordered history of samples per device.
type HistoryStore interface {
	// Recent returns up to limit samples for the device, oldest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]Sample, error)
	// Append records the sample and evicts entries beyond window.
	Append(ctx context.Context, sample Sample, window int) error
}

// Source supplies samples from an ingestion collaborator. Next returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}

// LatestPerDevice keeps the most recent sample per device, ordered by device id.
func LatestPerDevice(samples []Sample) []Sample {
	latest := make(map[string]Sample)
	for _, sample := range samples {
		existing, ok := latest[sample.DeviceID]
		if !ok || !sample.Timestamp.Before(existing.Timestamp) {
			latest[sample.DeviceID] = sample
		}
	}
	out := make([]Sample, 0, len(latest))
	for _, sample := range latest {
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
