package telemetry

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSampleValidate(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	valid := NewSample("pump-17", at, 92, 8.2, 88)
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid sample, got %v", err)
	}

	cases := map[string]Sample{
		"empty device":        {Timestamp: at, Temperature: Float(1), Pressure: Float(1), CPULoad: Float(1)},
		"missing temperature": {DeviceID: "d", Pressure: Float(1), CPULoad: Float(1)},
		"missing pressure":    {DeviceID: "d", Temperature: Float(1), CPULoad: Float(1)},
		"missing cpu":         {DeviceID: "d", Temperature: Float(1), Pressure: Float(1)},
	}
	for name, sample := range cases {
		if err := sample.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestSampleValueTreatsNaNAsUnavailable(t *testing.T) {
	sample := NewSample("pump-17", time.Time{}, math.NaN(), 8.2, 88)
	if err := sample.Validate(); err != nil {
		t.Fatalf("NaN must not fail validation: %v", err)
	}
	if _, ok := sample.Value(SignalTemperature); ok {
		t.Fatal("expected NaN temperature to be unavailable")
	}
	if v, ok := sample.Value(SignalPressure); !ok || v != 8.2 {
		t.Fatalf("expected pressure 8.2, got %v %v", v, ok)
	}
	if _, ok := sample.Value(Signal("vibration")); ok {
		t.Fatal("expected unknown signal to be unavailable")
	}
}

func TestLatestPerDevice(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	samples := []Sample{
		NewSample("pump-2", at, 70, 5, 10),
		NewSample("pump-1", at.Add(time.Hour), 91, 8, 50),
		NewSample("pump-1", at, 80, 6, 40),
		NewSample("pump-2", at.Add(2*time.Hour), 75, 5, 12),
	}
	latest := LatestPerDevice(samples)
	if len(latest) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(latest))
	}
	if latest[0].DeviceID != "pump-1" || *latest[0].Temperature != 91 {
		t.Fatalf("unexpected pump-1 sample: %+v", latest[0])
	}
	if latest[1].DeviceID != "pump-2" || *latest[1].Temperature != 75 {
		t.Fatalf("unexpected pump-2 sample: %+v", latest[1])
	}
}
