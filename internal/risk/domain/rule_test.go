package risk

import (
	"testing"
	"time"

	telemetry "smart-maintenance/internal/telemetry/domain"
)

func TestRuleValidate(t *testing.T) {
	valid := Rule{Label: "overheat", Signal: telemetry.SignalTemperature, Operator: OperatorGreater, Weight: 0.6}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}
	cases := []Rule{
		{Signal: telemetry.SignalTemperature, Operator: OperatorGreater},
		{Label: "x", Signal: "humidity", Operator: OperatorGreater},
		{Label: "x", Signal: telemetry.SignalPressure, Operator: "=="},
		{Label: "x", Signal: telemetry.SignalPressure, Operator: OperatorLess, Weight: -1},
		{Label: "x", Signal: telemetry.SignalPressure, Operator: OperatorLess, Consecutive: -2},
	}
	for i, rule := range cases {
		if err := rule.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestConfigThresholdFallback(t *testing.T) {
	cfg := Config{Thresholds: map[telemetry.Signal]float64{telemetry.SignalTemperature: 90}}
	rule := Rule{Label: "overheat", Signal: telemetry.SignalTemperature, Operator: OperatorGreater}
	if v, ok := cfg.ThresholdFor(rule); !ok || v != 90 {
		t.Fatalf("expected fallback threshold 90, got %v %v", v, ok)
	}
	rule.Threshold = telemetry.Float(80)
	if v, _ := cfg.ThresholdFor(rule); v != 80 {
		t.Fatalf("expected rule threshold 80, got %v", v)
	}
	if _, ok := cfg.ThresholdFor(Rule{Signal: telemetry.SignalCPULoad}); ok {
		t.Fatal("expected no threshold for cpu_load")
	}
}

func TestConfigRejectsTrendLongerThanWindow(t *testing.T) {
	cfg := Config{
		HistoryWindow: 2,
		Rules:         []Rule{{Label: "runaway", Signal: telemetry.SignalTemperature, Operator: OperatorGreater, Consecutive: 3}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected window error")
	}
}

func TestBreachedSignals(t *testing.T) {
	sample := telemetry.NewSample("pump-1", time.Time{}, 95, 70, 30)
	thresholds := map[telemetry.Signal]float64{
		telemetry.SignalTemperature: 90,
		telemetry.SignalPressure:    60,
		telemetry.SignalCPULoad:     90,
	}
	got := BreachedSignals(sample, thresholds)
	if len(got) != 2 || got[0] != telemetry.SignalPressure || got[1] != telemetry.SignalTemperature {
		t.Fatalf("unexpected breached signals %v", got)
	}
}

func TestOperatorHolds(t *testing.T) {
	if !OperatorGreaterOrEqual.Holds(5, 5) || OperatorGreater.Holds(5, 5) {
		t.Fatal("unexpected >= / > behaviour")
	}
	if !OperatorLess.Holds(1, 2) || !OperatorLessOrEqual.Holds(2, 2) {
		t.Fatal("unexpected < / <= behaviour")
	}
	if Operator("!").Holds(1, 0) {
		t.Fatal("unknown operator must not hold")
	}
}
