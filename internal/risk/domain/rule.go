package risk

import (
	"errors"
	"fmt"
	"math"

	telemetry "smart-maintenance/internal/telemetry/domain"
)

type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorGreaterOrEqual Operator = ">="
	OperatorLess           Operator = "<"
	OperatorLessOrEqual    Operator = "<="
)

// Valid returns true when operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorGreaterOrEqual, OperatorLess, OperatorLessOrEqual:
		return true
	default:
		return false
	}
}

// Holds applies the operator to value and threshold.
func (o Operator) Holds(value, threshold float64) bool {
	switch o {
	case OperatorGreater:
		return value > threshold
	case OperatorGreaterOrEqual:
		return value >= threshold
	case OperatorLess:
		return value < threshold
	case OperatorLessOrEqual:
		return value <= threshold
	default:
		return false
	}
}

// Rule maps a signal predicate to a failure-mode label.
// Consecutive > 1 requires the predicate to hold for that many readings in a row,
// the current sample included.
type Rule struct {
	Label       string           `yaml:"label" json:"label"`
	Signal      telemetry.Signal `yaml:"signal" json:"signal"`
	Operator    Operator         `yaml:"operator" json:"operator"`
	Threshold   *float64         `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Consecutive int              `yaml:"consecutive,omitempty" json:"consecutive,omitempty"`
	Weight      float64          `yaml:"weight" json:"weight"`
}

// Validate checks rule invariants.
func (r Rule) Validate() error {
	if r.Label == "" {
		return errors.New("risk rule: empty label")
	}
	if !r.Signal.Valid() {
		return fmt.Errorf("risk rule %s: invalid signal %q", r.Label, r.Signal)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("risk rule %s: invalid operator %q", r.Label, r.Operator)
	}
	if r.Consecutive < 0 {
		return fmt.Errorf("risk rule %s: negative consecutive", r.Label)
	}
	if r.Weight < 0 || math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
		return fmt.Errorf("risk rule %s: invalid weight", r.Label)
	}
	if r.Threshold != nil && (math.IsNaN(*r.Threshold) || math.IsInf(*r.Threshold, 0)) {
		return fmt.Errorf("risk rule %s: invalid threshold", r.Label)
	}
	return nil
}

// Window returns how many consecutive readings the rule inspects.
func (r Rule) Window() int {
	if r.Consecutive < 1 {
		return 1
	}
	return r.Consecutive
}

// Config holds the scoring thresholds and rule table.
type Config struct {
	Thresholds    map[telemetry.Signal]float64 `yaml:"thresholds" json:"thresholds"`
	Rules         []Rule                       `yaml:"rules" json:"rules"`
	HistoryWindow int                          `yaml:"history_window" json:"history_window"`
}

// Validate checks config invariants.
func (c Config) Validate() error {
	for signal := range c.Thresholds {
		if !signal.Valid() {
			return fmt.Errorf("risk config: unknown threshold signal %q", signal)
		}
	}
	for _, rule := range c.Rules {
		if err := rule.Validate(); err != nil {
			return err
		}
		if rule.Window() > c.HistoryWindow && c.HistoryWindow > 0 {
			return fmt.Errorf("risk rule %s: consecutive exceeds history window", rule.Label)
		}
	}
	if c.HistoryWindow < 0 {
		return errors.New("risk config: negative history window")
	}
	return nil
}

// ThresholdFor resolves the threshold a rule compares against.
func (c Config) ThresholdFor(rule Rule) (float64, bool) {
	if rule.Threshold != nil {
		return *rule.Threshold, true
	}
	value, ok := c.Thresholds[rule.Signal]
	return value, ok
}

// BreachedSignals lists signals whose value exceeds the configured threshold, in signal order.
func BreachedSignals(sample telemetry.Sample, thresholds map[telemetry.Signal]float64) []telemetry.Signal {
	var out []telemetry.Signal
	for _, signal := range telemetry.Signals {
		threshold, ok := thresholds[signal]
		if !ok {
			continue
		}
		value, ok := sample.Value(signal)
		if ok && value > threshold {
			out = append(out, signal)
		}
	}
	return out
}
