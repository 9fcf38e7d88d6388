package application

import (
	"math"
	"sort"

	risk "smart-maintenance/internal/risk/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

// Evaluate scores a sample against prior history. It is pure: the same inputs
// always produce the same assessment.
func Evaluate(sample telemetry.Sample, history []telemetry.Sample, cfg risk.Config) (risk.Assessment, error) {
	if err := sample.Validate(); err != nil {
		return risk.Assessment{}, err
	}
	riskScore, labels := scoreSample(sample, history, cfg)

	assessment := risk.Assessment{
		DeviceID:        sample.DeviceID,
		RiskScore:       riskScore,
		FailureModes:    labels,
		BreachedSignals: risk.BreachedSignals(sample, cfg.Thresholds),
		HistoryLength:   historyLength(len(history)+1, cfg.HistoryWindow),
	}
	if n := len(history); n > 0 {
		assessment.PreviousRisk = previousRisk(history[n-1], history[:n-1], cfg)
	}
	return assessment, nil
}

// previousRisk prefers the score recorded with the entry; rescoring is only a
// fallback for history written without one.
func previousRisk(prior telemetry.Sample, history []telemetry.Sample, cfg risk.Config) float64 {
	if prior.RiskScore != nil {
		return *prior.RiskScore
	}
	score, _ := scoreSample(prior, history, cfg)
	return score
}

func scoreSample(sample telemetry.Sample, history []telemetry.Sample, cfg risk.Config) (float64, []string) {
	fired := make(map[string]struct{})
	total := 0.0
	for _, rule := range cfg.Rules {
		threshold, ok := cfg.ThresholdFor(rule)
		if !ok {
			continue
		}
		if !ruleFires(rule, threshold, sample, history) {
			continue
		}
		fired[rule.Label] = struct{}{}
		total += rule.Weight
	}

	labels := make([]string, 0, len(fired))
	for label := range fired {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return roundScore(clamp(total)), labels
}

func ruleFires(rule risk.Rule, threshold float64, sample telemetry.Sample, history []telemetry.Sample) bool {
	value, ok := sample.Value(rule.Signal)
	if !ok || !rule.Operator.Holds(value, threshold) {
		return false
	}
	need := rule.Window() - 1
	if need == 0 {
		return true
	}
	if len(history) < need {
		return false
	}
	for _, prior := range history[len(history)-need:] {
		value, ok := prior.Value(rule.Signal)
		if !ok || !rule.Operator.Holds(value, threshold) {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

func historyLength(n, window int) int {
	if window > 0 && n > window {
		return window
	}
	return n
}
