package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	evidenceapp "smart-maintenance/internal/evidence/application"
	plan "smart-maintenance/internal/plan/domain"
	risk "smart-maintenance/internal/risk/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Catalog is the pipeline configuration loaded from YAML.
type Catalog struct {
	AlertThreshold float64
	Risk           risk.Config
	Plan           plan.Catalog
	Retrieval      evidenceapp.Config
}

type catalogFile struct {
	AlertThreshold *float64                     `yaml:"alert_threshold"`
	HistoryWindow  int                          `yaml:"history_window"`
	Retrieval      retrievalFile                `yaml:"retrieval"`
	Thresholds     map[telemetry.Signal]float64 `yaml:"thresholds"`
	Rules          []risk.Rule                  `yaml:"rules"`
	Durations      map[string]string            `yaml:"durations"`
	Templates      map[string]plan.Template     `yaml:"templates"`
}

type retrievalFile struct {
	TopK        int    `yaml:"top_k"`
	Timeout     string `yaml:"timeout"`
	QuerySuffix string `yaml:"query_suffix"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path returns the embedded default.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("catalog: %w", err)
	}

	out := Catalog{
		AlertThreshold: 0.7,
		Risk: risk.Config{
			Thresholds:    file.Thresholds,
			Rules:         file.Rules,
			HistoryWindow: file.HistoryWindow,
		},
		Plan: plan.Catalog{
			Templates: file.Templates,
			Durations: make(map[string]time.Duration, len(file.Durations)),
		},
		Retrieval: evidenceapp.Config{
			TopK:        file.Retrieval.TopK,
			QuerySuffix: file.Retrieval.QuerySuffix,
		},
	}
	if file.AlertThreshold != nil {
		out.AlertThreshold = *file.AlertThreshold
	}
	if out.AlertThreshold < 0 || out.AlertThreshold > 1 {
		return Catalog{}, errors.New("catalog: alert_threshold must be within [0,1]")
	}
	if file.Retrieval.Timeout != "" {
		timeout, err := time.ParseDuration(file.Retrieval.Timeout)
		if err != nil {
			return Catalog{}, fmt.Errorf("catalog: retrieval timeout: %w", err)
		}
		out.Retrieval.Timeout = timeout
	}
	for category, value := range file.Durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return Catalog{}, fmt.Errorf("catalog: duration %s: %w", category, err)
		}
		out.Plan.Durations[category] = d
	}

	if err := out.Risk.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("catalog: %w", err)
	}
	if err := out.Plan.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("catalog: %w", err)
	}
	for _, rule := range out.Risk.Rules {
		if _, ok := out.Plan.Templates[rule.Label]; !ok {
			return Catalog{}, fmt.Errorf("catalog: rule %s has no template: %w", rule.Label, plan.ErrUnknownFailureMode)
		}
	}
	return out, nil
}
