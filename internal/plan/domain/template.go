package plan

import (
	"errors"
	"fmt"
	"time"

	evidence "smart-maintenance/internal/evidence/domain"
)

// DefaultCategory is the duration key used when a step category has no entry.
const DefaultCategory = "default"

// ErrUnknownFailureMode indicates a label without a repair template.
var ErrUnknownFailureMode = errors.New("plan: unknown failure mode")

// Step is one templated action.
type Step struct {
	Category string `yaml:"category" json:"category"`
	Text     string `yaml:"text" json:"text"`
}

// Template is the repair recipe for one failure mode.
type Template struct {
	Steps         []Step   `yaml:"steps" json:"steps"`
	LockoutTagout []string `yaml:"lockout_tagout" json:"lockout_tagout"`
	Parts         []string `yaml:"parts" json:"parts"`
	Rollback      []string `yaml:"rollback" json:"rollback"`
}

// Catalog holds templates keyed by failure-mode label and per-category step durations.
type Catalog struct {
	Templates map[string]Template      `yaml:"templates" json:"templates"`
	Durations map[string]time.Duration `yaml:"durations" json:"durations"`
}

// Validate checks catalog invariants.
func (c Catalog) Validate() error {
	for label, tmpl := range c.Templates {
		if label == "" {
			return errors.New("plan catalog: empty template label")
		}
		for _, step := range tmpl.Steps {
			if step.Text == "" {
				return fmt.Errorf("plan catalog: template %s has empty step", label)
			}
		}
	}
	for category, d := range c.Durations {
		if d < 0 {
			return fmt.Errorf("plan catalog: negative duration for %s", category)
		}
	}
	return nil
}

// Duration returns the duration for a category, falling back to the default entry.
func (c Catalog) Duration(category string) time.Duration {
	if d, ok := c.Durations[category]; ok {
		return d
	}
	return c.Durations[DefaultCategory]
}

// RepairPlan is the generated plan for one assessment. Immutable after construction.
type RepairPlan struct {
	FailureModes  []string           `json:"failure_modes"`
	Steps         []string           `json:"steps"`
	LockoutTagout []string           `json:"lockout_tagout"`
	Parts         []string           `json:"parts"`
	Rollback      []string           `json:"rollback"`
	ETA           time.Duration      `json:"eta"`
	Evidence      []evidence.Snippet `json:"evidence"`
}

// ETAHours returns the ETA in hours.
func (p RepairPlan) ETAHours() float64 {
	return p.ETA.Hours()
}
