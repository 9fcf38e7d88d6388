package notify

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	alerts "smart-maintenance/internal/alerts/domain"
)

const DefaultTemplate = `[Maintenance Alert]
Device: {{.DeviceID}}
Risk Score: {{.RiskScore}}
Threshold: {{.Threshold}}
Failure Modes: {{.FailureModes}}
Time: {{.Time}}
Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	DeviceID     string
	RiskScore    string
	Threshold    string
	FailureModes string
	Time         string
	Suggestion   string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("maintenance-alert").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildTemplateData maps a notification into template fields.
func BuildTemplateData(n alerts.Notification, at time.Time) TemplateData {
	modes := "none"
	if len(n.FailureModes) > 0 {
		modes = strings.Join(n.FailureModes, ", ")
	}
	return TemplateData{
		DeviceID:     n.DeviceID,
		RiskScore:    formatFloat(n.RiskScore),
		Threshold:    formatFloat(n.Threshold),
		FailureModes: modes,
		Time:         at.UTC().Format(time.RFC3339),
		Suggestion:   suggestionFor(n.RiskScore),
	}
}

func suggestionFor(score float64) string {
	switch {
	case score >= 0.9:
		return "Take the device out of service and start the repair plan."
	case score >= 0.7:
		return "Schedule the repair plan within the next shift."
	default:
		return "Monitor the device condition."
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
