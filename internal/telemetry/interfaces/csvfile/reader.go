package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"smart-maintenance/internal/observability/metrics"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var columnAliases = map[string]string{
	"timestamp":   "timestamp",
	"ts":          "timestamp",
	"time":        "timestamp",
	"deviceid":    "device_id",
	"device_id":   "device_id",
	"device":      "device_id",
	"temperature": "temperature",
	"temp":        "temperature",
	"pressure":    "pressure",
	"cpu_usage":   "cpu_load",
	"cpu_load":    "cpu_load",
	"cpu":         "cpu_load",
}

// Reader pulls telemetry samples from CSV rows.
// Empty numeric cells are reported as absent fields.
type Reader struct {
	r       *csv.Reader
	columns map[string]int
	line    int
}

// NewReader reads the header row and prepares a sample source.
func NewReader(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, errors.New("csv reader: nil input")
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv reader: header: %w", err)
	}
	columns := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[key]; ok {
			columns[canonical] = i
		}
	}
	if _, ok := columns["device_id"]; !ok {
		return nil, errors.New("csv reader: missing device id column")
	}
	return &Reader{r: cr, columns: columns, line: 1}, nil
}

// Next returns the next sample or io.EOF.
func (r *Reader) Next(ctx context.Context) (telemetry.Sample, error) {
	if err := ctx.Err(); err != nil {
		return telemetry.Sample{}, err
	}
	record, err := r.r.Read()
	if err != nil {
		return telemetry.Sample{}, err
	}
	r.line++

	sample := telemetry.Sample{DeviceID: r.cell(record, "device_id")}
	if raw := r.cell(record, "timestamp"); raw != "" {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return telemetry.Sample{}, fmt.Errorf("csv reader: line %d: %w", r.line, err)
		}
		sample.Timestamp = ts
	}
	if sample.Temperature, err = r.float(record, "temperature"); err != nil {
		return telemetry.Sample{}, err
	}
	if sample.Pressure, err = r.float(record, "pressure"); err != nil {
		return telemetry.Sample{}, err
	}
	if sample.CPULoad, err = r.float(record, "cpu_load"); err != nil {
		return telemetry.Sample{}, err
	}
	return sample, nil
}

// ReadAll drains a source.
func ReadAll(ctx context.Context, src telemetry.Source) ([]telemetry.Sample, error) {
	var out []telemetry.Sample
	for {
		sample, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			metrics.IncIngestSample("csv", metrics.ResultError)
			return out, err
		}
		metrics.IncIngestSample("csv", metrics.ResultSuccess)
		out = append(out, sample)
	}
}

func (r *Reader) cell(record []string, column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// float returns nil when the column is missing from the header and NaN for
// a blank cell, so a blank reading skips its rules instead of rejecting the row.
func (r *Reader) float(record []string, column string) (*float64, error) {
	if _, ok := r.columns[column]; !ok {
		return nil, nil
	}
	raw := r.cell(record, column)
	if raw == "" {
		return telemetry.Float(math.NaN()), nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: %s %q", telemetry.ErrInvalidInput, r.line, column, raw)
	}
	return telemetry.Float(value), nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", telemetry.ErrInvalidInput, raw)
}
