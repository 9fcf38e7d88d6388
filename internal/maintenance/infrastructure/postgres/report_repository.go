package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	maintenance "smart-maintenance/internal/maintenance/domain"
)

const defaultReportLimit = 100

// ReportRepository persists maintenance reports as JSONB documents.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts a report.
func (r *ReportRepository) Save(ctx context.Context, report *maintenance.Report) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if report == nil || report.ID == "" {
		return errors.New("report repo: report id required")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("report repo: encode: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO maintenance_reports (
	id, tenant_id, device_id, risk_score, alert_triggered, degraded, payload, generated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		report.ID, report.TenantID, report.DeviceID, report.Assessment.RiskScore,
		report.Alert.Triggered, report.IsDegraded(), payload, report.GeneratedAt.UTC(),
	)
	return err
}

// Get loads a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*maintenance.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
SELECT payload
FROM maintenance_reports
WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, maintenance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeReport(payload)
}

// List returns reports newest first.
func (r *ReportRepository) List(ctx context.Context, filter maintenance.ReportFilter) ([]maintenance.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	if filter.DeviceID != "" {
		add("device_id = $%d", filter.DeviceID)
	}
	if !filter.From.IsZero() {
		add("generated_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("generated_at < $%d", filter.To.UTC())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReportLimit
	}
	args = append(args, limit)

	query := "SELECT payload FROM maintenance_reports"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY generated_at DESC, id ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []maintenance.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		report, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, *report)
	}
	return result, rows.Err()
}

func decodeReport(payload []byte) (*maintenance.Report, error) {
	var report maintenance.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("report repo: decode: %w", err)
	}
	return &report, nil
}
