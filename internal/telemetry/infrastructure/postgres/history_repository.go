package postgres

import (
	"context"
	"database/sql"
	"errors"

	telemetry "smart-maintenance/internal/telemetry/domain"
)

const defaultHistoryTable = "device_telemetry_history"

// HistoryRepository persists bounded per-device telemetry history.
type HistoryRepository struct {
	db    *sql.DB
	table string
}

// NewHistoryRepository constructs a repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, table: defaultHistoryTable}
}

// Recent returns up to limit samples for the device, oldest first.
func (r *HistoryRepository) Recent(ctx context.Context, deviceID string, limit int) ([]telemetry.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT device_id, ts, temperature, pressure, cpu_load, risk_score
FROM (
	SELECT id, device_id, ts, temperature, pressure, cpu_load, risk_score
	FROM `+r.table+`
	WHERE device_id = $1
	ORDER BY id DESC
	LIMIT $2
) recent
ORDER BY id ASC`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.Sample
	for rows.Next() {
		var (
			sample      telemetry.Sample
			temperature sql.NullFloat64
			pressure    sql.NullFloat64
			cpuLoad     sql.NullFloat64
			riskScore   sql.NullFloat64
		)
		if err := rows.Scan(&sample.DeviceID, &sample.Timestamp, &temperature, &pressure, &cpuLoad, &riskScore); err != nil {
			return nil, err
		}
		sample.Timestamp = sample.Timestamp.UTC()
		sample.Temperature = nullableFloat(temperature)
		sample.Pressure = nullableFloat(pressure)
		sample.CPULoad = nullableFloat(cpuLoad)
		sample.RiskScore = nullableFloat(riskScore)
		result = append(result, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Append inserts a sample and trims the device history to window entries.
func (r *HistoryRepository) Append(ctx context.Context, sample telemetry.Sample, window int) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if sample.DeviceID == "" {
		return telemetry.ErrInvalidInput
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO `+r.table+` (device_id, ts, temperature, pressure, cpu_load, risk_score)
VALUES ($1, $2, $3, $4, $5, $6)`,
		sample.DeviceID,
		sample.Timestamp.UTC(),
		toNullFloat(sample.Temperature),
		toNullFloat(sample.Pressure),
		toNullFloat(sample.CPULoad),
		toNullFloat(sample.RiskScore),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if window > 0 {
		_, err = tx.ExecContext(ctx, `
DELETE FROM `+r.table+`
WHERE device_id = $1 AND id NOT IN (
	SELECT id FROM `+r.table+` WHERE device_id = $1 ORDER BY id DESC LIMIT $2
)`, sample.DeviceID, window)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return telemetry.Float(v.Float64)
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
