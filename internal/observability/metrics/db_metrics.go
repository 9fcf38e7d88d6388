package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func registerDBMetrics(db *sql.DB, logger zerolog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "reports_stored",
			Help: "Maintenance reports persisted",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM maintenance_reports")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "tracked_devices",
			Help: "Devices with stored telemetry history",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(DISTINCT device_id) FROM device_telemetry_history")
		},
	))
}

func queryCount(db *sql.DB, logger zerolog.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		logger.Warn().Err(err).Msg("metrics query failed")
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
