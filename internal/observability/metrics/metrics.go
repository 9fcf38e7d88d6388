package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "maintenance_"

	resultSuccess = "success"
	resultError   = "error"

	alertNotTriggered = "not_triggered"
	alertDelivered    = "delivered"
	alertFailed       = "failed"
)

var (
	registerOnce sync.Once

	runsTotal   *prometheus.CounterVec
	runLatency  *prometheus.HistogramVec
	stageErrors *prometheus.CounterVec
	degraded    *prometheus.CounterVec

	riskScores prometheus.Histogram

	retrievalTotal   *prometheus.CounterVec
	retrievalLatency *prometheus.HistogramVec

	alertsTotal *prometheus.CounterVec

	ingestSamples *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers pipeline metrics and DB-backed gauges.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Pipeline run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		stageErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stage_failures_total",
				Help: "Total fatal stage failures by stage",
			},
			[]string{"stage"},
		)
		degraded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "degraded_total",
				Help: "Total degraded markers by stage",
			},
			[]string{"stage"},
		)

		riskScores = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "risk_score",
				Help:    "Distribution of computed risk scores",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		)

		retrievalTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "retrieval_total",
				Help: "Total evidence retrievals by result",
			},
			[]string{"result"},
		)
		retrievalLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "retrieval_latency_seconds",
				Help:    "Evidence retrieval latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alert decisions by outcome",
			},
			[]string{"outcome"},
		)

		ingestSamples = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_samples_total",
				Help: "Total ingested telemetry samples by source and result",
			},
			[]string{"source", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			runsTotal,
			runLatency,
			stageErrors,
			degraded,
			riskScores,
			retrievalTotal,
			retrievalLatency,
			alertsTotal,
			ingestSamples,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records run duration and result.
func ObserveRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncStageFailure increments the fatal stage counter.
func IncStageFailure(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	if stageErrors != nil {
		stageErrors.WithLabelValues(stage).Inc()
	}
}

// IncDegraded increments the degraded marker counter.
func IncDegraded(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	if degraded != nil {
		degraded.WithLabelValues(stage).Inc()
	}
}

// ObserveRiskScore records a computed score.
func ObserveRiskScore(score float64) {
	if riskScores != nil {
		riskScores.Observe(score)
	}
}

// ObserveRetrieval records search latency and result.
func ObserveRetrieval(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if retrievalTotal != nil {
		retrievalTotal.WithLabelValues(result).Inc()
	}
	if retrievalLatency != nil {
		retrievalLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncAlert increments alert outcome counters.
func IncAlert(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncIngestSample increments ingested sample counters.
func IncIngestSample(source, result string) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if ingestSamples != nil {
		ingestSamples.WithLabelValues(source, result).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	AlertNotTriggered = alertNotTriggered
	AlertDelivered    = alertDelivered
	AlertFailed       = alertFailed
)
