package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "platform_"

	resultSuccess = "success"
	resultError   = "error"
	resultNoData  = "no_data"
)

var (
	registerOnce sync.Once

	assessmentTotal   *prometheus.CounterVec
	assessmentLatency *prometheus.HistogramVec

	anomaliesTotal *prometheus.CounterVec
	riskTotal      *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	notifyTotal *prometheus.CounterVec
)

// Init registers assessment metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		assessmentTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "assessment_total",
				Help: "Total assessment operations by kind and result",
			},
			[]string{"kind", "result"},
		)
		assessmentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "assessment_latency_seconds",
				Help:    "Assessment latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		anomaliesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "assessment_anomalies_total",
				Help: "Total detected anomalies by severity",
			},
			[]string{"severity"},
		)
		riskTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "assessment_risk_total",
				Help: "Total fault diagnoses by risk level",
			},
			[]string{"level"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "assessment_notify_total",
				Help: "Total assessment notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		prometheus.MustRegister(
			assessmentTotal,
			assessmentLatency,
			anomaliesTotal,
			riskTotal,
			reportExportTotal,
			reportExportLatency,
			notifyTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveAssessment records assessment latency and result.
func ObserveAssessment(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if assessmentTotal != nil {
		assessmentTotal.WithLabelValues(kind, result).Inc()
	}
	if assessmentLatency != nil {
		assessmentLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// AddAnomalies increments the anomaly counter by count.
func AddAnomalies(severity string, count int) {
	if count <= 0 {
		return
	}
	if severity == "" {
		severity = "unknown"
	}
	if anomaliesTotal != nil {
		anomaliesTotal.WithLabelValues(severity).Add(float64(count))
	}
}

// IncRiskLevel increments the diagnosis counter for a risk level.
func IncRiskLevel(level string) {
	if level == "" {
		level = "unknown"
	}
	if riskTotal != nil {
		riskTotal.WithLabelValues(level).Inc()
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
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncNotify increments notification counters.
func IncNotify(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(channel, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultNoData  = resultNoData
)
