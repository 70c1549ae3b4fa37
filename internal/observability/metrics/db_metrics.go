package metrics

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	alarms "shipboard-health/internal/alarms/domain"
)

// gaugeQueryTimeout bounds each scrape-time count.
const gaugeQueryTimeout = 2 * time.Second

type countGauge struct {
	name  string
	help  string
	query string
	args  []any
}

func dbGauges() []countGauge {
	return []countGauge{
		{
			name:  metricPrefix + "assessment_reports_stored",
			help:  "Stored assessment reports",
			query: "SELECT COUNT(*) FROM assessment_reports",
		},
		{
			name:  metricPrefix + "assessment_reports_last_24h",
			help:  "Assessment reports generated in the last 24 hours",
			query: "SELECT COUNT(*) FROM assessment_reports WHERE created_at >= now() - interval '24 hours'",
		},
		{
			name:  metricPrefix + "active_critical_alarms",
			help:  "Active alarms whose severity normalizes to critical",
			query: "SELECT COUNT(*) FROM alarms WHERE status = $1 AND lower(trim(severity)) = ANY($2)",
			args:  []any{alarms.StatusActive, alarms.CriticalSeverityLabels()},
		},
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	for _, gauge := range dbGauges() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: gauge.name, Help: gauge.help},
			func() float64 { return countRows(db, logger, gauge) },
		))
	}
}

// countRows reports 0 when the count cannot be read; the failure is logged.
func countRows(db *sql.DB, logger *log.Logger, gauge countGauge) float64 {
	if db == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), gaugeQueryTimeout)
	defer cancel()
	var count int64
	if err := db.QueryRowContext(ctx, gauge.query, gauge.args...).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics gauge %s failed: %v", gauge.name, err)
		}
		return 0
	}
	return float64(max(count, 0))
}
