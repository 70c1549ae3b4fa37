package assessment

import (
	"math"
	"time"

	"shipboard-health/internal/telemetry/domain"
)

// AnomalySeverity classifies how far a reading sits from its series mean.
type AnomalySeverity string

const (
	AnomalyLow      AnomalySeverity = "low"
	AnomalyMedium   AnomalySeverity = "medium"
	AnomalyHigh     AnomalySeverity = "high"
	AnomalyCritical AnomalySeverity = "critical"
)

// Valid returns true when severity is supported.
func (s AnomalySeverity) Valid() bool {
	switch s {
	case AnomalyLow, AnomalyMedium, AnomalyHigh, AnomalyCritical:
		return true
	default:
		return false
	}
}

// AtLeastHigh reports whether the severity is high or critical.
func (s AnomalySeverity) AtLeastHigh() bool {
	return s == AnomalyHigh || s == AnomalyCritical
}

// minAnomalySeriesLength is the smallest series that yields a usable baseline.
const minAnomalySeriesLength = 3

// AnomalyPoint is a reading that deviates from its series mean.
type AnomalyPoint struct {
	Timestamp        time.Time            `json:"timestamp"`
	MetricType       telemetry.MetricType `json:"metric_type"`
	Value            float64              `json:"value"`
	ExpectedValue    float64              `json:"expected_value"`
	DeviationPercent float64              `json:"deviation_percent"`
	Severity         AnomalySeverity      `json:"severity"`
}

// DetectAnomalies flags medium, high and critical readings using a static
// full-window baseline: mean and population standard deviation are computed
// once per series. Series shorter than three points or with zero spread are
// skipped.
func DetectAnomalies(groups MetricGroups) []AnomalyPoint {
	var anomalies []AnomalyPoint
	for _, metricType := range groups.MetricTypes() {
		points := groups[metricType]
		if len(points) < minAnomalySeriesLength {
			continue
		}
		series := values(points)
		mu := mean(series)
		sigma := populationStdDev(series)
		if sigma == 0 {
			continue
		}
		for _, point := range points {
			deviation := math.Abs(point.Value - mu)
			severity := classifyDeviation(deviation, sigma)
			if severity == AnomalyLow {
				continue
			}
			anomalies = append(anomalies, AnomalyPoint{
				Timestamp:        point.Timestamp,
				MetricType:       metricType,
				Value:            point.Value,
				ExpectedValue:    mu,
				DeviationPercent: deviationPercent(deviation, mu),
				Severity:         severity,
			})
		}
	}
	return anomalies
}

func classifyDeviation(deviation, sigma float64) AnomalySeverity {
	switch {
	case deviation > 3*sigma:
		return AnomalyCritical
	case deviation > 2*sigma:
		return AnomalyHigh
	case deviation > 1.5*sigma:
		return AnomalyMedium
	default:
		return AnomalyLow
	}
}

func deviationPercent(deviation, mu float64) float64 {
	if mu == 0 {
		return 0
	}
	return deviation / math.Abs(mu) * 100
}
