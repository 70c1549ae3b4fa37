package assessment

import (
	"math"
	"time"

	"shipboard-health/internal/telemetry/domain"
)

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func series(metric telemetry.MetricType, start time.Time, step time.Duration, values ...float64) []telemetry.MetricDataPoint {
	points := make([]telemetry.MetricDataPoint, len(values))
	for i, value := range values {
		points[i] = telemetry.MetricDataPoint{
			Timestamp:  start.Add(time.Duration(i) * step),
			MetricType: metric,
			Value:      value,
		}
	}
	return points
}

func repeat(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
