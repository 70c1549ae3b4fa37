package assessment

import (
	"sort"

	"shipboard-health/internal/telemetry/domain"
)

// MetricGroups holds readings keyed by metric type, each in input order.
type MetricGroups map[telemetry.MetricType][]telemetry.MetricDataPoint

// GroupByMetric groups readings by metric type. It never filters and keeps
// the input order inside each group.
func GroupByMetric(readings []telemetry.MetricDataPoint) MetricGroups {
	groups := make(MetricGroups)
	for _, reading := range readings {
		groups[reading.MetricType] = append(groups[reading.MetricType], reading)
	}
	return groups
}

// MetricTypes returns the group keys sorted for deterministic iteration.
func (g MetricGroups) MetricTypes() []telemetry.MetricType {
	keys := make([]telemetry.MetricType, 0, len(g))
	for key := range g {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// PointCount returns the total number of readings across all groups.
func (g MetricGroups) PointCount() int {
	total := 0
	for _, points := range g {
		total += len(points)
	}
	return total
}

func values(points []telemetry.MetricDataPoint) []float64 {
	out := make([]float64, len(points))
	for i, point := range points {
		out[i] = point.Value
	}
	return out
}
