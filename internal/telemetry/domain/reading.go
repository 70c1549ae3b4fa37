package telemetry

import (
	"context"
	"time"
)

// MetricType identifies the sensor channel a reading belongs to.
type MetricType string

const (
	MetricVibration   MetricType = "vibration"
	MetricTemperature MetricType = "temperature"
	MetricPressure    MetricType = "pressure"
	MetricSpeed       MetricType = "speed"
	MetricCurrent     MetricType = "current"
	MetricVoltage     MetricType = "voltage"
	MetricPower       MetricType = "power"
)

// KnownMetricTypes lists the tracked metric types.
func KnownMetricTypes() []MetricType {
	return []MetricType{
		MetricVibration,
		MetricTemperature,
		MetricPressure,
		MetricSpeed,
		MetricCurrent,
		MetricVoltage,
		MetricPower,
	}
}

// MetricDataPoint is a single numeric sensor reading.
type MetricDataPoint struct {
	Timestamp  time.Time  `json:"timestamp"`
	MetricType MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
}

// ReadingQuery loads readings for one equipment within [start, end).
type ReadingQuery interface {
	QueryRange(ctx context.Context, equipmentID string, start, end time.Time) ([]MetricDataPoint, error)
}
