package assessment

import "shipboard-health/internal/telemetry/domain"

// Band is an inclusive value range.
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// ThresholdProfile holds the nested bands for one metric type. Values outside
// the warning band are critical.
type ThresholdProfile struct {
	Optimal Band `yaml:"optimal" json:"optimal"`
	Normal  Band `yaml:"normal" json:"normal"`
	Warning Band `yaml:"warning" json:"warning"`
}

// HealthBand is the classification of a metric mean against its profile.
type HealthBand string

const (
	BandOptimal  HealthBand = "optimal"
	BandNormal   HealthBand = "normal"
	BandWarning  HealthBand = "warning"
	BandCritical HealthBand = "critical"
	BandUnknown  HealthBand = "unknown"
)

const (
	scoreOptimal  = 0.95
	scoreNormal   = 0.80
	scoreWarning  = 0.55
	scoreCritical = 0.20
	scoreUnknown  = 0.50
)

// Classify places v into a band.
func (p ThresholdProfile) Classify(v float64) HealthBand {
	switch {
	case p.Optimal.Contains(v):
		return BandOptimal
	case p.Normal.Contains(v):
		return BandNormal
	case p.Warning.Contains(v):
		return BandWarning
	default:
		return BandCritical
	}
}

// BaseScore returns the score attached to a band.
func (b HealthBand) BaseScore() float64 {
	switch b {
	case BandOptimal:
		return scoreOptimal
	case BandNormal:
		return scoreNormal
	case BandWarning:
		return scoreWarning
	case BandCritical:
		return scoreCritical
	default:
		return scoreUnknown
	}
}

// DefaultThresholdProfiles returns the built-in bands. Units are mm/s, °C,
// bar, rpm, A, V and kW.
func DefaultThresholdProfiles() map[telemetry.MetricType]ThresholdProfile {
	return map[telemetry.MetricType]ThresholdProfile{
		telemetry.MetricVibration: {
			Optimal: Band{Min: 0, Max: 2.5},
			Normal:  Band{Min: 0, Max: 4.5},
			Warning: Band{Min: 0, Max: 7.1},
		},
		telemetry.MetricTemperature: {
			Optimal: Band{Min: 20, Max: 60},
			Normal:  Band{Min: 10, Max: 75},
			Warning: Band{Min: 0, Max: 90},
		},
		telemetry.MetricPressure: {
			Optimal: Band{Min: 2, Max: 6},
			Normal:  Band{Min: 1.5, Max: 7},
			Warning: Band{Min: 1, Max: 8},
		},
		telemetry.MetricSpeed: {
			Optimal: Band{Min: 1400, Max: 1600},
			Normal:  Band{Min: 1200, Max: 1800},
			Warning: Band{Min: 1000, Max: 2000},
		},
		telemetry.MetricCurrent: {
			Optimal: Band{Min: 0, Max: 80},
			Normal:  Band{Min: 0, Max: 100},
			Warning: Band{Min: 0, Max: 120},
		},
		telemetry.MetricVoltage: {
			Optimal: Band{Min: 370, Max: 410},
			Normal:  Band{Min: 360, Max: 420},
			Warning: Band{Min: 342, Max: 440},
		},
		telemetry.MetricPower: {
			Optimal: Band{Min: 0, Max: 75},
			Normal:  Band{Min: 0, Max: 90},
			Warning: Band{Min: 0, Max: 110},
		},
	}
}

// DefaultMetricWeight applies to metric types missing from the weight table.
const DefaultMetricWeight = 0.05

// DefaultSOHWeights returns the built-in per-metric weights.
func DefaultSOHWeights() map[telemetry.MetricType]float64 {
	return map[telemetry.MetricType]float64{
		telemetry.MetricVibration:   0.25,
		telemetry.MetricTemperature: 0.20,
		telemetry.MetricPressure:    0.15,
		telemetry.MetricSpeed:       0.15,
		telemetry.MetricCurrent:     0.10,
		telemetry.MetricVoltage:     0.10,
		telemetry.MetricPower:       0.05,
	}
}
