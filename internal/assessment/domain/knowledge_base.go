package assessment

import "shipboard-health/internal/telemetry/domain"

// PatternType names a fault pattern in the knowledge base.
type PatternType string

const (
	PatternBearingFault       PatternType = "bearingFault"
	PatternLubricationFailure PatternType = "lubricationFailure"
	PatternImbalance          PatternType = "imbalance"
	PatternElectricalFault    PatternType = "electricalFault"
	PatternOverload           PatternType = "overload"
	PatternWearDegradation    PatternType = "wearDegradation"
)

// PatternTypes lists every pattern in evaluation order.
func PatternTypes() []PatternType {
	return []PatternType{
		PatternBearingFault,
		PatternLubricationFailure,
		PatternImbalance,
		PatternElectricalFault,
		PatternOverload,
		PatternWearDegradation,
	}
}

// Valid returns true when the pattern type is in the knowledge base.
func (p PatternType) Valid() bool {
	_, ok := knowledgeBase[p]
	return ok
}

// PatternDefinition is the static description of a fault pattern.
type PatternDefinition struct {
	DisplayName      string
	IndicatorMetrics []telemetry.MetricType
	// Thresholds are peak values above which a metric counts as evidence.
	Thresholds map[telemetry.MetricType]float64
	Symptoms   []string
	RootCauses []string
}

var knowledgeBase = map[PatternType]PatternDefinition{
	PatternBearingFault: {
		DisplayName:      "Bearing Fault",
		IndicatorMetrics: []telemetry.MetricType{telemetry.MetricVibration, telemetry.MetricTemperature},
		Thresholds: map[telemetry.MetricType]float64{
			telemetry.MetricVibration:   7.1,
			telemetry.MetricTemperature: 85,
		},
		Symptoms: []string{"high vibration", "elevated bearing temperature", "abnormal noise"},
		RootCauses: []string{
			"Bearing wear or fatigue",
			"Insufficient or contaminated lubrication",
			"Shaft misalignment",
		},
	},
	PatternLubricationFailure: {
		DisplayName:      "Lubrication Failure",
		IndicatorMetrics: []telemetry.MetricType{telemetry.MetricTemperature, telemetry.MetricPressure},
		Thresholds: map[telemetry.MetricType]float64{
			telemetry.MetricTemperature: 80,
		},
		Symptoms: []string{"rising temperature", "low oil pressure"},
		RootCauses: []string{
			"Low lubricant level or leakage",
			"Degraded lubricant quality",
			"Blocked oil passages or failed oil pump",
		},
	},
	PatternImbalance: {
		DisplayName:      "Rotor Imbalance",
		IndicatorMetrics: []telemetry.MetricType{telemetry.MetricVibration},
		Thresholds: map[telemetry.MetricType]float64{
			telemetry.MetricVibration: 4.5,
		},
		Symptoms: []string{"periodic vibration peaks", "vibration at running speed"},
		RootCauses: []string{
			"Uneven mass distribution on rotating parts",
			"Loose or missing components on the rotor",
			"Deposits accumulated on impeller or fan",
		},
	},
	PatternElectricalFault: {
		DisplayName:      "Electrical Fault",
		IndicatorMetrics: []telemetry.MetricType{telemetry.MetricCurrent, telemetry.MetricVoltage},
		Thresholds: map[telemetry.MetricType]float64{
			telemetry.MetricCurrent: 100,
			telemetry.MetricVoltage: 420,
		},
		Symptoms: []string{"current fluctuation", "voltage instability"},
		RootCauses: []string{
			"Insulation degradation",
			"Loose or corroded connections",
			"Power supply instability",
		},
	},
	PatternOverload: {
		DisplayName:      "Overload",
		IndicatorMetrics: []telemetry.MetricType{telemetry.MetricCurrent, telemetry.MetricTemperature},
		Thresholds: map[telemetry.MetricType]float64{
			telemetry.MetricCurrent:     100,
			telemetry.MetricTemperature: 75,
		},
		Symptoms: []string{"sustained high current", "rising winding temperature"},
		RootCauses: []string{
			"Operating load above rated capacity",
			"Mechanical binding in the driven equipment",
			"Incorrect operating parameters",
		},
	},
	PatternWearDegradation: {
		DisplayName:      "Wear Degradation",
		IndicatorMetrics: []telemetry.MetricType{telemetry.MetricVibration},
		Thresholds: map[telemetry.MetricType]float64{
			telemetry.MetricVibration: 4.5,
		},
		Symptoms: []string{"gradually increasing vibration"},
		RootCauses: []string{
			"Normal wear of moving parts",
			"Extended service beyond the maintenance interval",
			"Operation in harsh conditions",
		},
	},
}

// Definition returns the knowledge-base entry for a pattern type.
func (p PatternType) Definition() (PatternDefinition, bool) {
	def, ok := knowledgeBase[p]
	return def, ok
}

// KnowledgeBase returns a copy of the static pattern table.
func KnowledgeBase() map[PatternType]PatternDefinition {
	out := make(map[PatternType]PatternDefinition, len(knowledgeBase))
	for key, def := range knowledgeBase {
		thresholds := make(map[telemetry.MetricType]float64, len(def.Thresholds))
		for metric, value := range def.Thresholds {
			thresholds[metric] = value
		}
		def.Thresholds = thresholds
		def.IndicatorMetrics = append([]telemetry.MetricType(nil), def.IndicatorMetrics...)
		def.Symptoms = append([]string(nil), def.Symptoms...)
		def.RootCauses = append([]string(nil), def.RootCauses...)
		out[key] = def
	}
	return out
}

// faultActions are keyed by a substring of the display name.
var faultActions = []struct {
	keyword string
	action  string
}{
	{keyword: "Bearing", action: "Inspect bearings and lubrication; replace damaged bearings"},
	{keyword: "Lubrication", action: "Check lubricant level and quality; replenish or change the oil"},
	{keyword: "Imbalance", action: "Perform dynamic balancing of the rotating assembly"},
	{keyword: "Electrical", action: "Inspect wiring, insulation and the power supply"},
	{keyword: "Overload", action: "Reduce the load and verify operating parameters"},
	{keyword: "Wear", action: "Measure component wear and plan part replacement"},
}
