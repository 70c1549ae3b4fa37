package assessment

import (
	"math"
	"sort"
	"time"

	equipment "shipboard-health/internal/equipment/domain"
)

// Grade is the letter-style bucket of a health index.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
	GradeCritical  Grade = "Critical"
)

const (
	neutralTrendScore    = 70.0
	baseMaintenanceScore = 70.0
	noMaintenanceScore   = 40.0
	recentTrendPoints    = 5
	hoursPerDay          = 24.0
	daysPerYear          = 365.0
)

// SOHTrendPoint is one sampled SOH value.
type SOHTrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	SOHValue  float64   `json:"soh_value"`
}

// HealthFactors are the four component scores, each in [0,100].
type HealthFactors struct {
	SOHScore         float64 `json:"soh_score"`
	TrendScore       float64 `json:"trend_score"`
	AlarmScore       float64 `json:"alarm_score"`
	MaintenanceScore float64 `json:"maintenance_score"`
}

// HealthIndexWeights weigh the factors; they sum to 1.
type HealthIndexWeights struct {
	SOH         float64 `json:"soh" yaml:"soh"`
	Trend       float64 `json:"trend" yaml:"trend"`
	Alarm       float64 `json:"alarm" yaml:"alarm"`
	Maintenance float64 `json:"maintenance" yaml:"maintenance"`
}

// DefaultHealthIndexWeights returns soh .40, trend .25, alarm .20, maintenance .15.
func DefaultHealthIndexWeights() HealthIndexWeights {
	return HealthIndexWeights{SOH: 0.40, Trend: 0.25, Alarm: 0.20, Maintenance: 0.15}
}

// HealthIndexWeightOverrides replaces any subset of the weights.
type HealthIndexWeightOverrides struct {
	SOH         *float64 `json:"soh,omitempty" yaml:"soh"`
	Trend       *float64 `json:"trend,omitempty" yaml:"trend"`
	Alarm       *float64 `json:"alarm,omitempty" yaml:"alarm"`
	Maintenance *float64 `json:"maintenance,omitempty" yaml:"maintenance"`
}

// Apply merges the overrides into base and normalises the result to sum to 1.
// The base weights are returned unchanged when the merged sum is not positive.
func (o *HealthIndexWeightOverrides) Apply(base HealthIndexWeights) HealthIndexWeights {
	merged := base
	if o != nil {
		if o.SOH != nil && *o.SOH >= 0 {
			merged.SOH = *o.SOH
		}
		if o.Trend != nil && *o.Trend >= 0 {
			merged.Trend = *o.Trend
		}
		if o.Alarm != nil && *o.Alarm >= 0 {
			merged.Alarm = *o.Alarm
		}
		if o.Maintenance != nil && *o.Maintenance >= 0 {
			merged.Maintenance = *o.Maintenance
		}
	}
	sum := merged.SOH + merged.Trend + merged.Alarm + merged.Maintenance
	if sum <= 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return base
	}
	return HealthIndexWeights{
		SOH:         merged.SOH / sum,
		Trend:       merged.Trend / sum,
		Alarm:       merged.Alarm / sum,
		Maintenance: merged.Maintenance / sum,
	}
}

// HealthIndexResult is the composite health index of one equipment.
type HealthIndexResult struct {
	HealthIndex     float64            `json:"health_index"`
	Grade           Grade              `json:"grade"`
	Factors         HealthFactors      `json:"factors"`
	Weights         HealthIndexWeights `json:"weights"`
	Recommendations []string           `json:"recommendations"`
	CalculatedAt    time.Time          `json:"calculated_at"`
}

// HealthIndexEvaluator blends SOH, its trend, alarm frequency and
// maintenance history.
type HealthIndexEvaluator struct {
	weights HealthIndexWeights
	clock   Clock
}

// HealthIndexOption customizes the evaluator.
type HealthIndexOption func(*HealthIndexEvaluator)

// WithHealthIndexWeights replaces the default weights.
func WithHealthIndexWeights(weights HealthIndexWeights) HealthIndexOption {
	return func(e *HealthIndexEvaluator) {
		e.weights = (&HealthIndexWeightOverrides{
			SOH:         &weights.SOH,
			Trend:       &weights.Trend,
			Alarm:       &weights.Alarm,
			Maintenance: &weights.Maintenance,
		}).Apply(DefaultHealthIndexWeights())
	}
}

// WithHealthIndexClock assigns a clock.
func WithHealthIndexClock(clock Clock) HealthIndexOption {
	return func(e *HealthIndexEvaluator) {
		e.clock = clock
	}
}

// NewHealthIndexEvaluator constructs an evaluator.
func NewHealthIndexEvaluator(opts ...HealthIndexOption) *HealthIndexEvaluator {
	evaluator := &HealthIndexEvaluator{
		weights: DefaultHealthIndexWeights(),
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(evaluator)
	}
	evaluator.clock = clockOrSystem(evaluator.clock)
	return evaluator
}

// Evaluate computes the health index.
func (e *HealthIndexEvaluator) Evaluate(currentSOH float64, trend []SOHTrendPoint, stats equipment.Statistics, overrides *HealthIndexWeightOverrides) HealthIndexResult {
	if e == nil {
		e = NewHealthIndexEvaluator()
	}
	now := e.clock.Now()
	factors := HealthFactors{
		SOHScore:         clampScore(currentSOH),
		TrendScore:       TrendScore(trend),
		AlarmScore:       AlarmScore(stats),
		MaintenanceScore: MaintenanceScore(stats, now),
	}
	weights := overrides.Apply(e.weights)
	index := clampScore(factors.SOHScore*weights.SOH +
		factors.TrendScore*weights.Trend +
		factors.AlarmScore*weights.Alarm +
		factors.MaintenanceScore*weights.Maintenance)

	return HealthIndexResult{
		HealthIndex:     index,
		Grade:           GradeFor(index),
		Factors:         factors,
		Weights:         weights,
		Recommendations: healthRecommendations(index, factors),
		CalculatedAt:    now,
	}
}

// TrendScore rates the sampled SOH trend; fewer than two points score 70.
func TrendScore(trend []SOHTrendPoint) float64 {
	if len(trend) < 2 {
		return neutralTrendScore
	}
	ordered := make([]SOHTrendPoint, len(trend))
	copy(ordered, trend)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	origin := ordered[0].Timestamp
	days := make([]float64, len(ordered))
	sohValues := make([]float64, len(ordered))
	for i, point := range ordered {
		days[i] = point.Timestamp.Sub(origin).Hours() / hoursPerDay
		sohValues[i] = point.SOHValue
	}

	score := neutralTrendScore
	if slope, ok := linearSlope(days, sohValues); ok {
		switch {
		case slope > 0.1:
			score += 20
		case slope < -0.1:
			score -= 20
		}
	}

	cv := coefficientOfVariation(sohValues)
	switch {
	case cv < 0.1:
		score += 10
	case cv > 0.3:
		score -= 10
	}

	if len(sohValues) >= recentTrendPoints {
		recent := sohValues[len(sohValues)-recentTrendPoints:]
		first := recent[0]
		last := recent[len(recent)-1]
		if first != 0 && (last-first)/first < -0.05 {
			score -= 15
		}
	}
	return clampScore(score)
}

// AlarmScore rates alarm frequency per 100 running hours and the share of
// critical alarms.
func AlarmScore(stats equipment.Statistics) float64 {
	rate := 0.0
	if stats.TotalRunningHours > 0 {
		rate = float64(stats.TotalAlarmCount) / (stats.TotalRunningHours / 100)
	}

	var score float64
	switch {
	case rate <= 0.5:
		score = 95
	case rate <= 1:
		score = 85
	case rate <= 2:
		score = 70
	case rate <= 5:
		score = 50
	default:
		score = 30
	}

	if stats.TotalAlarmCount > 0 {
		criticalRatio := float64(stats.CriticalAlarmCount) / float64(stats.TotalAlarmCount)
		score -= clamp01(criticalRatio) * 20
	}
	return clampScore(score)
}

// MaintenanceScore rates maintenance frequency over the equipment age and
// the time since the last maintenance.
func MaintenanceScore(stats equipment.Statistics, now time.Time) float64 {
	if stats.LastMaintenanceDate == nil || stats.MaintenanceCount <= 0 {
		return noMaintenanceScore
	}

	score := baseMaintenanceScore
	if !stats.InstallationDate.IsZero() {
		ageYears := now.Sub(stats.InstallationDate).Hours() / hoursPerDay / daysPerYear
		if ageYears > 0 {
			perYear := float64(stats.MaintenanceCount) / ageYears
			switch {
			case perYear >= 2:
				score = 95
			case perYear >= 1:
				score = 85
			case perYear >= 0.5:
				score = 70
			default:
				score = 50
			}
		}
	}

	daysSince := now.Sub(*stats.LastMaintenanceDate).Hours() / hoursPerDay
	switch {
	case daysSince > 365:
		score -= 20
	case daysSince > 180:
		score -= 10
	}
	return clampScore(score)
}

// GradeFor maps a health index to a grade.
func GradeFor(index float64) Grade {
	switch {
	case index >= 90:
		return GradeExcellent
	case index >= 75:
		return GradeGood
	case index >= 60:
		return GradeFair
	case index >= 40:
		return GradePoor
	default:
		return GradeCritical
	}
}

func healthRecommendations(index float64, factors HealthFactors) []string {
	var out []string

	switch {
	case index < 40:
		out = append(out,
			"Health index is critical: schedule a comprehensive inspection immediately.",
			"Prepare contingency plans and spare parts in case of failure.")
	case index < 60:
		out = append(out, "Health index is declining: plan a detailed inspection in the near term.")
	}

	switch {
	case factors.SOHScore < 40:
		out = append(out,
			"State of health is low: inspect key components and replace worn parts.",
			"Reduce operating load until the inspection is complete.")
	case factors.SOHScore < 60:
		out = append(out, "State of health is below normal: check the metrics outside their normal bands.")
	}

	switch {
	case factors.TrendScore < 40:
		out = append(out,
			"Health trend is deteriorating quickly: increase monitoring frequency.",
			"Investigate the root cause of the recent decline.")
	case factors.TrendScore < 60:
		out = append(out, "Health trend is degrading: increase monitoring frequency.")
	}

	switch {
	case factors.AlarmScore < 50:
		out = append(out,
			"Alarm frequency is high: review alarm causes and resolve recurring faults.",
			"Verify alarm thresholds are configured correctly.")
	case factors.AlarmScore < 70:
		out = append(out, "Alarm frequency is elevated: review recent alarm history.")
	}

	switch {
	case factors.MaintenanceScore < 50:
		out = append(out,
			"Maintenance is overdue or missing: schedule preventive maintenance.",
			"Establish a regular maintenance plan for this equipment.")
	case factors.MaintenanceScore < 70:
		out = append(out, "Maintenance interval is long: bring the next scheduled maintenance forward.")
	}

	if len(out) == 0 {
		out = append(out, "Equipment is in good condition: continue routine monitoring and maintenance.")
	}
	return out
}
