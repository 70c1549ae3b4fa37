package assessment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"shipboard-health/internal/telemetry/domain"
)

// AlarmSeverity is the severity of an alarm history record.
type AlarmSeverity string

const (
	AlarmInfo     AlarmSeverity = "info"
	AlarmWarning  AlarmSeverity = "warning"
	AlarmCritical AlarmSeverity = "critical"
)

// Valid returns true when severity is supported.
func (s AlarmSeverity) Valid() bool {
	switch s {
	case AlarmInfo, AlarmWarning, AlarmCritical:
		return true
	default:
		return false
	}
}

// AlarmHistory is a read-only alarm record fed into the diagnosis.
type AlarmHistory struct {
	ID             string               `json:"id"`
	Timestamp      time.Time            `json:"timestamp"`
	AlarmType      string               `json:"alarm_type"`
	Severity       AlarmSeverity        `json:"severity"`
	MetricType     telemetry.MetricType `json:"metric_type"`
	MetricValue    float64              `json:"metric_value"`
	ThresholdValue float64              `json:"threshold_value"`
	Description    string               `json:"description"`
}

// FaultRiskLevel buckets the fault probability.
type FaultRiskLevel string

const (
	RiskLow      FaultRiskLevel = "low"
	RiskMedium   FaultRiskLevel = "medium"
	RiskHigh     FaultRiskLevel = "high"
	RiskCritical FaultRiskLevel = "critical"
)

// Rank orders risk levels from low (1) to critical (4); unknown levels rank 0.
func (r FaultRiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// RecommendationPriority orders recommended actions.
type RecommendationPriority string

const (
	PriorityImmediate RecommendationPriority = "immediate"
	PriorityUrgent    RecommendationPriority = "urgent"
	PriorityNormal    RecommendationPriority = "normal"
	PriorityLow       RecommendationPriority = "low"
)

// FaultPattern is a knowledge-base pattern matched against the evidence.
type FaultPattern struct {
	PatternType     PatternType            `json:"pattern_type"`
	Confidence      float64                `json:"confidence"`
	AffectedMetrics []telemetry.MetricType `json:"affected_metrics"`
	Description     string                 `json:"description"`
}

// SuspectedFault is a likely failure mode with supporting evidence.
type SuspectedFault struct {
	PatternType PatternType `json:"pattern_type"`
	FaultType   string      `json:"fault_type"`
	Probability float64     `json:"probability"`
	RootCauses  []string    `json:"root_causes"`
	Evidences   []string    `json:"evidences"`
}

// Recommendation is a prioritized maintenance action.
type Recommendation struct {
	Priority RecommendationPriority `json:"priority"`
	Action   string                 `json:"action"`
	Reason   string                 `json:"reason"`
}

// FaultDiagnosisResult is the outcome of one diagnosis pass.
type FaultDiagnosisResult struct {
	FaultProbability     float64          `json:"fault_probability"`
	FaultRiskLevel       FaultRiskLevel   `json:"fault_risk_level"`
	DetectedPatterns     []FaultPattern   `json:"detected_patterns"`
	SuspectedFaults      []SuspectedFault `json:"suspected_faults"`
	Recommendations      []Recommendation `json:"recommendations"`
	PredictedFailureTime *time.Time       `json:"predicted_failure_time,omitempty"`
	DiagnosedAt          time.Time        `json:"diagnosed_at"`
}

const (
	criticalAlarmWindow   = 7 * 24 * time.Hour
	relatedAlarmWindow    = 30 * 24 * time.Hour
	recentAnomalyWindow   = 7 * 24 * time.Hour
	periodicityMaxCV      = 0.3
	wearIncreasingShare   = 0.7
	minSequenceAnomalies  = 3
	maxFaultActions       = 3
	failurePredictionFrom = 30.0
)

// FaultDiagnosticEngine matches anomalies and alarms against the static
// knowledge base.
type FaultDiagnosticEngine struct {
	clock Clock
}

// DiagnosisOption customizes the engine.
type DiagnosisOption func(*FaultDiagnosticEngine)

// WithDiagnosisClock assigns a clock.
func WithDiagnosisClock(clock Clock) DiagnosisOption {
	return func(e *FaultDiagnosticEngine) {
		e.clock = clock
	}
}

// NewFaultDiagnosticEngine constructs an engine.
func NewFaultDiagnosticEngine(opts ...DiagnosisOption) *FaultDiagnosticEngine {
	engine := &FaultDiagnosticEngine{clock: SystemClock{}}
	for _, opt := range opts {
		opt(engine)
	}
	engine.clock = clockOrSystem(engine.clock)
	return engine
}

// evidence indexes the diagnosis inputs by metric type.
type evidence struct {
	anomalies map[telemetry.MetricType][]AnomalyPoint
	alarms    map[telemetry.MetricType][]AlarmHistory
}

func newEvidence(anomalies []AnomalyPoint, alarms []AlarmHistory) evidence {
	ev := evidence{
		anomalies: make(map[telemetry.MetricType][]AnomalyPoint),
		alarms:    make(map[telemetry.MetricType][]AlarmHistory),
	}
	for _, anomaly := range anomalies {
		ev.anomalies[anomaly.MetricType] = append(ev.anomalies[anomaly.MetricType], anomaly)
	}
	for _, alarm := range alarms {
		ev.alarms[alarm.MetricType] = append(ev.alarms[alarm.MetricType], alarm)
	}
	return ev
}

func (ev evidence) highCount(metric telemetry.MetricType) int {
	count := 0
	for _, anomaly := range ev.anomalies[metric] {
		if anomaly.Severity.AtLeastHigh() {
			count++
		}
	}
	return count
}

func (ev evidence) belowExpectedCount(metric telemetry.MetricType) int {
	count := 0
	for _, anomaly := range ev.anomalies[metric] {
		if anomaly.Value < anomaly.ExpectedValue {
			count++
		}
	}
	return count
}

func (ev evidence) hasCriticalAlarm(metric telemetry.MetricType) bool {
	for _, alarm := range ev.alarms[metric] {
		if alarm.Severity == AlarmCritical {
			return true
		}
	}
	return false
}

// Diagnose runs pattern detection, probability estimation, recommendation
// generation and failure-time prediction in a single pass.
func (e *FaultDiagnosticEngine) Diagnose(anomalies []AnomalyPoint, alarms []AlarmHistory, currentSOH float64) FaultDiagnosisResult {
	if e == nil {
		e = NewFaultDiagnosticEngine()
	}
	now := e.clock.Now()
	ev := newEvidence(anomalies, alarms)

	patterns := detectPatterns(ev)
	probability := faultProbability(anomalies, alarms, patterns, currentSOH, now)
	risk := RiskLevelFor(probability)
	suspected := suspectedFaults(ev, patterns, now)

	result := FaultDiagnosisResult{
		FaultProbability: probability,
		FaultRiskLevel:   risk,
		DetectedPatterns: patterns,
		SuspectedFaults:  suspected,
		Recommendations:  faultRecommendations(risk, probability, suspected, currentSOH),
		DiagnosedAt:      now,
	}
	if probability >= failurePredictionFrom {
		predicted := predictFailureTime(probability, anomalies, currentSOH, now)
		result.PredictedFailureTime = &predicted
	}
	return result
}

func detectPatterns(ev evidence) []FaultPattern {
	patterns := make([]FaultPattern, 0)
	for _, patternType := range PatternTypes() {
		if !matchesPattern(patternType, ev) {
			continue
		}
		def := knowledgeBase[patternType]
		patterns = append(patterns, FaultPattern{
			PatternType:     patternType,
			Confidence:      calculatePatternConfidence(def, ev),
			AffectedMetrics: affectedMetrics(def, ev),
			Description:     def.DisplayName + ": " + strings.Join(def.Symptoms, ", "),
		})
	}
	return patterns
}

func matchesPattern(patternType PatternType, ev evidence) bool {
	switch patternType {
	case PatternBearingFault:
		return ev.highCount(telemetry.MetricVibration) >= 2 &&
			ev.highCount(telemetry.MetricTemperature) >= 2
	case PatternLubricationFailure:
		return ev.highCount(telemetry.MetricTemperature) >= 3 &&
			ev.belowExpectedCount(telemetry.MetricPressure) >= 2
	case PatternImbalance:
		return isPeriodic(ev.anomalies[telemetry.MetricVibration])
	case PatternElectricalFault:
		return ev.highCount(telemetry.MetricCurrent) >= 2 ||
			ev.highCount(telemetry.MetricVoltage) >= 2
	case PatternOverload:
		return ev.highCount(telemetry.MetricCurrent) >= 3 &&
			ev.highCount(telemetry.MetricTemperature) >= 2
	case PatternWearDegradation:
		return isIncreasing(ev.anomalies[telemetry.MetricVibration])
	default:
		return false
	}
}

// isPeriodic treats evenly spaced anomalies as a periodic signature: the
// time gaps between chronologically ordered anomalies must have a
// coefficient of variation below 0.3. This is a heuristic proxy, not a
// frequency analysis.
func isPeriodic(anomalies []AnomalyPoint) bool {
	if len(anomalies) < minSequenceAnomalies {
		return false
	}
	ordered := chronological(anomalies)
	gaps := make([]float64, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		gaps = append(gaps, ordered[i].Timestamp.Sub(ordered[i-1].Timestamp).Seconds())
	}
	if mean(gaps) <= 0 {
		return false
	}
	return coefficientOfVariation(gaps) < periodicityMaxCV
}

// isIncreasing reports whether at least 70% of consecutive steps rise.
func isIncreasing(anomalies []AnomalyPoint) bool {
	if len(anomalies) < minSequenceAnomalies {
		return false
	}
	ordered := chronological(anomalies)
	rising := 0
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Value > ordered[i-1].Value {
			rising++
		}
	}
	return float64(rising)/float64(len(ordered)-1) >= wearIncreasingShare
}

func chronological(anomalies []AnomalyPoint) []AnomalyPoint {
	ordered := make([]AnomalyPoint, len(anomalies))
	copy(ordered, anomalies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered
}

func calculatePatternConfidence(def PatternDefinition, ev evidence) float64 {
	confidence := 0.5
	for _, metric := range def.IndicatorMetrics {
		count := len(ev.anomalies[metric])
		if count > 0 {
			confidence += 0.1
		}
		if count > 3 {
			confidence += 0.1
		}
		if ev.hasCriticalAlarm(metric) {
			confidence += 0.15
		}
	}
	return math.Min(1, confidence)
}

func affectedMetrics(def PatternDefinition, ev evidence) []telemetry.MetricType {
	var metrics []telemetry.MetricType
	for _, metric := range def.IndicatorMetrics {
		if len(ev.anomalies[metric]) > 0 || len(ev.alarms[metric]) > 0 {
			metrics = append(metrics, metric)
		}
	}
	if len(metrics) == 0 {
		metrics = append(metrics, def.IndicatorMetrics...)
	}
	return metrics
}

func faultProbability(anomalies []AnomalyPoint, alarms []AlarmHistory, patterns []FaultPattern, currentSOH float64, now time.Time) float64 {
	probability := 0.0
	switch {
	case currentSOH < 40:
		probability += 50
	case currentSOH < 60:
		probability += 30
	case currentSOH < 80:
		probability += 10
	}

	for _, anomaly := range anomalies {
		switch anomaly.Severity {
		case AnomalyCritical:
			probability += 5
		case AnomalyHigh:
			probability += 2
		}
	}

	recentCritical := 0
	cutoff := now.Add(-criticalAlarmWindow)
	for _, alarm := range alarms {
		if alarm.Severity == AlarmCritical && !alarm.Timestamp.Before(cutoff) {
			recentCritical++
		}
	}
	probability += math.Min(20, float64(3*recentCritical))

	maxConfidence := 0.0
	for _, pattern := range patterns {
		maxConfidence = math.Max(maxConfidence, pattern.Confidence)
	}
	if len(patterns) > 0 {
		probability += 20 * maxConfidence
	}
	// reported with two decimals
	return clampScore(math.Round(probability*100) / 100)
}

// RiskLevelFor maps a fault probability to a risk level.
func RiskLevelFor(probability float64) FaultRiskLevel {
	switch {
	case probability >= 80:
		return RiskCritical
	case probability >= 60:
		return RiskHigh
	case probability >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

func suspectedFaults(ev evidence, patterns []FaultPattern, now time.Time) []SuspectedFault {
	faults := make([]SuspectedFault, 0, len(patterns))
	cutoff := now.Add(-relatedAlarmWindow)
	for _, pattern := range patterns {
		def, ok := knowledgeBase[pattern.PatternType]
		if !ok {
			continue
		}
		var evidences []string
		related := 0
		for _, metric := range def.IndicatorMetrics {
			metricAnomalies := ev.anomalies[metric]
			if len(metricAnomalies) > 0 {
				evidences = append(evidences, fmt.Sprintf("%s had %d anomalies", metric, len(metricAnomalies)))
				peak := peakValue(metricAnomalies)
				if threshold, ok := def.Thresholds[metric]; ok && peak > threshold {
					evidences = append(evidences, fmt.Sprintf("%s peaked at %.2f (threshold %.2f)", metric, peak, threshold))
				}
			}
			for _, alarm := range ev.alarms[metric] {
				if !alarm.Timestamp.Before(cutoff) {
					related++
				}
			}
		}
		if related > 0 {
			evidences = append(evidences, fmt.Sprintf("%d related alarms in last 30 days", related))
		}
		faults = append(faults, SuspectedFault{
			PatternType: pattern.PatternType,
			FaultType:   def.DisplayName,
			Probability: pattern.Confidence * 100,
			RootCauses:  append([]string(nil), def.RootCauses...),
			Evidences:   evidences,
		})
	}
	sort.SliceStable(faults, func(i, j int) bool {
		if faults[i].Probability != faults[j].Probability {
			return faults[i].Probability > faults[j].Probability
		}
		return faults[i].FaultType < faults[j].FaultType
	})
	return faults
}

func peakValue(anomalies []AnomalyPoint) float64 {
	peak := math.Inf(-1)
	for _, anomaly := range anomalies {
		peak = math.Max(peak, anomaly.Value)
	}
	return peak
}

func faultRecommendations(risk FaultRiskLevel, probability float64, faults []SuspectedFault, currentSOH float64) []Recommendation {
	var out []Recommendation
	switch risk {
	case RiskCritical:
		out = append(out,
			Recommendation{
				Priority: PriorityImmediate,
				Action:   "Stop the equipment and carry out an emergency inspection",
				Reason:   fmt.Sprintf("Fault probability %.0f%% is critical", probability),
			},
			Recommendation{
				Priority: PriorityImmediate,
				Action:   "Notify the chief engineer and prepare spare parts",
				Reason:   "Failure may be imminent",
			})
	case RiskHigh:
		out = append(out, Recommendation{
			Priority: PriorityUrgent,
			Action:   "Schedule a detailed inspection within 24 hours",
			Reason:   fmt.Sprintf("Fault probability %.0f%% is high", probability),
		})
	case RiskMedium:
		out = append(out, Recommendation{
			Priority: PriorityNormal,
			Action:   "Plan an inspection at the next maintenance window",
			Reason:   fmt.Sprintf("Fault probability %.0f%% is elevated", probability),
		})
	}

	added := 0
	for _, fault := range faults {
		if added >= maxFaultActions {
			break
		}
		action, ok := actionForFault(fault.FaultType)
		if !ok {
			continue
		}
		priority := PriorityNormal
		if fault.Probability >= 70 {
			priority = PriorityUrgent
		}
		out = append(out, Recommendation{
			Priority: priority,
			Action:   action,
			Reason:   fmt.Sprintf("Suspected %s (%.0f%%)", fault.FaultType, fault.Probability),
		})
		added++
	}

	if currentSOH < 50 {
		out = append(out, Recommendation{
			Priority: PriorityUrgent,
			Action:   "Carry out a full health check of the equipment",
			Reason:   fmt.Sprintf("State of health %.1f is below 50", currentSOH),
		})
	}

	out = append(out, Recommendation{
		Priority: PriorityLow,
		Action:   "Continue monitoring key metrics and review trends regularly",
		Reason:   "Early detection of developing faults",
	})
	return out
}

func actionForFault(faultType string) (string, bool) {
	for _, entry := range faultActions {
		if strings.Contains(faultType, entry.keyword) {
			return entry.action, true
		}
	}
	return "", false
}

// predictFailureTime extrapolates the remaining margin at an escalating
// daily deterioration rate. The result is always at least one day ahead.
func predictFailureTime(probability float64, anomalies []AnomalyPoint, currentSOH float64, now time.Time) time.Time {
	remaining := 100 - probability

	recent := 0
	cutoff := now.Add(-recentAnomalyWindow)
	for _, anomaly := range anomalies {
		if !anomaly.Timestamp.Before(cutoff) {
			recent++
		}
	}

	rate := 1.0
	switch {
	case recent > 5:
		rate = 3
	case recent > 2:
		rate = 2
	}
	switch {
	case currentSOH < 40:
		rate *= 1.5
	case currentSOH < 60:
		rate *= 1.2
	}

	days := int(math.Ceil(remaining / rate))
	if days < 1 {
		days = 1
	}
	return now.Add(time.Duration(days) * 24 * time.Hour)
}
