package assessment

import (
	"testing"
	"time"

	equipment "shipboard-health/internal/equipment/domain"
)

func trendPoints(start time.Time, values ...float64) []SOHTrendPoint {
	points := make([]SOHTrendPoint, len(values))
	for i, value := range values {
		points[i] = SOHTrendPoint{Timestamp: start.Add(time.Duration(i) * 24 * time.Hour), SOHValue: value}
	}
	return points
}

func daysAgo(days int) *time.Time {
	at := testNow.Add(-time.Duration(days) * 24 * time.Hour)
	return &at
}

func TestTrendScore(t *testing.T) {
	start := testNow.Add(-10 * 24 * time.Hour)
	cases := []struct {
		name  string
		trend []SOHTrendPoint
		want  float64
	}{
		{name: "empty", trend: nil, want: 70},
		{name: "single point", trend: trendPoints(start, 42), want: 70},
		{name: "flat", trend: trendPoints(start, 80, 80, 80), want: 80},
		{name: "improving", trend: trendPoints(start, 60, 70, 80), want: 90},
		{name: "declining", trend: trendPoints(start, 90, 85, 80, 75, 70), want: 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrendScore(tc.trend); !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTrendScoreSortsByTimestamp(t *testing.T) {
	ordered := trendPoints(testNow, 90, 85, 80, 75, 70)
	shuffled := []SOHTrendPoint{ordered[3], ordered[0], ordered[4], ordered[2], ordered[1]}
	if a, b := TrendScore(ordered), TrendScore(shuffled); a != b {
		t.Fatalf("expected order independence, got %v and %v", a, b)
	}
}

func TestAlarmScore(t *testing.T) {
	cases := []struct {
		name  string
		stats equipment.Statistics
		want  float64
	}{
		{name: "no running hours", stats: equipment.Statistics{TotalAlarmCount: 50}, want: 95},
		{name: "quiet", stats: equipment.Statistics{TotalRunningHours: 1000}, want: 95},
		{name: "half critical", stats: equipment.Statistics{TotalRunningHours: 1000, TotalAlarmCount: 10, CriticalAlarmCount: 5}, want: 75},
		{name: "noisy all critical", stats: equipment.Statistics{TotalRunningHours: 100, TotalAlarmCount: 10, CriticalAlarmCount: 10}, want: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AlarmScore(tc.stats); !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMaintenanceScore(t *testing.T) {
	installed := testNow.Add(-730 * 24 * time.Hour)
	cases := []struct {
		name  string
		stats equipment.Statistics
		want  float64
	}{
		{name: "never maintained", stats: equipment.Statistics{InstallationDate: installed}, want: 40},
		{name: "zero count", stats: equipment.Statistics{InstallationDate: installed, LastMaintenanceDate: daysAgo(10)}, want: 40},
		{name: "frequent recent", stats: equipment.Statistics{InstallationDate: installed, MaintenanceCount: 4, LastMaintenanceDate: daysAgo(30)}, want: 95},
		{name: "frequent stale", stats: equipment.Statistics{InstallationDate: installed, MaintenanceCount: 4, LastMaintenanceDate: daysAgo(200)}, want: 85},
		{name: "rare overdue", stats: equipment.Statistics{InstallationDate: installed, MaintenanceCount: 1, LastMaintenanceDate: daysAgo(400)}, want: 50},
		{name: "unknown age", stats: equipment.Statistics{MaintenanceCount: 3, LastMaintenanceDate: daysAgo(30)}, want: 70},
		{name: "future install", stats: equipment.Statistics{InstallationDate: testNow.Add(time.Hour), MaintenanceCount: 3, LastMaintenanceDate: daysAgo(1)}, want: 70},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaintenanceScore(tc.stats, testNow); !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGradeFor(t *testing.T) {
	cases := []struct {
		index float64
		want  Grade
	}{
		{100, GradeExcellent},
		{90, GradeExcellent},
		{89.99, GradeGood},
		{75, GradeGood},
		{60, GradeFair},
		{59.9, GradePoor},
		{40, GradePoor},
		{39.9, GradeCritical},
		{0, GradeCritical},
	}
	for _, tc := range cases {
		if got := GradeFor(tc.index); got != tc.want {
			t.Fatalf("index %v: expected %s, got %s", tc.index, tc.want, got)
		}
	}
}

func TestEvaluateHealthyEquipment(t *testing.T) {
	evaluator := NewHealthIndexEvaluator(WithHealthIndexClock(fixedClock{now: testNow}))
	stats := equipment.Statistics{
		TotalRunningHours:   1000,
		InstallationDate:    testNow.Add(-365 * 24 * time.Hour),
		MaintenanceCount:    2,
		LastMaintenanceDate: daysAgo(10),
	}
	result := evaluator.Evaluate(100, trendPoints(testNow.Add(-48*time.Hour), 95, 97), stats, nil)

	if !almostEqual(result.HealthIndex, 98.25, 1e-9) {
		t.Fatalf("expected index 98.25, got %v", result.HealthIndex)
	}
	if result.Grade != GradeExcellent {
		t.Fatalf("expected excellent, got %s", result.Grade)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("expected single good-condition line, got %v", result.Recommendations)
	}
	if !result.CalculatedAt.Equal(testNow) {
		t.Fatalf("unexpected calculated at %s", result.CalculatedAt)
	}
}

func TestEvaluateWeightOverrides(t *testing.T) {
	evaluator := NewHealthIndexEvaluator(WithHealthIndexClock(fixedClock{now: testNow}))
	one, zero := 1.0, 0.0
	overrides := &HealthIndexWeightOverrides{SOH: &one, Trend: &zero, Alarm: &zero, Maintenance: &zero}

	result := evaluator.Evaluate(63, nil, equipment.Statistics{}, overrides)
	if !almostEqual(result.HealthIndex, 63, 1e-9) {
		t.Fatalf("expected index equal to soh, got %v", result.HealthIndex)
	}

	allZero := &HealthIndexWeightOverrides{SOH: &zero, Trend: &zero, Alarm: &zero, Maintenance: &zero}
	result = evaluator.Evaluate(63, nil, equipment.Statistics{}, allZero)
	if result.Weights != DefaultHealthIndexWeights() {
		t.Fatalf("expected default weights, got %+v", result.Weights)
	}
}

func TestHealthIndexWeightOverridesNormalise(t *testing.T) {
	half := 0.5
	weights := (&HealthIndexWeightOverrides{SOH: &half}).Apply(DefaultHealthIndexWeights())
	sum := weights.SOH + weights.Trend + weights.Alarm + weights.Maintenance
	if !almostEqual(sum, 1, 1e-12) {
		t.Fatalf("expected weights to sum to 1, got %v", sum)
	}
	if !almostEqual(weights.SOH, 0.5/1.1, 1e-12) {
		t.Fatalf("unexpected soh weight %v", weights.SOH)
	}
}

func TestEvaluateBoundsAndRecommendations(t *testing.T) {
	evaluator := NewHealthIndexEvaluator(WithHealthIndexClock(fixedClock{now: testNow}))
	stressed := equipment.Statistics{TotalRunningHours: 10, TotalAlarmCount: 100, CriticalAlarmCount: 100}
	for _, soh := range []float64{-20, 0, 35, 250} {
		result := evaluator.Evaluate(soh, trendPoints(testNow, 90, 60, 30, 20, 5), stressed, nil)
		if !finite(result.HealthIndex) || result.HealthIndex < 0 || result.HealthIndex > 100 {
			t.Fatalf("soh %v: index out of bounds %v", soh, result.HealthIndex)
		}
		if len(result.Recommendations) == 0 {
			t.Fatalf("soh %v: expected recommendations", soh)
		}
		if result.Grade != GradeFor(result.HealthIndex) {
			t.Fatalf("soh %v: grade mismatch", soh)
		}
	}
}
