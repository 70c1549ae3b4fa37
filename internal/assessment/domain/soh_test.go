package assessment

import (
	"math"
	"testing"
	"time"

	"shipboard-health/internal/telemetry/domain"
)

func TestCalculateSOHEmpty(t *testing.T) {
	result := CalculateSOH(nil, nil)
	if result.SOH != 0 || result.Confidence != 0 {
		t.Fatalf("expected zero result, got soh=%v confidence=%v", result.SOH, result.Confidence)
	}
	if result.Contributions == nil {
		t.Fatalf("expected non-nil contributions")
	}
}

func TestSOHWeightedSumIdentity(t *testing.T) {
	readings := append(
		series(telemetry.MetricVibration, testNow, time.Minute, repeat(5, 10)...),
		series(telemetry.MetricTemperature, testNow, time.Minute, 48, 50, 52, 50)...,
	)
	readings = append(readings, series("oil_quality", testNow, time.Minute, 3, 3, 3)...)

	calc := NewSOHCalculator(WithSOHClock(fixedClock{now: testNow}))
	result := calc.Calculate(GroupByMetric(readings), nil)

	var sum, weights float64
	for _, contribution := range result.Contributions {
		if !almostEqual(contribution.Contribution, contribution.Score*contribution.Weight, 1e-12) {
			t.Fatalf("contribution mismatch: %+v", contribution)
		}
		sum += contribution.Contribution
		weights += contribution.Weight
	}
	if want := 100 * sum / weights; !almostEqual(result.SOH, want, 1e-9) {
		t.Fatalf("expected soh %v, got %v", want, result.SOH)
	}
	if !result.CalculatedAt.Equal(testNow) {
		t.Fatalf("expected calculated at %s, got %s", testNow, result.CalculatedAt)
	}

	vibration := result.Contributions[telemetry.MetricVibration]
	if vibration.Band != BandWarning || !almostEqual(vibration.Score, 0.55, 1e-12) || vibration.Weight != 0.25 {
		t.Fatalf("unexpected vibration contribution %+v", vibration)
	}
	unknown := result.Contributions["oil_quality"]
	if unknown.Band != BandUnknown || !almostEqual(unknown.Score, 0.5, 1e-12) || unknown.Weight != DefaultMetricWeight {
		t.Fatalf("unexpected unknown-metric contribution %+v", unknown)
	}
}

func TestSOHStabilityAdjustment(t *testing.T) {
	result := CalculateSOH(series(telemetry.MetricVibration, testNow, time.Minute, 1, 3), nil)
	contribution := result.Contributions[telemetry.MetricVibration]
	// mean 2 (optimal), stddev 1, stability 0.5
	if !almostEqual(contribution.Score, 0.95*0.9, 1e-12) {
		t.Fatalf("expected score %v, got %v", 0.95*0.9, contribution.Score)
	}
	if !almostEqual(result.SOH, 85.5, 1e-9) {
		t.Fatalf("expected soh 85.5, got %v", result.SOH)
	}
}

func TestSOHCallerWeightsOverride(t *testing.T) {
	readings := append(
		series(telemetry.MetricVibration, testNow, time.Minute, repeat(10, 5)...),
		series(telemetry.MetricTemperature, testNow, time.Minute, repeat(50, 5)...)...,
	)
	result := CalculateSOH(readings, map[telemetry.MetricType]float64{
		telemetry.MetricVibration:   1,
		telemetry.MetricTemperature: 0,
	})
	// vibration 10 mm/s is outside every band
	if !almostEqual(result.SOH, 20, 1e-9) {
		t.Fatalf("expected soh 20, got %v", result.SOH)
	}
}

func TestSOHFallbackProfile(t *testing.T) {
	groups := GroupByMetric(series("bearing_noise", testNow, time.Minute, 3, 3, 3))
	result := NewSOHCalculator(WithFallbackProfile(telemetry.MetricVibration)).Calculate(groups, nil)
	if got := result.Contributions["bearing_noise"].Band; got != BandNormal {
		t.Fatalf("expected normal band via fallback, got %s", got)
	}
}

func TestSOHConfidence(t *testing.T) {
	cases := []struct {
		name     string
		readings []telemetry.MetricDataPoint
		want     float64
	}{
		{
			name:     "single metric",
			readings: series(telemetry.MetricTemperature, testNow, time.Minute, repeat(50, 10)...),
			want:     0.6/7 + 0.4*0.1,
		},
		{
			name: "full coverage",
			readings: func() []telemetry.MetricDataPoint {
				var out []telemetry.MetricDataPoint
				for _, metric := range telemetry.KnownMetricTypes() {
					out = append(out, series(metric, testNow, time.Minute, repeat(1, 20)...)...)
				}
				return out
			}(),
			want: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateSOH(tc.readings, nil).Confidence; !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("expected confidence %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSOHBounds(t *testing.T) {
	inputs := [][]telemetry.MetricDataPoint{
		series(telemetry.MetricVibration, testNow, time.Minute, -50, 1e9, 0, -1e9),
		series(telemetry.MetricVoltage, testNow, time.Minute, 0, 0, 0),
		series(telemetry.MetricPower, testNow, time.Minute, 1e-12, -1e-12),
		series("unknown", testNow, time.Minute, math.MaxFloat64/4, -math.MaxFloat64/4),
	}
	for i, readings := range inputs {
		result := CalculateSOH(readings, map[telemetry.MetricType]float64{telemetry.MetricPower: 7})
		if !finite(result.SOH) || result.SOH < 0 || result.SOH > 100 {
			t.Fatalf("input %d: soh out of bounds: %v", i, result.SOH)
		}
		if !finite(result.Confidence) || result.Confidence < 0 || result.Confidence > 1 {
			t.Fatalf("input %d: confidence out of bounds: %v", i, result.Confidence)
		}
		for metric, contribution := range result.Contributions {
			if contribution.Score < 0 || contribution.Score > 1 {
				t.Fatalf("input %d: %s score out of bounds: %v", i, metric, contribution.Score)
			}
		}
	}
}
