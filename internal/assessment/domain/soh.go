package assessment

import (
	"math"
	"time"

	"shipboard-health/internal/telemetry/domain"
)

const (
	// trackedMetricCount is the breadth at which confidence saturates.
	trackedMetricCount = 7
	// fullConfidencePoints is the volume at which confidence saturates.
	fullConfidencePoints = 100
)

// MetricContribution is one metric's share of the SOH aggregate.
type MetricContribution struct {
	Score        float64    `json:"score"`
	Weight       float64    `json:"weight"`
	Contribution float64    `json:"contribution"`
	Band         HealthBand `json:"band"`
	Mean         float64    `json:"mean"`
	StdDev       float64    `json:"std_dev"`
	Points       int        `json:"points"`
}

// SOHResult is the state of health of one equipment over a window.
type SOHResult struct {
	SOH           float64                                     `json:"soh"`
	Confidence    float64                                     `json:"confidence"`
	Contributions map[telemetry.MetricType]MetricContribution `json:"contributions"`
	CalculatedAt  time.Time                                   `json:"calculated_at"`
}

// SOHCalculator scores metrics against threshold profiles.
type SOHCalculator struct {
	profiles map[telemetry.MetricType]ThresholdProfile
	weights  map[telemetry.MetricType]float64
	fallback telemetry.MetricType
	clock    Clock
}

// SOHOption customizes the calculator.
type SOHOption func(*SOHCalculator)

// WithThresholdProfiles overrides profiles per metric type.
func WithThresholdProfiles(profiles map[telemetry.MetricType]ThresholdProfile) SOHOption {
	return func(c *SOHCalculator) {
		for metric, profile := range profiles {
			c.profiles[metric] = profile
		}
	}
}

// WithDefaultWeights overrides the default weight table per metric type.
func WithDefaultWeights(weights map[telemetry.MetricType]float64) SOHOption {
	return func(c *SOHCalculator) {
		for metric, weight := range weights {
			if weight >= 0 {
				c.weights[metric] = weight
			}
		}
	}
}

// WithFallbackProfile makes unknown metric types borrow the named profile
// instead of the neutral unknown score.
func WithFallbackProfile(metric telemetry.MetricType) SOHOption {
	return func(c *SOHCalculator) {
		c.fallback = metric
	}
}

// WithSOHClock assigns a clock.
func WithSOHClock(clock Clock) SOHOption {
	return func(c *SOHCalculator) {
		c.clock = clock
	}
}

// NewSOHCalculator constructs a calculator seeded with the default profiles
// and weights.
func NewSOHCalculator(opts ...SOHOption) *SOHCalculator {
	calc := &SOHCalculator{
		profiles: DefaultThresholdProfiles(),
		weights:  DefaultSOHWeights(),
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(calc)
	}
	calc.clock = clockOrSystem(calc.clock)
	return calc
}

// CalculateSOH groups readings and scores them with the default calculator.
func CalculateSOH(readings []telemetry.MetricDataPoint, weights map[telemetry.MetricType]float64) SOHResult {
	return NewSOHCalculator().Calculate(GroupByMetric(readings), weights)
}

// Calculate computes the weighted SOH aggregate. Caller weights override the
// default table per metric; metrics absent from both weigh DefaultMetricWeight.
func (c *SOHCalculator) Calculate(groups MetricGroups, weights map[telemetry.MetricType]float64) SOHResult {
	if c == nil {
		c = NewSOHCalculator()
	}
	result := SOHResult{
		Contributions: make(map[telemetry.MetricType]MetricContribution),
		CalculatedAt:  c.clock.Now(),
	}

	var weightedSum, weightTotal float64
	metricCount := 0
	totalPoints := 0
	for _, metricType := range groups.MetricTypes() {
		points := groups[metricType]
		if len(points) == 0 {
			continue
		}
		series := values(points)
		mu := mean(series)
		sigma := populationStdDev(series)
		band := c.classify(metricType, mu)
		score := adjustForStability(band.BaseScore(), mu, sigma)
		weight := c.weightFor(metricType, weights)

		result.Contributions[metricType] = MetricContribution{
			Score:        score,
			Weight:       weight,
			Contribution: score * weight,
			Band:         band,
			Mean:         mu,
			StdDev:       sigma,
			Points:       len(points),
		}
		weightedSum += score * weight
		weightTotal += weight
		metricCount++
		totalPoints += len(points)
	}

	if metricCount == 0 {
		return result
	}
	if weightTotal > 0 {
		result.SOH = clampScore(100 * weightedSum / weightTotal)
	}
	result.Confidence = clamp01(
		0.6*math.Min(1, float64(metricCount)/trackedMetricCount) +
			0.4*math.Min(1, float64(totalPoints)/fullConfidencePoints),
	)
	return result
}

func (c *SOHCalculator) classify(metricType telemetry.MetricType, mu float64) HealthBand {
	if profile, ok := c.profiles[metricType]; ok {
		return profile.Classify(mu)
	}
	if c.fallback != "" {
		if profile, ok := c.profiles[c.fallback]; ok {
			return profile.Classify(mu)
		}
	}
	return BandUnknown
}

func (c *SOHCalculator) weightFor(metricType telemetry.MetricType, overrides map[telemetry.MetricType]float64) float64 {
	if weight, ok := overrides[metricType]; ok && weight >= 0 {
		return clamp01(weight)
	}
	if weight, ok := c.weights[metricType]; ok {
		return clamp01(weight)
	}
	return DefaultMetricWeight
}

// adjustForStability scales the band score by up to 20% for noisy series.
func adjustForStability(base, mu, sigma float64) float64 {
	stability := 1.0
	if mu != 0 {
		stability = math.Max(0, 1-sigma/math.Abs(mu))
	}
	return clamp01(base * (0.8 + 0.2*stability))
}
