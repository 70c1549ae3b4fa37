package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/telemetry/domain"
)

// sampleTrend splits the trend window ending at end into equal sub-windows
// and scores each one. Sub-windows without readings are skipped. Any read
// failure cancels the remaining samples.
func (s *Service) sampleTrend(ctx context.Context, cfg Config, calc *assessment.SOHCalculator, equipmentID string, end time.Time, weights map[telemetry.MetricType]float64) ([]assessment.SOHTrendPoint, error) {
	samples := cfg.Trend.Samples
	if samples <= 0 || samples > maxTrendSamples {
		samples = maxTrendSamples
	}
	window := time.Duration(cfg.Trend.WindowDays) * 24 * time.Hour
	step := window / time.Duration(samples)
	if step <= 0 {
		return nil, nil
	}
	start := end.Add(-window)

	sampled := make([]*assessment.SOHTrendPoint, samples)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Trend.Parallelism)
	for i := 0; i < samples; i++ {
		from := start.Add(time.Duration(i) * step)
		to := from.Add(step)
		group.Go(func() error {
			readings, err := s.readings.QueryRange(groupCtx, equipmentID, from, to)
			if err != nil {
				return fmt.Errorf("assessment: trend sample %s: %w", from.Format(time.RFC3339), err)
			}
			if len(readings) == 0 {
				return nil
			}
			result := calc.Calculate(assessment.GroupByMetric(readings), weights)
			sampled[i] = &assessment.SOHTrendPoint{Timestamp: to, SOHValue: result.SOH}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	trend := make([]assessment.SOHTrendPoint, 0, samples)
	for _, point := range sampled {
		if point != nil {
			trend = append(trend, *point)
		}
	}
	return trend, nil
}
