package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/telemetry/domain"
)

const sampleConfig = `
soh:
  weights:
    vibration: 0.4
  profiles:
    vibration:
      optimal: {min: 0, max: 1.8}
      normal: {min: 0, max: 2.8}
      warning: {min: 0, max: 4.5}
  fallback_profile: vibration
health_index:
  weights:
    soh: 0.5
trend:
  window_days: 14
  samples: 50
equipment:
  pump-1:
    soh_weights:
      temperature: 0.9
    health_index_weights:
      alarm: 0.3
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Trend.WindowDays != 14 {
		t.Fatalf("expected window 14, got %d", cfg.Trend.WindowDays)
	}
	if cfg.Trend.Samples != maxTrendSamples {
		t.Fatalf("expected samples capped at %d, got %d", maxTrendSamples, cfg.Trend.Samples)
	}
	if cfg.Trend.Parallelism != defaultTrendParallelism || cfg.SOHWindowHours != defaultSOHWindowHours {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
	if cfg.SOH.Profiles[telemetry.MetricVibration].Optimal.Max != 1.8 {
		t.Fatalf("expected vibration profile override, got %+v", cfg.SOH.Profiles)
	}

	calc := cfg.NewSOHCalculator(fixedClock{now: testNow})
	groups := assessment.GroupByMetric([]telemetry.MetricDataPoint{
		{Timestamp: testNow, MetricType: telemetry.MetricVibration, Value: 2},
	})
	if band := calc.Calculate(groups, nil).Contributions[telemetry.MetricVibration].Band; band != assessment.BandNormal {
		t.Fatalf("expected tightened profile to give normal band, got %s", band)
	}
}

func TestParseConfigRejectsInvalidBands(t *testing.T) {
	data := []byte(`
soh:
  profiles:
    pressure:
      optimal: {min: 6, max: 2}
`)
	if _, err := ParseConfig(data); err == nil {
		t.Fatalf("expected error for inverted band")
	}
	if _, err := ParseConfig([]byte("soh: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestConfigWeightLayering(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	weights := cfg.SOHWeightsFor("pump-1", map[telemetry.MetricType]float64{telemetry.MetricPressure: 0.7})
	if weights[telemetry.MetricTemperature] != 0.9 || weights[telemetry.MetricPressure] != 0.7 {
		t.Fatalf("unexpected merged weights %v", weights)
	}
	if len(cfg.SOHWeightsFor("pump-2", nil)) != 0 {
		t.Fatalf("expected no overrides for other equipment")
	}

	maintenance := 0.05
	overrides := cfg.HealthIndexOverridesFor("pump-1", &assessment.HealthIndexWeightOverrides{Maintenance: &maintenance})
	if overrides == nil || overrides.SOH == nil || *overrides.SOH != 0.5 {
		t.Fatalf("expected global soh override, got %+v", overrides)
	}
	if overrides.Alarm == nil || *overrides.Alarm != 0.3 {
		t.Fatalf("expected equipment alarm override, got %+v", overrides)
	}
	if overrides.Maintenance == nil || *overrides.Maintenance != 0.05 {
		t.Fatalf("expected caller maintenance override, got %+v", overrides)
	}
	if overrides.Trend != nil {
		t.Fatalf("expected trend to stay default")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ASSESSMENT_TREND_DAYS", "7")
	t.Setenv("ASSESSMENT_TREND_SAMPLES", "7")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trend.WindowDays != 7 || cfg.Trend.Samples != 7 {
		t.Fatalf("expected env overrides, got %+v", cfg.Trend)
	}
}

func TestWatchConfigReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessment.yaml")
	if err := os.WriteFile(path, []byte("trend:\n  window_days: 10\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, path, nil, func(cfg Config) { reloaded <- cfg })
	}()

	deadline := time.After(5 * time.Second)
	for {
		if err := os.WriteFile(path, []byte("trend:\n  window_days: 21\n"), 0o600); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		select {
		case cfg := <-reloaded:
			// a truncated write can surface as an intermediate reload
			if cfg.Trend.WindowDays != 21 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timeout waiting for config reload")
		}
	}
}
