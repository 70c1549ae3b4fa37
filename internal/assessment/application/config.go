package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/telemetry/domain"
)

const (
	defaultTrendWindowDays  = 30
	maxTrendSamples         = 30
	defaultTrendParallelism = 4
	defaultSOHWindowHours   = 24
)

// SOHConfig tunes the SOH calculator.
type SOHConfig struct {
	Weights         map[telemetry.MetricType]float64                     `yaml:"weights"`
	Profiles        map[telemetry.MetricType]assessment.ThresholdProfile `yaml:"profiles"`
	FallbackProfile telemetry.MetricType                                 `yaml:"fallback_profile"`
}

// HealthIndexConfig tunes the health-index evaluator.
type HealthIndexConfig struct {
	Weights *assessment.HealthIndexWeightOverrides `yaml:"weights"`
}

// TrendConfig defines how the SOH trend is sampled.
type TrendConfig struct {
	WindowDays  int `yaml:"window_days"`
	Samples     int `yaml:"samples"`
	Parallelism int `yaml:"parallelism"`
}

// EquipmentConfig holds per-equipment overrides.
type EquipmentConfig struct {
	SOHWeights         map[telemetry.MetricType]float64       `yaml:"soh_weights"`
	HealthIndexWeights *assessment.HealthIndexWeightOverrides `yaml:"health_index_weights"`
}

// Config defines assessment configuration.
type Config struct {
	SOH            SOHConfig                  `yaml:"soh"`
	HealthIndex    HealthIndexConfig          `yaml:"health_index"`
	Trend          TrendConfig                `yaml:"trend"`
	SOHWindowHours int                        `yaml:"soh_window_hours"`
	Equipment      map[string]EquipmentConfig `yaml:"equipment"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Trend: TrendConfig{
			WindowDays:  defaultTrendWindowDays,
			Samples:     maxTrendSamples,
			Parallelism: defaultTrendParallelism,
		},
		SOHWindowHours: defaultSOHWindowHours,
	}
}

// LoadConfig loads config from yaml (when path is set) and env.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		parsed, err := ParseConfig(data)
		if err != nil {
			return cfg, err
		}
		cfg = parsed
	}

	cfg.Trend.WindowDays = getenvIntDefault("ASSESSMENT_TREND_DAYS", cfg.Trend.WindowDays)
	cfg.Trend.Samples = getenvIntDefault("ASSESSMENT_TREND_SAMPLES", cfg.Trend.Samples)
	cfg.Trend.Parallelism = getenvIntDefault("ASSESSMENT_TREND_PARALLELISM", cfg.Trend.Parallelism)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseConfig decodes yaml on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("assessment config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Trend.WindowDays <= 0 {
		c.Trend.WindowDays = defaultTrendWindowDays
	}
	if c.Trend.Samples <= 0 || c.Trend.Samples > maxTrendSamples {
		c.Trend.Samples = maxTrendSamples
	}
	if c.Trend.Parallelism <= 0 {
		c.Trend.Parallelism = defaultTrendParallelism
	}
	if c.SOHWindowHours <= 0 {
		c.SOHWindowHours = defaultSOHWindowHours
	}
}

// Validate checks profile bands and weights.
func (c Config) Validate() error {
	for metric, profile := range c.SOH.Profiles {
		for _, band := range []assessment.Band{profile.Optimal, profile.Normal, profile.Warning} {
			if band.Min > band.Max {
				return fmt.Errorf("assessment config: profile %s has min above max", metric)
			}
		}
	}
	for metric, weight := range c.SOH.Weights {
		if weight < 0 {
			return fmt.Errorf("assessment config: negative weight for %s", metric)
		}
	}
	for id, override := range c.Equipment {
		for metric, weight := range override.SOHWeights {
			if weight < 0 {
				return fmt.Errorf("assessment config: negative weight for %s on %s", metric, id)
			}
		}
	}
	if c.SOH.FallbackProfile != "" {
		if _, ok := c.SOH.Profiles[c.SOH.FallbackProfile]; !ok {
			if _, ok := assessment.DefaultThresholdProfiles()[c.SOH.FallbackProfile]; !ok {
				return errors.New("assessment config: fallback profile has no bands")
			}
		}
	}
	return nil
}

// NewSOHCalculator builds a calculator from the profile and weight settings.
func (c Config) NewSOHCalculator(clock assessment.Clock) *assessment.SOHCalculator {
	opts := []assessment.SOHOption{
		assessment.WithThresholdProfiles(c.SOH.Profiles),
		assessment.WithDefaultWeights(c.SOH.Weights),
		assessment.WithSOHClock(clock),
	}
	if c.SOH.FallbackProfile != "" {
		opts = append(opts, assessment.WithFallbackProfile(c.SOH.FallbackProfile))
	}
	return assessment.NewSOHCalculator(opts...)
}

// SOHWeightsFor merges equipment overrides and caller weights. Caller
// weights win.
func (c Config) SOHWeightsFor(equipmentID string, caller map[telemetry.MetricType]float64) map[telemetry.MetricType]float64 {
	merged := make(map[telemetry.MetricType]float64)
	if override, ok := c.Equipment[equipmentID]; ok {
		for metric, weight := range override.SOHWeights {
			merged[metric] = weight
		}
	}
	for metric, weight := range caller {
		merged[metric] = weight
	}
	return merged
}

// HealthIndexOverridesFor layers global, equipment and caller overrides.
func (c Config) HealthIndexOverridesFor(equipmentID string, caller *assessment.HealthIndexWeightOverrides) *assessment.HealthIndexWeightOverrides {
	merged := mergeOverrides(nil, c.HealthIndex.Weights)
	if override, ok := c.Equipment[equipmentID]; ok {
		merged = mergeOverrides(merged, override.HealthIndexWeights)
	}
	return mergeOverrides(merged, caller)
}

func mergeOverrides(base, override *assessment.HealthIndexWeightOverrides) *assessment.HealthIndexWeightOverrides {
	if override == nil {
		return base
	}
	out := assessment.HealthIndexWeightOverrides{}
	if base != nil {
		out = *base
	}
	if override.SOH != nil {
		out.SOH = override.SOH
	}
	if override.Trend != nil {
		out.Trend = override.Trend
	}
	if override.Alarm != nil {
		out.Alarm = override.Alarm
	}
	if override.Maintenance != nil {
		out.Maintenance = override.Maintenance
	}
	return &out
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
