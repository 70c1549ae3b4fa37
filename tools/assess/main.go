package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	alarms "shipboard-health/internal/alarms/domain"
	"shipboard-health/internal/assessment/application"
	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/assessment/infrastructure/memory"
	equipment "shipboard-health/internal/equipment/domain"
	"shipboard-health/internal/telemetry/domain"
)

const timeLayout = time.RFC3339

type options struct {
	readingsPath string
	alarmsPath   string
	statsPath    string
	configPath   string
	equipmentID  string
	from         string
	to           string
	weights      string
	verbose      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "assess",
		Short:        "Offline equipment health assessment over JSON exports",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.readingsPath, "readings", "", "JSON array of readings {timestamp, metric_type, value}")
	flags.StringVar(&opts.alarmsPath, "alarms", "", "JSON array of alarm records")
	flags.StringVar(&opts.statsPath, "stats", "", "JSON equipment statistics")
	flags.StringVar(&opts.configPath, "config", "", "assessment yaml config")
	flags.StringVar(&opts.equipmentID, "equipment", "offline", "equipment id")
	flags.StringVar(&opts.from, "from", "", "window start (RFC3339), defaults to the first reading")
	flags.StringVar(&opts.to, "to", "", "window end (RFC3339), defaults to just after the last reading")
	flags.StringVar(&opts.weights, "weights", "", "SOH weight overrides, e.g. vibration=0.5,temperature=0.3")
	flags.BoolVar(&opts.verbose, "verbose", false, "log pipeline progress to stderr")
	_ = root.MarkPersistentFlagRequired("readings")

	root.AddCommand(
		newAssessCommand(opts, "soh", "Calculate state of health", func(ctx context.Context, run *runner) (any, error) {
			return run.service.CalculateSOH(ctx, "", opts.equipmentID, run.start, run.end, run.weights)
		}),
		newAssessCommand(opts, "health-index", "Evaluate the composite health index", func(ctx context.Context, run *runner) (any, error) {
			return run.service.EvaluateHealthIndex(ctx, "", opts.equipmentID, run.start, run.end, nil)
		}),
		newAssessCommand(opts, "anomalies", "List detected anomalies", func(ctx context.Context, run *runner) (any, error) {
			anomalies := assessment.DetectAnomalies(assessment.GroupByMetric(run.readings.window(run.start, run.end)))
			if anomalies == nil {
				anomalies = []assessment.AnomalyPoint{}
			}
			return anomalies, nil
		}),
		newAssessCommand(opts, "diagnose", "Diagnose likely faults", func(ctx context.Context, run *runner) (any, error) {
			return run.service.DiagnoseFaults(ctx, "", opts.equipmentID, run.start, run.end)
		}),
		newAssessCommand(opts, "report", "Run the full assessment and print the report", func(ctx context.Context, run *runner) (any, error) {
			return run.service.GenerateReport(ctx, application.ReportRequest{
				EquipmentID: opts.equipmentID,
				Start:       run.start,
				End:         run.end,
				GeneratedBy: "assess",
				SOHWeights:  run.weights,
			})
		}),
	)
	return root
}

func newAssessCommand(opts *options, use, short string, fn func(context.Context, *runner) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, err := newRunner(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			result, err := fn(cmd.Context(), run)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

type runner struct {
	service  *application.Service
	readings fileReadings
	start    time.Time
	end      time.Time
	weights  map[telemetry.MetricType]float64
}

func newRunner(opts *options, stderr io.Writer) (*runner, error) {
	var readings fileReadings
	if err := readJSON(opts.readingsPath, &readings.points); err != nil {
		return nil, fmt.Errorf("readings: %w", err)
	}
	if len(readings.points) == 0 {
		return nil, errors.New("readings: file has no readings")
	}
	sort.Slice(readings.points, func(i, j int) bool {
		return readings.points[i].Timestamp.Before(readings.points[j].Timestamp)
	})

	var alarmList fileAlarms
	if opts.alarmsPath != "" {
		if err := readJSON(opts.alarmsPath, &alarmList.alarms); err != nil {
			return nil, fmt.Errorf("alarms: %w", err)
		}
	}

	stats := fileStats{stats: equipment.Statistics{InstallationDate: readings.points[0].Timestamp}}
	if opts.statsPath != "" {
		if err := readJSON(opts.statsPath, &stats.stats); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	cfg, err := application.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	weights, err := parseWeights(opts.weights)
	if err != nil {
		return nil, err
	}

	start := readings.points[0].Timestamp
	end := readings.points[len(readings.points)-1].Timestamp.Add(time.Nanosecond)
	if opts.from != "" {
		if start, err = time.Parse(timeLayout, opts.from); err != nil {
			return nil, errors.New("from must be RFC3339")
		}
	}
	if opts.to != "" {
		if end, err = time.Parse(timeLayout, opts.to); err != nil {
			return nil, errors.New("to must be RFC3339")
		}
	}

	serviceOpts := []application.ServiceOption{
		application.WithConfig(cfg),
		application.WithClock(fixedClock{now: end.UTC()}),
	}
	if opts.verbose {
		serviceOpts = append(serviceOpts, application.WithLogger(log.New(stderr, "assess ", log.LstdFlags)))
	}
	service, err := application.NewService(readings, alarmList, stats, memory.NewReportRepository(), serviceOpts...)
	if err != nil {
		return nil, err
	}
	return &runner{
		service:  service,
		readings: readings,
		start:    start.UTC(),
		end:      end.UTC(),
		weights:  weights,
	}, nil
}

// parseWeights reads "metric=weight" pairs separated by commas.
func parseWeights(value string) (map[telemetry.MetricType]float64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	out := make(map[telemetry.MetricType]float64)
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("weights: invalid pair %q", pair)
		}
		weight, err := strconv.ParseFloat(raw, 64)
		if err != nil || weight < 0 {
			return nil, fmt.Errorf("weights: invalid weight for %s", name)
		}
		out[telemetry.MetricType(name)] = weight
	}
	return out, nil
}

type fileReadings struct {
	points []telemetry.MetricDataPoint
}

func (f fileReadings) window(start, end time.Time) []telemetry.MetricDataPoint {
	var out []telemetry.MetricDataPoint
	for _, point := range f.points {
		if !point.Timestamp.Before(start) && point.Timestamp.Before(end) {
			out = append(out, point)
		}
	}
	return out
}

func (f fileReadings) QueryRange(_ context.Context, _ string, start, end time.Time) ([]telemetry.MetricDataPoint, error) {
	return f.window(start, end), nil
}

type fileAlarms struct {
	alarms []alarms.Alarm
}

func (f fileAlarms) ListByEquipmentAndTime(_ context.Context, _ string, from, to time.Time) ([]alarms.Alarm, error) {
	var out []alarms.Alarm
	for _, alarm := range f.alarms {
		if !alarm.StartAt.Before(from) && alarm.StartAt.Before(to) {
			out = append(out, alarm)
		}
	}
	return out, nil
}

type fileStats struct {
	stats equipment.Statistics
}

func (f fileStats) GetStatistics(_ context.Context, _ string) (*equipment.Statistics, error) {
	stats := f.stats
	return &stats, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
