package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	alarms "shipboard-health/internal/alarms/domain"
	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/assessment/infrastructure/memory"
	equipment "shipboard-health/internal/equipment/domain"
	"shipboard-health/internal/telemetry/domain"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

type stubReadings struct {
	points []telemetry.MetricDataPoint
	err    error
	failIf func(start time.Time) bool
	calls  atomic.Int32
}

func (s *stubReadings) QueryRange(_ context.Context, _ string, start, end time.Time) ([]telemetry.MetricDataPoint, error) {
	s.calls.Add(1)
	if s.err != nil && (s.failIf == nil || s.failIf(start)) {
		return nil, s.err
	}
	var out []telemetry.MetricDataPoint
	for _, point := range s.points {
		if !point.Timestamp.Before(start) && point.Timestamp.Before(end) {
			out = append(out, point)
		}
	}
	return out, nil
}

type stubAlarms struct {
	alarms []alarms.Alarm
}

func (s stubAlarms) ListByEquipmentAndTime(_ context.Context, _ string, _, _ time.Time) ([]alarms.Alarm, error) {
	return s.alarms, nil
}

type stubStats struct {
	stats *equipment.Statistics
}

func (s stubStats) GetStatistics(_ context.Context, _ string) (*equipment.Statistics, error) {
	return s.stats, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []AssessmentEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event AssessmentEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingNotifier) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, event := range r.events {
		out[i] = event.Type
	}
	return out
}

// hourlyReadings returns steady readings every hour for the given days up to testNow.
func hourlyReadings(days int) []telemetry.MetricDataPoint {
	var points []telemetry.MetricDataPoint
	start := testNow.Add(-time.Duration(days) * 24 * time.Hour)
	for at := start; at.Before(testNow); at = at.Add(time.Hour) {
		points = append(points,
			telemetry.MetricDataPoint{Timestamp: at, MetricType: telemetry.MetricTemperature, Value: 50},
			telemetry.MetricDataPoint{Timestamp: at, MetricType: telemetry.MetricVibration, Value: 2},
		)
	}
	return points
}

func healthyStats() *equipment.Statistics {
	last := testNow.Add(-30 * 24 * time.Hour)
	return &equipment.Statistics{
		TotalRunningHours:   5000,
		TotalAlarmCount:     5,
		MaintenanceCount:    4,
		LastMaintenanceDate: &last,
		InstallationDate:    testNow.Add(-2 * 365 * 24 * time.Hour),
	}
}

func newTestService(t *testing.T, readings *stubReadings, alarmReader AlarmReader, stats StatisticsReader, opts ...ServiceOption) (*Service, *memory.ReportRepository, *recordingNotifier) {
	t.Helper()
	reports := memory.NewReportRepository()
	notifier := &recordingNotifier{}
	opts = append([]ServiceOption{WithClock(fixedClock{now: testNow}), WithNotifier(notifier)}, opts...)
	service, err := NewService(readings, alarmReader, stats, reports, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, reports, notifier
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(nil, stubAlarms{}, stubStats{}, memory.NewReportRepository()); err == nil {
		t.Fatalf("expected error for nil reading query")
	}
	if _, err := NewService(&stubReadings{}, stubAlarms{}, stubStats{}, nil); err == nil {
		t.Fatalf("expected error for nil report repository")
	}
}

func TestCalculateSOHValidation(t *testing.T) {
	service, _, _ := newTestService(t, &stubReadings{}, stubAlarms{}, stubStats{})
	ctx := context.Background()
	cases := []struct {
		name        string
		equipmentID string
		start       time.Time
		end         time.Time
		want        error
	}{
		{name: "empty id", start: testNow.Add(-time.Hour), end: testNow, want: assessment.ErrEmptyEquipmentID},
		{name: "inverted", equipmentID: "pump-1", start: testNow, end: testNow.Add(-time.Hour), want: assessment.ErrInvalidTimeRange},
		{name: "no data", equipmentID: "pump-1", start: testNow.Add(-time.Hour), end: testNow, want: assessment.ErrNoData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.CalculateSOH(ctx, "tenant-a", tc.equipmentID, tc.start, tc.end, nil); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCalculateSOH(t *testing.T) {
	readings := &stubReadings{points: hourlyReadings(1)}
	service, _, notifier := newTestService(t, readings, stubAlarms{}, stubStats{})

	result, err := service.CalculateSOH(context.Background(), "tenant-a", "pump-1", testNow.Add(-24*time.Hour), testNow, nil)
	if err != nil {
		t.Fatalf("calculate soh: %v", err)
	}
	if !near(result.SOH, 95) {
		t.Fatalf("expected soh 95 for optimal steady readings, got %v", result.SOH)
	}
	if !result.CalculatedAt.Equal(testNow) {
		t.Fatalf("expected calculated at %s, got %s", testNow, result.CalculatedAt)
	}
	if types := notifier.Types(); len(types) != 1 || types[0] != EventSOHCalculated {
		t.Fatalf("expected soh event, got %v", types)
	}
	if event := notifier.events[0]; event.TenantID != "tenant-a" || event.EquipmentID != "pump-1" {
		t.Fatalf("expected event scoped to tenant-a/pump-1, got %q/%q", event.TenantID, event.EquipmentID)
	}
}

func TestCalculateSOHWrapsQueryError(t *testing.T) {
	boom := errors.New("db down")
	service, _, notifier := newTestService(t, &stubReadings{err: boom}, stubAlarms{}, stubStats{})
	_, err := service.CalculateSOH(context.Background(), "tenant-a", "pump-1", testNow.Add(-time.Hour), testNow, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
	if len(notifier.Types()) != 0 {
		t.Fatalf("expected no events on failure")
	}
}

func TestEvaluateHealthIndexSamplesTrend(t *testing.T) {
	readings := &stubReadings{points: hourlyReadings(30)}
	service, _, _ := newTestService(t, readings, stubAlarms{}, stubStats{stats: healthyStats()})

	result, err := service.EvaluateHealthIndex(context.Background(), "tenant-a", "pump-1", testNow.Add(-24*time.Hour), testNow, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := readings.calls.Load(); got != 1+maxTrendSamples {
		t.Fatalf("expected %d reads, got %d", 1+maxTrendSamples, got)
	}
	// flat trend scores 80, so the index stays high
	if !near(result.Factors.TrendScore, 80) {
		t.Fatalf("expected trend score 80, got %v", result.Factors.TrendScore)
	}
	if result.Grade != assessment.GradeExcellent && result.Grade != assessment.GradeGood {
		t.Fatalf("expected healthy grade, got %s (%v)", result.Grade, result.HealthIndex)
	}
}

func TestEvaluateHealthIndexUnknownEquipment(t *testing.T) {
	service, _, _ := newTestService(t, &stubReadings{points: hourlyReadings(1)}, stubAlarms{}, stubStats{})
	_, err := service.EvaluateHealthIndex(context.Background(), "tenant-a", "pump-9", testNow.Add(-time.Hour), testNow, nil)
	if !errors.Is(err, equipment.ErrNotFound) {
		t.Fatalf("expected equipment not found, got %v", err)
	}
}

func TestEvaluateHealthIndexTrendFailure(t *testing.T) {
	boom := errors.New("timeout")
	readings := &stubReadings{
		points: hourlyReadings(30),
		err:    boom,
		failIf: func(start time.Time) bool { return start.Before(testNow.Add(-20 * 24 * time.Hour)) },
	}
	service, _, _ := newTestService(t, readings, stubAlarms{}, stubStats{stats: healthyStats()})
	_, err := service.EvaluateHealthIndex(context.Background(), "tenant-a", "pump-1", testNow.Add(-time.Hour), testNow, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected trend failure, got %v", err)
	}
}

func TestDiagnoseFaultsMapsAlarmSeverity(t *testing.T) {
	var records []alarms.Alarm
	for i := 0; i < 10; i++ {
		records = append(records, alarms.Alarm{
			ID:          "alarm",
			EquipmentID: "pump-1",
			Severity:    alarms.NormalizeSeverity("high"),
			MetricType:  string(telemetry.MetricSpeed),
			StartAt:     testNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	service, _, notifier := newTestService(t, &stubReadings{points: hourlyReadings(1)}, stubAlarms{alarms: records}, stubStats{})

	result, err := service.DiagnoseFaults(context.Background(), "tenant-a", "pump-1", testNow.Add(-24*time.Hour), testNow)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if result.FaultProbability != 20 {
		t.Fatalf("expected probability 20 from recent critical alarms, got %v", result.FaultProbability)
	}
	if result.FaultRiskLevel != assessment.RiskLow {
		t.Fatalf("expected low risk, got %s", result.FaultRiskLevel)
	}
	if types := notifier.Types(); len(types) != 1 || types[0] != EventFaultsDiagnosed {
		t.Fatalf("expected diagnosis event, got %v", types)
	}
	if notifier.events[0].TenantID != "tenant-a" {
		t.Fatalf("expected diagnosis event for tenant-a, got %q", notifier.events[0].TenantID)
	}
}

func TestToAlarmHistory(t *testing.T) {
	record := alarms.Alarm{
		ID:             "alarm-1",
		AlarmType:      "threshold",
		Severity:       "major",
		MetricType:     "vibration",
		MetricValue:    9.2,
		ThresholdValue: 7.1,
		StartAt:        testNow,
	}
	history := toAlarmHistory(record)
	if history.Severity != assessment.AlarmCritical {
		t.Fatalf("expected critical, got %s", history.Severity)
	}
	if history.MetricType != telemetry.MetricVibration || !history.Timestamp.Equal(testNow) {
		t.Fatalf("unexpected mapping %+v", history)
	}
}

func TestGenerateAndFetchReport(t *testing.T) {
	readings := &stubReadings{points: hourlyReadings(30)}
	service, reports, notifier := newTestService(t, readings, stubAlarms{}, stubStats{stats: healthyStats()})
	ctx := context.Background()

	report, err := service.GenerateReport(ctx, ReportRequest{
		TenantID:    "tenant-a",
		EquipmentID: "pump-1",
		Start:       testNow.Add(-24 * time.Hour),
		End:         testNow,
		GeneratedBy: "user-1",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !assessment.ValidReportID(report.ID) {
		t.Fatalf("expected uuid report id, got %q", report.ID)
	}
	if reports.Count() != 1 {
		t.Fatalf("expected stored report")
	}
	if !near(report.SOH.SOH, 95) || report.Diagnosis.FaultRiskLevel != assessment.RiskLow {
		t.Fatalf("unexpected report summary: soh=%v risk=%s", report.SOH.SOH, report.Diagnosis.FaultRiskLevel)
	}
	if types := notifier.Types(); len(types) != 1 || types[0] != EventReportGenerated {
		t.Fatalf("expected report event, got %v", types)
	}

	loaded, err := service.GetReport(ctx, report.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if loaded.EquipmentID != "pump-1" || loaded.GeneratedBy != "user-1" {
		t.Fatalf("unexpected report %+v", loaded)
	}

	listed, err := service.ListReports(ctx, "pump-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 report, got %d", len(listed))
	}

	if _, err := service.GetReport(ctx, "nope"); !errors.Is(err, assessment.ErrReportNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.ListReports(ctx, "", time.Time{}, time.Time{}); !errors.Is(err, assessment.ErrEmptyEquipmentID) {
		t.Fatalf("expected empty id error, got %v", err)
	}
}

func TestUpdateConfigAppliesFallbackProfile(t *testing.T) {
	points := []telemetry.MetricDataPoint{
		{Timestamp: testNow.Add(-3 * time.Minute), MetricType: "bearing_noise", Value: 3},
		{Timestamp: testNow.Add(-2 * time.Minute), MetricType: "bearing_noise", Value: 3},
	}
	service, _, _ := newTestService(t, &stubReadings{points: points}, stubAlarms{}, stubStats{})
	ctx := context.Background()

	before, err := service.CalculateSOH(ctx, "tenant-a", "pump-1", testNow.Add(-time.Hour), testNow, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !near(before.SOH, 50) {
		t.Fatalf("expected neutral score 50, got %v", before.SOH)
	}

	cfg := DefaultConfig()
	cfg.SOH.FallbackProfile = telemetry.MetricVibration
	service.UpdateConfig(cfg)

	after, err := service.CalculateSOH(ctx, "tenant-a", "pump-1", testNow.Add(-time.Hour), testNow, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !near(after.SOH, 80) {
		t.Fatalf("expected normal band score 80, got %v", after.SOH)
	}
}
