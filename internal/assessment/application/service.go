package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	alarms "shipboard-health/internal/alarms/domain"
	assessment "shipboard-health/internal/assessment/domain"
	equipment "shipboard-health/internal/equipment/domain"
	"shipboard-health/internal/observability/metrics"
	"shipboard-health/internal/telemetry/domain"
)

const (
	kindSOH         = "soh"
	kindHealthIndex = "health_index"
	kindDiagnosis   = "diagnosis"
	kindReport      = "report"
)

// AlarmReader lists alarms raised for an equipment.
type AlarmReader interface {
	ListByEquipmentAndTime(ctx context.Context, equipmentID string, from, to time.Time) ([]alarms.Alarm, error)
}

// StatisticsReader loads equipment run, alarm and maintenance aggregates.
type StatisticsReader interface {
	GetStatistics(ctx context.Context, equipmentID string) (*equipment.Statistics, error)
}

// ReportRepository persists assessment reports.
type ReportRepository interface {
	Save(ctx context.Context, report *assessment.Report) error
	Get(ctx context.Context, id string) (*assessment.Report, error)
	ListByEquipment(ctx context.Context, equipmentID string, from, to time.Time) ([]assessment.Report, error)
}

// ResultNotifier publishes assessment events.
type ResultNotifier interface {
	Notify(ctx context.Context, event AssessmentEvent)
}

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// ReportRequest describes a report generation.
type ReportRequest struct {
	TenantID           string
	EquipmentID        string
	Start              time.Time
	End                time.Time
	GeneratedBy        string
	SOHWeights         map[telemetry.MetricType]float64
	HealthIndexWeights *assessment.HealthIndexWeightOverrides
}

// Service orchestrates readings, alarms and statistics through the
// assessment pipeline.
type Service struct {
	readings telemetry.ReadingQuery
	alarms   AlarmReader
	stats    StatisticsReader
	reports  ReportRepository
	notifier ResultNotifier
	clock    assessment.Clock
	logger   Logger
	config   atomic.Pointer[Config]
}

// ServiceOption customizes the assessment service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier ResultNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock assessment.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger assigns a logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig sets the initial config snapshot.
func WithConfig(cfg Config) ServiceOption {
	return func(s *Service) {
		s.UpdateConfig(cfg)
	}
}

// NewService constructs an assessment service.
func NewService(readings telemetry.ReadingQuery, alarmReader AlarmReader, stats StatisticsReader, reports ReportRepository, opts ...ServiceOption) (*Service, error) {
	if readings == nil {
		return nil, errors.New("assessment: nil reading query")
	}
	if alarmReader == nil {
		return nil, errors.New("assessment: nil alarm reader")
	}
	if stats == nil {
		return nil, errors.New("assessment: nil statistics reader")
	}
	if reports == nil {
		return nil, errors.New("assessment: nil report repository")
	}
	service := &Service{
		readings: readings,
		alarms:   alarmReader,
		stats:    stats,
		reports:  reports,
		clock:    assessment.SystemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.clock == nil {
		service.clock = assessment.SystemClock{}
	}
	if service.config.Load() == nil {
		service.UpdateConfig(DefaultConfig())
	}
	return service, nil
}

// UpdateConfig swaps the active config snapshot.
func (s *Service) UpdateConfig(cfg Config) {
	if s == nil {
		return
	}
	cfg.normalize()
	s.config.Store(&cfg)
}

// Config returns the active config snapshot.
func (s *Service) Config() Config {
	if s == nil {
		return DefaultConfig()
	}
	if cfg := s.config.Load(); cfg != nil {
		return *cfg
	}
	return DefaultConfig()
}

// DefaultWindow returns the current-SOH window ending at the clock's now.
func (s *Service) DefaultWindow() (time.Time, time.Time) {
	end := s.clock.Now()
	return end.Add(-time.Duration(s.Config().SOHWindowHours) * time.Hour), end
}

// CalculateSOH scores the readings of one equipment within [start, end).
// tenantID scopes the published event; empty means an untenanted caller.
func (s *Service) CalculateSOH(ctx context.Context, tenantID, equipmentID string, start, end time.Time, weights map[telemetry.MetricType]float64) (assessment.SOHResult, error) {
	if s == nil {
		return assessment.SOHResult{}, errors.New("assessment: nil service")
	}
	began := time.Now()
	result, err := s.calculateSOH(ctx, equipmentID, start, end, weights)
	s.observe(kindSOH, began, err)
	if err != nil {
		return assessment.SOHResult{}, err
	}
	s.notify(ctx, AssessmentEvent{
		Type:        EventSOHCalculated,
		TenantID:    tenantID,
		EquipmentID: equipmentID,
		Start:       start,
		End:         end,
		SOH:         &result,
		OccurredAt:  result.CalculatedAt,
	})
	return result, nil
}

func (s *Service) calculateSOH(ctx context.Context, equipmentID string, start, end time.Time, weights map[telemetry.MetricType]float64) (assessment.SOHResult, error) {
	readings, err := s.loadReadings(ctx, equipmentID, start, end)
	if err != nil {
		return assessment.SOHResult{}, err
	}
	cfg := s.Config()
	calc := cfg.NewSOHCalculator(s.clock)
	return calc.Calculate(assessment.GroupByMetric(readings), cfg.SOHWeightsFor(equipmentID, weights)), nil
}

// EvaluateHealthIndex blends the current SOH, its sampled trend ending at
// end, and the equipment statistics.
func (s *Service) EvaluateHealthIndex(ctx context.Context, tenantID, equipmentID string, start, end time.Time, weights *assessment.HealthIndexWeightOverrides) (assessment.HealthIndexResult, error) {
	if s == nil {
		return assessment.HealthIndexResult{}, errors.New("assessment: nil service")
	}
	began := time.Now()
	result, err := s.evaluateHealthIndex(ctx, equipmentID, start, end, weights)
	s.observe(kindHealthIndex, began, err)
	if err != nil {
		return assessment.HealthIndexResult{}, err
	}
	s.notify(ctx, AssessmentEvent{
		Type:        EventHealthIndexEvaluated,
		TenantID:    tenantID,
		EquipmentID: equipmentID,
		Start:       start,
		End:         end,
		HealthIndex: &result,
		OccurredAt:  result.CalculatedAt,
	})
	return result, nil
}

func (s *Service) evaluateHealthIndex(ctx context.Context, equipmentID string, start, end time.Time, weights *assessment.HealthIndexWeightOverrides) (assessment.HealthIndexResult, error) {
	readings, err := s.loadReadings(ctx, equipmentID, start, end)
	if err != nil {
		return assessment.HealthIndexResult{}, err
	}
	stats, err := s.loadStatistics(ctx, equipmentID)
	if err != nil {
		return assessment.HealthIndexResult{}, err
	}
	cfg := s.Config()
	calc := cfg.NewSOHCalculator(s.clock)
	sohWeights := cfg.SOHWeightsFor(equipmentID, nil)
	current := calc.Calculate(assessment.GroupByMetric(readings), sohWeights)
	trend, err := s.sampleTrend(ctx, cfg, calc, equipmentID, end, sohWeights)
	if err != nil {
		return assessment.HealthIndexResult{}, err
	}
	evaluator := assessment.NewHealthIndexEvaluator(assessment.WithHealthIndexClock(s.clock))
	return evaluator.Evaluate(current.SOH, trend, *stats, cfg.HealthIndexOverridesFor(equipmentID, weights)), nil
}

// DiagnoseFaults detects anomalies in the window and matches them, with the
// window's alarms, against the fault knowledge base.
func (s *Service) DiagnoseFaults(ctx context.Context, tenantID, equipmentID string, start, end time.Time) (assessment.FaultDiagnosisResult, error) {
	if s == nil {
		return assessment.FaultDiagnosisResult{}, errors.New("assessment: nil service")
	}
	began := time.Now()
	result, err := s.diagnoseFaults(ctx, equipmentID, start, end)
	s.observe(kindDiagnosis, began, err)
	if err != nil {
		return assessment.FaultDiagnosisResult{}, err
	}
	s.notify(ctx, AssessmentEvent{
		Type:        EventFaultsDiagnosed,
		TenantID:    tenantID,
		EquipmentID: equipmentID,
		Start:       start,
		End:         end,
		Diagnosis:   &result,
		OccurredAt:  result.DiagnosedAt,
	})
	return result, nil
}

func (s *Service) diagnoseFaults(ctx context.Context, equipmentID string, start, end time.Time) (assessment.FaultDiagnosisResult, error) {
	readings, err := s.loadReadings(ctx, equipmentID, start, end)
	if err != nil {
		return assessment.FaultDiagnosisResult{}, err
	}
	history, err := s.loadAlarms(ctx, equipmentID, start, end)
	if err != nil {
		return assessment.FaultDiagnosisResult{}, err
	}
	cfg := s.Config()
	groups := assessment.GroupByMetric(readings)
	current := cfg.NewSOHCalculator(s.clock).Calculate(groups, cfg.SOHWeightsFor(equipmentID, nil))
	anomalies := assessment.DetectAnomalies(groups)
	engine := assessment.NewFaultDiagnosticEngine(assessment.WithDiagnosisClock(s.clock))
	result := engine.Diagnose(anomalies, history, current.SOH)
	recordDiagnosis(anomalies, result)
	return result, nil
}

// GenerateReport runs the full pipeline over one read of the window and
// persists the result.
func (s *Service) GenerateReport(ctx context.Context, req ReportRequest) (*assessment.Report, error) {
	if s == nil {
		return nil, errors.New("assessment: nil service")
	}
	began := time.Now()
	report, err := s.generateReport(ctx, req)
	s.observe(kindReport, began, err)
	if err != nil {
		s.logf("assessment report failed: equipment=%s err=%v", req.EquipmentID, err)
		return nil, err
	}
	s.logf("assessment report generated: equipment=%s id=%s soh=%.1f health=%.1f risk=%s",
		report.EquipmentID, report.ID, report.SOH.SOH, report.HealthIndex.HealthIndex, report.Diagnosis.FaultRiskLevel)
	s.notify(ctx, AssessmentEvent{
		Type:        EventReportGenerated,
		TenantID:    report.TenantID,
		EquipmentID: report.EquipmentID,
		ReportID:    report.ID,
		Start:       report.StartTime,
		End:         report.EndTime,
		SOH:         &report.SOH,
		HealthIndex: &report.HealthIndex,
		Diagnosis:   &report.Diagnosis,
		OccurredAt:  report.CreatedAt,
	})
	return report, nil
}

func (s *Service) generateReport(ctx context.Context, req ReportRequest) (*assessment.Report, error) {
	readings, err := s.loadReadings(ctx, req.EquipmentID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	history, err := s.loadAlarms(ctx, req.EquipmentID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	stats, err := s.loadStatistics(ctx, req.EquipmentID)
	if err != nil {
		return nil, err
	}

	cfg := s.Config()
	calc := cfg.NewSOHCalculator(s.clock)
	sohWeights := cfg.SOHWeightsFor(req.EquipmentID, req.SOHWeights)
	groups := assessment.GroupByMetric(readings)
	soh := calc.Calculate(groups, sohWeights)

	trend, err := s.sampleTrend(ctx, cfg, calc, req.EquipmentID, req.End, sohWeights)
	if err != nil {
		return nil, err
	}
	health := assessment.NewHealthIndexEvaluator(assessment.WithHealthIndexClock(s.clock)).
		Evaluate(soh.SOH, trend, *stats, cfg.HealthIndexOverridesFor(req.EquipmentID, req.HealthIndexWeights))

	anomalies := assessment.DetectAnomalies(groups)
	diagnosis := assessment.NewFaultDiagnosticEngine(assessment.WithDiagnosisClock(s.clock)).
		Diagnose(anomalies, history, soh.SOH)
	recordDiagnosis(anomalies, diagnosis)

	report := &assessment.Report{
		ID:           assessment.NewReportID(),
		TenantID:     req.TenantID,
		EquipmentID:  req.EquipmentID,
		StartTime:    req.Start.UTC(),
		EndTime:      req.End.UTC(),
		GeneratedBy:  req.GeneratedBy,
		SOH:          soh,
		HealthIndex:  health,
		Diagnosis:    diagnosis,
		Anomalies:    anomalies,
		AnomalyCount: len(anomalies),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("assessment: save report: %w", err)
	}
	return report, nil
}

// GetReport loads a stored report.
func (s *Service) GetReport(ctx context.Context, id string) (*assessment.Report, error) {
	if s == nil {
		return nil, errors.New("assessment: nil service")
	}
	if !assessment.ValidReportID(id) {
		return nil, assessment.ErrReportNotFound
	}
	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, assessment.ErrReportNotFound
	}
	return report, nil
}

// ListReports lists stored reports of an equipment created within [from, to).
// Zero bounds are open.
func (s *Service) ListReports(ctx context.Context, equipmentID string, from, to time.Time) ([]assessment.Report, error) {
	if s == nil {
		return nil, errors.New("assessment: nil service")
	}
	if equipmentID == "" {
		return nil, assessment.ErrEmptyEquipmentID
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, assessment.ErrInvalidTimeRange
	}
	return s.reports.ListByEquipment(ctx, equipmentID, from, to)
}

func (s *Service) loadReadings(ctx context.Context, equipmentID string, start, end time.Time) ([]telemetry.MetricDataPoint, error) {
	if err := assessment.ValidateWindow(equipmentID, start, end); err != nil {
		return nil, err
	}
	readings, err := s.readings.QueryRange(ctx, equipmentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("assessment: query readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, assessment.ErrNoData
	}
	return readings, nil
}

func (s *Service) loadAlarms(ctx context.Context, equipmentID string, start, end time.Time) ([]assessment.AlarmHistory, error) {
	records, err := s.alarms.ListByEquipmentAndTime(ctx, equipmentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("assessment: list alarms: %w", err)
	}
	history := make([]assessment.AlarmHistory, 0, len(records))
	for _, record := range records {
		history = append(history, toAlarmHistory(record))
	}
	return history, nil
}

func (s *Service) loadStatistics(ctx context.Context, equipmentID string) (*equipment.Statistics, error) {
	stats, err := s.stats.GetStatistics(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("assessment: load statistics: %w", err)
	}
	if stats == nil {
		return nil, equipment.ErrNotFound
	}
	return stats, nil
}

func toAlarmHistory(record alarms.Alarm) assessment.AlarmHistory {
	return assessment.AlarmHistory{
		ID:             record.ID,
		Timestamp:      record.StartAt,
		AlarmType:      record.AlarmType,
		Severity:       assessment.AlarmSeverity(alarms.NormalizeSeverity(record.Severity)),
		MetricType:     telemetry.MetricType(record.MetricType),
		MetricValue:    record.MetricValue,
		ThresholdValue: record.ThresholdValue,
		Description:    record.Description,
	}
}

func recordDiagnosis(anomalies []assessment.AnomalyPoint, result assessment.FaultDiagnosisResult) {
	for severity, count := range assessment.AnomalyCountBySeverity(anomalies) {
		metrics.AddAnomalies(string(severity), count)
	}
	metrics.IncRiskLevel(string(result.FaultRiskLevel))
}

func (s *Service) observe(kind string, began time.Time, err error) {
	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, assessment.ErrNoData):
		result = metrics.ResultNoData
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveAssessment(kind, result, time.Since(began))
}

func (s *Service) notify(ctx context.Context, event AssessmentEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}

func (s *Service) logf(format string, args ...any) {
	logf(s.logger, format, args...)
}
