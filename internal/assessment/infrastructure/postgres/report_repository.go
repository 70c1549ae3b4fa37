package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	assessment "shipboard-health/internal/assessment/domain"
)

const reportColumns = `id, tenant_id, equipment_id, start_time, end_time, generated_by,
	soh_result, health_index_result, diagnosis_result, anomalies, anomaly_count, created_at`

// ReportRepository persists assessment reports. Scalar summary columns
// (soh, health_index, grade, fault_probability, risk_level) are written for
// querying; the full results live in JSONB columns.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts a report.
func (r *ReportRepository) Save(ctx context.Context, report *assessment.Report) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if report == nil || report.ID == "" {
		return errors.New("report repo: invalid report")
	}
	sohJSON, err := json.Marshal(report.SOH)
	if err != nil {
		return err
	}
	healthJSON, err := json.Marshal(report.HealthIndex)
	if err != nil {
		return err
	}
	diagnosisJSON, err := json.Marshal(report.Diagnosis)
	if err != nil {
		return err
	}
	anomalies := report.Anomalies
	if anomalies == nil {
		anomalies = []assessment.AnomalyPoint{}
	}
	anomaliesJSON, err := json.Marshal(anomalies)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO assessment_reports (
	id, tenant_id, equipment_id, start_time, end_time, generated_by,
	soh, health_index, grade, fault_probability, risk_level, predicted_failure_time,
	soh_result, health_index_result, diagnosis_result, anomalies, anomaly_count, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)`,
		report.ID, nullString(report.TenantID), report.EquipmentID, report.StartTime.UTC(), report.EndTime.UTC(), nullString(report.GeneratedBy),
		report.SOH.SOH, report.HealthIndex.HealthIndex, string(report.HealthIndex.Grade),
		report.Diagnosis.FaultProbability, string(report.Diagnosis.FaultRiskLevel), nullTime(report.Diagnosis.PredictedFailureTime),
		sohJSON, healthJSON, diagnosisJSON, anomaliesJSON, report.AnomalyCount, report.CreatedAt.UTC(),
	)
	return err
}

// Get fetches a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*assessment.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+reportColumns+`
FROM assessment_reports
WHERE id = $1
LIMIT 1`, id)
	report, err := scanReport(row)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, assessment.ErrReportNotFound
	}
	return report, nil
}

// ListByEquipment lists reports created within [from, to), newest first.
// Zero bounds are open.
func (r *ReportRepository) ListByEquipment(ctx context.Context, equipmentID string, from, to time.Time) ([]assessment.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("report repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+reportColumns+`
FROM assessment_reports
WHERE equipment_id = $1
	AND ($2::timestamptz IS NULL OR created_at >= $2)
	AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC`, equipmentID, nullTimeValue(from), nullTimeValue(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []assessment.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type reportScanner interface {
	Scan(dest ...any) error
}

func scanReport(row reportScanner) (*assessment.Report, error) {
	var report assessment.Report
	var tenantID sql.NullString
	var generatedBy sql.NullString
	var sohJSON, healthJSON, diagnosisJSON, anomaliesJSON []byte
	if err := row.Scan(
		&report.ID,
		&tenantID,
		&report.EquipmentID,
		&report.StartTime,
		&report.EndTime,
		&generatedBy,
		&sohJSON,
		&healthJSON,
		&diagnosisJSON,
		&anomaliesJSON,
		&report.AnomalyCount,
		&report.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	report.TenantID = tenantID.String
	report.GeneratedBy = generatedBy.String
	report.StartTime = report.StartTime.UTC()
	report.EndTime = report.EndTime.UTC()
	report.CreatedAt = report.CreatedAt.UTC()
	if err := unmarshalColumn(sohJSON, &report.SOH); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(healthJSON, &report.HealthIndex); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(diagnosisJSON, &report.Diagnosis); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(anomaliesJSON, &report.Anomalies); err != nil {
		return nil, err
	}
	return &report, nil
}

func unmarshalColumn(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}

func nullTimeValue(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
