package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alarms "shipboard-health/internal/alarms/domain"
)

const alarmColumns = `id, tenant_id, equipment_id, rule_id, alarm_type, severity, status,
	metric_type, metric_value, threshold_value, description,
	start_at, end_at, acked_at, cleared_at, created_at, updated_at`

// AlarmRepository is a read-only Postgres repository for alarms.
type AlarmRepository struct {
	db *sql.DB
}

// NewAlarmRepository constructs a repository.
func NewAlarmRepository(db *sql.DB) *AlarmRepository {
	return &AlarmRepository{db: db}
}

// GetByID fetches an alarm by id.
func (r *AlarmRepository) GetByID(ctx context.Context, id string) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alarmColumns+`
FROM alarms
WHERE id = $1`, id)
	alarm, err := scanAlarm(row)
	if err != nil {
		return nil, err
	}
	if alarm == nil {
		return nil, alarms.ErrNotFound
	}
	return alarm, nil
}

// ListByEquipmentAndTime lists alarms raised for an equipment within [from, to).
func (r *AlarmRepository) ListByEquipmentAndTime(ctx context.Context, equipmentID string, from, to time.Time) ([]alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("alarm repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+alarmColumns+`
FROM alarms
WHERE equipment_id = $1 AND start_at >= $2 AND start_at < $3
ORDER BY start_at ASC`, equipmentID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alarms.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type alarmScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row alarmScanner) (*alarms.Alarm, error) {
	var alarm alarms.Alarm
	var ruleID sql.NullString
	var metricType sql.NullString
	var description sql.NullString
	var metricValue sql.NullFloat64
	var thresholdValue sql.NullFloat64
	var endAt sql.NullTime
	var ackedAt sql.NullTime
	var clearedAt sql.NullTime
	if err := row.Scan(
		&alarm.ID,
		&alarm.TenantID,
		&alarm.EquipmentID,
		&ruleID,
		&alarm.AlarmType,
		&alarm.Severity,
		&alarm.Status,
		&metricType,
		&metricValue,
		&thresholdValue,
		&description,
		&alarm.StartAt,
		&endAt,
		&ackedAt,
		&clearedAt,
		&alarm.CreatedAt,
		&alarm.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alarm.RuleID = ruleID.String
	alarm.MetricType = metricType.String
	alarm.Description = description.String
	alarm.Severity = alarms.NormalizeSeverity(alarm.Severity)
	alarm.StartAt = alarm.StartAt.UTC()
	alarm.CreatedAt = alarm.CreatedAt.UTC()
	alarm.UpdatedAt = alarm.UpdatedAt.UTC()
	if metricValue.Valid {
		alarm.MetricValue = metricValue.Float64
	}
	if thresholdValue.Valid {
		alarm.ThresholdValue = thresholdValue.Float64
	}
	if endAt.Valid {
		alarm.EndAt = endAt.Time.UTC()
	}
	if ackedAt.Valid {
		alarm.AckedAt = ackedAt.Time.UTC()
	}
	if clearedAt.Valid {
		alarm.ClearedAt = clearedAt.Time.UTC()
	}
	return &alarm, nil
}
