package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	alarms "shipboard-health/internal/alarms/domain"
	equipment "shipboard-health/internal/equipment/domain"
)

const (
	defaultEquipmentTable   = "equipment"
	defaultMaintenanceTable = "maintenance_records"
	defaultAlarmsTable      = "alarms"
)

// Repository is a Postgres implementation of equipment.Repository.
type Repository struct {
	db               *sql.DB
	table            string
	maintenanceTable string
	alarmsTable      string
}

// Option configures the repository.
type Option func(*Repository)

// WithEquipmentTable overrides the default equipment table name.
func WithEquipmentTable(table string) Option {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithMaintenanceTable overrides the default maintenance table name.
func WithMaintenanceTable(table string) Option {
	return func(repo *Repository) {
		if table != "" {
			repo.maintenanceTable = table
		}
	}
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	repo := &Repository{
		db:               db,
		table:            defaultEquipmentTable,
		maintenanceTable: defaultMaintenanceTable,
		alarmsTable:      defaultAlarmsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads an equipment by id. It returns nil when no row exists.
func (r *Repository) Get(ctx context.Context, id string) (*equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if id == "" {
		return nil, errors.New("equipment repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, vessel_id, name, equipment_type, installation_date, created_at, updated_at
FROM %s
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`, r.table)

	var item equipment.Equipment
	var vesselID sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.TenantID,
		&vesselID,
		&item.Name,
		&item.EquipmentType,
		&item.InstallationDate,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	item.VesselID = vesselID.String
	item.InstallationDate = item.InstallationDate.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

// GetStatistics aggregates running hours, alarm counts and maintenance history.
// Alarm severities are bucketed with the same labels alarms.NormalizeSeverity uses.
func (r *Repository) GetStatistics(ctx context.Context, id string) (*equipment.Statistics, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if id == "" {
		return nil, errors.New("equipment repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT
	e.installation_date,
	COALESCE(e.running_hours, 0),
	(SELECT COUNT(*) FROM %[2]s a WHERE a.equipment_id = e.id),
	(SELECT COUNT(*) FROM %[2]s a WHERE a.equipment_id = e.id AND lower(trim(a.severity)) = ANY($2)),
	(SELECT COUNT(*) FROM %[2]s a WHERE a.equipment_id = e.id AND lower(trim(a.severity)) = ANY($3)),
	(SELECT COUNT(*) FROM %[3]s m WHERE m.equipment_id = e.id AND m.status = 'completed'),
	(SELECT MAX(m.completed_at) FROM %[3]s m WHERE m.equipment_id = e.id AND m.status = 'completed')
FROM %[1]s e
WHERE e.id = $1 AND e.deleted_at IS NULL`, r.table, r.alarmsTable, r.maintenanceTable)

	var stats equipment.Statistics
	var lastMaintenance sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, id, alarms.CriticalSeverityLabels(), alarms.WarningSeverityLabels()).Scan(
		&stats.InstallationDate,
		&stats.TotalRunningHours,
		&stats.TotalAlarmCount,
		&stats.CriticalAlarmCount,
		&stats.WarningAlarmCount,
		&stats.MaintenanceCount,
		&lastMaintenance,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	stats.InstallationDate = stats.InstallationDate.UTC()
	if lastMaintenance.Valid {
		at := lastMaintenance.Time.UTC()
		stats.LastMaintenanceDate = &at
	}
	return &stats, nil
}
