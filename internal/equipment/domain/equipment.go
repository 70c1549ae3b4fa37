package equipment

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the equipment does not exist.
var ErrNotFound = errors.New("equipment: not found")

// Equipment is a monitored shipboard asset.
type Equipment struct {
	ID               string
	TenantID         string
	VesselID         string
	Name             string
	EquipmentType    string
	InstallationDate time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks equipment invariants.
func (e Equipment) Validate() error {
	if e.ID == "" {
		return errors.New("equipment: empty id")
	}
	if e.TenantID == "" {
		return errors.New("equipment: empty tenant id")
	}
	if e.Name == "" {
		return errors.New("equipment: empty name")
	}
	return nil
}

// Statistics aggregates run, alarm and maintenance history for an equipment.
type Statistics struct {
	TotalRunningHours   float64    `json:"total_running_hours"`
	TotalAlarmCount     int        `json:"total_alarm_count"`
	CriticalAlarmCount  int        `json:"critical_alarm_count"`
	WarningAlarmCount   int        `json:"warning_alarm_count"`
	MaintenanceCount    int        `json:"maintenance_count"`
	LastMaintenanceDate *time.Time `json:"last_maintenance_date,omitempty"`
	InstallationDate    time.Time  `json:"installation_date"`
}

// Repository loads equipment and its aggregated statistics.
type Repository interface {
	Get(ctx context.Context, id string) (*Equipment, error)
	GetStatistics(ctx context.Context, id string) (*Statistics, error)
}
