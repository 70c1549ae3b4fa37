package alarms

import (
	"slices"
	"strings"
	"time"
)

const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusCleared      = "cleared"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alarm is a persisted alarm record raised for a piece of equipment.
type Alarm struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	EquipmentID    string    `json:"equipment_id"`
	RuleID         string    `json:"rule_id"`
	AlarmType      string    `json:"alarm_type"`
	Severity       string    `json:"severity"`
	Status         string    `json:"status"`
	MetricType     string    `json:"metric_type"`
	MetricValue    float64   `json:"metric_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Description    string    `json:"description"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at,omitempty"`
	AckedAt        time.Time `json:"acked_at,omitempty"`
	ClearedAt      time.Time `json:"cleared_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

var (
	criticalLabels = []string{SeverityCritical, "high", "major", "fatal"}
	warningLabels  = []string{SeverityWarning, "medium", "minor", "warn"}
)

// CriticalSeverityLabels lists the stored labels that normalize to critical.
func CriticalSeverityLabels() []string {
	return slices.Clone(criticalLabels)
}

// WarningSeverityLabels lists the stored labels that normalize to warning.
func WarningSeverityLabels() []string {
	return slices.Clone(warningLabels)
}

// NormalizeSeverity maps legacy severity labels onto info/warning/critical.
// Matching ignores case and surrounding space.
func NormalizeSeverity(value string) string {
	label := strings.ToLower(strings.TrimSpace(value))
	switch {
	case slices.Contains(criticalLabels, label):
		return SeverityCritical
	case slices.Contains(warningLabels, label):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
