package assessment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Report is a persisted snapshot of one full assessment run.
type Report struct {
	ID           string               `json:"id"`
	TenantID     string               `json:"tenant_id,omitempty"`
	EquipmentID  string               `json:"equipment_id"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      time.Time            `json:"end_time"`
	GeneratedBy  string               `json:"generated_by,omitempty"`
	SOH          SOHResult            `json:"soh"`
	HealthIndex  HealthIndexResult    `json:"health_index"`
	Diagnosis    FaultDiagnosisResult `json:"diagnosis"`
	Anomalies    []AnomalyPoint       `json:"anomalies"`
	AnomalyCount int                  `json:"anomaly_count"`
	CreatedAt    time.Time            `json:"created_at"`
}

// NewReportID returns a fresh report identifier.
func NewReportID() string {
	return uuid.NewString()
}

// ValidReportID reports whether id is a well-formed report identifier.
func ValidReportID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// ValidateWindow checks the inputs shared by every assessment operation.
func ValidateWindow(equipmentID string, start, end time.Time) error {
	if strings.TrimSpace(equipmentID) == "" {
		return ErrEmptyEquipmentID
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return ErrInvalidTimeRange
	}
	return nil
}

// AnomalyCountBySeverity tallies anomalies per severity.
func AnomalyCountBySeverity(anomalies []AnomalyPoint) map[AnomalySeverity]int {
	out := make(map[AnomalySeverity]int)
	for _, anomaly := range anomalies {
		out[anomaly.Severity]++
	}
	return out
}
