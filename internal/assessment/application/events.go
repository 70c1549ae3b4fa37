package application

import (
	"time"

	assessment "shipboard-health/internal/assessment/domain"
)

const (
	EventSOHCalculated        = "soh.calculated"
	EventHealthIndexEvaluated = "health_index.evaluated"
	EventFaultsDiagnosed      = "faults.diagnosed"
	EventReportGenerated      = "report.generated"
)

// AssessmentEvent is published after every completed assessment. Only the
// result matching the event type is set, except for report events which
// carry all three.
type AssessmentEvent struct {
	Type        string                           `json:"type"`
	TenantID    string                           `json:"tenant_id,omitempty"`
	EquipmentID string                           `json:"equipment_id"`
	ReportID    string                           `json:"report_id,omitempty"`
	Start       time.Time                        `json:"start"`
	End         time.Time                        `json:"end"`
	SOH         *assessment.SOHResult            `json:"soh,omitempty"`
	HealthIndex *assessment.HealthIndexResult    `json:"health_index,omitempty"`
	Diagnosis   *assessment.FaultDiagnosisResult `json:"diagnosis,omitempty"`
	OccurredAt  time.Time                        `json:"occurred_at"`
}

// RiskLevel returns the diagnosis risk level, or empty when no diagnosis is attached.
func (e AssessmentEvent) RiskLevel() assessment.FaultRiskLevel {
	if e.Diagnosis == nil {
		return ""
	}
	return e.Diagnosis.FaultRiskLevel
}
