package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/telemetry/domain"
)

const maxPDFAnomalies = 50

// BuildReportPDF renders a printable summary of a report.
func BuildReportPDF(report *assessment.Report) ([]byte, error) {
	if report == nil {
		return nil, errors.New("report export: nil report")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Equipment Health Assessment")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Equipment: %s", report.EquipmentID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s - %s", report.StartTime.Format(time.RFC3339), report.EndTime.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Report: %s", report.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if report.GeneratedBy != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Generated By: %s", report.GeneratedBy))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("SOH: %.2f (confidence %.2f)", report.SOH.SOH, report.SOH.Confidence))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Health Index: %.2f (%s)", report.HealthIndex.HealthIndex, report.HealthIndex.Grade))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Fault Probability: %.2f%% (%s risk)", report.Diagnosis.FaultProbability, report.Diagnosis.FaultRiskLevel))
	pdf.Ln(5)
	if report.Diagnosis.PredictedFailureTime != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Predicted Failure: %s", report.Diagnosis.PredictedFailureTime.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Score", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Weight", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Band", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Points", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, metric := range sortedMetrics(report.SOH.Contributions) {
		c := report.SOH.Contributions[metric]
		pdf.CellFormat(40, 6, string(metric), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", c.Score), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", c.Weight), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, string(c.Band), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", c.Points), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(report.Diagnosis.SuspectedFaults) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Suspected Faults")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		for _, fault := range report.Diagnosis.SuspectedFaults {
			pdf.MultiCell(0, 5, fmt.Sprintf("%s (%.2f%%): %s", fault.FaultType, fault.Probability, strings.Join(fault.RootCauses, "; ")), "", "L", false)
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Recommendations")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	for _, rec := range report.Diagnosis.Recommendations {
		pdf.MultiCell(0, 5, fmt.Sprintf("[%s] %s", rec.Priority, rec.Action), "", "L", false)
	}
	for _, rec := range report.HealthIndex.Recommendations {
		pdf.MultiCell(0, 5, "- "+rec, "", "L", false)
	}

	if len(report.Anomalies) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 6, "Time", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Metric", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Deviation %", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Severity", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for i, anomaly := range report.Anomalies {
			if i == maxPDFAnomalies {
				pdf.Cell(0, 6, fmt.Sprintf("... %d more", len(report.Anomalies)-maxPDFAnomalies))
				pdf.Ln(5)
				break
			}
			pdf.CellFormat(50, 6, anomaly.Timestamp.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, string(anomaly.MetricType), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", anomaly.Value), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", anomaly.DeviationPercent), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, string(anomaly.Severity), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a report workbook with summary, metrics,
// faults and anomalies sheets.
func BuildReportXLSX(report *assessment.Report) ([]byte, error) {
	if report == nil {
		return nil, errors.New("report export: nil report")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	metricsSheet := "metrics"
	faultsSheet := "faults"
	anomaliesSheet := "anomalies"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, sheet := range []string{metricsSheet, faultsSheet, anomaliesSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	summary := [][2]any{
		{"Equipment Health Assessment", nil},
		{"Report", report.ID},
		{"Equipment", report.EquipmentID},
		{"Window Start", report.StartTime.Format(time.RFC3339)},
		{"Window End", report.EndTime.Format(time.RFC3339)},
		{"Generated", report.CreatedAt.Format(time.RFC3339)},
		{"SOH", report.SOH.SOH},
		{"SOH Confidence", report.SOH.Confidence},
		{"Health Index", report.HealthIndex.HealthIndex},
		{"Grade", string(report.HealthIndex.Grade)},
		{"SOH Score", report.HealthIndex.Factors.SOHScore},
		{"Trend Score", report.HealthIndex.Factors.TrendScore},
		{"Alarm Score", report.HealthIndex.Factors.AlarmScore},
		{"Maintenance Score", report.HealthIndex.Factors.MaintenanceScore},
		{"Fault Probability", report.Diagnosis.FaultProbability},
		{"Risk Level", string(report.Diagnosis.FaultRiskLevel)},
		{"Anomalies", report.AnomalyCount},
	}
	if report.Diagnosis.PredictedFailureTime != nil {
		summary = append(summary, [2]any{"Predicted Failure", report.Diagnosis.PredictedFailureTime.Format(time.RFC3339)})
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		if row[1] != nil {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
		}
	}

	_ = f.SetSheetRow(metricsSheet, "A1", &[]any{"Metric", "Score", "Weight", "Contribution", "Band", "Mean", "Std Dev", "Points"})
	for i, metric := range sortedMetrics(report.SOH.Contributions) {
		c := report.SOH.Contributions[metric]
		_ = f.SetSheetRow(metricsSheet, fmt.Sprintf("A%d", i+2), &[]any{
			string(metric), c.Score, c.Weight, c.Contribution, string(c.Band), c.Mean, c.StdDev, c.Points,
		})
	}

	_ = f.SetSheetRow(faultsSheet, "A1", &[]any{"Fault", "Probability", "Root Causes", "Evidence"})
	row := 2
	for _, fault := range report.Diagnosis.SuspectedFaults {
		_ = f.SetSheetRow(faultsSheet, fmt.Sprintf("A%d", row), &[]any{
			fault.FaultType, fault.Probability, strings.Join(fault.RootCauses, "; "), strings.Join(fault.Evidences, "; "),
		})
		row++
	}
	row++
	_ = f.SetSheetRow(faultsSheet, fmt.Sprintf("A%d", row), &[]any{"Priority", "Action", "Reason"})
	for _, rec := range report.Diagnosis.Recommendations {
		row++
		_ = f.SetSheetRow(faultsSheet, fmt.Sprintf("A%d", row), &[]any{string(rec.Priority), rec.Action, rec.Reason})
	}

	_ = f.SetSheetRow(anomaliesSheet, "A1", &[]any{"Time", "Metric", "Value", "Expected", "Deviation %", "Severity"})
	for i, anomaly := range report.Anomalies {
		_ = f.SetSheetRow(anomaliesSheet, fmt.Sprintf("A%d", i+2), &[]any{
			anomaly.Timestamp.Format(time.RFC3339), string(anomaly.MetricType), anomaly.Value,
			anomaly.ExpectedValue, anomaly.DeviationPercent, string(anomaly.Severity),
		})
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedMetrics(contributions map[telemetry.MetricType]assessment.MetricContribution) []telemetry.MetricType {
	out := make([]telemetry.MetricType, 0, len(contributions))
	for metric := range contributions {
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
