package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/telemetry/domain"
)

func writeReadings(t *testing.T, dir string, spike bool) string {
	t.Helper()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	var points []telemetry.MetricDataPoint
	for i := 0; i < 48; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		speed := 1500.0
		if spike && i == 40 {
			speed = 9000
		}
		points = append(points,
			telemetry.MetricDataPoint{Timestamp: at, MetricType: telemetry.MetricTemperature, Value: 50 + float64(i%2)},
			telemetry.MetricDataPoint{Timestamp: at, MetricType: telemetry.MetricSpeed, Value: speed + float64(i%3)},
		)
	}
	data, err := json.Marshal(points)
	if err != nil {
		t.Fatalf("marshal readings: %v", err)
	}
	path := filepath.Join(dir, "readings.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write readings: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.Bytes()
}

func TestAssessSOH(t *testing.T) {
	readings := writeReadings(t, t.TempDir(), false)
	var result assessment.SOHResult
	if err := json.Unmarshal(run(t, "soh", "--readings", readings), &result); err != nil {
		t.Fatalf("decode soh: %v", err)
	}
	if result.SOH <= 0 || result.SOH > 100 {
		t.Fatalf("unexpected soh %.2f", result.SOH)
	}
	if _, ok := result.Contributions[telemetry.MetricSpeed]; !ok {
		t.Fatalf("expected speed contribution, got %+v", result.Contributions)
	}
}

func TestAssessAnomaliesFindsSpike(t *testing.T) {
	readings := writeReadings(t, t.TempDir(), true)
	var anomalies []assessment.AnomalyPoint
	if err := json.Unmarshal(run(t, "anomalies", "--readings", readings), &anomalies); err != nil {
		t.Fatalf("decode anomalies: %v", err)
	}
	found := false
	for _, anomaly := range anomalies {
		if anomaly.MetricType == telemetry.MetricSpeed && anomaly.Value == 9000 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the speed spike to be flagged, got %+v", anomalies)
	}
}

func TestAssessReport(t *testing.T) {
	dir := t.TempDir()
	readings := writeReadings(t, dir, true)
	var report assessment.Report
	if err := json.Unmarshal(run(t, "report", "--readings", readings, "--equipment", "pump-7", "--weights", "speed=0.7,temperature=0.3"), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.EquipmentID != "pump-7" || report.ID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.AnomalyCount == 0 {
		t.Fatalf("expected anomalies in report")
	}
	if !near(report.SOH.Contributions[telemetry.MetricSpeed].Weight, 0.7) {
		t.Fatalf("expected weight override to apply, got %+v", report.SOH.Contributions)
	}
}

func TestParseWeights(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"vibration=0.5", 1, false},
		{"vibration=0.5, temperature=0.5", 2, false},
		{"vibration", 0, true},
		{"vibration=abc", 0, true},
		{"vibration=-1", 0, true},
	}
	for _, tc := range cases {
		got, err := parseWeights(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if len(got) != tc.want {
			t.Fatalf("expected %d weights for %q, got %d", tc.want, tc.in, len(got))
		}
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
