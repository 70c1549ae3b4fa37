package alarms

import "testing"

func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"critical", SeverityCritical},
		{"CRITICAL", SeverityCritical},
		{" High ", SeverityCritical},
		{"Fatal", SeverityCritical},
		{"MEDIUM", SeverityWarning},
		{"warn", SeverityWarning},
		{"Minor", SeverityWarning},
		{"low", SeverityInfo},
		{"", SeverityInfo},
	}
	for _, tc := range cases {
		if got := NormalizeSeverity(tc.in); got != tc.want {
			t.Fatalf("NormalizeSeverity(%q): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestSeverityLabelsAgreeWithNormalize(t *testing.T) {
	for _, label := range CriticalSeverityLabels() {
		if got := NormalizeSeverity(label); got != SeverityCritical {
			t.Fatalf("critical label %q normalizes to %s", label, got)
		}
	}
	for _, label := range WarningSeverityLabels() {
		if got := NormalizeSeverity(label); got != SeverityWarning {
			t.Fatalf("warning label %q normalizes to %s", label, got)
		}
	}

	labels := CriticalSeverityLabels()
	labels[0] = "mutated"
	if CriticalSeverityLabels()[0] != SeverityCritical {
		t.Fatalf("label list must be returned as a copy")
	}
}
