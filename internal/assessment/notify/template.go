package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Equipment Risk {{.RiskLabel}}]
Equipment: {{.Equipment}}
Window: {{.Start}} - {{.End}}
Fault Probability: {{.Probability}}%
{{- if .SOH }}
SOH: {{.SOH}}
{{- end }}
{{- if .HealthIndex }}
Health Index: {{.HealthIndex}} ({{.Grade}})
{{- end }}
{{- if .SuspectedFault }}
Suspected Fault: {{.SuspectedFault}}
{{- end }}
{{- if .PredictedFailure }}
Predicted Failure: {{.PredictedFailure}}
{{- end }}
{{- range .Actions }}
- {{.}}
{{- end }}
{{- if .ReportID }}
Report: {{.ReportID}}
{{- end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Equipment        string
	EquipmentID      string
	Event            string
	RiskLevel        string
	RiskLabel        string
	Probability      string
	SOH              string
	HealthIndex      string
	Grade            string
	SuspectedFault   string
	PredictedFailure string
	Actions          []string
	ReportID         string
	Start            string
	End              string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("assessment-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("assessment template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
