package notify

import (
	"bytes"
	"errors"
	"text/template"
	"time"

	alerting "fleetops-cloud/internal/alerting/domain"
)

const DefaultTemplate = `[Breakdown Alert]
High-priority breakdowns: {{.ObservedCount}} in the last {{.Window}}
Threshold: {{.Threshold}}
Window End: {{.WindowEnd}}
Triggering Event: {{.TriggeringEventID}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Threshold         int
	Window            string
	ObservedCount     int64
	TriggeringEventID string
	WindowEnd         string
}

// DataFromMessage flattens a message for rendering.
func DataFromMessage(msg alerting.Message) TemplateData {
	window := time.Duration(msg.WindowDurationSeconds) * time.Second
	return TemplateData{
		Threshold:         msg.Threshold,
		Window:            window.String(),
		ObservedCount:     msg.ObservedCount,
		TriggeringEventID: msg.TriggeringEventID,
		WindowEnd:         msg.WindowEnd.Format(time.RFC3339),
	}
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
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
