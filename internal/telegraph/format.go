package telegraph

import (
	"fmt"

	"github.com/zulandar/obras/internal/fases"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// phaseEventTitle returns the headline and severity for a phase event.
func phaseEventTitle(ev fases.Event) (string, string) {
	switch ev.Kind {
	case fases.KindGenerated:
		return "Documento generado: " + ev.Phase.Name(), "info"
	case fases.KindSigned:
		return "Fase firmada: " + ev.Phase.Name(), "success"
	case fases.KindUnsigned:
		return "Firma retirada: " + ev.Phase.Name(), "warning"
	default:
		return fmt.Sprintf("%s: %s", ev.Kind, ev.Phase.Name()), "info"
	}
}

// FormatPhaseEvent formats a phase lifecycle event.
func FormatPhaseEvent(ev fases.Event) FormattedEvent {
	title, severity := phaseEventTitle(ev)

	fields := []Field{
		{Name: "Obra", Value: ev.Obra},
		{Name: "Fase", Value: ev.Phase.Name(), Short: true},
	}
	if ev.Date != "" {
		fields = append(fields, Field{Name: "Fecha", Value: ev.Date, Short: true})
	}

	return FormattedEvent{
		Title:    title,
		Body:     ev.Obra,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// PhaseEventMessage wraps a formatted phase event in an outbound message.
func PhaseEventMessage(ev fases.Event) OutboundMessage {
	f := FormatPhaseEvent(ev)
	return OutboundMessage{
		Text:   fmt.Sprintf("%s (%s)", f.Title, ev.Obra),
		Events: []FormattedEvent{f},
	}
}
