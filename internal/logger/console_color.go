package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/ensemble/internal/models"
)

// colorScheme defines consistent colors for output.
// Green: success, Red: failure, Yellow: warning, Cyan: labels.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
	muted   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
		muted:   color.New(color.FgHiBlack),
	}
}

// forLogType picks the tag color for a log entry type.
func (s *colorScheme) forLogType(t models.LogType) *color.Color {
	switch t {
	case models.LogError:
		return s.fail
	case models.LogToolUse:
		return s.label
	case models.LogToolResult:
		return s.success
	case models.LogAssistant:
		return s.value
	case models.LogProgress:
		return s.warn
	case models.LogSystem:
		return color.New(color.FgMagenta)
	default:
		return s.muted
	}
}

// levelColor picks the color for a log level tag.
func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// formatColorizedMetric formats "label: value", colorizing when enabled.
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme, enabled bool) string {
	if !enabled {
		return fmt.Sprintf("%s: %v", label, value)
	}
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), scheme.value.Sprintf("%v", value))
}
