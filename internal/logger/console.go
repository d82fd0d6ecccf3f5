// Package logger provides logging implementations for ensemble.
//
// ConsoleLogger writes levelled, timestamped lines and renders execution
// events (log entries, progress, summaries, consensus results). FileLogger
// keeps a per-run log file plus one file per execution. Implementations are
// thread-safe.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/ensemble/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else means info.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (via color.NoColor) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return !color.NoColor && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	case "warning":
		return "warn"
	}
	return "info"
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// Debugf implements Logger.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof implements Logger.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf implements Logger.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf implements Logger.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

// logWithLevel logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", timestamp(), levelColor(level).Sprint(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message)
	}
	cl.write(formatted)
}

func (cl *ConsoleLogger) write(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// LogEntry renders one classified line of agent output at INFO level.
// Format: "[HH:MM:SS] <type> <content>"
func (cl *ConsoleLogger) LogEntry(entry models.LogEntry) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tag := fmt.Sprintf("%-11s", entry.Type)
	content := entry.Content
	if cl.colorOutput {
		scheme := newColorScheme()
		tag = scheme.forLogType(entry.Type).Sprint(tag)
		if entry.Type == models.LogError {
			content = scheme.fail.Sprint(content)
		}
	}
	cl.write(fmt.Sprintf("[%s] %s %s\n", ts.Format("15:04:05"), tag, content))
}

// LogProgress renders a progress line with a bar at INFO level.
// Format: "[HH:MM:SS] Progress: [====      ] 40/100 (40%) - <current task>"
func (cl *ConsoleLogger) LogProgress(progress int, currentTask string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	pb := NewProgressBar(100, 20, cl.colorOutput)
	pb.Update(progress)
	msg := "Progress: " + pb.Render()
	if currentTask != "" {
		msg += " - " + currentTask
	}
	cl.write(fmt.Sprintf("[%s] %s\n", timestamp(), msg))
}

// LogSummary logs the terminal summary of an execution at INFO level.
func (cl *ConsoleLogger) LogSummary(status *models.ExecutionStatus) {
	if cl.writer == nil || status == nil || !cl.shouldLog("info") {
		return
	}

	ts := timestamp()
	scheme := newColorScheme()
	paint := func(c *color.Color, s string) string {
		if cl.colorOutput {
			return c.Sprint(s)
		}
		return s
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(color.New(color.Bold), "=== Execution Summary ===")))
	sb.WriteString(fmt.Sprintf("[%s] Execution: %s\n", ts, status.ID))

	stateText := string(status.State)
	switch status.State {
	case models.StateCompleted:
		stateText = paint(scheme.success, stateText)
	case models.StateFailed:
		stateText = paint(scheme.fail, stateText)
	case models.StateStopped:
		stateText = paint(scheme.warn, stateText)
	}
	sb.WriteString(fmt.Sprintf("[%s] Status: %s\n", ts, stateText))

	if status.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("[%s] Duration: %s\n", ts, formatDuration(status.CompletedAt.Sub(status.StartedAt))))
	}
	if r := status.Result; r != nil {
		sb.WriteString(fmt.Sprintf("[%s] Tasks: %d/%d\n", ts, r.CompletedTasks, r.TotalTasks))
		if len(r.ModifiedFiles) > 0 {
			sb.WriteString(fmt.Sprintf("[%s] Modified files:\n", ts))
			for _, f := range r.ModifiedFiles {
				sb.WriteString(fmt.Sprintf("[%s]   - %s\n", ts, f))
			}
		}
		if r.Error != "" {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(scheme.fail, "Error: "+r.Error)))
		}
		if r.ExitCode != nil {
			sb.WriteString(fmt.Sprintf("[%s] Exit code: %d\n", ts, *r.ExitCode))
		}
	}
	cl.write(sb.String())
}

// LogConsensus logs a consensus result: one line per provider, then the decision.
func (cl *ConsoleLogger) LogConsensus(result *models.ConsensusResult) {
	if cl.writer == nil || result == nil || !cl.shouldLog("info") {
		return
	}

	ts := timestamp()
	scheme := newColorScheme()
	var sb strings.Builder
	header := "=== Consensus (" + string(result.Strategy) + ") ==="
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, header))

	for _, pr := range result.ProviderResults {
		verdict := "ok"
		detail := fmt.Sprintf("confidence %.2f", pr.Confidence)
		if !pr.Success {
			verdict = "failed"
			detail = pr.Error
		}
		if cl.colorOutput {
			if pr.Success {
				verdict = scheme.success.Sprint(verdict)
			} else {
				verdict = scheme.fail.Sprint(verdict)
			}
		}
		sb.WriteString(fmt.Sprintf("[%s]   %-7s %s (%s) %s\n", ts, pr.Provider, verdict, formatDuration(pr.Duration), detail))
	}

	sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, formatColorizedMetric("providers",
		fmt.Sprintf("%d/%d succeeded", result.Metadata.SuccessfulCount, result.Metadata.ProviderCount), scheme, cl.colorOutput)))
	sb.WriteString(fmt.Sprintf("[%s] %s, %s\n", ts,
		formatColorizedMetric("confidence", fmt.Sprintf("%.2f", result.Confidence), scheme, cl.colorOutput),
		formatColorizedMetric("agreement", fmt.Sprintf("%.2f", result.Agreement), scheme, cl.colorOutput)))
	if !result.Success {
		msg := "No consensus reached"
		if cl.colorOutput {
			msg = scheme.fail.Sprint(msg)
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, msg))
	}
	cl.write(sb.String())
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "850ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debugf(format string, args ...interface{}) {}
func (n *NoOpLogger) Infof(format string, args ...interface{})  {}
func (n *NoOpLogger) Warnf(format string, args ...interface{})  {}
func (n *NoOpLogger) Errorf(format string, args ...interface{}) {}
