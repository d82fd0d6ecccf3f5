package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/ensemble/internal/models"
)

// DefaultLogDir is where FileLogger writes when no directory is configured.
var DefaultLogDir = filepath.Join(".ensemble", "logs")

// FileLogger logs to files under a log directory: a timestamped per-run log,
// a latest.log symlink to it, and one transcript per execution in executions/.
// It is thread-safe and implements Logger.
type FileLogger struct {
	logDir        string
	runLog        *os.File
	runFile       string
	executionsDir string
	logLevel      string
	mu            sync.Mutex
}

// NewFileLogger creates a FileLogger in DefaultLogDir at info level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(DefaultLogDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom directory and level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	executionsDir := filepath.Join(logDir, "executions")
	if err := os.MkdirAll(executionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:        logDir,
		runLog:        file,
		runFile:       runFile,
		executionsDir: executionsDir,
		logLevel:      normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== Ensemble Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// RunFile returns the path of the per-run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// Debugf implements Logger.
func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof implements Logger.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf implements Logger.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf implements Logger.
func (fl *FileLogger) Errorf(format string, args ...interface{}) {
	fl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

// LogExecution writes the full transcript of a finished execution to
// executions/<id>.log and a one-line summary to the run log.
func (fl *FileLogger) LogExecution(status *models.ExecutionStatus) error {
	if status == nil {
		return nil
	}

	var sb strings.Builder
	req := status.Request
	sb.WriteString(fmt.Sprintf("=== Execution %s ===\n", status.ID))
	sb.WriteString(fmt.Sprintf("Task: %s\n", req.TaskID))
	if req.SubTaskID != "" {
		sb.WriteString(fmt.Sprintf("Sub-task: %s\n", req.SubTaskID))
	}
	sb.WriteString(fmt.Sprintf("Mode: %s\n", req.Mode))
	sb.WriteString(fmt.Sprintf("Status: %s\n", status.State))
	sb.WriteString(fmt.Sprintf("Started: %s\n", status.StartedAt.Format(time.RFC3339)))
	if status.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("Completed: %s (%s)\n", status.CompletedAt.Format(time.RFC3339), formatDuration(status.CompletedAt.Sub(status.StartedAt))))
	}
	if r := status.Result; r != nil {
		sb.WriteString(fmt.Sprintf("Tasks: %d/%d\n", r.CompletedTasks, r.TotalTasks))
		for _, f := range r.ModifiedFiles {
			sb.WriteString(fmt.Sprintf("Modified: %s\n", f))
		}
		if r.Error != "" {
			sb.WriteString(fmt.Sprintf("Error: %s\n", r.Error))
		}
	}
	sb.WriteString("\n=== Output ===\n")
	for _, entry := range status.Logs {
		sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n", entry.Timestamp.Format("15:04:05"), entry.Type, entry.Content))
	}

	path := filepath.Join(fl.executionsDir, fmt.Sprintf("%s.log", status.ID))
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write execution log: %w", err)
	}

	fl.Infof("Execution %s (%s) %s, %d log entries", status.ID, req.TaskID, status.State, len(status.Logs))
	return nil
}

// LogConsensus appends a consensus result to the run log.
func (fl *FileLogger) LogConsensus(result *models.ConsensusResult) {
	if result == nil || !fl.shouldLog("info") {
		return
	}
	ts := time.Now().Format("15:04:05")
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] === CONSENSUS (%s) ===\n", ts, result.Strategy))
	for _, pr := range result.ProviderResults {
		if pr.Success {
			sb.WriteString(fmt.Sprintf("[%s]   %s: ok, confidence %.2f, %.1fs\n", ts, pr.Provider, pr.Confidence, pr.Duration.Seconds()))
		} else {
			sb.WriteString(fmt.Sprintf("[%s]   %s: failed, %s\n", ts, pr.Provider, pr.Error))
		}
	}
	sb.WriteString(fmt.Sprintf("[%s] Success: %t, confidence %.2f, agreement %.2f (%d/%d providers)\n",
		ts, result.Success, result.Confidence, result.Agreement,
		result.Metadata.SuccessfulCount, result.Metadata.ProviderCount))
	fl.writeRunLog(sb.String())
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
