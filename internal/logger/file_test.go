package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/ensemble/internal/models"
)

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}

	fl.Debugf("hidden %d", 1)
	fl.Infof("visible %d", 2)

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	done := start.Add(time.Minute)
	status := &models.ExecutionStatus{
		ID:          "exec-42",
		Request:     models.ExecutionRequest{TaskID: "change-1", Mode: models.ModeFull},
		State:       models.StateCompleted,
		StartedAt:   start,
		CompletedAt: &done,
		Logs: []models.LogEntry{
			{Timestamp: start, Type: models.LogToolUse, Content: "Edit a.go"},
		},
		Result: &models.ExecutionResult{CompletedTasks: 1, TotalTasks: 1, ModifiedFiles: []string{"a.go"}},
	}
	if err := fl.LogExecution(status); err != nil {
		t.Fatalf("LogExecution() error = %v", err)
	}
	fl.LogConsensus(&models.ConsensusResult{
		Strategy:        models.StrategyMajority,
		Success:         true,
		ProviderResults: []models.ProviderResult{{Provider: "claude", Success: true, Confidence: 0.9}},
		Metadata:        models.ConsensusMetadata{ProviderCount: 1, SuccessfulCount: 1},
	})
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	runLog, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatal(err)
	}
	run := string(runLog)
	if strings.Contains(run, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	for _, want := range []string{"=== Ensemble Run Log ===", "[INFO] visible 2", "Execution exec-42 (change-1) completed", "CONSENSUS (majority)", "claude: ok"} {
		if !strings.Contains(run, want) {
			t.Errorf("run log missing %q:\n%s", want, run)
		}
	}

	transcript, err := os.ReadFile(filepath.Join(dir, "executions", "exec-42.log"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"=== Execution exec-42 ===", "Task: change-1", "Modified: a.go", "[09:00:00] [tool_use] Edit a.go"} {
		if !strings.Contains(string(transcript), want) {
			t.Errorf("transcript missing %q:\n%s", want, transcript)
		}
	}

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatal(err)
	}
	if target != filepath.Base(fl.RunFile()) {
		t.Errorf("latest.log -> %q, want %q", target, filepath.Base(fl.RunFile()))
	}
}

func TestFileLoggerCloseTwice(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "debug")
	if err != nil {
		t.Fatal(err)
	}
	if err := fl.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	fl.Infof("after close is dropped")
}
