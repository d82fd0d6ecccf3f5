package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/ensemble/internal/models"
)

func TestListExecutions(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	defer fl.Close()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	code := 2
	statuses := []*models.ExecutionStatus{
		{ID: "a", Request: models.ExecutionRequest{TaskID: "t1", Mode: models.ModeFull}, State: models.StateCompleted, StartedAt: base,
			Result: &models.ExecutionResult{CompletedTasks: 2, TotalTasks: 2, ModifiedFiles: []string{"main.go"}}},
		{ID: "b", Request: models.ExecutionRequest{TaskID: "t2", Mode: models.ModeSingle, SubTaskID: "1.2"}, State: models.StateFailed, StartedAt: base.Add(time.Minute),
			Result: &models.ExecutionResult{TotalTasks: 1, Error: "process exited with code 2", ExitCode: &code}},
		{ID: "c", Request: models.ExecutionRequest{TaskID: "t1", Mode: models.ModeAnalysis}, State: models.StateStopped, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, s := range statuses {
		done := s.StartedAt.Add(30 * time.Second)
		s.CompletedAt = &done
		if err := fl.LogExecution(s); err != nil {
			t.Fatalf("LogExecution(%s) error = %v", s.ID, err)
		}
	}

	items, err := ListExecutions(dir, 0, "")
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].ID != "c" || items[1].ID != "b" || items[2].ID != "a" {
		t.Errorf("order = %s,%s,%s, want newest first", items[0].ID, items[1].ID, items[2].ID)
	}

	b := items[1]
	if b.SubTaskID != "1.2" || b.Mode != models.ModeSingle || b.State != models.StateFailed {
		t.Errorf("item b = %+v", b)
	}
	if b.Result == nil || b.Result.Error != "process exited with code 2" {
		t.Errorf("item b result = %+v", b.Result)
	}
	if b.Duration() != 30*time.Second {
		t.Errorf("Duration() = %v, want 30s", b.Duration())
	}
	if items[2].Result == nil || items[2].Result.CompletedTasks != 2 || len(items[2].Result.ModifiedFiles) != 1 {
		t.Errorf("item a result = %+v", items[2].Result)
	}
	if items[0].Result != nil {
		t.Errorf("stopped item without result should have nil Result, got %+v", items[0].Result)
	}

	filtered, err := ListExecutions(dir, 1, "t1")
	if err != nil {
		t.Fatalf("ListExecutions(filter) error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "c" {
		t.Errorf("filtered = %+v, want only c", filtered)
	}
}

func TestListExecutionsMissingDir(t *testing.T) {
	items, err := ListExecutions(filepath.Join(t.TempDir(), "nope"), 0, "")
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestListExecutionsIgnoresOutputSection(t *testing.T) {
	dir := t.TempDir()
	execDir := filepath.Join(dir, "executions")
	if err := os.MkdirAll(execDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "=== Execution x ===\nTask: real\nStatus: completed\n\n=== Output ===\nTask: fake\n"
	if err := os.WriteFile(filepath.Join(execDir, "x.log"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	items, err := ListExecutions(dir, 0, "")
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(items) != 1 || items[0].TaskID != "real" {
		t.Errorf("items = %+v, want task real", items)
	}
}
