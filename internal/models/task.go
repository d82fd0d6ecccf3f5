package models

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionMode selects how much of a task the agent is asked to carry out.
type ExecutionMode string

// Execution modes
const (
	ModeFull     ExecutionMode = "full"     // Run every pending sub-task of the task
	ModeSingle   ExecutionMode = "single"   // Run one sub-task
	ModeAnalysis ExecutionMode = "analysis" // Read-only analysis, no edits expected
)

// ParseExecutionMode converts a string to an ExecutionMode.
// Empty input defaults to ModeFull.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case "":
		return ModeFull, nil
	case ModeFull, ModeSingle, ModeAnalysis:
		return ExecutionMode(s), nil
	default:
		return "", fmt.Errorf("invalid execution mode %q, must be one of: full, single, analysis", s)
	}
}

// ExecutionRequest is the immutable description of one primary execution.
// It is built once by the caller and never mutated by the engine.
type ExecutionRequest struct {
	WorkDir     string        `json:"work_dir"`               // Directory the agent runs in
	TaskID      string        `json:"task_id"`                // Domain task / change identifier
	Mode        ExecutionMode `json:"mode"`                   // full, single or analysis
	SubTaskID   string        `json:"sub_task_id,omitempty"`  // Sub-task to run (single mode)
	Strategy    string        `json:"strategy,omitempty"`     // Free-form strategy label
	MaxParallel int           `json:"max_parallel,omitempty"` // Parallelism hint passed to the agent
	Timeout     time.Duration `json:"timeout"`                // Wall-clock limit, 0 = engine default
	Provider    string        `json:"provider,omitempty"`     // Provider selector, empty = default
	Model       string        `json:"model,omitempty"`        // Model override for the provider
	Prompt      string        `json:"prompt,omitempty"`       // Pre-assembled prompt, if any
}

// Validate checks if the request has all required fields
func (r *ExecutionRequest) Validate() error {
	if r.TaskID == "" {
		return errors.New("task id is required")
	}
	if _, err := ParseExecutionMode(string(r.Mode)); err != nil {
		return err
	}
	if r.Mode == ModeSingle && r.SubTaskID == "" {
		return errors.New("sub-task id is required in single mode")
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", r.Timeout)
	}
	if r.MaxParallel < 0 {
		return fmt.Errorf("max parallel must be >= 0, got %d", r.MaxParallel)
	}
	return nil
}
