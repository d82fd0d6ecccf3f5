package models

import "time"

// ExecutionState is a value of the primary execution state machine:
// pending -> running -> {completed | failed | stopped}.
type ExecutionState string

// Execution states
const (
	StatePending   ExecutionState = "pending"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
	StateStopped   ExecutionState = "stopped"
)

// IsTerminal returns true for completed, failed and stopped.
func (s ExecutionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateStopped
}

// LogType tags a LogEntry.
type LogType string

// Log entry types
const (
	LogInfo       LogType = "info"
	LogToolUse    LogType = "tool_use"
	LogToolResult LogType = "tool_result"
	LogError      LogType = "error"
	LogAssistant  LogType = "assistant"
	LogSystem     LogType = "system"
	LogProgress   LogType = "progress"
)

// LogEntry is one classified line of agent output. Immutable once appended.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      LogType                `json:"type"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionResult is the terminal summary of a completed or failed execution.
type ExecutionResult struct {
	CompletedTasks int      `json:"completed_tasks"`
	TotalTasks     int      `json:"total_tasks"`
	ModifiedFiles  []string `json:"modified_files,omitempty"`
	Error          string   `json:"error,omitempty"`
	ExitCode       *int     `json:"exit_code,omitempty"`
}

// ExecutionStatus is the live record of one primary execution.
// Only the executor mutates it; everyone else sees copies.
type ExecutionStatus struct {
	ID          string           `json:"id"`
	Request     ExecutionRequest `json:"request"`
	State       ExecutionState   `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Progress    int              `json:"progress"`
	CurrentTask string           `json:"current_task,omitempty"`
	Logs        []LogEntry       `json:"logs"`
	Result      *ExecutionResult `json:"result,omitempty"`
}

// Clone returns a deep copy safe to hand to subscribers.
func (s *ExecutionStatus) Clone() *ExecutionStatus {
	if s == nil {
		return nil
	}
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	c.Logs = make([]LogEntry, len(s.Logs))
	for i, entry := range s.Logs {
		c.Logs[i] = entry.Clone()
	}
	c.Result = s.Result.Clone()
	return &c
}

// Clone returns a copy whose metadata map is not shared.
func (e LogEntry) Clone() LogEntry {
	if e.Metadata == nil {
		return e
	}
	md := make(map[string]interface{}, len(e.Metadata))
	for k, v := range e.Metadata {
		md[k] = v
	}
	e.Metadata = md
	return e
}

// Clone returns a deep copy of the result.
func (r *ExecutionResult) Clone() *ExecutionResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.ModifiedFiles != nil {
		c.ModifiedFiles = append([]string(nil), r.ModifiedFiles...)
	}
	if r.ExitCode != nil {
		code := *r.ExitCode
		c.ExitCode = &code
	}
	return &c
}

// HistoryItem is the compact summary kept in the bounded execution history.
type HistoryItem struct {
	ID          string           `json:"id"`
	TaskID      string           `json:"task_id"`
	SubTaskID   string           `json:"sub_task_id,omitempty"`
	Mode        ExecutionMode    `json:"mode"`
	State       ExecutionState   `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Result      *ExecutionResult `json:"result,omitempty"`
}

// Duration returns the wall-clock time between start and completion.
func (h HistoryItem) Duration() time.Duration {
	return h.CompletedAt.Sub(h.StartedAt)
}
