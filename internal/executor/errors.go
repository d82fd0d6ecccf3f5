package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Manager.
var (
	// ErrCapacityExceeded matches every *CapacityError.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrNotFound is returned for unknown execution ids.
	ErrNotFound = errors.New("execution not found")
	// ErrEmptyPrompt is returned when prompt construction yields nothing to send.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// ExecutionPhase represents the phase of an execution where an error occurred.
type ExecutionPhase int

const (
	// PhasePrompt represents errors while assembling the prompt (pending state).
	PhasePrompt ExecutionPhase = iota
	// PhaseInvocation represents failures to start the provider command.
	PhaseInvocation
)

// String returns the string representation of ExecutionPhase.
func (p ExecutionPhase) String() string {
	switch p {
	case PhasePrompt:
		return "prompt"
	case PhaseInvocation:
		return "invocation"
	default:
		return "unknown"
	}
}

// CapacityError rejects an execution while the primary slot is occupied.
type CapacityError struct {
	Limit    int    // Maximum concurrent executions
	ActiveID string // Execution currently holding the slot
}

// Error implements the error interface for CapacityError.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: at most %d execution may run at a time (active: %s)", e.Limit, e.ActiveID)
}

// Is lets errors.Is(err, ErrCapacityExceeded) match.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// PhaseError is a failure before the agent process produced an outcome.
type PhaseError struct {
	Phase ExecutionPhase
	Err   error
}

// Error implements the error interface for PhaseError.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// IsCapacityError checks if the error is or wraps a CapacityError.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}
