// Package fake provides a scripted runner.Runner for tests.
package fake

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/harrison/ensemble/internal/runner"
)

// Script describes how a fake process behaves.
type Script struct {
	Stdout    []string      // Lines emitted on stdout, in order
	Stderr    []string      // Lines emitted on stderr after stdout
	LineDelay time.Duration // Pause before each stdout line
	Hold      time.Duration // Time the process stays alive after its output
	ExitCode  int           // Non-zero yields a runner.ExitError
	Err       error         // Returned verbatim when set
}

// Runner is a runner.Runner whose processes are scripted per command.
// Unknown commands fail like a missing binary.
type Runner struct {
	mu      sync.Mutex
	scripts map[string]Script
	calls   []runner.Invocation
	nextPID int
}

// New creates an empty fake Runner.
func New() *Runner {
	return &Runner{scripts: make(map[string]Script), nextPID: 1000}
}

// On registers the script for a command and returns the runner for chaining.
func (r *Runner) On(command string, s Script) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[command] = s
	return r
}

// Calls returns every invocation seen so far.
func (r *Runner) Calls() []runner.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.Invocation(nil), r.calls...)
}

// Run plays the script registered for inv.Command.
func (r *Runner) Run(ctx context.Context, inv runner.Invocation) (*runner.Outcome, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	s, ok := r.scripts[inv.Command]
	r.nextPID++
	pid := r.nextPID
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &runner.TimeoutError{Timeout: inv.Timeout}
		}
		return nil, &runner.CanceledError{}
	}
	if !ok {
		return nil, &runner.SpawnError{Command: inv.Command, Err: exec.ErrNotFound}
	}

	start := time.Now()
	var deadline <-chan time.Time
	if inv.Timeout > 0 {
		timer := time.NewTimer(inv.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	if inv.OnStart != nil {
		inv.OnStart(pid)
	}

	out := &runner.Outcome{PID: pid}
	wait := func(d time.Duration) error {
		if d <= 0 {
			return nil
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-deadline:
			return &runner.TimeoutError{Timeout: inv.Timeout}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &runner.TimeoutError{Timeout: inv.Timeout}
			}
			return &runner.CanceledError{}
		}
	}
	finish := func(err error) (*runner.Outcome, error) {
		out.Duration = time.Since(start)
		return out, err
	}

	var stdout []string
	for _, line := range s.Stdout {
		if err := wait(s.LineDelay); err != nil {
			out.Stdout = strings.Join(stdout, "\n")
			return finish(err)
		}
		stdout = append(stdout, line)
		if inv.OnStdout != nil {
			inv.OnStdout(line)
		}
	}
	out.Stdout = strings.Join(stdout, "\n")
	for _, line := range s.Stderr {
		if inv.OnStderr != nil {
			inv.OnStderr(line)
		}
	}
	out.Stderr = strings.Join(s.Stderr, "\n")

	if err := wait(s.Hold); err != nil {
		return finish(err)
	}
	if s.Err != nil {
		return finish(s.Err)
	}
	if s.ExitCode != 0 {
		out.ExitCode = s.ExitCode
		return finish(&runner.ExitError{ExitCode: s.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr})
	}
	return finish(nil)
}
