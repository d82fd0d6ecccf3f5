// Package runner spawns external agent processes, streams their output line by
// line, and enforces a single wall-clock timeout with graceful-then-forced
// termination.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harrison/ensemble/internal/logger"
)

// DefaultGracePeriod is the wait between SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Runner runs one external command to completion.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Outcome, error)
}

// Invocation describes one external command run.
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // Extra KEY=VALUE pairs appended to the current environment

	// Input is written to the child's stdin, which is then closed.
	Input string
	// InputFile writes Input to a per-invocation temp file first. Args equal to
	// InputFilePlaceholder are replaced with its path. The file is removed on
	// every exit path.
	InputFile bool

	// Timeout of 0 uses the runner default; if that is 0 too, no timeout applies.
	Timeout time.Duration

	OnStart  func(pid int)
	OnStdout func(line string)
	OnStderr func(line string)
}

// Outcome is the captured result of a finished process.
type Outcome struct {
	PID      int
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExecRunner runs invocations with os/exec.
type ExecRunner struct {
	// GracePeriod between graceful terminate and kill. Defaults to DefaultGracePeriod.
	GracePeriod time.Duration
	// DefaultTimeout applies when an invocation has none.
	DefaultTimeout time.Duration
	// TempDir holds input artifacts. Empty uses os.TempDir().
	TempDir string
	Logger  logger.Logger
}

// NewExecRunner creates an ExecRunner with default settings.
func NewExecRunner(log logger.Logger) *ExecRunner {
	return &ExecRunner{
		GracePeriod: DefaultGracePeriod,
		Logger:      logger.OrNop(log),
	}
}

const (
	stopNone int32 = iota
	stopTimeout
	stopCanceled
)

// Run starts the command, streams its output and waits for it to exit.
// A non-nil Outcome accompanies every error except SpawnError and a ctx that
// was already done before the process started.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	log := logger.OrNop(r.Logger)
	if inv.Command == "" {
		return nil, &SpawnError{Command: "<empty>", Err: errors.New("command is required")}
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Timeout: inv.Timeout}
		}
		return nil, &CanceledError{}
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	grace := r.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	args := inv.Args
	var inputPath string
	if inv.InputFile {
		path, err := writeInputFile(r.TempDir, inv.Input)
		if err != nil {
			return nil, &SpawnError{Command: inv.Command, Err: err}
		}
		inputPath = path
		defer func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Warnf("failed to remove input file %s: %v", path, err)
			}
		}()
		args = substituteInput(args, path)
	}

	// #nosec G204 -- command and args come from the provider registry
	cmd := exec.Command(inv.Command, args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	configureCommandProcess(cmd)

	switch {
	case inputPath != "":
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, &SpawnError{Command: inv.Command, Err: fmt.Errorf("opening input file: %w", err)}
		}
		defer f.Close()
		cmd.Stdin = f
	case inv.Input != "":
		cmd.Stdin = strings.NewReader(inv.Input)
	}

	stdout := newLineWriter(inv.OnStdout)
	stderr := newLineWriter(inv.OnStderr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Children that outlive the leader must not hold the pipes open forever.
	cmd.WaitDelay = grace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: inv.Command, Err: err}
	}
	pid := cmd.Process.Pid
	log.Debugf("started %s (pid %d)", inv.Command, pid)
	if inv.OnStart != nil {
		inv.OnStart(pid)
	}

	done := make(chan struct{})
	var reason atomic.Int32
	go watch(ctx, cmd, timeout, grace, done, &reason)

	waitErr := cmd.Wait()
	close(done)
	stdout.Flush()
	stderr.Flush()

	out := &Outcome{
		PID:      pid,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch reason.Load() {
	case stopTimeout:
		log.Warnf("%s (pid %d) timed out after %s", inv.Command, pid, timeout)
		return out, &TimeoutError{Timeout: timeout}
	case stopCanceled:
		log.Infof("%s (pid %d) cancelled", inv.Command, pid)
		return out, &CanceledError{}
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, &ExitError{ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}
		}
		if errors.Is(waitErr, exec.ErrWaitDelay) && out.ExitCode == 0 {
			log.Warnf("%s (pid %d) exited but left output pipes open", inv.Command, pid)
			return out, nil
		}
		return out, fmt.Errorf("waiting for %s: %w", inv.Command, waitErr)
	}

	return out, nil
}

// watch terminates the process when the timeout expires or ctx is cancelled:
// graceful terminate first, kill after the grace window.
func watch(ctx context.Context, cmd *exec.Cmd, timeout, grace time.Duration, done <-chan struct{}, reason *atomic.Int32) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-done:
		return
	case <-deadline:
		reason.Store(stopTimeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason.Store(stopTimeout)
		} else {
			reason.Store(stopCanceled)
		}
	}

	terminateProcess(cmd)

	kill := time.NewTimer(grace)
	defer kill.Stop()
	select {
	case <-done:
	case <-kill.C:
		killProcess(cmd)
	}
}
