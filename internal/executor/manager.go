// Package executor runs the single primary agent execution: it owns the
// execution state machine, publishes progress to subscribers and keeps a
// bounded history of finished runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/ensemble/internal/agent"
	"github.com/harrison/ensemble/internal/classifier"
	"github.com/harrison/ensemble/internal/logger"
	"github.com/harrison/ensemble/internal/models"
	"github.com/harrison/ensemble/internal/runner"
)

// Manager defaults
const (
	MaxConcurrent        = 1
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// PromptBuilder assembles the prompt for a request. It runs while the
// execution is pending; an error or empty prompt fails the execution.
type PromptBuilder interface {
	BuildPrompt(ctx context.Context, req models.ExecutionRequest) (string, error)
}

// PromptFunc adapts a function to PromptBuilder.
type PromptFunc func(ctx context.Context, req models.ExecutionRequest) (string, error)

// BuildPrompt implements PromptBuilder.
func (f PromptFunc) BuildPrompt(ctx context.Context, req models.ExecutionRequest) (string, error) {
	return f(ctx, req)
}

// requestPrompt uses the prompt carried by the request.
var requestPrompt = PromptFunc(func(_ context.Context, req models.ExecutionRequest) (string, error) {
	return req.Prompt, nil
})

// Option configures a Manager.
type Option func(*Manager)

// WithPromptBuilder sets how prompts are assembled.
func WithPromptBuilder(b PromptBuilder) Option {
	return func(m *Manager) {
		if b != nil {
			m.prompts = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = logger.OrNop(l) }
}

// WithHistorySize sets the history ring capacity.
func WithHistorySize(n int) Option {
	return func(m *Manager) { m.history = newHistory(n) }
}

// WithRetention sets how long terminal executions stay queryable by id.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithSweepInterval sets how often Run purges expired executions.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithDefaultTimeout applies to requests without a timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(m *Manager) { m.defaultTimeout = d }
}

// WithDefaultProvider selects the provider for requests that name none.
// Unsupported providers are ignored.
func WithDefaultProvider(p agent.Provider) Option {
	return func(m *Manager) {
		if parsed, err := agent.ParseProvider(string(p)); err == nil {
			m.defaultProvider = parsed
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns at most one running execution at a time.
// All methods are safe for concurrent use.
type Manager struct {
	runner          runner.Runner
	registry        *agent.Registry
	prompts         PromptBuilder
	logger          logger.Logger
	retention       time.Duration
	sweepInterval   time.Duration
	defaultTimeout  time.Duration
	defaultProvider agent.Provider
	now             func() time.Time

	mu         sync.Mutex
	executions map[string]*execution
	active     string
	history    *history
}

// execution is the engine-private state behind one ExecutionStatus.
type execution struct {
	status    *models.ExecutionStatus
	provider  agent.Provider
	cancel    context.CancelFunc
	pid       int
	completed int
	modified  []string
	seen      map[string]bool
	subs      map[*Subscription]struct{}
	done      chan struct{}
}

// NewManager creates a Manager. A nil registry uses built-in provider defaults.
func NewManager(run runner.Runner, registry *agent.Registry, opts ...Option) *Manager {
	if registry == nil {
		registry = agent.NewRegistry()
	}
	m := &Manager{
		runner:          run,
		registry:        registry,
		prompts:         requestPrompt,
		logger:          logger.NewNoOpLogger(),
		retention:       DefaultRetention,
		sweepInterval:   DefaultSweepInterval,
		defaultProvider: agent.Claude,
		now:             time.Now,
		executions:      make(map[string]*execution),
		history:         newHistory(DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute accepts a request and starts it in the background. It returns the
// execution id, or a *CapacityError while another execution occupies the slot.
// The execution outlives ctx; use Stop to end it.
func (m *Manager) Execute(ctx context.Context, req models.ExecutionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}
	if req.Mode == "" {
		req.Mode = models.ModeFull
	}
	provider := m.defaultProvider
	if req.Provider != "" {
		p, err := agent.ParseProvider(req.Provider)
		if err != nil {
			return "", err
		}
		provider = p
	}

	m.mu.Lock()
	if m.active != "" {
		active := m.active
		m.mu.Unlock()
		return "", &CapacityError{Limit: MaxConcurrent, ActiveID: active}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &execution{
		status: &models.ExecutionStatus{
			ID:        uuid.NewString(),
			Request:   req,
			State:     models.StatePending,
			StartedAt: m.now(),
			Logs:      []models.LogEntry{},
		},
		provider: provider,
		cancel:   cancel,
		seen:     make(map[string]bool),
		subs:     make(map[*Subscription]struct{}),
		done:     make(chan struct{}),
	}
	id := e.status.ID
	m.executions[id] = e
	m.active = id
	m.emitStatus(e)
	m.mu.Unlock()

	m.logger.Infof("Execution %s accepted (task %s, mode %s, provider %s)", id, req.TaskID, req.Mode, provider)
	go m.run(runCtx, e)
	return id, nil
}

func (m *Manager) run(ctx context.Context, e *execution) {
	defer e.cancel()
	req := e.status.Request

	prompt, err := m.prompts.BuildPrompt(ctx, req)
	if err == nil && strings.TrimSpace(prompt) == "" {
		err = ErrEmptyPrompt
	}
	if err != nil {
		m.finish(e, &PhaseError{Phase: PhasePrompt, Err: err})
		return
	}

	inv := m.registry.Command(e.provider, req.Model, agent.StreamOutput, prompt)
	inv.InputFile = true
	inv.Dir = req.WorkDir
	inv.Timeout = req.Timeout
	if inv.Timeout <= 0 {
		inv.Timeout = m.defaultTimeout
	}
	inv.OnStart = func(pid int) { m.onStart(e, pid) }
	inv.OnStdout = func(line string) { m.onStdout(e, line) }
	inv.OnStderr = func(line string) { m.onStderr(e, line) }

	_, err = m.runner.Run(ctx, inv)
	if runner.IsSpawn(err) {
		err = &PhaseError{Phase: PhaseInvocation, Err: err}
	}
	m.finish(e, err)
}

func (m *Manager) onStart(e *execution, pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.status.State != models.StatePending {
		return
	}
	e.pid = pid
	e.status.State = models.StateRunning
	m.appendLog(e, models.LogEntry{Type: models.LogSystem, Content: fmt.Sprintf("Started %s (pid %d)", e.provider, pid)})
	m.emitStatus(e)
	m.logger.Debugf("Execution %s running (pid %d)", e.status.ID, pid)
}

func (m *Manager) onStdout(e *execution, line string) {
	attempt := classifier.Classify(line)
	if attempt.Entry == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e.status.State.IsTerminal() {
		return
	}

	entry := *attempt.Entry
	m.appendLog(e, entry)

	if entry.Type == models.LogToolUse {
		e.status.CurrentTask = entry.Content
		if path, ok := entry.Metadata["file_path"].(string); ok && path != "" && !e.seen[path] {
			e.seen[path] = true
			e.modified = append(e.modified, path)
		}
	}
	if attempt.Completion {
		e.completed++
	}
	m.setProgress(e, attempt.Hint.Apply(e.status.Progress))
}

func (m *Manager) onStderr(e *execution, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e.status.State.IsTerminal() {
		return
	}

	entryType := models.LogInfo
	if strings.Contains(strings.ToLower(trimmed), "error") {
		entryType = models.LogError
	}
	m.appendLog(e, models.LogEntry{Type: entryType, Content: trimmed})
}

// finish records the terminal outcome of the agent process.
// A stopped execution is already terminal and is left untouched.
func (m *Manager) finish(e *execution, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.status.State.IsTerminal() {
		return
	}

	result := m.result(e, err == nil)
	if err == nil {
		e.status.State = models.StateCompleted
		m.appendLog(e, models.LogEntry{Type: models.LogSystem, Content: "Execution completed"})
		m.setProgress(e, 100)
		m.logger.Infof("Execution %s completed", e.status.ID)
	} else {
		e.status.State = models.StateFailed
		result.Error = err.Error()
		if code, ok := runner.ExitCode(err); ok {
			result.ExitCode = &code
		}
		m.appendLog(e, models.LogEntry{Type: models.LogError, Content: result.Error})
		m.logger.Warnf("Execution %s failed: %v", e.status.ID, err)
	}
	e.status.Result = result
	m.terminate(e)
}

// result summarises the work observed so far.
func (m *Manager) result(e *execution, success bool) *models.ExecutionResult {
	total := 1
	if e.status.Request.Mode == models.ModeFull && e.completed > total {
		total = e.completed
	}
	completed := e.completed
	if completed > total {
		completed = total
	}
	if success && completed < total {
		completed = total
	}
	return &models.ExecutionResult{
		CompletedTasks: completed,
		TotalTasks:     total,
		ModifiedFiles:  append([]string(nil), e.modified...),
	}
}

// terminate stamps completion, frees the slot, records history and ends
// every subscription. Caller holds m.mu.
func (m *Manager) terminate(e *execution) {
	now := m.now()
	e.status.CompletedAt = &now
	if m.active == e.status.ID {
		m.active = ""
	}

	m.history.add(models.HistoryItem{
		ID:          e.status.ID,
		TaskID:      e.status.Request.TaskID,
		SubTaskID:   e.status.Request.SubTaskID,
		Mode:        e.status.Request.Mode,
		State:       e.status.State,
		StartedAt:   e.status.StartedAt,
		CompletedAt: now,
		Result:      e.status.Result.Clone(),
	})

	m.emitStatus(e)
	m.broadcast(e, Event{Type: EventComplete})
	for sub := range e.subs {
		sub.seal()
	}
	e.subs = make(map[*Subscription]struct{})
	close(e.done)
}

// Stop ends a running execution. It returns false, changing nothing, when the
// execution is unknown, not running, or has no live process. The status flips
// to stopped immediately; process teardown (terminate, then kill after the
// runner's grace period) completes in the background. A stopped execution
// carries no Result.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.executions[id]
	if !ok || e.status.State != models.StateRunning || e.pid == 0 {
		return false
	}

	e.cancel()
	e.status.State = models.StateStopped
	m.appendLog(e, models.LogEntry{Type: models.LogSystem, Content: "Execution stopped by user"})
	m.logger.Infof("Execution %s stopped (pid %d)", id, e.pid)
	m.terminate(e)
	return true
}

// Status returns a copy of the execution's status.
func (m *Manager) Status(id string) (*models.ExecutionStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, false
	}
	return e.status.Clone(), true
}

// Wait blocks until the execution is terminal or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*models.ExecutionStatus, error) {
	m.mu.Lock()
	e, ok := m.executions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-e.done:
		status, _ := m.Status(id)
		if status == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe opens an event stream for an execution. The first event is always
// a status snapshot; a terminal execution yields status and complete, then
// the stream closes.
func (m *Manager) Subscribe(id string) (*Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, false
	}

	var sub *Subscription
	sub = newSubscription(func() { m.unsubscribe(e, sub) })
	sub.push(Event{Type: EventStatus, ExecutionID: id, Progress: e.status.Progress, Status: e.status.Clone()})
	if e.status.State.IsTerminal() {
		sub.push(Event{Type: EventComplete, ExecutionID: id})
		sub.seal()
		return sub, true
	}
	e.subs[sub] = struct{}{}
	return sub, true
}

func (m *Manager) unsubscribe(e *execution, sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(e.subs, sub)
}

// History returns up to limit finished executions, most recent first,
// optionally filtered by task id. limit <= 0 returns everything retained.
func (m *Manager) History(limit int, taskID string) []models.HistoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.list(limit, taskID)
}

// Running reports whether the execution slot is occupied.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != ""
}

// Sweep removes terminal executions that finished more than the retention
// window before now. History is unaffected. It returns the number removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.executions {
		if e.status.CompletedAt == nil {
			continue
		}
		if now.Sub(*e.status.CompletedAt) > m.retention {
			delete(m.executions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debugf("Swept %d expired executions", removed)
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep(m.now())
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}
	}
}

// appendLog stamps and appends an entry and emits a log event. Caller holds m.mu.
func (m *Manager) appendLog(e *execution, entry models.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	e.status.Logs = append(e.status.Logs, entry)
	copied := entry.Clone()
	m.broadcast(e, Event{Type: EventLog, Log: &copied})
}

// setProgress raises progress and emits a progress event; lower values are ignored.
// Caller holds m.mu.
func (m *Manager) setProgress(e *execution, progress int) {
	if progress > 100 {
		progress = 100
	}
	if progress <= e.status.Progress {
		return
	}
	e.status.Progress = progress
	m.broadcast(e, Event{Type: EventProgress, Progress: progress})
}

// emitStatus pushes a status snapshot. Caller holds m.mu.
func (m *Manager) emitStatus(e *execution) {
	if len(e.subs) == 0 {
		return
	}
	m.broadcast(e, Event{Type: EventStatus, Progress: e.status.Progress, Status: e.status.Clone()})
}

// broadcast delivers ev to every subscriber of e. Caller holds m.mu.
func (m *Manager) broadcast(e *execution, ev Event) {
	ev.ExecutionID = e.status.ID
	for sub := range e.subs {
		sub.push(ev)
	}
}
