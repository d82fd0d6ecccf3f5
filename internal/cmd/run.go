package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/harrison/ensemble/internal/agent"
	"github.com/harrison/ensemble/internal/executor"
	"github.com/harrison/ensemble/internal/filelock"
	"github.com/harrison/ensemble/internal/logger"
	"github.com/harrison/ensemble/internal/models"
)

// stopRetryInterval paces Stop retries for an execution whose process has not
// started yet.
const stopRetryInterval = 100 * time.Millisecond

func newRunCommand(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one agent against a task",
		Long: `Run one AI coding agent against a task and stream its output.

The agent's stream-json output is classified into log entries (assistant text,
tool calls, tool results, errors) and progress is tracked as sub-tasks
complete. Interrupting the command stops the agent gracefully.

Examples:
  ensemble run --task add-auth
  ensemble run --task add-auth --mode single --subtask 2.1 --provider codex
  ensemble run --task review --mode analysis --prompt-file review.md
  ensemble run --task add-auth --timeout 45m --output result.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecution(cmd, d)
		},
	}

	cmd.Flags().String("task", "", "Task identifier (required)")
	cmd.Flags().String("mode", "full", "Execution mode: full, single, analysis")
	cmd.Flags().String("subtask", "", "Sub-task identifier (required in single mode)")
	cmd.Flags().String("strategy", "", "Strategy label passed to the agent")
	cmd.Flags().Int("max-parallel", 0, "Parallelism hint passed to the agent")
	cmd.Flags().String("provider", "", "Agent provider: claude, codex, gemini, ollama (default from config)")
	cmd.Flags().String("model", "", "Model override for the provider")
	cmd.Flags().Duration("timeout", 0, "Maximum execution time (e.g., 30m, 2h; default from config)")
	cmd.Flags().String("dir", "", "Working directory for the agent (default: current directory)")
	cmd.Flags().String("prompt", "", "Prompt text (default: built from the task fields)")
	cmd.Flags().String("prompt-file", "", "Read the prompt from a file (- for stdin)")
	cmd.Flags().String("output", "", "Write the final execution status as JSON to this file")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func runExecution(cmd *cobra.Command, d deps) error {
	cfg, home, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	req, err := buildRequest(cmd, d)
	if err != nil {
		return err
	}

	logs, err := setupLoggers(cmd.OutOrStdout(), cfg, home)
	if err != nil {
		return err
	}
	defer logs.Close()

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defaultProvider, _ := agent.ParseProvider(cfg.DefaultProvider)

	mgr := executor.NewManager(d.newRunner(cfg, logs.engine), registry,
		executor.WithPromptBuilder(executor.TaskPrompt),
		executor.WithLogger(logs.engine),
		executor.WithHistorySize(cfg.HistorySize),
		executor.WithRetention(cfg.Retention),
		executor.WithSweepInterval(cfg.SweepInterval),
		executor.WithDefaultTimeout(cfg.Timeout),
		executor.WithDefaultProvider(defaultProvider),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id, err := mgr.Execute(ctx, req)
	if err != nil {
		return err
	}
	logs.console.LogInfo(fmt.Sprintf("Execution %s started (task %s, mode %s)", id, req.TaskID, req.Mode))

	var final *models.ExecutionStatus
	var g run.Group
	{
		sweepCtx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return mgr.Run(sweepCtx)
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			final = followExecution(ctx, mgr, id, logs.console)
			return nil
		}, func(error) {})
	}
	if err := g.Run(); err != nil {
		return err
	}

	if final == nil {
		return fmt.Errorf("execution %s: status unavailable", id)
	}
	logs.console.LogSummary(final)
	if logs.file != nil {
		if err := logs.file.LogExecution(final); err != nil {
			logs.console.Warnf("%v", err)
		}
	}
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := filelock.WriteJSON(context.WithoutCancel(ctx), output, final); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if final.State != models.StateCompleted {
		if final.Result != nil && final.Result.Error != "" {
			return fmt.Errorf("execution %s %s: %s", id, final.State, final.Result.Error)
		}
		return fmt.Errorf("execution %s %s", id, final.State)
	}
	return nil
}

// buildRequest assembles an ExecutionRequest from the run flags.
func buildRequest(cmd *cobra.Command, d deps) (models.ExecutionRequest, error) {
	taskID, _ := cmd.Flags().GetString("task")
	modeStr, _ := cmd.Flags().GetString("mode")
	subTask, _ := cmd.Flags().GetString("subtask")
	strategy, _ := cmd.Flags().GetString("strategy")
	maxParallel, _ := cmd.Flags().GetInt("max-parallel")
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	dir, _ := cmd.Flags().GetString("dir")

	mode, err := models.ParseExecutionMode(modeStr)
	if err != nil {
		return models.ExecutionRequest{}, err
	}
	prompt, err := readPrompt(cmd, d.stdin)
	if err != nil {
		return models.ExecutionRequest{}, err
	}

	req := models.ExecutionRequest{
		WorkDir:     dir,
		TaskID:      taskID,
		Mode:        mode,
		SubTaskID:   subTask,
		Strategy:    strategy,
		MaxParallel: maxParallel,
		Timeout:     timeout,
		Provider:    provider,
		Model:       model,
		Prompt:      prompt,
	}
	if err := req.Validate(); err != nil {
		return models.ExecutionRequest{}, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// followExecution prints the execution's events until its stream ends and
// returns the final status. Cancelling ctx stops the execution.
func followExecution(ctx context.Context, mgr *executor.Manager, id string, console *logger.ConsoleLogger) *models.ExecutionStatus {
	sub, ok := mgr.Subscribe(id)
	if !ok {
		status, _ := mgr.Status(id)
		return status
	}
	defer sub.Close()

	var currentTask string
	interrupted := ctx.Done()
	var retry <-chan time.Time
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case ev, open := <-sub.Events():
			if !open {
				status, _ := mgr.Status(id)
				return status
			}
			switch ev.Type {
			case executor.EventLog:
				if ev.Log != nil {
					console.LogEntry(*ev.Log)
					if ev.Log.Type == models.LogToolUse {
						currentTask = ev.Log.Content
					}
				}
			case executor.EventProgress:
				console.LogProgress(ev.Progress, currentTask)
			case executor.EventStatus:
				if ev.Status != nil && ev.Status.CurrentTask != "" {
					currentTask = ev.Status.CurrentTask
				}
			}
		case <-interrupted:
			interrupted = nil
			if !mgr.Running() {
				// Already finished; drain the remaining events.
				continue
			}
			console.LogWarn("Interrupt received, stopping execution")
			if !mgr.Stop(id) {
				ticker = time.NewTicker(stopRetryInterval)
				retry = ticker.C
			}
		case <-retry:
			if mgr.Stop(id) || !mgr.Running() {
				ticker.Stop()
				retry = nil
			}
		}
	}
}
