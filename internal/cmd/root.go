package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/ensemble/internal/config"
	"github.com/harrison/ensemble/internal/logger"
	"github.com/harrison/ensemble/internal/runner"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// deps are the process-level collaborators commands build on. Tests swap them.
type deps struct {
	newRunner func(cfg *config.Config, log logger.Logger) runner.Runner
	stdin     io.Reader
}

func defaultDeps() deps {
	return deps{
		newRunner: func(cfg *config.Config, log logger.Logger) runner.Runner {
			r := runner.NewExecRunner(log)
			r.GracePeriod = cfg.GracePeriod
			r.TempDir = cfg.TempDir
			return r
		},
		stdin: os.Stdin,
	}
}

// NewRootCommand creates and returns the root cobra command for ensemble
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultDeps())
}

func newRootCommand(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "Run AI coding agents and reach consensus across them",
		Long: `Ensemble drives AI coding agent CLIs (claude, codex, gemini, ollama).

A primary execution runs one agent against a task and streams its classified
output. A consensus run asks several agents the same question in parallel
and votes on their answers.

Configuration is loaded from .ensemble/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .ensemble/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("log-dir", "", "Directory for run logs and execution transcripts")
	cmd.PersistentFlags().Bool("no-file-log", false, "Do not write log files")

	cmd.AddCommand(newRunCommand(d))
	cmd.AddCommand(newConsensusCommand(d))
	cmd.AddCommand(newProvidersCommand(d))
	cmd.AddCommand(newHistoryCommand(d))

	return cmd
}
