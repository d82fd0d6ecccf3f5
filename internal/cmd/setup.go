package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/ensemble/internal/agent"
	"github.com/harrison/ensemble/internal/config"
	"github.com/harrison/ensemble/internal/logger"
)

// loadConfig reads the config file named by --config, or the one in the
// ensemble home, and applies the persistent flags. It returns the home the
// relative log directory resolves against.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var home string
	if configPath != "" {
		home = filepath.Dir(configPath)
	} else {
		h, err := config.GetEnsembleHome("")
		if err != nil {
			return nil, "", err
		}
		home = h
		configPath = config.ConfigPath(home)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	var flags config.Flags
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		flags.LogLevel = &level
	}
	if cmd.Flags().Changed("log-dir") {
		dir, _ := cmd.Flags().GetString("log-dir")
		flags.LogDir = &dir
	}
	if noFileLog, _ := cmd.Flags().GetBool("no-file-log"); noFileLog {
		empty := ""
		flags.LogDir = &empty
	}
	cfg.MergeWithFlags(flags)

	return cfg, home, nil
}

// loggers bundles the console and optional file logger of one command.
type loggers struct {
	console *logger.ConsoleLogger
	file    *logger.FileLogger
	engine  logger.Logger
}

// setupLoggers builds the console logger on w and, when a log directory is
// configured, a file logger beside it.
func setupLoggers(w io.Writer, cfg *config.Config, home string) (*loggers, error) {
	console := logger.NewConsoleLogger(w, cfg.LogLevel)
	l := &loggers{console: console, engine: console}

	if dir := config.ResolveLogDir(home, cfg.LogDir); dir != "" {
		fl, err := logger.NewFileLoggerWithDirAndLevel(dir, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		l.file = fl
		l.engine = logger.Multi(console, fl)
	}
	return l, nil
}

func (l *loggers) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

// newRegistry returns a provider registry with the configured overrides.
func newRegistry(cfg *config.Config) (*agent.Registry, error) {
	r := agent.NewRegistry()
	if err := cfg.ApplyTo(r); err != nil {
		return nil, err
	}
	return r, nil
}

// readPrompt returns --prompt, or the contents of --prompt-file ("-" reads stdin).
func readPrompt(cmd *cobra.Command, stdin io.Reader) (string, error) {
	prompt, _ := cmd.Flags().GetString("prompt")
	promptFile, _ := cmd.Flags().GetString("prompt-file")

	if prompt != "" && promptFile != "" {
		return "", fmt.Errorf("--prompt and --prompt-file are mutually exclusive")
	}
	if promptFile == "" {
		return prompt, nil
	}

	var data []byte
	var err error
	if promptFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(promptFile)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
