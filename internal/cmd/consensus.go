package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/ensemble/internal/config"
	"github.com/harrison/ensemble/internal/consensus"
	"github.com/harrison/ensemble/internal/filelock"
)

func newConsensusCommand(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Ask several agents the same question and vote on the answers",
		Long: `Ask several AI agents the same prompt in parallel and combine their answers.

Strategies:
  majority   the largest group of similar answers wins
  weighted   the highest weight x confidence answer wins
  unanimous  every answer must match after normalization
  best_of_n  the highest confidence answer wins

Providers that fail or time out are reported but do not block the vote.

Examples:
  ensemble consensus --prompt "Is this migration reversible?"
  ensemble consensus --providers claude,gemini --strategy unanimous --prompt-file q.md
  ensemble consensus --strategy weighted --timeout 2m --json --prompt "..."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsensus(cmd, d)
		},
	}

	cmd.Flags().StringSlice("providers", nil, "Providers to poll, in tie-break order (default from config)")
	cmd.Flags().String("strategy", "", "Voting strategy: majority, weighted, unanimous, best_of_n")
	cmd.Flags().Float64("threshold", 0, "Similarity threshold for the majority strategy, in (0, 1]")
	cmd.Flags().Duration("timeout", 0, "Deadline for the whole vote (e.g., 90s, 5m)")
	cmd.Flags().String("dir", "", "Working directory for the agents")
	cmd.Flags().String("prompt", "", "Prompt text")
	cmd.Flags().String("prompt-file", "", "Read the prompt from a file (- for stdin)")
	cmd.Flags().String("output", "", "Write the consensus result as JSON to this file")
	cmd.Flags().Bool("json", false, "Print the result as JSON instead of a summary")

	return cmd
}

func runConsensus(cmd *cobra.Command, d deps) error {
	cfg, home, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var flags config.Flags
	if cmd.Flags().Changed("providers") {
		providers, _ := cmd.Flags().GetStringSlice("providers")
		flags.ConsensusProviders = &providers
	}
	if cmd.Flags().Changed("strategy") {
		strategy, _ := cmd.Flags().GetString("strategy")
		flags.Strategy = &strategy
	}
	if cmd.Flags().Changed("threshold") {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		flags.Threshold = &threshold
	}
	if cmd.Flags().Changed("timeout") {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		flags.ConsensusTimeout = &timeout
	}
	cfg.MergeWithFlags(flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	prompt, err := readPrompt(cmd, d.stdin)
	if err != nil {
		return err
	}
	if prompt == "" {
		return errors.New("a prompt is required (--prompt or --prompt-file)")
	}

	// JSON goes to stdout alone; the console log moves to stderr.
	asJSON, _ := cmd.Flags().GetBool("json")
	logOut := cmd.OutOrStdout()
	if asJSON {
		logOut = cmd.ErrOrStderr()
	}
	logs, err := setupLoggers(logOut, cfg, home)
	if err != nil {
		return err
	}
	defer logs.Close()

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")

	orch := consensus.NewOrchestrator(d.newRunner(cfg, logs.engine), registry,
		consensus.WithLogger(logs.engine),
		consensus.WithScorer(consensus.NewScorer(cfg.Scoring())),
		consensus.WithWorkDir(dir),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := orch.Run(ctx, prompt, cfg.ConsensusDefaults())
	if err != nil {
		return err
	}

	if logs.file != nil {
		logs.file.LogConsensus(result)
	}
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := filelock.WriteJSON(context.WithoutCancel(ctx), output, result); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		logs.console.LogConsensus(result)
		if result.Success {
			fmt.Fprintf(out, "\n%s\n", result.FinalOutput)
		}
	}

	if !result.Success {
		return fmt.Errorf("no consensus reached (%d/%d providers succeeded)",
			result.Metadata.SuccessfulCount, result.Metadata.ProviderCount)
	}
	return nil
}
