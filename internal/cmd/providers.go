package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/ensemble/internal/logger"
)

func newProvidersCommand(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Check which agent CLIs are installed and responding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProviders(cmd, d)
		},
	}
	cmd.Flags().Bool("json", false, "Print availability as JSON")
	return cmd
}

func runProviders(cmd *cobra.Command, d deps) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	results := registry.Probe(ctx, d.newRunner(cfg, console), cfg.ProbeTimeout)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tBINARY\tSTATUS\tVERSION")
	for _, a := range results {
		status := color.GreenString("ready")
		switch {
		case a.Canceled:
			status = color.YellowString("canceled")
		case !a.Installed:
			status = color.RedString("missing")
		case !a.Healthy:
			status = color.YellowString("unhealthy")
		}
		detail := a.Version
		if detail == "" {
			detail = a.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Provider, a.Binary, status, detail)
	}
	return w.Flush()
}
