package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrison/ensemble/internal/config"
	"github.com/harrison/ensemble/internal/logger"
)

func newHistoryCommand(_ deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past executions from their transcripts",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of executions to list (0 = all)")
	cmd.Flags().String("task", "", "Only list executions of this task")
	cmd.Flags().Bool("json", false, "Print history as JSON")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, home, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := config.ResolveLogDir(home, cfg.LogDir)
	if dir == "" {
		return errors.New("file logging is disabled; no history is recorded")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	taskID, _ := cmd.Flags().GetString("task")
	items, err := logger.ListExecutions(dir, limit, taskID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No executions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tMODE\tSTATUS\tSTARTED\tDURATION\tTASKS")
	for _, item := range items {
		tasks := "-"
		if item.Result != nil {
			tasks = fmt.Sprintf("%d/%d", item.Result.CompletedTasks, item.Result.TotalTasks)
		}
		duration := "-"
		if !item.CompletedAt.IsZero() {
			duration = item.Duration().String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", item.ID, item.TaskID, item.Mode, item.State,
			item.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, tasks)
	}
	return w.Flush()
}
