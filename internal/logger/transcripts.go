package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrison/ensemble/internal/models"
)

// ListExecutions reads the transcript headers under logDir/executions and
// returns them newest first. limit <= 0 returns all; a non-empty taskID filters.
// A missing directory yields no items.
func ListExecutions(logDir string, limit int, taskID string) ([]models.HistoryItem, error) {
	paths, err := filepath.Glob(filepath.Join(logDir, "executions", "*.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}

	var items []models.HistoryItem
	for _, path := range paths {
		item, err := readTranscriptHeader(path)
		if err != nil {
			return nil, err
		}
		if taskID != "" && item.TaskID != taskID {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartedAt.After(items[j].StartedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// readTranscriptHeader parses the key: value lines LogExecution writes before
// the output section.
func readTranscriptHeader(path string) (models.HistoryItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("failed to open execution log: %w", err)
	}
	defer f.Close()

	item := models.HistoryItem{ID: strings.TrimSuffix(filepath.Base(path), ".log")}
	var result models.ExecutionResult
	hasResult := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "=== Output ===" {
			break
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "Task":
			item.TaskID = value
		case "Sub-task":
			item.SubTaskID = value
		case "Mode":
			item.Mode = models.ExecutionMode(value)
		case "Status":
			item.State = models.ExecutionState(value)
		case "Started":
			item.StartedAt, _ = time.Parse(time.RFC3339, value)
		case "Completed":
			stamp, _, _ := strings.Cut(value, " ")
			item.CompletedAt, _ = time.Parse(time.RFC3339, stamp)
		case "Tasks":
			if _, err := fmt.Sscanf(value, "%d/%d", &result.CompletedTasks, &result.TotalTasks); err == nil {
				hasResult = true
			}
		case "Modified":
			result.ModifiedFiles = append(result.ModifiedFiles, value)
		case "Error":
			result.Error = value
			hasResult = true
		}
	}
	if err := scanner.Err(); err != nil {
		return models.HistoryItem{}, fmt.Errorf("failed to read execution log %s: %w", path, err)
	}
	if hasResult {
		item.Result = &result
	}
	return item, nil
}
