package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/ensemble/internal/models"
)

// TaskPrompt builds a prompt from the request's task fields. A request that
// already carries a prompt is passed through unchanged.
var TaskPrompt = PromptFunc(func(_ context.Context, req models.ExecutionRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) != "" {
		return req.Prompt, nil
	}
	return buildTaskPrompt(req), nil
})

func buildTaskPrompt(req models.ExecutionRequest) string {
	var b strings.Builder

	switch req.Mode {
	case models.ModeSingle:
		b.WriteString("# SUB-TASK\n\n")
		b.WriteString(fmt.Sprintf("Implement sub-task %s of task %s. Do not start other sub-tasks.\n", req.SubTaskID, req.TaskID))
	case models.ModeAnalysis:
		b.WriteString("# ANALYSIS\n\n")
		b.WriteString(fmt.Sprintf("Analyse task %s and report findings. Do not modify any files.\n", req.TaskID))
	default:
		b.WriteString("# TASK\n\n")
		b.WriteString(fmt.Sprintf("Implement every pending sub-task of task %s in order.\n", req.TaskID))
	}

	if req.Strategy != "" {
		b.WriteString(fmt.Sprintf("\n<strategy>%s</strategy>\n", req.Strategy))
	}
	if req.MaxParallel > 1 {
		b.WriteString(fmt.Sprintf("\nYou may work on up to %d sub-tasks in parallel.\n", req.MaxParallel))
	}
	if req.Mode != models.ModeAnalysis {
		b.WriteString("\nAnnounce each sub-task as you start it and report when it is complete.\n")
	}
	return b.String()
}
