package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ensemble/internal/models"
)

func TestTaskPrompt(t *testing.T) {
	tests := []struct {
		name     string
		req      models.ExecutionRequest
		contains []string
		excludes []string
	}{
		{
			name:     "explicit prompt wins",
			req:      models.ExecutionRequest{TaskID: "t1", Prompt: "do exactly this"},
			contains: []string{"do exactly this"},
			excludes: []string{"# TASK"},
		},
		{
			name:     "full mode",
			req:      models.ExecutionRequest{TaskID: "add-auth", Mode: models.ModeFull, MaxParallel: 3},
			contains: []string{"# TASK", "task add-auth", "up to 3 sub-tasks"},
		},
		{
			name:     "single mode",
			req:      models.ExecutionRequest{TaskID: "add-auth", Mode: models.ModeSingle, SubTaskID: "2.1", Strategy: "tdd"},
			contains: []string{"# SUB-TASK", "sub-task 2.1 of task add-auth", "<strategy>tdd</strategy>"},
		},
		{
			name:     "analysis mode",
			req:      models.ExecutionRequest{TaskID: "add-auth", Mode: models.ModeAnalysis},
			contains: []string{"# ANALYSIS", "Do not modify"},
			excludes: []string{"Announce each sub-task"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TaskPrompt.BuildPrompt(context.Background(), tt.req)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}
