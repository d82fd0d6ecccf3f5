package classifier

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ensemble/internal/models"
)

func TestClassify_Structured(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantType    models.LogType
		wantContent string
		wantHint    ProgressHint
	}{
		{
			name:        "assistant text",
			line:        `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Reading the code"}]}}`,
			wantType:    models.LogAssistant,
			wantContent: "Reading the code",
		},
		{
			name:        "assistant tool use increments",
			line:        `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Edit","input":{"file_path":"main.go"}}]}}`,
			wantType:    models.LogToolUse,
			wantContent: "Edit main.go",
			wantHint:    ProgressHint{Op: HintIncrement, Value: ToolUseStep},
		},
		{
			name:        "top-level tool use",
			line:        `{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}}`,
			wantType:    models.LogToolUse,
			wantContent: "Bash: go test ./...",
			wantHint:    ProgressHint{Op: HintIncrement, Value: ToolUseStep},
		},
		{
			name:        "tool result without completion token",
			line:        `{"type":"tool_result","content":"3 files changed"}`,
			wantType:    models.LogToolResult,
			wantContent: "3 files changed",
		},
		{
			name:        "tool result with completion token",
			line:        `{"type":"tool_result","content":"Task 2 completed"}`,
			wantType:    models.LogToolResult,
			wantContent: "Task 2 completed",
			wantHint:    ProgressHint{Op: HintIncrement, Value: CompletionStep},
		},
		{
			name:        "tool result with checkbox glyph",
			line:        `{"type":"tool_result","content":"✅ lint"}`,
			wantType:    models.LogToolResult,
			wantContent: "✅ lint",
			wantHint:    ProgressHint{Op: HintIncrement, Value: CompletionStep},
		},
		{
			name:        "user message carrying tool results",
			line:        `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","content":"done"}]}}`,
			wantType:    models.LogToolResult,
			wantContent: "done",
			wantHint:    ProgressHint{Op: HintIncrement, Value: CompletionStep},
		},
		{
			name:        "error record",
			line:        `{"type":"error","error":{"message":"rate limited"}}`,
			wantType:    models.LogError,
			wantContent: "rate limited",
		},
		{
			name:        "system init",
			line:        `{"type":"system","subtype":"init","session_id":"abc"}`,
			wantType:    models.LogSystem,
			wantContent: "Session started (abc)",
		},
		{
			name:        "result sets 100",
			line:        `{"type":"result","subtype":"success","result":"ok","total_cost_usd":0.0421,"duration_ms":12300,"num_turns":7}`,
			wantType:    models.LogProgress,
			wantContent: "Completed in 12.3s, cost $0.0421, 7 turns",
			wantHint:    ProgressHint{Op: HintSet, Value: 100},
		},
		{
			name:        "error result does not move progress",
			line:        `{"type":"result","is_error":true,"result":"max turns reached"}`,
			wantType:    models.LogError,
			wantContent: "max turns reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)
			require.Equal(t, Structured, got.Kind)
			require.NotNil(t, got.Entry)
			assert.Equal(t, tt.wantType, got.Entry.Type)
			assert.Equal(t, tt.wantContent, got.Entry.Content)
			assert.Equal(t, tt.wantHint, got.Hint)
		})
	}
}

func TestClassify_ToolUseMetadata(t *testing.T) {
	got := Classify(`{"type":"assistant","session_id":"s1","message":{"content":[{"type":"text","text":"Writing"},{"type":"tool_use","name":"Write","input":{"file_path":"a/b.go","content":"x"}}]}}`)

	require.NotNil(t, got.Entry)
	assert.Equal(t, "Write", got.Entry.Metadata["tool_name"])
	assert.Equal(t, "a/b.go", got.Entry.Metadata["file_path"])
	assert.Equal(t, "s1", got.Entry.Metadata["session_id"])
	assert.Equal(t, "Writing", got.Entry.Metadata["text"])
}

func TestClassify_Heuristic(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType models.LogType
		wantHint ProgressHint
	}{
		{"launching", "🚀 Launching agent...", models.LogSystem, ProgressHint{Op: HintSet, Value: 10}},
		{"launched", "🚀 Agent launched", models.LogSystem, ProgressHint{Op: HintSet, Value: 30}},
		{"completed successfully", "✨ Execution completed successfully", models.LogSystem, ProgressHint{Op: HintSet, Value: 100}},
		{"plain glyph line", "📋 Loading tasks", models.LogSystem, ProgressHint{}},
		{"error keyword", "Build ERROR in pkg/foo", models.LogError, ProgressHint{}},
		{"done bang", "All done!", models.LogAssistant, ProgressHint{Op: HintSet, Value: 90}},
		{"completed keyword", "Step completed", models.LogAssistant, ProgressHint{Op: HintSet, Value: 90}},
		{"anything else", "compiling", models.LogInfo, ProgressHint{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)
			require.Equal(t, Heuristic, got.Kind)
			assert.Equal(t, tt.wantType, got.Entry.Type)
			assert.Equal(t, tt.line, got.Entry.Content)
			assert.Equal(t, tt.wantHint, got.Hint)
		})
	}
}

func TestClassify_MalformedFallsThrough(t *testing.T) {
	lines := []string{
		`{"type":"assistant"`,
		`{not json at all}`,
		`{"no_type":true}`,
		`{"type":"unknown_kind"}`,
		`{`,
		"\x00\x01",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			var got ParseAttempt
			require.NotPanics(t, func() { got = Classify(line) })
			assert.Equal(t, Heuristic, got.Kind)
			require.NotNil(t, got.Entry)
		})
	}
}

func TestClassify_BlankLines(t *testing.T) {
	for _, line := range []string{"", "   ", "\r\n", "\t"} {
		got := Classify(line)
		assert.Equal(t, Unclassified, got.Kind)
		assert.Nil(t, got.Entry)
	}
}

func TestProgressHint_Apply(t *testing.T) {
	tests := []struct {
		name    string
		hint    ProgressHint
		current int
		want    int
	}{
		{"none keeps value", ProgressHint{}, 40, 40},
		{"set raises", ProgressHint{Op: HintSet, Value: 90}, 40, 90},
		{"set never lowers", ProgressHint{Op: HintSet, Value: 10}, 40, 40},
		{"increment", ProgressHint{Op: HintIncrement, Value: 10}, 40, 50},
		{"increment capped", ProgressHint{Op: HintIncrement, Value: 10}, 95, 100},
		{"set capped", ProgressHint{Op: HintSet, Value: 150}, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.hint.Apply(tt.current))
		})
	}
}

func TestProgressHint_MonotonicOverStream(t *testing.T) {
	lines := []string{
		"🚀 Launching agent",
		`{"type":"tool_use","name":"Read","input":{"file_path":"x"}}`,
		"🚀 Agent launched",
		`{"type":"tool_use","name":"Read","input":{"file_path":"x"}}`,
		"Done!",
		"🚀 Launching agent",
		`{"type":"result","duration_ms":1}`,
		`{"type":"tool_use","name":"Read"}`,
	}
	progress := 0
	for _, line := range lines {
		next := Classify(line).Hint.Apply(progress)
		assert.GreaterOrEqual(t, next, progress)
		assert.LessOrEqual(t, next, 100)
		progress = next
	}
	assert.Equal(t, 100, progress)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("é", 150) // 300 bytes
	got := truncate(s, 199)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 99)+"...", got)

	assert.Equal(t, "short", truncate("short", 200))

	attempt := Classify(`{"type":"tool_result","content":"` + strings.Repeat("日本", 500) + `"}`)
	require.NotNil(t, attempt.Entry)
	assert.True(t, utf8.ValidString(attempt.Entry.Content))
}
