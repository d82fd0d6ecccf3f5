// Package classifier turns single lines of agent output into typed log entries.
//
// Two grammars are understood. Lines that decode as stream-json records are
// mapped by their "type" discriminator (structured mode); everything else is
// classified by leading glyphs and keywords (heuristic mode). A malformed record
// never fails the stream, it simply falls through to heuristic mode.
package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/ensemble/internal/models"
)

// Progress steps applied by structured records.
const (
	ToolUseStep    = 10
	CompletionStep = 5
)

// AttemptKind reports which grammar produced a ParseAttempt.
type AttemptKind int

const (
	// Unclassified lines (blank) produce no entry.
	Unclassified AttemptKind = iota
	// Structured lines decoded as stream-json records.
	Structured
	// Heuristic lines classified by glyph/keyword rules.
	Heuristic
)

// String returns the string representation of AttemptKind.
func (k AttemptKind) String() string {
	switch k {
	case Structured:
		return "structured"
	case Heuristic:
		return "heuristic"
	default:
		return "unclassified"
	}
}

// HintOp is the operation a ProgressHint applies.
type HintOp int

// Hint operations
const (
	HintNone HintOp = iota
	HintSet
	HintIncrement
)

// ProgressHint is an optional progress signal extracted from one line.
type ProgressHint struct {
	Op    HintOp
	Value int
}

// Apply returns the progress after applying the hint to current.
// The result is clamped to [0,100] and never lower than current.
func (h ProgressHint) Apply(current int) int {
	next := current
	switch h.Op {
	case HintSet:
		next = h.Value
	case HintIncrement:
		next = current + h.Value
	}
	if next > 100 {
		next = 100
	}
	if next < current {
		next = current
	}
	if next < 0 {
		next = 0
	}
	return next
}

// ParseAttempt is the result of classifying one line.
// Entry is nil only for Unclassified attempts. Entry.Timestamp is left zero for
// the caller to stamp.
type ParseAttempt struct {
	Kind       AttemptKind
	Entry      *models.LogEntry
	Hint       ProgressHint
	Completion bool // a tool result reported a finished unit of work
}

// completionTokens mark a tool result as having finished something.
var completionTokens = []string{"done", "completed", "✓", "✅", "[x]", "完成", "terminé", "erledigt"}

// systemGlyphs lead status lines printed by agent launchers.
var systemGlyphs = []string{"🚀", "⚙️", "⚙", "📋", "🔧", "🤖", "✨"}

// Classify classifies a single line of output. It never fails.
func Classify(line string) ParseAttempt {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ParseAttempt{Kind: Unclassified}
	}
	if strings.HasPrefix(trimmed, "{") {
		if attempt, ok := classifyStructured(trimmed); ok {
			return attempt
		}
	}
	return classifyHeuristic(trimmed)
}

func classifyStructured(line string) (ParseAttempt, bool) {
	var ev streamEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Type == "" {
		return ParseAttempt{}, false
	}

	md := map[string]interface{}{}
	if ev.SessionID != "" {
		md["session_id"] = ev.SessionID
	}

	switch ev.Type {
	case "assistant":
		var texts, tools []string
		for _, b := range ev.Message.blocks() {
			switch b.Type {
			case "text":
				if t := strings.TrimSpace(b.Text); t != "" {
					texts = append(texts, t)
				}
			case "tool_use":
				label, path := toolInput(b.Name, b.Input)
				tools = append(tools, label)
				md["tool_name"] = b.Name
				if path != "" {
					md["file_path"] = path
				}
			}
		}
		if len(tools) > 0 {
			if len(texts) > 0 {
				md["text"] = strings.Join(texts, "\n")
			}
			return structured(models.LogToolUse, strings.Join(tools, "; "), md, ProgressHint{Op: HintIncrement, Value: ToolUseStep}), true
		}
		if len(texts) == 0 {
			return ParseAttempt{}, false
		}
		return structured(models.LogAssistant, strings.Join(texts, "\n"), md, ProgressHint{}), true

	case "user":
		var results []string
		for _, b := range ev.Message.blocks() {
			if b.Type == "tool_result" {
				results = append(results, rawText(b.Content))
			}
		}
		if len(results) == 0 {
			return structured(models.LogInfo, rawText(messageContent(ev.Message)), md, ProgressHint{}), true
		}
		return toolResult(strings.Join(results, "\n"), md), true

	case "tool_use":
		label, path := toolInput(ev.Name, ev.Input)
		md["tool_name"] = ev.Name
		if path != "" {
			md["file_path"] = path
		}
		return structured(models.LogToolUse, label, md, ProgressHint{Op: HintIncrement, Value: ToolUseStep}), true

	case "tool_result":
		content := rawText(ev.Content)
		if content == "" {
			content = ev.Result
		}
		return toolResult(content, md), true

	case "error":
		msg := rawText(ev.Error)
		if msg == "" {
			msg = ev.Result
		}
		if msg == "" {
			msg = "unknown error"
		}
		return structured(models.LogError, msg, md, ProgressHint{}), true

	case "system":
		content := ev.Subtype
		if ev.Subtype == "init" {
			content = "Session started"
			if ev.SessionID != "" {
				content = fmt.Sprintf("Session started (%s)", ev.SessionID)
			}
		}
		if content == "" {
			content = rawText(messageContent(ev.Message))
		}
		return structured(models.LogSystem, content, md, ProgressHint{}), true

	case "result":
		cost := ev.CostUSD
		if cost == 0 {
			cost = ev.LegacyUSD
		}
		md["cost_usd"] = cost
		md["duration_ms"] = ev.Duration
		md["num_turns"] = ev.NumTurns
		if ev.Result != "" {
			md["result"] = ev.Result
		}
		if ev.IsError {
			msg := ev.Result
			if msg == "" {
				msg = "agent reported an error"
			}
			return structured(models.LogError, msg, md, ProgressHint{}), true
		}
		return structured(models.LogProgress, resultSummary(ev.Duration, cost, ev.NumTurns), md, ProgressHint{Op: HintSet, Value: 100}), true
	}

	return ParseAttempt{}, false
}

func messageContent(m *streamMessage) json.RawMessage {
	if m == nil {
		return nil
	}
	return m.Content
}

func toolResult(content string, md map[string]interface{}) ParseAttempt {
	attempt := structured(models.LogToolResult, truncate(content, 2000), md, ProgressHint{})
	if hasCompletionToken(content) {
		attempt.Hint = ProgressHint{Op: HintIncrement, Value: CompletionStep}
		attempt.Completion = true
	}
	return attempt
}

func structured(t models.LogType, content string, md map[string]interface{}, hint ProgressHint) ParseAttempt {
	if len(md) == 0 {
		md = nil
	}
	return ParseAttempt{
		Kind:  Structured,
		Entry: &models.LogEntry{Type: t, Content: content, Metadata: md},
		Hint:  hint,
	}
}

func resultSummary(durationMS int64, cost float64, turns int) string {
	d := time.Duration(durationMS) * time.Millisecond
	return fmt.Sprintf("Completed in %.1fs, cost $%.4f, %d turns", d.Seconds(), cost, turns)
}

func hasCompletionToken(s string) bool {
	lower := strings.ToLower(s)
	for _, tok := range completionTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func classifyHeuristic(line string) ParseAttempt {
	lower := strings.ToLower(line)
	heuristic := func(t models.LogType, hint ProgressHint) ParseAttempt {
		return ParseAttempt{
			Kind:  Heuristic,
			Entry: &models.LogEntry{Type: t, Content: line},
			Hint:  hint,
		}
	}

	for _, glyph := range systemGlyphs {
		if strings.HasPrefix(line, glyph) {
			switch {
			case strings.Contains(lower, "completed successfully"):
				return heuristic(models.LogSystem, ProgressHint{Op: HintSet, Value: 100})
			case strings.Contains(lower, "launching"):
				return heuristic(models.LogSystem, ProgressHint{Op: HintSet, Value: 10})
			case strings.Contains(lower, "launched"):
				return heuristic(models.LogSystem, ProgressHint{Op: HintSet, Value: 30})
			}
			return heuristic(models.LogSystem, ProgressHint{})
		}
	}

	if strings.Contains(lower, "error") {
		return heuristic(models.LogError, ProgressHint{})
	}
	if strings.Contains(lower, "done!") || strings.Contains(lower, "completed") {
		return heuristic(models.LogAssistant, ProgressHint{Op: HintSet, Value: 90})
	}
	return heuristic(models.LogInfo, ProgressHint{})
}
