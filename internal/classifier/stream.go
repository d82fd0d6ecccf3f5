package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// streamEvent is one record of the agent's stream-json output.
type streamEvent struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *streamMessage  `json:"message,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	CostUSD   float64         `json:"total_cost_usd,omitempty"`
	LegacyUSD float64         `json:"cost_usd,omitempty"`
	Duration  int64           `json:"duration_ms,omitempty"`
	NumTurns  int             `json:"num_turns,omitempty"`
}

type streamMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is a piece of a message. Tool results carry their payload in Content.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

// blocks decodes message content, which is either a string or a list of blocks.
func (m *streamMessage) blocks() []contentBlock {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(m.Content, &blocks); err == nil {
		return blocks
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil && s != "" {
		return []contentBlock{{Type: "text", Text: s}}
	}
	return nil
}

// rawText renders a raw JSON value (string, block list, or object) as plain text.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			} else if t := rawText(b.Content); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if msg, ok := obj["message"].(string); ok {
			return msg
		}
	}
	return string(raw)
}

// toolInput extracts a human label and a touched file path from a tool input.
func toolInput(name string, raw json.RawMessage) (label string, filePath string) {
	var in map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &in) != nil {
		return name, ""
	}
	switch name {
	case "Write", "Edit", "MultiEdit", "NotebookEdit":
		if p, ok := in["file_path"].(string); ok {
			filePath = p
		} else if p, ok := in["notebook_path"].(string); ok {
			filePath = p
		}
	}
	switch {
	case filePath != "":
		label = fmt.Sprintf("%s %s", name, filePath)
	case in["command"] != nil:
		label = fmt.Sprintf("%s: %v", name, in["command"])
	case in["pattern"] != nil:
		label = fmt.Sprintf("%s: %v", name, in["pattern"])
	case in["file_path"] != nil:
		label = fmt.Sprintf("%s %v", name, in["file_path"])
	default:
		label = name
	}
	return truncate(label, 200), filePath
}

// truncate cuts s to at most max bytes, backing off to a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
