// Package agent maps AI agent CLI providers to concrete command invocations.
package agent

import (
	"fmt"
	"strings"
)

// Provider is one supported agent CLI. The set is closed: every Provider value
// has a Spec in specs, and ParseProvider rejects anything else.
type Provider string

// Supported providers
const (
	Claude Provider = "claude"
	Codex  Provider = "codex"
	Gemini Provider = "gemini"
	Ollama Provider = "ollama"
)

// OutputMode selects which command template to build.
type OutputMode int

const (
	// StreamOutput emits line-delimited stream-json records (primary execution).
	StreamOutput OutputMode = iota
	// PlainOutput emits the final answer as plain text (consensus votes).
	PlainOutput
)

// Spec is the static description of a provider.
type Spec struct {
	Binary       string
	DefaultModel string
	BaseTrust    float64 // Confidence seed for consensus scoring
	VoteWeight   float64 // Default weight for the weighted strategy
	VersionArgs  []string
}

var specs = map[Provider]Spec{
	Claude: {Binary: "claude", DefaultModel: "sonnet", BaseTrust: 0.85, VoteWeight: 1.0, VersionArgs: []string{"--version"}},
	Codex:  {Binary: "codex", DefaultModel: "gpt-5-codex", BaseTrust: 0.80, VoteWeight: 0.9, VersionArgs: []string{"--version"}},
	Gemini: {Binary: "gemini", DefaultModel: "gemini-2.5-pro", BaseTrust: 0.75, VoteWeight: 0.85, VersionArgs: []string{"--version"}},
	Ollama: {Binary: "ollama", DefaultModel: "llama3.1", BaseTrust: 0.60, VoteWeight: 0.6, VersionArgs: []string{"--version"}},
}

// AllProviders returns every provider in canonical order.
func AllProviders() []Provider {
	return []Provider{Claude, Codex, Gemini, Ollama}
}

// ParseProvider converts a name to a Provider (case-insensitive).
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := specs[p]; ok {
		return p, nil
	}
	return "", &UnknownProviderError{Name: name, Available: AllProviders()}
}

// Spec returns the static description of the provider.
func (p Provider) Spec() Spec {
	s, ok := specs[p]
	if !ok {
		panic(fmt.Sprintf("agent: no spec for provider %q", p))
	}
	return s
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// hookFreeSettings disables user hooks for automated claude runs.
const hookFreeSettings = `{"disableAllHooks": true}`

// buildArgs returns the argument list for a provider, model and mode.
// The prompt is always delivered on stdin.
func buildArgs(p Provider, model string, mode OutputMode) []string {
	switch p {
	case Claude:
		args := []string{"-p"}
		if mode == StreamOutput {
			args = append(args, "--verbose", "--output-format", "stream-json", "--dangerously-skip-permissions")
		} else {
			args = append(args, "--output-format", "text")
		}
		args = append(args, "--model", model, "--settings", hookFreeSettings)
		return args
	case Codex:
		args := []string{"exec", "--model", model}
		if mode == StreamOutput {
			args = append(args, "--json", "--full-auto")
		}
		return append(args, "-")
	case Gemini:
		args := []string{"--model", model}
		if mode == StreamOutput {
			args = append(args, "--output-format", "stream-json", "--yolo")
		}
		return args
	case Ollama:
		return []string{"run", model}
	default:
		panic(fmt.Sprintf("agent: no command template for provider %q", p))
	}
}
