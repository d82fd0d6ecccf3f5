package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Strategy selects the voting algorithm of a consensus run.
type Strategy string

// Voting strategies
const (
	StrategyMajority  Strategy = "majority"  // Largest similarity cluster wins
	StrategyWeighted  Strategy = "weighted"  // Highest weight x confidence wins
	StrategyUnanimous Strategy = "unanimous" // Every output must normalize identically
	StrategyBestOfN   Strategy = "best_of_n" // Highest confidence wins
)

// ErrUnknownStrategy is returned for strategy names outside the closed set.
var ErrUnknownStrategy = errors.New("unknown consensus strategy")

// ParseStrategy converts a string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMajority, StrategyWeighted, StrategyUnanimous, StrategyBestOfN:
		return Strategy(s), nil
	case "best-of-n", "bestofn":
		return StrategyBestOfN, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// ProviderResult is one consensus participant's outcome.
type ProviderResult struct {
	Provider   string        `json:"provider"`
	Model      string        `json:"model,omitempty"`
	Success    bool          `json:"success"`
	Output     string        `json:"output"`
	Confidence float64       `json:"confidence,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// ConsensusConfig configures one consensus run. Provider order breaks ties.
type ConsensusConfig struct {
	Providers []string           `json:"providers"`
	Models    map[string]string  `json:"models,omitempty"`
	Strategy  Strategy           `json:"strategy"`
	Weights   map[string]float64 `json:"weights,omitempty"`
	Timeout   time.Duration      `json:"timeout"`
	Threshold float64            `json:"threshold"`
}

// Validate checks the configuration for a consensus run.
func (c *ConsensusConfig) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		key := strings.ToLower(strings.TrimSpace(p))
		if seen[key] {
			return fmt.Errorf("duplicate provider %q", p)
		}
		seen[key] = true
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	for p, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("weight for %q must be >= 0, got %v", p, w)
		}
	}
	return nil
}

// ConsensusMetadata summarises a consensus run.
type ConsensusMetadata struct {
	ProviderCount   int           `json:"provider_count"`
	SuccessfulCount int           `json:"successful_count"`
	AverageDuration time.Duration `json:"average_duration"`
}

// ConsensusResult is the outcome of a consensus run. Built once, never mutated.
type ConsensusResult struct {
	Success         bool              `json:"success"`
	Strategy        Strategy          `json:"strategy"`
	FinalOutput     string            `json:"final_output"`
	Confidence      float64           `json:"confidence"`
	ProviderResults []ProviderResult  `json:"provider_results"`
	Agreement       float64           `json:"agreement"`
	Metadata        ConsensusMetadata `json:"metadata"`
}

// Successful returns the successful provider results in configuration order.
func (r *ConsensusResult) Successful() []ProviderResult {
	var out []ProviderResult
	for _, pr := range r.ProviderResults {
		if pr.Success {
			out = append(out, pr)
		}
	}
	return out
}
