package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/ensemble/internal/agent"
	"github.com/harrison/ensemble/internal/consensus"
	"github.com/harrison/ensemble/internal/models"
)

// ProviderConfig overrides one provider's defaults.
type ProviderConfig struct {
	// Path to the provider binary (default: looked up on PATH)
	Path string `yaml:"path"`

	// Model used when a request names none
	Model string `yaml:"model"`

	// Weight for the weighted consensus strategy (nil keeps the built-in weight)
	Weight *float64 `yaml:"weight"`

	// Trust seeds the provider's consensus confidence (nil keeps the built-in trust)
	Trust *float64 `yaml:"trust"`
}

// ScoringConfig holds the consensus confidence nudges.
type ScoringConfig struct {
	LengthFloor    int     `yaml:"length_floor"`
	LengthBonus    float64 `yaml:"length_bonus"`
	CodeBonus      float64 `yaml:"code_bonus"`
	StructureBonus float64 `yaml:"structure_bonus"`
	PrefixLength   int     `yaml:"prefix_length"`
}

// ConsensusConfig holds consensus run defaults.
type ConsensusConfig struct {
	// Providers polled, in tie-break order
	Providers []string `yaml:"providers"`

	// Strategy is one of majority, weighted, unanimous, best_of_n
	Strategy string `yaml:"strategy"`

	// Timeout for the whole run
	Timeout time.Duration `yaml:"-"`

	// Threshold is the majority similarity cut-off in (0, 1]
	Threshold float64 `yaml:"threshold"`

	// Weights overrides per-provider weights for the weighted strategy
	Weights map[string]float64 `yaml:"weights"`

	Scoring ScoringConfig `yaml:"scoring"`
}

// Config represents ensemble configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir holds run logs and execution transcripts, relative to the ensemble home ("" disables file logs)
	LogDir string `yaml:"log_dir"`

	// DefaultProvider runs primary executions that name no provider
	DefaultProvider string `yaml:"default_provider"`

	// Timeout is the default wall-clock limit of a primary execution (0 = none)
	Timeout time.Duration `yaml:"-"`

	// GracePeriod is the wait between terminate and kill
	GracePeriod time.Duration `yaml:"-"`

	// HistorySize is the number of finished executions remembered
	HistorySize int `yaml:"history_size"`

	// Retention keeps finished executions queryable by id
	Retention time.Duration `yaml:"-"`

	// SweepInterval is how often expired executions are purged
	SweepInterval time.Duration `yaml:"-"`

	// ProbeTimeout bounds each provider availability check
	ProbeTimeout time.Duration `yaml:"-"`

	// TempDir holds per-invocation input files ("" = system temp dir)
	TempDir string `yaml:"temp_dir"`

	// Providers overrides keyed by provider name
	Providers map[string]ProviderConfig `yaml:"providers"`

	Consensus ConsensusConfig `yaml:"consensus"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	def := consensus.DefaultConsensusConfig()
	scoring := consensus.DefaultScoringConfig()
	return &Config{
		LogLevel:        "info",
		LogDir:          "logs",
		DefaultProvider: agent.Claude.String(),
		Timeout:         30 * time.Minute,
		GracePeriod:     5 * time.Second,
		HistorySize:     100,
		Retention:       time.Hour,
		SweepInterval:   5 * time.Minute,
		ProbeTimeout:    agent.DefaultProbeTimeout,
		Providers:       map[string]ProviderConfig{},
		Consensus: ConsensusConfig{
			Providers: def.Providers,
			Strategy:  string(def.Strategy),
			Timeout:   def.Timeout,
			Threshold: def.Threshold,
			Scoring: ScoringConfig{
				LengthFloor:    scoring.LengthFloor,
				LengthBonus:    scoring.LengthBonus,
				CodeBonus:      scoring.CodeBonus,
				StructureBonus: scoring.StructureBonus,
				PrefixLength:   scoring.PrefixLength,
			},
		},
	}
}

// durations is the string form of every duration key in the file.
type durations struct {
	Timeout       string `yaml:"timeout"`
	GracePeriod   string `yaml:"grace_period"`
	Retention     string `yaml:"retention"`
	SweepInterval string `yaml:"sweep_interval"`
	ProbeTimeout  string `yaml:"probe_timeout"`
	Consensus     struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"consensus"`
}

// LoadConfig loads configuration from the specified file path.
// A missing file yields the defaults; a malformed file is an error.
// Keys present in the file override defaults; absent keys keep them.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding onto the defaults keeps every key the file leaves out.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var d durations
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for _, field := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"timeout", d.Timeout, &cfg.Timeout},
		{"grace_period", d.GracePeriod, &cfg.GracePeriod},
		{"retention", d.Retention, &cfg.Retention},
		{"sweep_interval", d.SweepInterval, &cfg.SweepInterval},
		{"probe_timeout", d.ProbeTimeout, &cfg.ProbeTimeout},
		{"consensus.timeout", d.Consensus.Timeout, &cfg.Consensus.Timeout},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", field.key, field.value, err)
		}
		*field.dst = parsed
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	return cfg, nil
}

// LoadConfigFromDir loads configuration from .ensemble/config.yaml in dir.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".ensemble", "config.yaml"))
}

// Flags carries CLI overrides. Nil fields leave the configuration untouched.
type Flags struct {
	LogLevel           *string
	LogDir             *string
	Timeout            *time.Duration
	Provider           *string
	ConsensusProviders *[]string
	Strategy           *string
	Threshold          *float64
	ConsensusTimeout   *time.Duration
}

// MergeWithFlags merges CLI flags into the configuration.
// CLI flags take precedence over config file settings.
func (c *Config) MergeWithFlags(f Flags) {
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.Provider != nil {
		c.DefaultProvider = *f.Provider
	}
	if f.ConsensusProviders != nil {
		c.Consensus.Providers = append([]string(nil), (*f.ConsensusProviders)...)
	}
	if f.Strategy != nil {
		c.Consensus.Strategy = *f.Strategy
	}
	if f.Threshold != nil {
		c.Consensus.Threshold = *f.Threshold
	}
	if f.ConsensusTimeout != nil {
		c.Consensus.Timeout = *f.ConsensusTimeout
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	if _, err := agent.ParseProvider(c.DefaultProvider); err != nil {
		return fmt.Errorf("default_provider: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be > 0, got %v", c.GracePeriod)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be > 0, got %d", c.HistorySize)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be > 0, got %v", c.Retention)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be > 0, got %v", c.SweepInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be > 0, got %v", c.ProbeTimeout)
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := agent.ParseProvider(name); err != nil {
			return fmt.Errorf("providers: %w", err)
		}
		p := c.Providers[name]
		if p.Weight != nil && *p.Weight < 0 {
			return fmt.Errorf("providers.%s.weight must be >= 0, got %v", name, *p.Weight)
		}
		if p.Trust != nil && (*p.Trust < 0 || *p.Trust > 1) {
			return fmt.Errorf("providers.%s.trust must be in [0, 1], got %v", name, *p.Trust)
		}
	}

	if _, err := agent.ParseProviders(c.Consensus.Providers); err != nil {
		return fmt.Errorf("consensus.providers: %w", err)
	}
	cc := c.ConsensusDefaults()
	if err := cc.Validate(); err != nil {
		return fmt.Errorf("consensus: %w", err)
	}
	s := c.Consensus.Scoring
	if s.LengthFloor < 0 || s.PrefixLength < 0 || s.LengthBonus < 0 || s.CodeBonus < 0 || s.StructureBonus < 0 {
		return errors.New("consensus.scoring values must be >= 0")
	}
	return nil
}

// ApplyTo installs the provider overrides into a registry.
func (c *Config) ApplyTo(r *agent.Registry) error {
	for name, p := range c.Providers {
		provider, err := agent.ParseProvider(name)
		if err != nil {
			return err
		}
		r.Set(provider, agent.Override{Path: p.Path, Model: p.Model, Weight: p.Weight, Trust: p.Trust})
	}
	return nil
}

// ConsensusDefaults returns the configured consensus run settings.
func (c *Config) ConsensusDefaults() models.ConsensusConfig {
	cc := models.ConsensusConfig{
		Providers: append([]string(nil), c.Consensus.Providers...),
		Strategy:  models.Strategy(c.Consensus.Strategy),
		Timeout:   c.Consensus.Timeout,
		Threshold: c.Consensus.Threshold,
	}
	if s, err := models.ParseStrategy(c.Consensus.Strategy); err == nil {
		cc.Strategy = s
	}
	if len(c.Consensus.Weights) > 0 {
		cc.Weights = make(map[string]float64, len(c.Consensus.Weights))
		for k, v := range c.Consensus.Weights {
			cc.Weights[k] = v
		}
	}
	chosen := make(map[string]string)
	for name, p := range c.Providers {
		if p.Model != "" {
			chosen[name] = p.Model
		}
	}
	if len(chosen) > 0 {
		cc.Models = chosen
	}
	return cc
}

// Scoring returns the consensus confidence constants.
func (c *Config) Scoring() consensus.ScoringConfig {
	s := c.Consensus.Scoring
	return consensus.ScoringConfig{
		LengthFloor:    s.LengthFloor,
		LengthBonus:    s.LengthBonus,
		CodeBonus:      s.CodeBonus,
		StructureBonus: s.StructureBonus,
		PrefixLength:   s.PrefixLength,
	}
}
