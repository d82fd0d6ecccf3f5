// Package consensus fans a prompt out to several agent providers, races them
// against a deadline and reduces their answers to one with a voting strategy.
package consensus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/ensemble/internal/agent"
	"github.com/harrison/ensemble/internal/logger"
	"github.com/harrison/ensemble/internal/models"
	"github.com/harrison/ensemble/internal/runner"
	"github.com/harrison/ensemble/internal/similarity"
)

// Defaults for a consensus run.
const (
	DefaultTimeout   = 5 * time.Minute
	DefaultThreshold = 0.5
)

// DefaultConsensusConfig returns a majority vote across claude, codex and gemini.
func DefaultConsensusConfig() models.ConsensusConfig {
	return models.ConsensusConfig{
		Providers: []string{agent.Claude.String(), agent.Codex.String(), agent.Gemini.String()},
		Strategy:  models.StrategyMajority,
		Timeout:   DefaultTimeout,
		Threshold: DefaultThreshold,
	}
}

// Orchestrator runs consensus votes. Safe for concurrent use.
type Orchestrator struct {
	runner     runner.Runner
	registry   *agent.Registry
	scorer     *Scorer
	similarity similarity.Similarity
	workDir    string
	logger     logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.OrNop(l) }
}

// WithScorer replaces the default confidence scorer.
func WithScorer(s *Scorer) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.scorer = s
		}
	}
}

// WithSimilarity replaces the Jaccard measure used by the majority strategy.
func WithSimilarity(s similarity.Similarity) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.similarity = s
		}
	}
}

// WithWorkDir sets the directory provider processes run in.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// NewOrchestrator creates an Orchestrator. A nil registry uses built-in defaults.
func NewOrchestrator(run runner.Runner, registry *agent.Registry, opts ...Option) *Orchestrator {
	if registry == nil {
		registry = agent.NewRegistry()
	}
	o := &Orchestrator{
		runner:     run,
		registry:   registry,
		scorer:     NewScorer(DefaultScoringConfig()),
		similarity: similarity.Jaccard{},
		logger:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates cfg and executes the vote.
func (o *Orchestrator) Run(ctx context.Context, prompt string, cfg models.ConsensusConfig) (*models.ConsensusResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consensus config: %w", err)
	}
	return o.Execute(ctx, prompt, cfg), nil
}

// Execute sends prompt to every configured provider at once and votes on the
// answers that arrive before cfg.Timeout. Providers still pending at the
// deadline are recorded as timed out and their processes cancelled.
// Every configured provider appears exactly once in ProviderResults, in
// configuration order. Total failure is reported as a zero-confidence result.
func (o *Orchestrator) Execute(ctx context.Context, prompt string, cfg models.ConsensusConfig) *models.ConsensusResult {
	cfg = withDefaults(cfg)
	start := time.Now()
	o.logger.Infof("consensus: %d providers, strategy %s, timeout %s", len(cfg.Providers), cfg.Strategy, cfg.Timeout)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		closed   bool
		results  = make([]models.ProviderResult, len(cfg.Providers))
		resolved = make([]bool, len(cfg.Providers))
	)

	g, gctx := errgroup.WithContext(runCtx)
	for i, name := range cfg.Providers {
		i, name := i, name
		g.Go(func() error {
			pr := o.runProvider(gctx, name, prompt, cfg)
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				results[i] = pr
				resolved[i] = true
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()

	pendingErr := ""
	select {
	case <-done:
	case <-timer.C:
		pendingErr = fmt.Sprintf("timeout: provider did not respond within %s", cfg.Timeout)
	case <-ctx.Done():
		pendingErr = fmt.Sprintf("canceled: %v", ctx.Err())
	}

	mu.Lock()
	closed = true
	for i, ok := range resolved {
		if ok {
			continue
		}
		results[i] = models.ProviderResult{
			Provider: cfg.Providers[i],
			Model:    o.modelFor(cfg.Providers[i], cfg),
			Duration: time.Since(start),
			Error:    pendingErr,
		}
		o.logger.Warnf("consensus: %s %s", cfg.Providers[i], pendingErr)
	}
	mu.Unlock()

	result := o.tally(results, cfg)
	o.logger.Infof("consensus: %d/%d providers succeeded, confidence %.2f, agreement %.2f",
		result.Metadata.SuccessfulCount, result.Metadata.ProviderCount, result.Confidence, result.Agreement)
	return result
}

func (o *Orchestrator) runProvider(ctx context.Context, name, prompt string, cfg models.ConsensusConfig) models.ProviderResult {
	pr := models.ProviderResult{Provider: name}
	start := time.Now()

	p, err := agent.ParseProvider(name)
	if err != nil {
		pr.Error = err.Error()
		return pr
	}
	pr.Model = o.registry.Model(p, cfg.Models[name])

	inv := o.registry.Command(p, pr.Model, agent.PlainOutput, prompt)
	inv.Dir = o.workDir
	inv.Timeout = cfg.Timeout

	out, err := o.runner.Run(ctx, inv)
	pr.Duration = time.Since(start)
	if out != nil {
		pr.Output = strings.TrimSpace(out.Stdout)
	}
	if err != nil {
		pr.Error = err.Error()
		o.logger.Warnf("consensus: %s failed: %v", name, err)
		return pr
	}
	if pr.Output == "" {
		pr.Error = "provider returned empty output"
		return pr
	}

	pr.Success = true
	pr.Confidence = o.scorer.Score(o.registry.Trust(p), pr.Output)
	o.logger.Debugf("consensus: %s answered in %s (confidence %.2f)", name, pr.Duration.Round(time.Millisecond), pr.Confidence)
	return pr
}

func (o *Orchestrator) modelFor(name string, cfg models.ConsensusConfig) string {
	p, err := agent.ParseProvider(name)
	if err != nil {
		return ""
	}
	return o.registry.Model(p, cfg.Models[name])
}

// tally applies the strategy to the successful results.
func (o *Orchestrator) tally(results []models.ProviderResult, cfg models.ConsensusConfig) *models.ConsensusResult {
	res := &models.ConsensusResult{
		Strategy:        cfg.Strategy,
		ProviderResults: results,
		Metadata:        models.ConsensusMetadata{ProviderCount: len(results)},
	}

	successes := res.Successful()
	res.Metadata.SuccessfulCount = len(successes)
	if len(successes) == 0 {
		return res
	}

	var total time.Duration
	for _, s := range successes {
		total += s.Duration
	}
	res.Metadata.AverageDuration = total / time.Duration(len(successes))

	var d decision
	switch cfg.Strategy {
	case models.StrategyWeighted:
		d = voteWeighted(successes, func(provider string) float64 { return o.weightFor(provider, cfg) })
	case models.StrategyUnanimous:
		d = voteUnanimous(successes, o.scorer.Config().PrefixLength)
	case models.StrategyBestOfN:
		d = voteBestOfN(successes)
	default:
		d = voteMajority(successes, cfg.Threshold, o.similarity)
	}

	res.Success = d.ok
	res.FinalOutput = d.output
	res.Confidence = d.confidence
	res.Agreement = d.agreement
	return res
}

func (o *Orchestrator) weightFor(provider string, cfg models.ConsensusConfig) float64 {
	if w, ok := cfg.Weights[provider]; ok {
		return w
	}
	p, err := agent.ParseProvider(provider)
	if err != nil {
		return 1
	}
	return o.registry.VoteWeight(p)
}

// withDefaults fills zero fields so Execute never needs to fail on config.
func withDefaults(cfg models.ConsensusConfig) models.ConsensusConfig {
	def := DefaultConsensusConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = def.Threshold
	}
	if s, err := models.ParseStrategy(string(cfg.Strategy)); err == nil {
		cfg.Strategy = s
	} else {
		cfg.Strategy = def.Strategy
	}
	return cfg
}

// IsTimeout reports whether a provider result failed on the deadline.
func IsTimeout(pr models.ProviderResult) bool {
	return !pr.Success && strings.HasPrefix(pr.Error, "timeout")
}
