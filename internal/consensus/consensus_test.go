package consensus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ensemble/internal/agent"
	"github.com/harrison/ensemble/internal/models"
	"github.com/harrison/ensemble/internal/runner"
	"github.com/harrison/ensemble/internal/runner/fake"
)

func testConfig(strategy models.Strategy, providers ...string) models.ConsensusConfig {
	return models.ConsensusConfig{
		Providers: providers,
		Strategy:  strategy,
		Timeout:   2 * time.Second,
		Threshold: 0.5,
	}
}

func TestExecute_MajorityClusterBeatsConfidentSingleton(t *testing.T) {
	run := fake.New().
		On("claude", fake.Script{Stdout: []string{"The quick brown fox jumps over the lazy dog"}}).
		On("codex", fake.Script{Stdout: []string{"The quick brown fox jumped over the lazy dog"}}).
		On("gemini", fake.Script{Stdout: []string{"Completely unrelated answer about databases and indexes"}})
	reg := agent.NewRegistry()
	reg.Set(agent.Gemini, agent.Override{Trust: ptr(1.0)})

	res := NewOrchestrator(run, reg).Execute(context.Background(), "prompt",
		testConfig(models.StrategyMajority, "claude", "codex", "gemini"))

	require.True(t, res.Success)
	assert.Equal(t, "The quick brown fox jumps over the lazy dog", res.FinalOutput)
	assert.InDelta(t, 2.0/3.0, res.Agreement, 1e-9)
	assert.InDelta(t, 0.85*(0.5+0.5*2.0/3.0), res.Confidence, 1e-9)
	assert.Equal(t, models.StrategyMajority, res.Strategy)
	assert.Equal(t, 3, res.Metadata.ProviderCount)
	assert.Equal(t, 3, res.Metadata.SuccessfulCount)
}

func TestExecute_PreservesProviderOrder(t *testing.T) {
	run := fake.New().
		On("claude", fake.Script{Stdout: []string{"slow answer"}, LineDelay: 80 * time.Millisecond}).
		On("codex", fake.Script{Stdout: []string{"fast answer"}})

	res := NewOrchestrator(run, nil).Execute(context.Background(), "p",
		testConfig(models.StrategyBestOfN, "claude", "codex", "ollama"))

	require.Len(t, res.ProviderResults, 3)
	assert.Equal(t, "claude", res.ProviderResults[0].Provider)
	assert.Equal(t, "codex", res.ProviderResults[1].Provider)
	assert.Equal(t, "ollama", res.ProviderResults[2].Provider)
	assert.False(t, res.ProviderResults[2].Success)
	assert.Contains(t, res.ProviderResults[2].Error, "failed to start")
	assert.Equal(t, "llama3.1", res.ProviderResults[2].Model)
}

func TestExecute_Unanimous(t *testing.T) {
	t.Run("all match", func(t *testing.T) {
		run := fake.New().
			On("claude", fake.Script{Stdout: []string{"Use a Mutex."}}).
			On("codex", fake.Script{Stdout: []string{"use a   mutex"}})

		res := NewOrchestrator(run, nil).Execute(context.Background(), "p",
			testConfig(models.StrategyUnanimous, "claude", "codex"))

		assert.True(t, res.Success)
		assert.Equal(t, "Use a Mutex.", res.FinalOutput)
		assert.Equal(t, 1.0, res.Agreement)
		assert.InDelta(t, (0.85+0.80)/2, res.Confidence, 1e-9)
	})

	t.Run("any differ", func(t *testing.T) {
		run := fake.New().
			On("claude", fake.Script{Stdout: []string{"Use a mutex"}}).
			On("codex", fake.Script{Stdout: []string{"Use a channel"}})

		res := NewOrchestrator(run, nil).Execute(context.Background(), "p",
			testConfig(models.StrategyUnanimous, "claude", "codex"))

		assert.False(t, res.Success)
		assert.Empty(t, res.FinalOutput)
		assert.Zero(t, res.Confidence)
		assert.Zero(t, res.Agreement)
		assert.Equal(t, 2, res.Metadata.SuccessfulCount)
	})
}

func TestExecute_Weighted(t *testing.T) {
	run := fake.New().
		On("claude", fake.Script{Stdout: []string{"answer one"}}).
		On("codex", fake.Script{Stdout: []string{"answer two"}})
	cfg := testConfig(models.StrategyWeighted, "claude", "codex")
	cfg.Weights = map[string]float64{"codex": 2}

	res := NewOrchestrator(run, nil).Execute(context.Background(), "p", cfg)

	assert.True(t, res.Success)
	assert.Equal(t, "answer two", res.FinalOutput)
	assert.InDelta(t, 0.80, res.Confidence, 1e-9)
	assert.Equal(t, 0.5, res.Agreement)
}

func TestExecute_BestOfN(t *testing.T) {
	run := fake.New().
		On("gemini", fake.Script{Stdout: []string{"from gemini"}}).
		On("claude", fake.Script{Stdout: []string{"from claude"}})

	res := NewOrchestrator(run, nil).Execute(context.Background(), "p",
		testConfig(models.StrategyBestOfN, "gemini", "claude"))

	assert.Equal(t, "from claude", res.FinalOutput)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, 0.5, res.Agreement)
}

func TestExecute_TiesGoToEarliestProvider(t *testing.T) {
	run := fake.New().
		On("codex", fake.Script{Stdout: []string{"codex says"}}).
		On("claude", fake.Script{Stdout: []string{"claude says"}})
	reg := agent.NewRegistry()
	reg.Set(agent.Claude, agent.Override{Trust: ptr(0.7)})
	reg.Set(agent.Codex, agent.Override{Trust: ptr(0.7)})

	res := NewOrchestrator(run, reg).Execute(context.Background(), "p",
		testConfig(models.StrategyBestOfN, "codex", "claude"))

	assert.Equal(t, "codex says", res.FinalOutput)
}

func TestExecute_TotalFailure(t *testing.T) {
	run := fake.New().On("codex", fake.Script{Stderr: []string{"quota exceeded"}, ExitCode: 1})

	res := NewOrchestrator(run, nil).Execute(context.Background(), "p",
		testConfig(models.StrategyMajority, "claude", "codex", "gemini"))

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Zero(t, res.Confidence)
	assert.Zero(t, res.Agreement)
	assert.Empty(t, res.FinalOutput)
	require.Len(t, res.ProviderResults, 3)
	for _, pr := range res.ProviderResults {
		assert.False(t, pr.Success)
		assert.NotEmpty(t, pr.Error)
	}
	assert.Contains(t, res.ProviderResults[1].Error, "quota exceeded")
	assert.Equal(t, 0, res.Metadata.SuccessfulCount)
	assert.Zero(t, res.Metadata.AverageDuration)
}

func TestExecute_EmptyOutputIsFailure(t *testing.T) {
	run := fake.New().On("claude", fake.Script{Stdout: []string{"   "}})

	res := NewOrchestrator(run, nil).Execute(context.Background(), "p",
		testConfig(models.StrategyBestOfN, "claude"))

	assert.False(t, res.ProviderResults[0].Success)
	assert.False(t, res.Success)
}

// stallRunner ignores the invocation timeout and only returns once cancelled.
type stallRunner struct {
	inner    runner.Runner
	stalling string
}

func (s *stallRunner) Run(ctx context.Context, inv runner.Invocation) (*runner.Outcome, error) {
	if inv.Command != s.stalling {
		return s.inner.Run(ctx, inv)
	}
	<-ctx.Done()
	return &runner.Outcome{}, &runner.CanceledError{}
}

func TestExecute_DeadlineRecordsPendingProviders(t *testing.T) {
	run := &stallRunner{
		inner:    fake.New().On("claude", fake.Script{Stdout: []string{"on time"}}),
		stalling: "codex",
	}
	cfg := testConfig(models.StrategyMajority, "claude", "codex")
	cfg.Timeout = 100 * time.Millisecond

	start := time.Now()
	res := NewOrchestrator(run, nil).Execute(context.Background(), "p", cfg)

	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, res.ProviderResults, 2)
	assert.True(t, res.ProviderResults[0].Success)
	codex := res.ProviderResults[1]
	assert.False(t, codex.Success)
	assert.Equal(t, "timeout: provider did not respond within 100ms", codex.Error)
	assert.True(t, IsTimeout(codex))
	assert.True(t, res.Success)
	assert.Equal(t, "on time", res.FinalOutput)
	assert.Equal(t, 1, res.Metadata.SuccessfulCount)
}

func TestExecute_RunnerTimeoutIsProviderFailure(t *testing.T) {
	run := fake.New().
		On("claude", fake.Script{Stdout: []string{"ok"}}).
		On("codex", fake.Script{Stdout: []string{"late"}, Hold: 5 * time.Second})
	cfg := testConfig(models.StrategyBestOfN, "claude", "codex")
	cfg.Timeout = 100 * time.Millisecond

	res := NewOrchestrator(run, nil).Execute(context.Background(), "p", cfg)

	require.Len(t, res.ProviderResults, 2)
	assert.True(t, strings.HasPrefix(res.ProviderResults[1].Error, "timeout"))
	assert.True(t, res.Success)
}

func TestExecute_InvocationShape(t *testing.T) {
	run := fake.New().On("claude", fake.Script{Stdout: []string{"x"}})
	cfg := testConfig(models.StrategyBestOfN, "claude")
	cfg.Models = map[string]string{"claude": "opus"}

	res := NewOrchestrator(run, nil, WithWorkDir("/tmp/project")).Execute(context.Background(), "the prompt", cfg)

	calls := run.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "the prompt", calls[0].Input)
	assert.Equal(t, "/tmp/project", calls[0].Dir)
	assert.Equal(t, cfg.Timeout, calls[0].Timeout)
	assert.Contains(t, strings.Join(calls[0].Args, " "), "--output-format text")
	assert.Equal(t, "opus", res.ProviderResults[0].Model)
}

func TestExecute_UnknownProviderIsRecorded(t *testing.T) {
	res := NewOrchestrator(fake.New(), nil).Execute(context.Background(), "p",
		testConfig(models.StrategyMajority, "cursor"))

	require.Len(t, res.ProviderResults, 1)
	assert.Contains(t, res.ProviderResults[0].Error, "not supported")
}

func TestRun_ValidatesConfig(t *testing.T) {
	_, err := NewOrchestrator(fake.New(), nil).Run(context.Background(), "p", models.ConsensusConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid consensus config")
}

func TestScorer(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	tests := []struct {
		name   string
		trust  float64
		output string
		want   float64
	}{
		{"plain", 0.5, "hello", 0.5},
		{"long", 0.5, strings.Repeat("word ", 50), 0.55},
		{"fenced code", 0.5, "Here:\n\n```go\nx := 1\n```\n", 0.55},
		{"heading", 0.5, "# Title\nbody", 0.55},
		{"paragraphs", 0.5, "one\n\ntwo", 0.55},
		{"capped", 0.99, "# T\n\n```\ncode\n```\n\n" + strings.Repeat("long ", 60), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(tt.trust, tt.output), 1e-9)
		})
	}
}

func TestScorer_ZeroBonusesAddNothing(t *testing.T) {
	s := NewScorer(ScoringConfig{LengthFloor: 200, PrefixLength: 500})
	output := "# Title\n\n```go\nx := 1\n```\n\nsecond paragraph " + strings.Repeat("word ", 60)

	assert.InDelta(t, 0.5, s.Score(0.5, output), 1e-9)
	assert.Equal(t, ScoringConfig{LengthFloor: 200, PrefixLength: 500}, s.Config())

	codeOnly := NewScorer(ScoringConfig{LengthFloor: 200, CodeBonus: 0.2, PrefixLength: 500})
	assert.InDelta(t, 0.7, codeOnly.Score(0.5, output), 1e-9)
}

func ptr(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", normalize("  Hello,\n\tWORLD!  ", 0))
	assert.Equal(t, "abc", normalize("a.b.c.d.e", 3))
	assert.Equal(t, normalize("Use a Mutex.", 500), normalize("use a mutex", 500))
}

func TestDefaultConsensusConfig_Valid(t *testing.T) {
	cfg := DefaultConsensusConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, models.StrategyMajority, cfg.Strategy)
}
