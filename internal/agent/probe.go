package agent

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/ensemble/internal/runner"
)

// DefaultProbeTimeout bounds each provider's version check.
const DefaultProbeTimeout = 5 * time.Second

// Availability reports whether a provider CLI is installed and answers.
type Availability struct {
	Provider  Provider `json:"provider"`
	Binary    string   `json:"binary"`
	Installed bool     `json:"installed"`          // Binary was found and started
	Healthy   bool     `json:"healthy"`            // Version command exited 0 in time
	Canceled  bool     `json:"canceled,omitempty"` // Probe was interrupted before an answer
	Version   string   `json:"version,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Probe runs every provider's version command concurrently and reports the
// results in canonical provider order.
func (r *Registry) Probe(ctx context.Context, run runner.Runner, timeout time.Duration) []Availability {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	providers := AllProviders()
	results := make([]Availability, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			results[i] = r.probeOne(ctx, run, p, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Registry) probeOne(ctx context.Context, run runner.Runner, p Provider, timeout time.Duration) Availability {
	a := Availability{Provider: p, Binary: r.Binary(p)}
	out, err := run.Run(ctx, runner.Invocation{
		Command: a.Binary,
		Args:    p.Spec().VersionArgs,
		Timeout: timeout,
	})
	if runner.IsCanceled(err) {
		a.Canceled = true
		a.Error = err.Error()
		return a
	}
	a.Installed = !runner.IsSpawn(err)
	if err != nil {
		a.Error = err.Error()
		return a
	}
	a.Healthy = true
	if out != nil {
		a.Version = firstLine(out.Stdout)
		if a.Version == "" {
			a.Version = firstLine(out.Stderr)
		}
	}
	return a
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
