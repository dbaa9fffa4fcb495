package translation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Middleware decorates a provider.
type Middleware func(Provider) Provider

// Chain applies middlewares so the first one is the outermost.
func Chain(provider Provider, middlewares ...Middleware) Provider {
	for i := len(middlewares) - 1; i >= 0; i-- {
		provider = middlewares[i](provider)
	}
	return provider
}

// LatencyStats aggregates provider call timings per provider and operation.
type LatencyStats struct {
	mu      sync.Mutex
	entries map[latencyKey]*latencyEntry
}

type latencyKey struct {
	provider  string
	operation string
}

type latencyEntry struct {
	calls  int64
	errors int64
	total  time.Duration
	max    time.Duration
}

// LatencySnapshot is the exported view of one provider/operation pair.
type LatencySnapshot struct {
	Provider  string  `json:"provider"`
	Operation string  `json:"operation"`
	Calls     int64   `json:"calls"`
	Errors    int64   `json:"errors"`
	AvgMs     float64 `json:"avgMs"`
	MaxMs     int64   `json:"maxMs"`
}

func NewLatencyStats() *LatencyStats {
	return &LatencyStats{entries: make(map[latencyKey]*latencyEntry)}
}

func (s *LatencyStats) observe(provider, operation string, elapsed time.Duration, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := latencyKey{provider: provider, operation: operation}
	entry, ok := s.entries[key]
	if !ok {
		entry = &latencyEntry{}
		s.entries[key] = entry
	}
	entry.calls++
	if err != nil {
		entry.errors++
	}
	entry.total += elapsed
	if elapsed > entry.max {
		entry.max = elapsed
	}
}

// Snapshot returns the recorded timings sorted by provider then operation.
func (s *LatencyStats) Snapshot() []LatencySnapshot {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LatencySnapshot, 0, len(s.entries))
	for key, entry := range s.entries {
		avg := 0.0
		if entry.calls > 0 {
			avg = float64(entry.total) / float64(time.Millisecond) / float64(entry.calls)
		}
		out = append(out, LatencySnapshot{
			Provider:  key.provider,
			Operation: key.operation,
			Calls:     entry.calls,
			Errors:    entry.errors,
			AvgMs:     avg,
			MaxMs:     entry.max.Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Operation < out[j].Operation
	})
	return out
}

// WithTiming logs every provider call and records it in stats when non-nil.
// The decorated provider keeps the Detector and Configurable capabilities
// of the wrapped one.
func WithTiming(logger zerolog.Logger, stats *LatencyStats) Middleware {
	return func(next Provider) Provider {
		timed := &timedProvider{next: next, logger: logger, stats: stats}
		if _, ok := next.(Detector); ok {
			return &timedDetector{timedProvider: timed}
		}
		return timed
	}
}

type timedProvider struct {
	next   Provider
	logger zerolog.Logger
	stats  *LatencyStats
}

func (p *timedProvider) Name() string {
	return p.next.Name()
}

func (p *timedProvider) Available() bool {
	return p.next.Available()
}

func (p *timedProvider) Configure(cfg ProviderConfig) {
	if configurable, ok := p.next.(Configurable); ok {
		configurable.Configure(cfg)
	}
}

func (p *timedProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	result, err := p.next.Translate(ctx, req)
	p.record("translate", time.Since(started), err)
	return result, err
}

func (p *timedProvider) record(operation string, elapsed time.Duration, err error) {
	p.stats.observe(p.next.Name(), operation, elapsed, err)

	event := p.logger.Debug()
	if err != nil {
		event = p.logger.Warn().Err(err)
	}
	event.
		Str("provider", p.next.Name()).
		Str("operation", operation).
		Int64("latency_ms", elapsed.Milliseconds()).
		Msg("provider call finished")
}

type timedDetector struct {
	*timedProvider
}

func (p *timedDetector) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	started := time.Now()
	detection, err := p.next.(Detector).DetectLanguage(ctx, text)
	p.record("detect", time.Since(started), err)
	return detection, err
}
