// Package cache provides a bounded in-memory cache with staleness tracking
// and start-up warming.
package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agatticelli/clmm-engine/internal/platform/observability"
)

// WarmupProvider defines the interface for providers that can warm the cache.
// Implementations should fetch their relevant data and populate the cache.
type WarmupProvider interface {
	// Name returns a human-readable name for logging purposes
	Name() string

	// Warmup pre-populates the cache with initial data.
	// It should be idempotent and safe to call multiple times.
	Warmup(ctx context.Context) error
}

// WarmupFunc adapts a function to WarmupProvider.
type WarmupFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (f WarmupFunc) Name() string                     { return f.Label }
func (f WarmupFunc) Warmup(ctx context.Context) error { return f.Fn(ctx) }

// WarmupConfig configures the cache warming behavior.
type WarmupConfig struct {
	// Timeout is the maximum duration to wait for all providers to complete
	Timeout time.Duration

	// ContinueOnError keeps warming the remaining providers after a failure.
	ContinueOnError bool

	// Concurrency bounds the providers warmed at once. 1 runs them in order.
	Concurrency int
}

// DefaultWarmupConfig returns sensible defaults for cache warming.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
		Concurrency:     4,
	}
}

// WarmupResult contains the result of warming a single provider.
type WarmupResult struct {
	Provider string
	Duration time.Duration
	Err      error
}

// WarmupResults contains the aggregate results of cache warming.
type WarmupResults struct {
	Results   []WarmupResult
	TotalTime time.Duration
	Errors    int
}

// HasErrors returns true if any provider failed during warmup.
func (wr *WarmupResults) HasErrors() bool {
	return wr.Errors > 0
}

// Warmer handles cache warming operations.
type Warmer struct {
	providers []WarmupProvider
	logger    *observability.Logger
	config    WarmupConfig
}

// NewWarmer creates a new cache warmer.
func NewWarmer(logger *observability.Logger, config WarmupConfig) *Warmer {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultWarmupConfig().Timeout
	}
	return &Warmer{
		logger: logger,
		config: config,
	}
}

// RegisterProvider adds a warmup provider to the warmer.
func (w *Warmer) RegisterProvider(provider WarmupProvider) {
	w.providers = append(w.providers, provider)
}

// Warmup runs every registered provider. Results keep registration order.
// Providers that never ran because an earlier one failed are reported with
// the context error.
func (w *Warmer) Warmup(ctx context.Context) *WarmupResults {
	start := time.Now()
	results := &WarmupResults{Results: make([]WarmupResult, len(w.providers))}
	if len(w.providers) == 0 {
		return results
	}

	warmupCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(warmupCtx)
	g.SetLimit(w.config.Concurrency)

	runCtx := warmupCtx
	if !w.config.ContinueOnError {
		runCtx = gctx
	}

	for i, provider := range w.providers {
		results.Results[i] = WarmupResult{Provider: provider.Name()}
		g.Go(func() error {
			if err := runCtx.Err(); err != nil {
				results.Results[i].Err = err
				return err
			}
			results.Results[i] = w.warmupProvider(runCtx, provider)
			if w.config.ContinueOnError {
				return nil
			}
			return results.Results[i].Err
		})
	}
	_ = g.Wait()

	for _, r := range results.Results {
		if r.Err != nil {
			results.Errors++
		}
	}
	results.TotalTime = time.Since(start)

	if results.Errors > 0 {
		w.logger.LogWarn(ctx, "cache warmup completed with errors",
			slog.Int("errors", results.Errors),
			slog.Int("providers", len(w.providers)),
			slog.Duration("took", results.TotalTime))
	} else {
		w.logger.LogInfo(ctx, "cache warmup completed",
			slog.Int("providers", len(w.providers)),
			slog.Duration("took", results.TotalTime))
	}
	return results
}

func (w *Warmer) warmupProvider(ctx context.Context, provider WarmupProvider) WarmupResult {
	start := time.Now()
	name := provider.Name()

	err := provider.Warmup(ctx)
	duration := time.Since(start)

	if err != nil {
		w.logger.LogWarn(ctx, "cache warmup failed", slog.String("provider", name), slog.Any("error", err), slog.Duration("took", duration))
	} else {
		w.logger.LogDebug(ctx, "cache warmup done", slog.String("provider", name), slog.Duration("took", duration))
	}

	return WarmupResult{
		Provider: name,
		Duration: duration,
		Err:      err,
	}
}
