package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agatticelli/clmm-engine/internal/platform/cache"
	"github.com/agatticelli/clmm-engine/internal/platform/config"
	"github.com/agatticelli/clmm-engine/internal/platform/observability"
	"github.com/agatticelli/clmm-engine/internal/platform/resilience"
	"github.com/agatticelli/clmm-engine/internal/platform/worker"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/service"
	"github.com/agatticelli/clmm-engine/internal/source/rpc"
)

const serviceName = "clmm-engine"

// app is everything a command needs, built from configuration.
type app struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.TracerProvider
	client  *rpc.Client
	workers *worker.KeyedPool
	svc     *service.Service
}

// newApp loads configuration for cmd. With remote set the service reads
// pools from the configured node; otherwise pools live in memory.
func newApp(ctx context.Context, cmd *cobra.Command, remote bool) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.logger = observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format).
		WithComponent(cmd.Name())

	a.metrics, err = observability.NewMetricsWithConfig(ctx, observability.MetricsConfig{
		ServiceName:  serviceName,
		Version:      version,
		Enabled:      cfg.Observability.Metrics.Enabled,
		OTLPEndpoint: cfg.Observability.Metrics.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a.tracer, err = observability.NewTracerProvider(ctx, observability.TracingConfig{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		Enabled:     cfg.Observability.Tracing.Enabled,
		SampleRatio: cfg.Observability.Tracing.SampleRatio,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	a.workers = worker.NewKeyedPool(ctx, cfg.Workers.Count, cfg.Workers.QueueSize)
	opts := []service.Option{
		service.WithTokens(cfg.Token),
		service.WithObservability(a.logger, a.metrics, a.tracer),
	}

	if remote {
		a.client, err = rpc.Dial(ctx, rpc.Config{
			Endpoint:   cfg.Endpoint(),
			PackageID:  cfg.PackageID,
			RegistryID: cfg.RegistryID,
			Module:     cfg.Module,
			Retry: resilience.RetryConfig{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
				Jitter:      0.1,
			},
			Breaker: resilience.CircuitBreakerConfig{
				Name:             "sui-rpc",
				FailureThreshold: cfg.Circuit.FailureThreshold,
				Timeout:          cfg.Circuit.Timeout,
			},
		}, rpc.WithLogger(a.logger), rpc.WithMetrics(a.metrics))
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Endpoint(), err)
		}
		// No signer is configured here, so the client is never handed out
		// as a submitter.
		opts = append(opts, service.WithSource(a.client), service.WithMetadata(a.client))
	}

	snapshots := cache.NewMemoryCache[pool.Snapshot](cfg.Cache.MaxEntries, cfg.Cache.TTL())
	a.svc = service.New(pool.NewManager(nil), snapshots, a.workers, opts...)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if a.workers != nil {
		a.workers.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.LogWarn(ctx, "tracer shutdown failed", "error", err)
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.LogWarn(ctx, "metrics shutdown failed", "error", err)
		}
	}
}
