package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// MetricsConfig selects the metric readers. Prometheus is always exposed
// when enabled; OTLPEndpoint additionally pushes over gRPC.
type MetricsConfig struct {
	ServiceName  string
	Version      string
	Enabled      bool
	OTLPEndpoint string
	PushInterval time.Duration
}

// Metrics holds all application metrics. A disabled Metrics is a valid no-op.
type Metrics struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	// Pool operations
	PoolOperations        metric.Int64Counter
	PoolOperationDuration metric.Float64Histogram
	SwapTicksCrossed      metric.Int64Histogram
	PoolsTracked          metric.Int64Gauge

	// External source
	SourceCalls    metric.Int64Counter
	SourceDuration metric.Float64Histogram

	// Cache metrics
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
	CacheEvictions metric.Int64Counter

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	Errors metric.Int64Counter
}

// NewMetrics creates a Prometheus-only Metrics instance.
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	return NewMetricsWithConfig(context.Background(), MetricsConfig{ServiceName: serviceName, Enabled: enabled})
}

func NewMetricsWithConfig(ctx context.Context, cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		interval := cfg.PushInterval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(interval)),
		))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	m := &Metrics{
		meter:    provider.Meter(cfg.ServiceName),
		provider: provider,
	}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() error {
	var err error

	m.PoolOperations, err = m.meter.Int64Counter(
		"clmm.pool.operations",
		metric.WithDescription("Pool operations by kind and outcome"),
	)
	if err != nil {
		return err
	}

	m.PoolOperationDuration, err = m.meter.Float64Histogram(
		"clmm.pool.operation.duration",
		metric.WithDescription("Pool operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.SwapTicksCrossed, err = m.meter.Int64Histogram(
		"clmm.swap.ticks_crossed",
		metric.WithDescription("Initialized ticks crossed per swap"),
	)
	if err != nil {
		return err
	}

	m.PoolsTracked, err = m.meter.Int64Gauge(
		"clmm.pools.tracked",
		metric.WithDescription("Pools currently held in memory"),
	)
	if err != nil {
		return err
	}

	m.SourceCalls, err = m.meter.Int64Counter(
		"clmm.source.calls",
		metric.WithDescription("Calls to the external pool source"),
	)
	if err != nil {
		return err
	}

	m.SourceDuration, err = m.meter.Float64Histogram(
		"clmm.source.duration",
		metric.WithDescription("External source call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.CacheHits, err = m.meter.Int64Counter(
		"clmm.cache.hits",
		metric.WithDescription("Total cache hits"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"clmm.cache.misses",
		metric.WithDescription("Total cache misses, stale entries included"),
	)
	if err != nil {
		return err
	}

	m.CacheEvictions, err = m.meter.Int64Counter(
		"clmm.cache.evictions",
		metric.WithDescription("Entries evicted to stay within capacity"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"clmm.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"clmm.errors",
		metric.WithDescription("Total errors encountered"),
	)
	return err
}

func (m *Metrics) enabled() bool {
	return m != nil && m.meter != nil
}

// RecordPoolOperation records one add, remove, swap, collect or create.
func (m *Metrics) RecordPoolOperation(ctx context.Context, kind, outcome string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.PoolOperations.Add(ctx, 1, attrs)
	m.PoolOperationDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *Metrics) RecordSwapTicksCrossed(ctx context.Context, tier string, crossed int) {
	if !m.enabled() {
		return
	}
	m.SwapTicksCrossed.Record(ctx, int64(crossed), metric.WithAttributes(attribute.String("fee_tier", tier)))
}

func (m *Metrics) SetPoolsTracked(ctx context.Context, n int) {
	if !m.enabled() {
		return
	}
	m.PoolsTracked.Record(ctx, int64(n))
}

// RecordSourceCall records a call to the external source by RPC method.
func (m *Metrics) RecordSourceCall(ctx context.Context, method string, duration time.Duration, err error) {
	if !m.enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	)
	m.SourceCalls.Add(ctx, 1, attrs)
	m.SourceDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(ctx context.Context, layer string) {
	if !m.enabled() {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordCacheMiss records a cache miss. stale marks entries found past their TTL.
func (m *Metrics) RecordCacheMiss(ctx context.Context, layer string, stale bool) {
	if !m.enabled() {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.Bool("stale", stale),
	))
}

func (m *Metrics) RecordCacheEvictions(ctx context.Context, layer string, n int) {
	if !m.enabled() || n == 0 {
		return
	}
	m.CacheEvictions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("layer", layer)))
}

// SetCircuitBreakerState sets circuit breaker state
// 0 = closed, 1 = open, 2 = half-open
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, service string, state int64) {
	if !m.enabled() {
		return
	}
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("service", service)))
}

// RecordError records an error
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	if !m.enabled() {
		return
	}
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", errorType)))
}

// Shutdown flushes pending pushes.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// Handler returns the HTTP handler for Prometheus metrics. The exporter
// registers with the default Prometheus registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
