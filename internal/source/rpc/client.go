// Package rpc implements the source contracts against a JSON-RPC 2.0
// fullnode. Every call is bounded, retried and guarded by a circuit breaker.
package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/semaphore"

	"github.com/agatticelli/clmm-engine/internal/platform/observability"
	"github.com/agatticelli/clmm-engine/internal/platform/resilience"
	"github.com/agatticelli/clmm-engine/internal/source"
)

const (
	methodGetObject          = "sui_getObject"
	methodGetCoinMetadata    = "suix_getCoinMetadata"
	methodExecuteTransaction = "sui_executeTransactionBlock"
)

// Config holds collaborator settings.
type Config struct {
	Endpoint   string
	PackageID  string
	RegistryID string
	Module     string

	// MaxInFlight bounds concurrent calls to the node.
	MaxInFlight int64
	// CallTimeout applies to each attempt.
	CallTimeout time.Duration
	Retry       resilience.RetryConfig
	Breaker     resilience.CircuitBreakerConfig
}

func (c *Config) setDefaults() {
	if c.Module == "" {
		c.Module = "pool"
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 8
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
	if c.Breaker.Name == "" {
		c.Breaker.Name = "rpc"
	}
}

// Option configures a Client.
type Option func(*Client)

// WithSigner enables Submit.
func WithSigner(s source.Signer) Option {
	return func(c *Client) { c.signer = s }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to one fullnode endpoint.
type Client struct {
	rpc     *gethrpc.Client
	cfg     Config
	sem     *semaphore.Weighted
	breaker *resilience.CircuitBreaker
	signer  source.Signer
	metrics *observability.Metrics
	logger  *observability.Logger
	health  healthTracker
}

var (
	_ source.PoolSource     = (*Client)(nil)
	_ source.MetadataSource = (*Client)(nil)
	_ source.Submitter      = (*Client)(nil)
)

// Dial connects to cfg.Endpoint.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rpc: endpoint is required")
	}
	c, err := gethrpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", cfg.Endpoint, err)
	}
	return NewClient(c, cfg, opts...), nil
}

// NewClient wraps an existing JSON-RPC client.
func NewClient(c *gethrpc.Client, cfg Config, opts ...Option) *Client {
	cfg.setDefaults()
	client := &Client{
		rpc:    c,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxInFlight),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(client)
	}

	onChange := cfg.Breaker.OnStateChange
	cfg.Breaker.OnStateChange = func(name string, from, to resilience.State) {
		client.logger.Warn("circuit breaker state change",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		client.metrics.SetCircuitBreakerState(context.Background(), name, int64(to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	client.breaker = resilience.NewCircuitBreaker(cfg.Breaker)
	return client
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	start := time.Now()
	err := resilience.Retry(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
			defer cancel()
			return c.rpc.CallContext(attemptCtx, result, method, args...)
		})
	})
	elapsed := time.Since(start)
	c.metrics.RecordSourceCall(ctx, method, elapsed, err)
	c.health.observe(start.Add(elapsed), elapsed, err)
	if err != nil {
		c.logger.LogDebug(ctx, "rpc call failed", slog.String("method", method), slog.Any("error", err))
	}
	return err
}
