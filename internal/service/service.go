// Package service puts the pool engine behind a cache, a per-pool worker
// and the external source. Reads are served from cache while fresh;
// mutations always run against freshly fetched or freshly computed state
// and write the resulting snapshot back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agatticelli/clmm-engine/internal/platform/cache"
	"github.com/agatticelli/clmm-engine/internal/platform/config"
	"github.com/agatticelli/clmm-engine/internal/platform/observability"
	"github.com/agatticelli/clmm-engine/internal/platform/worker"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/source"
)

const cacheLayer = "pool"

// TokenDirectory resolves display metadata without a network call.
type TokenDirectory func(coinType string) (config.TokenInfo, bool)

// Option configures a Service.
type Option func(*Service)

// WithSource makes the service fetch pools instead of computing them
// locally. Pools are then authoritative on the source side.
func WithSource(src source.PoolSource) Option {
	return func(s *Service) { s.source = src }
}

// WithSubmitter sends every mutation to the ledger after it is computed.
func WithSubmitter(sub source.Submitter, module string) Option {
	return func(s *Service) {
		s.submitter = sub
		s.module = module
	}
}

func WithMetadata(md source.MetadataSource) Option {
	return func(s *Service) { s.metadata = md }
}

func WithTokens(dir TokenDirectory) Option {
	return func(s *Service) { s.tokens = dir }
}

func WithObservability(logger *observability.Logger, metrics *observability.Metrics, tracer *observability.TracerProvider) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
		s.metrics = metrics
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithRefreshConcurrency bounds RefreshAll.
func WithRefreshConcurrency(n int) Option {
	return func(s *Service) { s.refreshLimit = n }
}

// Service coordinates pools, cache and collaborators. It is safe for
// concurrent use.
type Service struct {
	manager   *pool.Manager
	cache     *cache.MemoryCache[pool.Snapshot]
	workers   *worker.KeyedPool
	source    source.PoolSource
	submitter source.Submitter
	metadata  source.MetadataSource
	tokens    TokenDirectory
	module    string

	metaCache    *cache.MemoryCache[source.TokenMetadata]
	refreshLimit int

	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.TracerProvider
}

// New builds a Service. The worker pool is owned by the caller.
func New(manager *pool.Manager, snapshots *cache.MemoryCache[pool.Snapshot], workers *worker.KeyedPool, opts ...Option) *Service {
	s := &Service{
		manager:      manager,
		cache:        snapshots,
		workers:      workers,
		module:       "pool",
		metaCache:    cache.NewMemoryCache[source.TokenMetadata](256, 0),
		refreshLimit: 4,
		logger:       observability.NopLogger(),
		tracer:       observability.NoopTracer(),
		tokens:       func(string) (config.TokenInfo, bool) { return config.TokenInfo{}, false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remote reports whether pool state comes from an external source.
func (s *Service) Remote() bool { return s.source != nil }

func (s *Service) Manager() *pool.Manager { return s.manager }

func (s *Service) CacheStats() cache.Stats { return s.cache.Stats() }

// PoolIDs lists the pools known locally.
func (s *Service) PoolIDs() []string { return s.manager.IDs() }

// GetPool returns a snapshot, served from cache while fresh.
func (s *Service) GetPool(ctx context.Context, id string) (pool.Snapshot, error) {
	snap, err := s.cache.Get(id)
	switch {
	case err == nil:
		s.metrics.RecordCacheHit(ctx, cacheLayer)
		return snap, nil
	case errors.Is(err, cache.ErrStale):
		s.metrics.RecordCacheMiss(ctx, cacheLayer, true)
	default:
		s.metrics.RecordCacheMiss(ctx, cacheLayer, false)
	}
	return s.Refresh(ctx, id)
}

// Refresh reloads a pool, from the source when one is configured and from
// local state otherwise, and caches the result. It is ordered with the
// pool's mutations so an older read never replaces a newer snapshot.
func (s *Service) Refresh(ctx context.Context, id string) (pool.Snapshot, error) {
	return worker.Run(ctx, s.workers, id, func(ctx context.Context) (pool.Snapshot, error) {
		return s.refresh(ctx, id)
	})
}

// refresh must run on the worker owning id.
func (s *Service) refresh(ctx context.Context, id string) (pool.Snapshot, error) {
	ctx, span := s.tracer.StartPoolSpan(ctx, "refresh", id)
	var err error
	defer func() { observability.EndSpanWithError(span, err) }()

	var snap pool.Snapshot
	if s.source != nil {
		snap, err = s.fetch(ctx, id)
	} else {
		snap, err = s.manager.Snapshot(id)
	}
	if err != nil {
		return pool.Snapshot{}, err
	}
	s.put(ctx, snap)
	return snap, nil
}

// RefreshAll refreshes ids concurrently and returns the first failure after
// all of them have been attempted.
func (s *Service) RefreshAll(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.refreshLimit)

	errs := make([]error, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			_, errs[i] = s.Refresh(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// WarmupProviders returns one cache warmer per id.
func (s *Service) WarmupProviders(ids []string) []cache.WarmupProvider {
	providers := make([]cache.WarmupProvider, 0, len(ids))
	for _, id := range ids {
		providers = append(providers, cache.WarmupFunc{
			Label: "pool " + id,
			Fn: func(ctx context.Context) error {
				_, err := s.Refresh(ctx, id)
				return err
			},
		})
	}
	return providers
}

// Quote prices a swap without changing anything. The pool is reloaded first
// unless its cached snapshot is still fresh.
func (s *Service) Quote(ctx context.Context, id string, req QuoteRequest) (pool.SwapResult, error) {
	start := time.Now()
	ctx, span := s.tracer.StartPoolSpan(ctx, "quote", id)
	var err error
	defer func() {
		observability.EndSpanWithError(span, err)
		s.record(ctx, "quote", err, start)
	}()

	if _, cerr := s.cache.Get(id); cerr != nil || !s.manager.Has(id) {
		if _, err = s.Refresh(ctx, id); err != nil {
			return pool.SwapResult{}, err
		}
	}
	var res pool.SwapResult
	err = s.manager.View(id, func(p *pool.Pool) error {
		var qerr error
		res, qerr = p.Quote(req.AmountIn, req.XIn)
		return qerr
	})
	return res, err
}

// fetch loads a pool from the source and registers it locally.
func (s *Service) fetch(ctx context.Context, id string) (pool.Snapshot, error) {
	raw, err := s.source.FetchPoolRaw(ctx, id)
	if err != nil {
		return pool.Snapshot{}, err
	}
	p, err := source.ParsePool(id, raw)
	if err != nil {
		return pool.Snapshot{}, source.WrapOp("parse_pool", id, err)
	}
	s.manager.Put(p)
	s.metrics.SetPoolsTracked(ctx, len(s.manager.IDs()))
	return p.Snapshot(), nil
}

func (s *Service) put(ctx context.Context, snap pool.Snapshot) {
	before := s.cache.Stats().Evictions
	s.cache.Put(snap.ID, snap)
	s.metrics.RecordCacheEvictions(ctx, cacheLayer, int(s.cache.Stats().Evictions-before))
}

func (s *Service) record(ctx context.Context, kind string, err error, start time.Time) {
	outcome := "ok"
	switch {
	case err == nil:
	case pool.IsUserCorrectable(err):
		outcome = "rejected"
	default:
		outcome = "error"
		s.metrics.RecordError(ctx, kind)
	}
	s.metrics.RecordPoolOperation(ctx, kind, outcome, time.Since(start))
	if err != nil && outcome == "error" {
		s.logger.LogError(ctx, "pool operation failed", err, slog.String("kind", kind))
	}
}

func (s *Service) submit(ctx context.Context, op source.Operation) (*source.Receipt, error) {
	if s.submitter == nil {
		return nil, nil
	}
	receipt, err := s.submitter.Submit(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := receipt.Err(); err != nil {
		return &receipt, source.WrapOp(string(op.Kind), op.PoolID, err)
	}
	s.logger.LogInfo(ctx, "operation executed",
		slog.String("kind", string(op.Kind)),
		slog.String("pool_id", op.PoolID),
		slog.String("digest", receipt.Digest),
		slog.String("request_id", op.RequestID))
	return &receipt, nil
}
