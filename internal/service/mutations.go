package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/money"
	"github.com/agatticelli/clmm-engine/internal/platform/observability"
	"github.com/agatticelli/clmm-engine/internal/platform/worker"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/position"
	"github.com/agatticelli/clmm-engine/internal/source"
)

// ErrReadOnly is returned for mutations on source-held pools when no
// submitter is configured.
var ErrReadOnly = errors.New("service: pools are read-only without a submitter")

// mutation describes one state change. apply runs against a pool and returns
// the operation that reproduces it remotely. direct, when set, builds the
// remote operation without local state.
type mutation[T any] struct {
	kind   source.Kind
	poolID string
	apply  func(p *pool.Pool) (T, source.Operation, error)
	direct func() source.Operation
}

// execute serializes m with every other mutation of the same pool.
func execute[T any](ctx context.Context, s *Service, m mutation[T]) (Outcome[T], error) {
	return worker.Run(ctx, s.workers, m.poolID, func(ctx context.Context) (Outcome[T], error) {
		start := time.Now()
		ctx, span := s.tracer.StartPoolSpan(ctx, string(m.kind), m.poolID)

		var (
			out Outcome[T]
			err error
		)
		if s.source != nil {
			out, err = executeRemote(ctx, s, m)
		} else {
			out, err = executeLocal(ctx, s, m)
		}
		observability.EndSpanWithError(span, err)
		s.record(ctx, string(m.kind), err, start)
		return out, err
	})
}

func executeLocal[T any](ctx context.Context, s *Service, m mutation[T]) (Outcome[T], error) {
	var result T
	err := s.manager.Mutate(m.poolID, func(p *pool.Pool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var aerr error
		result, _, aerr = m.apply(p)
		return aerr
	})
	if err != nil {
		return Outcome[T]{}, err
	}
	snap, err := s.manager.Snapshot(m.poolID)
	if err != nil {
		return Outcome[T]{}, err
	}
	s.put(ctx, snap)
	return Outcome[T]{Result: result, Snapshot: snap}, nil
}

// executeRemote computes against freshly fetched state, submits the
// resulting operation and reloads the pool once it has executed.
func executeRemote[T any](ctx context.Context, s *Service, m mutation[T]) (Outcome[T], error) {
	if s.submitter == nil {
		return Outcome[T]{}, ErrReadOnly
	}

	var (
		result T
		op     source.Operation
	)
	if m.direct != nil {
		op = m.direct()
	} else {
		scratch, err := s.scratch(ctx, m.poolID)
		if err != nil {
			return Outcome[T]{}, err
		}
		if result, op, err = m.apply(scratch); err != nil {
			return Outcome[T]{}, err
		}
	}

	receipt, err := s.submit(ctx, op)
	s.cache.Delete(m.poolID)
	if err != nil {
		return Outcome[T]{Receipt: receipt}, err
	}
	snap, err := s.refresh(ctx, m.poolID)
	if err != nil {
		return Outcome[T]{Result: result, Receipt: receipt}, fmt.Errorf("reload after %s: %w", m.kind, err)
	}
	return Outcome[T]{Result: result, Snapshot: snap, Receipt: receipt}, nil
}

// scratch fetches a private copy of a pool. Changes to it are never seen by
// the manager or the shared ledger.
func (s *Service) scratch(ctx context.Context, id string) (*pool.Pool, error) {
	raw, err := s.source.FetchPoolRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := source.ParsePool(id, raw, pool.WithLedger(position.NewLedger()))
	if err != nil {
		return nil, source.WrapOp("parse_pool", id, err)
	}
	return p, nil
}

// CreatePool opens a pool. Locally its id is derived from the pair and tier;
// on a source the id is taken from the creation receipt.
func (s *Service) CreatePool(ctx context.Context, req CreatePoolRequest) (Outcome[pool.Snapshot], error) {
	tier, err := feetier.Resolve(req.FeeTier)
	if err != nil {
		return Outcome[pool.Snapshot]{}, err
	}
	key, _, err := pool.KeyOf(req.TokenA, req.TokenB, tier)
	if err != nil {
		return Outcome[pool.Snapshot]{}, err
	}

	return worker.Run(ctx, s.workers, key.ID(), func(ctx context.Context) (Outcome[pool.Snapshot], error) {
		start := time.Now()
		ctx, span := s.tracer.StartPoolSpan(ctx, string(source.KindCreatePool), key.ID())
		out, err := s.createPool(ctx, req, tier)
		observability.EndSpanWithError(span, err)
		s.record(ctx, string(source.KindCreatePool), err, start)
		return out, err
	})
}

func (s *Service) createPool(ctx context.Context, req CreatePoolRequest, tier feetier.Tier) (Outcome[pool.Snapshot], error) {
	if s.source == nil {
		snap, err := s.manager.Create(req.TokenA, req.TokenB, tier, req.Price)
		if err != nil {
			return Outcome[pool.Snapshot]{}, err
		}
		s.put(ctx, snap)
		s.metrics.SetPoolsTracked(ctx, len(s.manager.IDs()))
		return Outcome[pool.Snapshot]{Result: snap, Snapshot: snap}, nil
	}
	if s.submitter == nil {
		return Outcome[pool.Snapshot]{}, ErrReadOnly
	}

	// Validates the price and puts the pair in canonical order.
	planned, err := pool.Create(req.TokenA, req.TokenB, tier, req.Price, pool.WithLedger(position.NewLedger()))
	if err != nil {
		return Outcome[pool.Snapshot]{}, err
	}
	receipt, err := s.submit(ctx, source.CreatePoolOp(planned.TokenX(), planned.TokenY(), tier, planned.SqrtPriceX96()))
	if err != nil {
		return Outcome[pool.Snapshot]{Receipt: receipt}, err
	}
	id, err := source.CreatedPoolID(*receipt, s.module)
	if err != nil {
		return Outcome[pool.Snapshot]{Receipt: receipt}, err
	}
	snap, err := s.refresh(ctx, id)
	if err != nil {
		return Outcome[pool.Snapshot]{Receipt: receipt}, fmt.Errorf("load created pool %s: %w", id, err)
	}
	return Outcome[pool.Snapshot]{Result: snap, Snapshot: snap, Receipt: receipt}, nil
}

// Swap runs an exact-input swap.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (Outcome[pool.SwapResult], error) {
	if req.AmountIn == nil || req.AmountIn.IsZero() {
		return Outcome[pool.SwapResult]{}, fmt.Errorf("%w: swap amount must be positive", pool.ErrInvalidInput)
	}
	out, err := execute(ctx, s, mutation[pool.SwapResult]{
		kind:   source.KindSwap,
		poolID: req.PoolID,
		apply: func(p *pool.Pool) (pool.SwapResult, source.Operation, error) {
			minOut := req.MinAmountOut
			if minOut == nil {
				quote, err := p.Quote(req.AmountIn, req.XIn)
				if err != nil {
					return pool.SwapResult{}, source.Operation{}, err
				}
				if minOut, err = money.MinOut(quote.AmountOut, req.Slippage); err != nil {
					return pool.SwapResult{}, source.Operation{}, fmt.Errorf("%w: %v", pool.ErrInvalidInput, err)
				}
			}
			res, err := p.SwapWithLimit(req.AmountIn, req.XIn, minOut, req.SqrtPriceLimitX96)
			if err != nil {
				return pool.SwapResult{}, source.Operation{}, err
			}
			limit := req.SqrtPriceLimitX96
			if limit == nil {
				limit = new(uint256.Int)
			}
			s.metrics.RecordSwapTicksCrossed(ctx, p.Tier().Name, res.TicksCrossed)
			return res, source.SwapOp(p.ID(), req.AmountIn, req.XIn, minOut, limit), nil
		},
	})
	if err == nil {
		s.logger.WithPool(req.PoolID).LogDebug(ctx, "swap executed",
			slog.String("amount_in", out.Result.AmountIn.Dec()),
			slog.String("amount_out", out.Result.AmountOut.Dec()),
			slog.Int("ticks_crossed", out.Result.TicksCrossed))
	}
	return out, err
}

// AddLiquidity deposits into a position, creating it if needed.
func (s *Service) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (Outcome[pool.AddResult], error) {
	return execute(ctx, s, mutation[pool.AddResult]{
		kind:   source.KindAddLiquidity,
		poolID: req.PoolID,
		apply: func(p *pool.Pool) (pool.AddResult, source.Operation, error) {
			minX, minY := req.MinX, req.MinY
			res, err := p.AddLiquidity(req.Owner, req.TickLower, req.TickUpper, req.AmountX, req.AmountY, minX, minY)
			if err != nil {
				return pool.AddResult{}, source.Operation{}, err
			}
			if minX == nil {
				if minX, err = money.MinOut(res.AmountX, req.Slippage); err != nil {
					return pool.AddResult{}, source.Operation{}, fmt.Errorf("%w: %v", pool.ErrInvalidInput, err)
				}
			}
			if minY == nil {
				if minY, err = money.MinOut(res.AmountY, req.Slippage); err != nil {
					return pool.AddResult{}, source.Operation{}, fmt.Errorf("%w: %v", pool.ErrInvalidInput, err)
				}
			}
			op := source.AddLiquidityOp(p.ID(), req.TickLower, req.TickUpper, req.AmountX, req.AmountY, minX, minY)
			return res, op, nil
		},
	})
}

// RemoveLiquidity withdraws from a position. On a source the position lives
// remotely, so the operation is submitted as requested.
func (s *Service) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (Outcome[pool.RemoveResult], error) {
	return execute(ctx, s, mutation[pool.RemoveResult]{
		kind:   source.KindRemoveLiquidity,
		poolID: req.PoolID,
		apply: func(p *pool.Pool) (pool.RemoveResult, source.Operation, error) {
			res, err := p.RemoveLiquidity(req.Owner, req.TickLower, req.TickUpper, req.Liquidity)
			return res, source.Operation{}, err
		},
		direct: func() source.Operation {
			return source.RemoveLiquidityOp(req.PoolID, req.TickLower, req.TickUpper, req.Liquidity)
		},
	})
}

// CollectFees pays out the fees owed to a position.
func (s *Service) CollectFees(ctx context.Context, req CollectFeesRequest) (Outcome[Fees], error) {
	return execute(ctx, s, mutation[Fees]{
		kind:   source.KindCollectFees,
		poolID: req.PoolID,
		apply: func(p *pool.Pool) (Fees, source.Operation, error) {
			x, y, err := p.CollectFees(req.Owner, req.TickLower, req.TickUpper)
			return Fees{X: x, Y: y}, source.Operation{}, err
		},
		direct: func() source.Operation {
			return source.CollectFeesOp(req.PoolID, req.TickLower, req.TickUpper)
		},
	})
}

// Position reads a locally held position.
func (s *Service) Position(poolID, owner string, lower, upper int32) (position.Position, error) {
	var pos position.Position
	err := s.manager.View(poolID, func(p *pool.Pool) error {
		var perr error
		pos, perr = p.Position(owner, lower, upper)
		return perr
	})
	return pos, err
}
