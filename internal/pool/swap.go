package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

// SwapResult describes an exact-input swap. AmountIn includes FeePaid and can
// be less than requested when the price limit stops the swap early.
type SwapResult struct {
	AmountIn     *uint256.Int
	AmountOut    *uint256.Int
	FeePaid      *uint256.Int
	SqrtPriceX96 *uint256.Int
	Tick         int32
	Liquidity    *uint256.Int
	TicksCrossed int
}

// crossing is a tick the swap moved across, with its fee growth outside
// already flipped to the new side.
type crossing struct {
	index             int32
	feeGrowthOutsideX *uint256.Int
	feeGrowthOutsideY *uint256.Int
}

// swapState is the scratch state a swap runs against. The pool only sees it
// once the whole swap has succeeded.
type swapState struct {
	remaining    *uint256.Int
	amountOut    *uint256.Int
	feePaid      *uint256.Int
	sqrtPriceX96 *uint256.Int
	tick         int32
	liquidity    *uint256.Int
	// fee growth of the input token; the other side does not move
	feeGrowthIn *uint256.Int
	crossings   []crossing
}

// Swap sells amountIn of X (xIn) or Y for the other token, walking across as
// many ticks as needed. It fails with ErrSlippageExceeded, leaving the pool
// untouched, when the output is below minAmountOut.
func (p *Pool) Swap(amountIn *uint256.Int, xIn bool, minAmountOut *uint256.Int) (SwapResult, error) {
	return p.SwapWithLimit(amountIn, xIn, minAmountOut, nil)
}

// SwapWithLimit is Swap with a sqrt price the swap may not move past. A nil
// limit allows the full tick range.
func (p *Pool) SwapWithLimit(amountIn *uint256.Int, xIn bool, minAmountOut, sqrtPriceLimitX96 *uint256.Int) (SwapResult, error) {
	state, err := p.simulate(amountIn, xIn, sqrtPriceLimitX96)
	if err != nil {
		return SwapResult{}, err
	}
	if state.amountOut.Lt(orZero(minAmountOut)) {
		return SwapResult{}, fmt.Errorf("%w: output %s below minimum %s", ErrSlippageExceeded, state.amountOut.Dec(), orZero(minAmountOut).Dec())
	}
	p.commit(state, xIn)
	return p.result(amountIn, state), nil
}

// Quote runs a swap without changing the pool.
func (p *Pool) Quote(amountIn *uint256.Int, xIn bool) (SwapResult, error) {
	state, err := p.simulate(amountIn, xIn, nil)
	if err != nil {
		return SwapResult{}, err
	}
	return p.result(amountIn, state), nil
}

func (p *Pool) result(amountIn *uint256.Int, s swapState) SwapResult {
	return SwapResult{
		AmountIn:     new(uint256.Int).Sub(orZero(amountIn), s.remaining),
		AmountOut:    s.amountOut,
		FeePaid:      s.feePaid,
		SqrtPriceX96: s.sqrtPriceX96.Clone(),
		Tick:         s.tick,
		Liquidity:    s.liquidity.Clone(),
		TicksCrossed: len(s.crossings),
	}
}

func (p *Pool) simulate(amountIn *uint256.Int, xIn bool, limit *uint256.Int) (swapState, error) {
	amountIn = orZero(amountIn)
	s := swapState{
		remaining:    amountIn.Clone(),
		amountOut:    new(uint256.Int),
		feePaid:      new(uint256.Int),
		sqrtPriceX96: p.sqrtPriceX96.Clone(),
		tick:         p.tick,
		liquidity:    p.liquidity.Clone(),
	}
	if xIn {
		s.feeGrowthIn = p.feeGrowthGlobalX.Clone()
	} else {
		s.feeGrowthIn = p.feeGrowthGlobalY.Clone()
	}
	if amountIn.IsZero() {
		return s, nil
	}

	limit, err := p.priceLimit(limit, xIn)
	if err != nil {
		return swapState{}, err
	}
	if s.liquidity.IsZero() && len(p.ticks) == 0 {
		return swapState{}, fmt.Errorf("%w: pool %s has no liquidity", ErrInsufficientLiquidity, p.id)
	}

	spacing := p.tier.TickSpacing
	for !s.remaining.IsZero() && !s.sqrtPriceX96.Eq(limit) {
		// Past the last position there is nothing left to trade against.
		if s.liquidity.IsZero() && !p.hasTickBeyond(s.tick, xIn) {
			break
		}
		start := s.sqrtPriceX96

		next, initialized := p.bitmap.nextInitializedTickWithinOneWord(s.tick, spacing, xIn)
		if next < clmm.MinTick {
			next = clmm.MinTick
		} else if next > clmm.MaxTick {
			next = clmm.MaxTick
		}
		sqrtNext, err := clmm.SqrtRatioAtTick(next)
		if err != nil {
			return swapState{}, err
		}

		target := sqrtNext
		if (xIn && sqrtNext.Lt(limit)) || (!xIn && sqrtNext.Gt(limit)) {
			target = limit
		}

		step, err := clmm.ComputeSwapStep(start, target, s.liquidity, s.remaining, true, p.tier.FeeRatePpm)
		if err != nil {
			return swapState{}, fmt.Errorf("swap step at tick %d: %w", s.tick, err)
		}

		s.remaining.Sub(s.remaining, step.AmountIn)
		s.remaining.Sub(s.remaining, step.FeeAmount)
		s.amountOut.Add(s.amountOut, step.AmountOut)
		s.feePaid.Add(s.feePaid, step.FeeAmount)

		if !s.liquidity.IsZero() && !step.FeeAmount.IsZero() {
			growth, err := clmm.MulDiv(step.FeeAmount, clmm.Q128, s.liquidity)
			if err != nil {
				return swapState{}, fmt.Errorf("fee growth: %w", err)
			}
			s.feeGrowthIn.Add(s.feeGrowthIn, growth)
		}

		s.sqrtPriceX96 = step.SqrtPriceNextX96
		switch {
		case s.sqrtPriceX96.Eq(sqrtNext):
			if initialized {
				if err := p.cross(&s, next, xIn); err != nil {
					return swapState{}, err
				}
			}
			if xIn {
				s.tick = next - 1
			} else {
				s.tick = next
			}
		case !s.sqrtPriceX96.Eq(start):
			if s.tick, err = clmm.TickAtSqrtRatio(s.sqrtPriceX96); err != nil {
				return swapState{}, err
			}
		}
	}

	if s.remaining.Eq(amountIn) {
		return swapState{}, fmt.Errorf("%w: no liquidity %s the current price", ErrInsufficientLiquidity, direction(xIn))
	}
	return s, nil
}

// hasTickBeyond reports whether an initialized tick lies ahead of tick in the
// swap direction.
func (p *Pool) hasTickBeyond(tick int32, xIn bool) bool {
	for index := range p.ticks {
		if (xIn && index <= tick) || (!xIn && index > tick) {
			return true
		}
	}
	return false
}

// cross moves the swap across an initialized tick: fee growth outside flips
// to the other side and the tick's net liquidity enters or leaves the active
// range.
func (p *Pool) cross(s *swapState, index int32, xIn bool) error {
	t := p.ticks[index]

	globalX, globalY := p.feeGrowthGlobalX, p.feeGrowthGlobalY
	if xIn {
		globalX = s.feeGrowthIn
	} else {
		globalY = s.feeGrowthIn
	}
	s.crossings = append(s.crossings, crossing{
		index:             index,
		feeGrowthOutsideX: new(uint256.Int).Sub(globalX, t.FeeGrowthOutsideX),
		feeGrowthOutsideY: new(uint256.Int).Sub(globalY, t.FeeGrowthOutsideY),
	})

	net := t.LiquidityNet
	if xIn {
		net = new(big.Int).Neg(net)
	}
	liquidity, err := clmm.AddDelta(s.liquidity, net)
	if err != nil {
		return fmt.Errorf("cross tick %d: %w", index, err)
	}
	s.liquidity = liquidity
	return nil
}

func (p *Pool) commit(s swapState, xIn bool) {
	p.sqrtPriceX96 = s.sqrtPriceX96
	p.tick = s.tick
	p.liquidity = s.liquidity
	if xIn {
		p.feeGrowthGlobalX = s.feeGrowthIn
	} else {
		p.feeGrowthGlobalY = s.feeGrowthIn
	}
	for _, c := range s.crossings {
		t := p.ticks[c.index]
		t.FeeGrowthOutsideX = c.feeGrowthOutsideX
		t.FeeGrowthOutsideY = c.feeGrowthOutsideY
	}
}

// priceLimit validates a caller limit, or picks the widest one allowed.
func (p *Pool) priceLimit(limit *uint256.Int, xIn bool) (*uint256.Int, error) {
	if limit == nil {
		if xIn {
			return new(uint256.Int).AddUint64(clmm.MinSqrtRatio, 1), nil
		}
		return new(uint256.Int).SubUint64(clmm.MaxSqrtRatio, 1), nil
	}
	if xIn {
		if !limit.Lt(p.sqrtPriceX96) || !limit.Gt(clmm.MinSqrtRatio) {
			return nil, fmt.Errorf("%w: price limit %s must be in (%s, %s)", ErrInvalidInput, limit.Dec(), clmm.MinSqrtRatio.Dec(), p.sqrtPriceX96.Dec())
		}
		return limit, nil
	}
	if !limit.Gt(p.sqrtPriceX96) || !limit.Lt(clmm.MaxSqrtRatio) {
		return nil, fmt.Errorf("%w: price limit %s must be in (%s, %s)", ErrInvalidInput, limit.Dec(), p.sqrtPriceX96.Dec(), clmm.MaxSqrtRatio.Dec())
	}
	return limit, nil
}

func direction(xIn bool) string {
	if xIn {
		return "below"
	}
	return "above"
}
