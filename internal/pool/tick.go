package pool

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

// Tick is the state kept at an initialized range boundary.
type Tick struct {
	Index int32
	// LiquidityGross is the total liquidity referencing the tick. Zero means
	// uninitialized.
	LiquidityGross *uint256.Int
	// LiquidityNet is added to active liquidity when the price crosses the
	// tick upward and subtracted when it crosses downward.
	LiquidityNet *big.Int
	// Fee growth on the other side of the tick from the current price, Q128.
	FeeGrowthOutsideX *uint256.Int
	FeeGrowthOutsideY *uint256.Int
}

func emptyTick(index int32) Tick {
	return Tick{
		Index:             index,
		LiquidityGross:    new(uint256.Int),
		LiquidityNet:      new(big.Int),
		FeeGrowthOutsideX: new(uint256.Int),
		FeeGrowthOutsideY: new(uint256.Int),
	}
}

func (t Tick) clone() Tick {
	return Tick{
		Index:             t.Index,
		LiquidityGross:    t.LiquidityGross.Clone(),
		LiquidityNet:      new(big.Int).Set(t.LiquidityNet),
		FeeGrowthOutsideX: t.FeeGrowthOutsideX.Clone(),
		FeeGrowthOutsideY: t.FeeGrowthOutsideY.Clone(),
	}
}

// tickUpdate is a computed but not yet applied change to one tick.
type tickUpdate struct {
	tick    Tick
	flipped bool
}

// planTick computes the tick after a position boundary changes by delta
// without touching the pool. upper marks the tick as the position's upper
// boundary, which contributes -delta to the net.
func (p *Pool) planTick(index int32, delta *big.Int, upper bool) (tickUpdate, error) {
	t := emptyTick(index)
	if cur, ok := p.ticks[index]; ok {
		t = cur.clone()
	}

	grossBefore := t.LiquidityGross
	grossAfter, err := clmm.AddDelta(grossBefore, delta)
	if err != nil {
		return tickUpdate{}, fmt.Errorf("tick %d: %w", index, err)
	}
	if grossAfter.Gt(p.maxLiquidityPerTick) {
		return tickUpdate{}, fmt.Errorf("%w: tick %d liquidity %s above per-tick maximum", ErrArithmeticOverflow, index, grossAfter.Dec())
	}

	// By convention all growth before a tick is initialized happened below it.
	if grossBefore.IsZero() && index <= p.tick {
		t.FeeGrowthOutsideX.Set(p.feeGrowthGlobalX)
		t.FeeGrowthOutsideY.Set(p.feeGrowthGlobalY)
	}

	t.LiquidityGross = grossAfter
	if upper {
		t.LiquidityNet.Sub(t.LiquidityNet, delta)
	} else {
		t.LiquidityNet.Add(t.LiquidityNet, delta)
	}
	return tickUpdate{tick: t, flipped: grossBefore.IsZero() != grossAfter.IsZero()}, nil
}

func (p *Pool) applyTick(u tickUpdate) {
	if u.flipped {
		p.bitmap.flip(u.tick.Index, p.tier.TickSpacing)
	}
	if u.tick.LiquidityGross.IsZero() {
		delete(p.ticks, u.tick.Index)
		return
	}
	t := u.tick
	p.ticks[t.Index] = &t
}

// feeGrowthInside returns the fee growth per unit of liquidity accumulated
// between two ticks. Accumulators wrap, so all subtraction is mod 2^256.
func (p *Pool) feeGrowthInside(lower, upper Tick) (x, y *uint256.Int) {
	belowX, belowY := lower.FeeGrowthOutsideX, lower.FeeGrowthOutsideY
	if p.tick < lower.Index {
		belowX = new(uint256.Int).Sub(p.feeGrowthGlobalX, lower.FeeGrowthOutsideX)
		belowY = new(uint256.Int).Sub(p.feeGrowthGlobalY, lower.FeeGrowthOutsideY)
	}

	aboveX, aboveY := upper.FeeGrowthOutsideX, upper.FeeGrowthOutsideY
	if p.tick >= upper.Index {
		aboveX = new(uint256.Int).Sub(p.feeGrowthGlobalX, upper.FeeGrowthOutsideX)
		aboveY = new(uint256.Int).Sub(p.feeGrowthGlobalY, upper.FeeGrowthOutsideY)
	}

	x = new(uint256.Int).Sub(p.feeGrowthGlobalX, belowX)
	x.Sub(x, aboveX)
	y = new(uint256.Int).Sub(p.feeGrowthGlobalY, belowY)
	y.Sub(y, aboveY)
	return x, y
}

// tickOrEmpty returns a copy of the tick, or an uninitialized one.
func (p *Pool) tickOrEmpty(index int32) Tick {
	if t, ok := p.ticks[index]; ok {
		return t.clone()
	}
	return emptyTick(index)
}

// Ticks returns copies of all initialized ticks in ascending order.
func (p *Pool) Ticks() []Tick {
	out := make([]Tick, 0, len(p.ticks))
	for _, t := range p.ticks {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
