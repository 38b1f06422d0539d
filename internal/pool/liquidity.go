package pool

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/position"
	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

// AddResult describes a completed AddLiquidity.
type AddResult struct {
	Position  position.Position
	Liquidity *uint256.Int
	AmountX   *uint256.Int
	AmountY   *uint256.Int
}

// RemoveResult describes a completed RemoveLiquidity. Fees earned up to the
// removal stay in Position.TokensOwed until collected.
type RemoveResult struct {
	Position position.Position
	AmountX  *uint256.Int
	AmountY  *uint256.Int
}

func (p *Pool) positionKey(owner string, lower, upper int32) position.Key {
	return position.Key{Owner: owner, PoolID: p.id, TickLower: lower, TickUpper: upper}
}

// AddLiquidity deposits up to amountX and amountY into [lower, upper). The
// liquidity minted is the largest both amounts can fund at the current price;
// the amounts actually taken are rounded up in the pool's favor. If either
// falls below its minimum nothing is changed.
func (p *Pool) AddLiquidity(owner string, lower, upper int32, amountX, amountY, minX, minY *uint256.Int) (AddResult, error) {
	if owner == "" {
		return AddResult{}, fmt.Errorf("%w: empty owner", ErrInvalidInput)
	}
	if err := clmm.ValidateTickRange(lower, upper, p.tier.TickSpacing); err != nil {
		return AddResult{}, err
	}
	sqrtA, sqrtB, err := rangePrices(lower, upper)
	if err != nil {
		return AddResult{}, err
	}
	amountX, amountY = orZero(amountX), orZero(amountY)

	liquidity, err := clmm.LiquidityForAmounts(p.sqrtPriceX96, sqrtA, sqrtB, amountX, amountY)
	if err != nil {
		return AddResult{}, err
	}
	if liquidity.IsZero() {
		return AddResult{}, fmt.Errorf("%w: amounts mint no liquidity in [%d, %d)", ErrInvalidInput, lower, upper)
	}

	actualX, actualY, err := p.amountsForLiquidity(lower, upper, liquidity, true)
	if err != nil {
		return AddResult{}, err
	}
	if actualX.Lt(orZero(minX)) || actualY.Lt(orZero(minY)) {
		return AddResult{}, fmt.Errorf("%w: deposit %s X / %s Y below minimum %s / %s",
			ErrSlippageExceeded, actualX.Dec(), actualY.Dec(), orZero(minX).Dec(), orZero(minY).Dec())
	}

	pos, err := p.modifyPosition(p.positionKey(owner, lower, upper), liquidity, false)
	if err != nil {
		return AddResult{}, err
	}
	return AddResult{Position: pos, Liquidity: liquidity, AmountX: actualX, AmountY: actualY}, nil
}

// RemoveLiquidity withdraws delta liquidity from the owner's position and
// returns the token amounts, rounded down. A zero delta only settles fees.
func (p *Pool) RemoveLiquidity(owner string, lower, upper int32, delta *uint256.Int) (RemoveResult, error) {
	if err := clmm.ValidateTickRange(lower, upper, p.tier.TickSpacing); err != nil {
		return RemoveResult{}, err
	}
	delta = orZero(delta)
	key := p.positionKey(owner, lower, upper)
	current, err := p.ledger.Get(key)
	if err != nil {
		return RemoveResult{}, err
	}
	if delta.Gt(current.Liquidity) {
		return RemoveResult{}, fmt.Errorf("%w: remove %s from position holding %s",
			ErrInsufficientLiquidity, delta.Dec(), current.Liquidity.Dec())
	}

	amountX, amountY, err := p.amountsForLiquidity(lower, upper, delta, false)
	if err != nil {
		return RemoveResult{}, err
	}
	pos, err := p.modifyPosition(key, delta, true)
	if err != nil {
		return RemoveResult{}, err
	}
	if err := p.dropIfEmpty(key); err != nil {
		return RemoveResult{}, err
	}
	return RemoveResult{Position: pos, AmountX: amountX, AmountY: amountY}, nil
}

// CollectFees pays out everything the position is owed.
func (p *Pool) CollectFees(owner string, lower, upper int32) (feeX, feeY *uint256.Int, err error) {
	key := p.positionKey(owner, lower, upper)
	insideX, insideY := p.feeGrowthInside(p.tickOrEmpty(lower), p.tickOrEmpty(upper))
	feeX, feeY, err = p.ledger.CollectFees(key, insideX, insideY)
	if err != nil {
		return nil, nil, err
	}
	if err := p.dropIfEmpty(key); err != nil {
		return nil, nil, err
	}
	return feeX, feeY, nil
}

// Position returns a copy of the owner's position in this pool.
func (p *Pool) Position(owner string, lower, upper int32) (position.Position, error) {
	return p.ledger.Get(p.positionKey(owner, lower, upper))
}

// modifyPosition applies a liquidity change to both boundary ticks, the
// position and, when the range is active, the pool. Every step that can fail
// runs before anything is written.
func (p *Pool) modifyPosition(key position.Key, delta *uint256.Int, remove bool) (position.Position, error) {
	signed := clmm.SignedDelta(delta, remove)

	lower, err := p.planTick(key.TickLower, signed, false)
	if err != nil {
		return position.Position{}, err
	}
	upper, err := p.planTick(key.TickUpper, signed, true)
	if err != nil {
		return position.Position{}, err
	}

	active := key.TickLower <= p.tick && p.tick < key.TickUpper
	liquidity := p.liquidity
	if active {
		if liquidity, err = clmm.AddDelta(p.liquidity, signed); err != nil {
			return position.Position{}, fmt.Errorf("pool liquidity: %w", err)
		}
	}

	insideX, insideY := p.feeGrowthInside(lower.tick, upper.tick)
	pos, err := p.ledger.Upsert(key, delta, remove, insideX, insideY)
	if err != nil {
		return position.Position{}, err
	}

	p.applyTick(lower)
	p.applyTick(upper)
	p.liquidity = liquidity
	return pos, nil
}

// dropIfEmpty forgets a position once it is fully withdrawn and collected.
func (p *Pool) dropIfEmpty(key position.Key) error {
	if err := p.ledger.Delete(key); err != nil && !errors.Is(err, position.ErrPositionNotEmpty) {
		return err
	}
	return nil
}

// amountsForLiquidity returns the tokens liquidity represents over
// [lower, upper) at the current tick.
func (p *Pool) amountsForLiquidity(lower, upper int32, liquidity *uint256.Int, roundUp bool) (x, y *uint256.Int, err error) {
	sqrtA, sqrtB, err := rangePrices(lower, upper)
	if err != nil {
		return nil, nil, err
	}
	x, y = new(uint256.Int), new(uint256.Int)
	switch {
	case p.tick < lower:
		x, err = clmm.Amount0Delta(sqrtA, sqrtB, liquidity, roundUp)
	case p.tick < upper:
		if x, err = clmm.Amount0Delta(p.sqrtPriceX96, sqrtB, liquidity, roundUp); err != nil {
			return nil, nil, err
		}
		y, err = clmm.Amount1Delta(sqrtA, p.sqrtPriceX96, liquidity, roundUp)
	default:
		y, err = clmm.Amount1Delta(sqrtA, sqrtB, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func rangePrices(lower, upper int32) (sqrtA, sqrtB *uint256.Int, err error) {
	if sqrtA, err = clmm.SqrtRatioAtTick(lower); err != nil {
		return nil, nil, err
	}
	if sqrtB, err = clmm.SqrtRatioAtTick(upper); err != nil {
		return nil, nil, err
	}
	return sqrtA, sqrtB, nil
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
