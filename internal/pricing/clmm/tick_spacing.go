package clmm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ValidateTickRange checks a position range: both ends inside the tick bounds,
// lower strictly below upper, and both aligned to spacing.
func ValidateTickRange(lower, upper, spacing int32) error {
	if spacing <= 0 {
		return fmt.Errorf("%w: spacing %d must be positive", ErrInvalidTickSpacing, spacing)
	}
	if lower >= upper {
		return fmt.Errorf("%w: tick lower %d must be below tick upper %d", ErrInvalidInput, lower, upper)
	}
	if lower < MinTick {
		return fmt.Errorf("%w: tick lower %d below %d", ErrTickOutOfRange, lower, MinTick)
	}
	if upper > MaxTick {
		return fmt.Errorf("%w: tick upper %d above %d", ErrTickOutOfRange, upper, MaxTick)
	}
	if lower%spacing != 0 {
		return fmt.Errorf("%w: tick lower %d, spacing %d", ErrInvalidTickSpacing, lower, spacing)
	}
	if upper%spacing != 0 {
		return fmt.Errorf("%w: tick upper %d, spacing %d", ErrInvalidTickSpacing, upper, spacing)
	}
	return nil
}

// MinUsableTick is the lowest tick aligned to spacing.
func MinUsableTick(spacing int32) int32 {
	return (MinTick / spacing) * spacing
}

// MaxUsableTick is the highest tick aligned to spacing.
func MaxUsableTick(spacing int32) int32 {
	return (MaxTick / spacing) * spacing
}

// MaxLiquidityPerTick spreads the uint128 liquidity range evenly over every
// usable tick, so that summing liquidityGross over all ticks cannot overflow.
func MaxLiquidityPerTick(spacing int32) *uint256.Int {
	numTicks := uint64((MaxUsableTick(spacing)-MinUsableTick(spacing))/spacing) + 1
	return new(uint256.Int).Div(MaxUint128, uint256.NewInt(numTicks))
}
