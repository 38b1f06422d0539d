package clmm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// AddDelta applies a signed liquidity delta to x. The result must stay within
// [0, 2^128).
func AddDelta(x *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	magnitude, overflow := uint256.FromBig(new(big.Int).Abs(delta))
	if overflow || !FitsUint128(magnitude) {
		return nil, fmt.Errorf("%w: liquidity delta %s exceeds 128 bits", ErrArithmeticOverflow, delta)
	}
	if delta.Sign() < 0 {
		if magnitude.Gt(x) {
			return nil, fmt.Errorf("%w: liquidity %s cannot drop by %s", ErrInsufficientLiquidity, x.Dec(), magnitude.Dec())
		}
		return new(uint256.Int).Sub(x, magnitude), nil
	}
	z := new(uint256.Int).Add(x, magnitude)
	if !FitsUint128(z) {
		return nil, fmt.Errorf("%w: liquidity exceeds 128 bits", ErrArithmeticOverflow)
	}
	return z, nil
}

// SignedDelta turns an unsigned liquidity amount into a signed delta.
func SignedDelta(amount *uint256.Int, negative bool) *big.Int {
	d := amount.ToBig()
	if negative {
		d.Neg(d)
	}
	return d
}

// LiquidityForAmount0 is the liquidity that amount0 of token X buys over [sqrtA, sqrtB].
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Eq(sqrtB) {
		return nil, fmt.Errorf("%w: empty price range", ErrInvalidInput)
	}
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96)
	if err != nil {
		return nil, err
	}
	l, err := MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return toUint128(l)
}

// LiquidityForAmount1 is the liquidity that amount1 of token Y buys over [sqrtA, sqrtB].
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Eq(sqrtB) {
		return nil, fmt.Errorf("%w: empty price range", ErrInvalidInput)
	}
	l, err := MulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return toUint128(l)
}

// LiquidityForAmounts returns the largest liquidity the two amounts can fund
// over [sqrtA, sqrtB] at the current price. Below the range only token X
// counts, above it only token Y, and inside it the scarcer side wins.
func LiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	switch {
	case !sqrtPriceX96.Gt(sqrtA):
		return LiquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtPriceX96.Lt(sqrtB):
		l0, err := LiquidityForAmount0(sqrtPriceX96, sqrtB, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := LiquidityForAmount1(sqrtA, sqrtPriceX96, amount1)
		if err != nil {
			return nil, err
		}
		if l0.Lt(l1) {
			return l0, nil
		}
		return l1, nil
	default:
		return LiquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// AmountsForLiquidity returns the token amounts that liquidity represents over
// [sqrtA, sqrtB] at the current price.
func AmountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (amount0, amount1 *uint256.Int, err error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	amount0, amount1 = new(uint256.Int), new(uint256.Int)

	switch {
	case !sqrtPriceX96.Gt(sqrtA):
		amount0, err = Amount0Delta(sqrtA, sqrtB, liquidity, roundUp)
	case sqrtPriceX96.Lt(sqrtB):
		if amount0, err = Amount0Delta(sqrtPriceX96, sqrtB, liquidity, roundUp); err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1Delta(sqrtA, sqrtPriceX96, liquidity, roundUp)
	default:
		amount1, err = Amount1Delta(sqrtA, sqrtB, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func toUint128(x *uint256.Int) (*uint256.Int, error) {
	if !FitsUint128(x) {
		return nil, fmt.Errorf("%w: liquidity %s exceeds 128 bits", ErrArithmeticOverflow, x.Dec())
	}
	return x, nil
}
