package clmm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Amount0Delta returns the token X amount between two prices for a liquidity:
// L * (sqrtB - sqrtA) / (sqrtA * sqrtB). Argument order does not matter.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, fmt.Errorf("%w: zero sqrt price", ErrInvalidInput)
	}
	if !FitsUint128(liquidity) {
		return nil, fmt.Errorf("%w: liquidity exceeds 128 bits", ErrArithmeticOverflow)
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, Resolution)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		t, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(t, sqrtA), nil
	}
	t, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return t.Div(t, sqrtA), nil
}

// Amount1Delta returns the token Y amount between two prices for a liquidity:
// L * (sqrtB - sqrtA).
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// NextSqrtPriceFromInput returns the price after adding amountIn of the input
// token. X in moves the price down, Y in moves it up.
func NextSqrtPriceFromInput(sqrtPriceX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() || liquidity.IsZero() {
		return nil, fmt.Errorf("%w: sqrt price and liquidity must be non-zero", ErrInvalidInput)
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after removing amountOut of the
// output token.
func NextSqrtPriceFromOutput(sqrtPriceX96, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() || liquidity.IsZero() {
		return nil, fmt.Errorf("%w: sqrt price and liquidity must be non-zero", ErrInvalidInput)
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amountOut, false)
}

// sqrtP' = L*sqrtP / (L +- amount*sqrtP), rounded up so the price never
// moves further than the amount allows.
func nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtP.Clone(), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, Resolution)
	product, productOverflow := new(uint256.Int).MulOverflow(amount, sqrtP)

	if add {
		if !productOverflow {
			denominator, overflow := new(uint256.Int).AddOverflow(numerator1, product)
			if !overflow {
				return MulDivRoundingUp(numerator1, sqrtP, denominator)
			}
		}
		// L / (L/sqrtP + amount)
		denominator := new(uint256.Int).Div(numerator1, sqrtP)
		if _, overflow := denominator.AddOverflow(denominator, amount); overflow {
			return nil, fmt.Errorf("%w: next price denominator", ErrArithmeticOverflow)
		}
		return DivRoundingUp(numerator1, denominator), nil
	}

	if productOverflow || !numerator1.Gt(product) {
		return nil, fmt.Errorf("%w: output exceeds token X reserves of the range", ErrInsufficientLiquidity)
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := MulDivRoundingUp(numerator1, sqrtP, denominator)
	if err != nil {
		return nil, err
	}
	if next.Gt(MaxUint160) {
		return nil, fmt.Errorf("%w: next sqrt price exceeds 160 bits", ErrArithmeticOverflow)
	}
	return next, nil
}

// sqrtP' = sqrtP +- amount/L, rounded down.
func nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		quotient, err := MulDiv(amount, Q96, liquidity)
		if err != nil {
			return nil, err
		}
		next, overflow := new(uint256.Int).AddOverflow(sqrtP, quotient)
		if overflow || next.Gt(MaxUint160) {
			return nil, fmt.Errorf("%w: next sqrt price exceeds 160 bits", ErrArithmeticOverflow)
		}
		return next, nil
	}

	quotient, err := MulDivRoundingUp(amount, Q96, liquidity)
	if err != nil {
		return nil, err
	}
	if !sqrtP.Gt(quotient) {
		return nil, fmt.Errorf("%w: output exceeds token Y reserves of the range", ErrInsufficientLiquidity)
	}
	return new(uint256.Int).Sub(sqrtP, quotient), nil
}
