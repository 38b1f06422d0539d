package clmm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FeeDenominator is 100% expressed in parts per million.
const FeeDenominator = 1_000_000

// SwapStep is the outcome of swapping inside a single liquidity range.
type SwapStep struct {
	SqrtPriceNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep moves the price from current toward target using at most
// amountRemaining. For exact input, amountRemaining covers AmountIn plus
// FeeAmount; for exact output it bounds AmountOut. The swap direction is
// implied by the two prices: target <= current swaps X for Y.
func ComputeSwapStep(current, target, liquidity, amountRemaining *uint256.Int, exactIn bool, feePpm uint32) (SwapStep, error) {
	if feePpm >= FeeDenominator {
		return SwapStep{}, fmt.Errorf("%w: fee %d ppm", ErrInvalidInput, feePpm)
	}

	zeroForOne := !current.Lt(target)
	fee := uint256.NewInt(uint64(feePpm))
	feeComplement := uint256.NewInt(uint64(FeeDenominator - feePpm))

	var (
		step SwapStep
		err  error
	)

	if exactIn {
		remainingLessFee, err := MulDiv(amountRemaining, feeComplement, uint256.NewInt(FeeDenominator))
		if err != nil {
			return SwapStep{}, err
		}
		if zeroForOne {
			step.AmountIn, err = Amount0Delta(target, current, liquidity, true)
		} else {
			step.AmountIn, err = Amount1Delta(current, target, liquidity, true)
		}
		if err != nil {
			return SwapStep{}, err
		}
		if !remainingLessFee.Lt(step.AmountIn) {
			step.SqrtPriceNextX96 = target.Clone()
		} else {
			step.SqrtPriceNextX96, err = NextSqrtPriceFromInput(current, liquidity, remainingLessFee, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		if zeroForOne {
			step.AmountOut, err = Amount1Delta(target, current, liquidity, false)
		} else {
			step.AmountOut, err = Amount0Delta(current, target, liquidity, false)
		}
		if err != nil {
			return SwapStep{}, err
		}
		if !amountRemaining.Lt(step.AmountOut) {
			step.SqrtPriceNextX96 = target.Clone()
		} else {
			step.SqrtPriceNextX96, err = NextSqrtPriceFromOutput(current, liquidity, amountRemaining, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	}

	reached := step.SqrtPriceNextX96.Eq(target)
	next := step.SqrtPriceNextX96

	if zeroForOne {
		if !(reached && exactIn) {
			if step.AmountIn, err = Amount0Delta(next, current, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !(reached && !exactIn) {
			if step.AmountOut, err = Amount1Delta(next, current, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		if !(reached && exactIn) {
			if step.AmountIn, err = Amount1Delta(current, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !(reached && !exactIn) {
			if step.AmountOut, err = Amount0Delta(current, next, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	}

	if !exactIn && step.AmountOut.Gt(amountRemaining) {
		step.AmountOut = amountRemaining.Clone()
	}

	if exactIn && !reached {
		// The price stopped short of target, so whatever input was not swapped is fee.
		step.FeeAmount = new(uint256.Int).Sub(amountRemaining, step.AmountIn)
	} else {
		step.FeeAmount, err = MulDivRoundingUp(step.AmountIn, fee, feeComplement)
		if err != nil {
			return SwapStep{}, err
		}
	}
	return step, nil
}
