package clmm

import "errors"

var (
	// ErrInvalidInput covers zero or negative prices, empty ranges and zero denominators.
	ErrInvalidInput = errors.New("invalid input")

	// ErrArithmeticOverflow is returned when a result does not fit its fixed-point width.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	ErrTickOutOfRange     = errors.New("tick out of range")
	ErrInvalidTickSpacing = errors.New("tick not aligned to spacing")

	// ErrInsufficientLiquidity is returned when an output amount exceeds what the
	// active liquidity can provide.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)
