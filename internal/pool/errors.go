package pool

import (
	"errors"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/position"
	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

// Math errors surface unchanged from clmm so callers only need this package.
var (
	ErrInvalidInput          = clmm.ErrInvalidInput
	ErrArithmeticOverflow    = clmm.ErrArithmeticOverflow
	ErrTickOutOfRange        = clmm.ErrTickOutOfRange
	ErrInvalidTickSpacing    = clmm.ErrInvalidTickSpacing
	ErrInsufficientLiquidity = clmm.ErrInsufficientLiquidity
	ErrUnknownFeeTier        = feetier.ErrUnknownFeeTier
	ErrPositionNotFound      = position.ErrPositionNotFound
)

var (
	ErrInvalidTokenPair = errors.New("pool: invalid token pair")
	ErrSlippageExceeded = errors.New("pool: slippage exceeded")
	ErrPoolExists       = errors.New("pool: already exists")
	ErrPoolNotFound     = errors.New("pool: not found")

	// ErrMalformedPoolData marks fetched state that cannot describe a pool.
	ErrMalformedPoolData = errors.New("pool: malformed pool data")
)

// IsUserCorrectable reports whether err comes from the request itself, so
// the caller can fix the input and retry. Arithmetic overflow and unknown
// failures are not correctable.
func IsUserCorrectable(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		ErrTickOutOfRange,
		ErrInvalidTickSpacing,
		ErrInsufficientLiquidity,
		ErrSlippageExceeded,
		ErrInvalidTokenPair,
		ErrUnknownFeeTier,
		ErrPositionNotFound,
		ErrPoolExists,
		ErrPoolNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
