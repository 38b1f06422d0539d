package service

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/agatticelli/clmm-engine/internal/money"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/source"
)

type QuoteRequest struct {
	AmountIn *uint256.Int
	XIn      bool
}

// CreatePoolRequest opens a pool at Price, quoted as TokenB per TokenA.
type CreatePoolRequest struct {
	TokenA  string
	TokenB  string
	FeeTier string
	Price   decimal.Decimal
}

// SwapRequest is an exact-input swap. When MinAmountOut is nil it is derived
// from a quote and Slippage.
type SwapRequest struct {
	PoolID            string
	AmountIn          *uint256.Int
	XIn               bool
	MinAmountOut      *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
	Slippage          money.BPS
}

// AddLiquidityRequest deposits into [TickLower, TickUpper). Nil minimums are
// derived from the computed amounts and Slippage.
type AddLiquidityRequest struct {
	PoolID    string
	Owner     string
	TickLower int32
	TickUpper int32
	AmountX   *uint256.Int
	AmountY   *uint256.Int
	MinX      *uint256.Int
	MinY      *uint256.Int
	Slippage  money.BPS
}

type RemoveLiquidityRequest struct {
	PoolID    string
	Owner     string
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

type CollectFeesRequest struct {
	PoolID    string
	Owner     string
	TickLower int32
	TickUpper int32
}

// Fees is what CollectFees paid out.
type Fees struct {
	X *uint256.Int
	Y *uint256.Int
}

// Outcome is the result of a mutation with the pool state that followed it.
// For pools held by a source, Result is the local estimate the submitted
// bounds were derived from, and Receipt is set.
type Outcome[T any] struct {
	Result   T
	Snapshot pool.Snapshot
	Receipt  *source.Receipt
}
