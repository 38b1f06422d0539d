// Package source defines the contracts between the engine and the outside
// world: where pool state comes from, where operations are sent and how the
// results are read back. Implementations live in subpackages.
package source

import (
	"context"
	"fmt"

	"github.com/agatticelli/clmm-engine/internal/pool"
)

// ErrMalformedPoolData is returned by ParsePool, naming the offending field.
var ErrMalformedPoolData = pool.ErrMalformedPoolData

// RawPool is pool state exactly as the source reports it. Numbers are
// decimal strings; optional fields may be empty.
type RawPool struct {
	TokenX       string `json:"token_x"`
	TokenY       string `json:"token_y"`
	FeeRatePpm   string `json:"fee_rate"`
	TickSpacing  string `json:"tick_spacing"`
	SqrtPriceX96 string `json:"sqrt_price"`
	Liquidity    string `json:"liquidity"`
	Tick         string `json:"current_tick"`

	FeeGrowthGlobalX string `json:"fee_growth_global_x,omitempty"`
	FeeGrowthGlobalY string `json:"fee_growth_global_y,omitempty"`
	ReserveX         string `json:"reserve_x,omitempty"`
	ReserveY         string `json:"reserve_y,omitempty"`
}

// TokenMetadata is display information for a coin type.
type TokenMetadata struct {
	CoinType string `json:"coin_type"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// PoolSource fetches the current state of a pool.
type PoolSource interface {
	FetchPoolRaw(ctx context.Context, poolID string) (RawPool, error)
}

// MetadataSource looks up token display metadata.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, coinType string) (TokenMetadata, error)
}

// Submitter executes an operation and reports what happened.
type Submitter interface {
	Submit(ctx context.Context, op Operation) (Receipt, error)
}

// SignedTransaction is a transaction ready for execution.
type SignedTransaction struct {
	TxBytes    string   // base64
	Signatures []string // base64, one per signer
}

// Signer turns a Move call into a signed transaction. Key custody stays
// with the implementation.
type Signer interface {
	Sign(ctx context.Context, call MoveCall) (SignedTransaction, error)
}

// OpError attaches the operation and pool to a collaborator failure.
type OpError struct {
	Op     string
	PoolID string
	Err    error
}

func (e *OpError) Error() string {
	if e.PoolID == "" {
		return fmt.Sprintf("source: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("source: %s %s: %v", e.Op, e.PoolID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapOp returns err wrapped in an OpError, or nil.
func WrapOp(op, poolID string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, PoolID: poolID, Err: err}
}
