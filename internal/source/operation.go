package source

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/feetier"
)

// Kind names an on-chain entry function of the pool module.
type Kind string

const (
	KindCreatePool      Kind = "create_pool"
	KindAddLiquidity    Kind = "add_liquidity"
	KindRemoveLiquidity Kind = "remove_liquidity"
	KindSwap            Kind = "swap"
	KindCollectFees     Kind = "collect_fees"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreatePool, KindAddLiquidity, KindRemoveLiquidity, KindSwap, KindCollectFees:
		return true
	}
	return false
}

// Arg is one named argument, already rendered to its wire string.
type Arg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Operation describes a pool call without building or signing anything.
// It is a value: every With* method returns a modified copy.
type Operation struct {
	RequestID string   `json:"request_id"`
	Kind      Kind     `json:"kind"`
	PoolID    string   `json:"pool_id,omitempty"`
	TypeArgs  []string `json:"type_args,omitempty"`
	Args      []Arg    `json:"args"`
}

// NewOperation starts an operation with a fresh client request id.
func NewOperation(kind Kind, poolID string) Operation {
	return Operation{
		RequestID: uuid.NewString(),
		Kind:      kind,
		PoolID:    poolID,
	}
}

// WithArg appends a named argument. Supported values are strings, integers,
// bools and *uint256.Int; anything else is rendered with %v.
func (o Operation) WithArg(name string, value any) Operation {
	args := make([]Arg, len(o.Args), len(o.Args)+1)
	copy(args, o.Args)
	o.Args = append(args, Arg{Name: name, Value: render(value)})
	return o
}

// WithTypeArgs sets the coin type arguments, X first.
func (o Operation) WithTypeArgs(types ...string) Operation {
	o.TypeArgs = append([]string(nil), types...)
	return o
}

// Arg returns the value of the named argument.
func (o Operation) Arg(name string) (string, bool) {
	for _, a := range o.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Validate checks the descriptor is complete enough to submit.
func (o Operation) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("source: unknown operation kind %q", o.Kind)
	}
	if o.Kind != KindCreatePool && o.PoolID == "" {
		return fmt.Errorf("source: %s needs a pool id", o.Kind)
	}
	if o.RequestID == "" {
		return fmt.Errorf("source: %s has no request id", o.Kind)
	}
	return nil
}

// MoveCall is the programmable call an Operation resolves to.
type MoveCall struct {
	Target        string   `json:"target"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []string `json:"arguments"`
	RequestID     string   `json:"request_id"`
}

// MoveCall resolves the operation against a deployed package. The pool
// object, or the registry for create_pool, is the first argument.
func (o Operation) MoveCall(packageID, module, registryID string) (MoveCall, error) {
	if err := o.Validate(); err != nil {
		return MoveCall{}, err
	}
	if packageID == "" || module == "" {
		return MoveCall{}, fmt.Errorf("source: package id and module are required")
	}

	first := o.PoolID
	if o.Kind == KindCreatePool {
		if registryID == "" {
			return MoveCall{}, fmt.Errorf("source: create_pool needs a registry id")
		}
		first = registryID
	}
	args := make([]string, 0, len(o.Args)+1)
	args = append(args, first)
	for _, a := range o.Args {
		args = append(args, a.Value)
	}
	return MoveCall{
		Target:        fmt.Sprintf("%s::%s::%s", packageID, module, o.Kind),
		TypeArguments: append([]string(nil), o.TypeArgs...),
		Arguments:     args,
		RequestID:     o.RequestID,
	}, nil
}

// CreatePoolOp describes creating the tokenX/tokenY pool at sqrtPriceX96.
func CreatePoolOp(tokenX, tokenY string, tier feetier.Tier, sqrtPriceX96 *uint256.Int) Operation {
	return NewOperation(KindCreatePool, "").
		WithTypeArgs(tokenX, tokenY).
		WithArg("fee_rate", tier.FeeRatePpm).
		WithArg("sqrt_price", sqrtPriceX96)
}

// AddLiquidityOp describes depositing into [lower, upper).
func AddLiquidityOp(poolID string, lower, upper int32, amountX, amountY, minX, minY *uint256.Int) Operation {
	return NewOperation(KindAddLiquidity, poolID).
		WithArg("tick_lower", lower).
		WithArg("tick_upper", upper).
		WithArg("amount_x", amountX).
		WithArg("amount_y", amountY).
		WithArg("min_x", minX).
		WithArg("min_y", minY)
}

// RemoveLiquidityOp describes withdrawing liquidity from [lower, upper).
func RemoveLiquidityOp(poolID string, lower, upper int32, liquidity *uint256.Int) Operation {
	return NewOperation(KindRemoveLiquidity, poolID).
		WithArg("tick_lower", lower).
		WithArg("tick_upper", upper).
		WithArg("liquidity", liquidity)
}

// SwapOp describes an exact-input swap.
func SwapOp(poolID string, amountIn *uint256.Int, xIn bool, minAmountOut, sqrtPriceLimitX96 *uint256.Int) Operation {
	return NewOperation(KindSwap, poolID).
		WithArg("x_for_y", xIn).
		WithArg("amount_in", amountIn).
		WithArg("min_amount_out", minAmountOut).
		WithArg("sqrt_price_limit", sqrtPriceLimitX96)
}

// CollectFeesOp describes claiming the fees owed to [lower, upper).
func CollectFeesOp(poolID string, lower, upper int32) Operation {
	return NewOperation(KindCollectFees, poolID).
		WithArg("tick_lower", lower).
		WithArg("tick_upper", upper)
}

func render(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *uint256.Int:
		if x == nil {
			return "0"
		}
		return x.Dec()
	case bool:
		return strconv.FormatBool(x)
	case int32:
		// Ticks travel as their I32 bit pattern.
		return strconv.FormatUint(uint64(uint32(x)), 10)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return fmt.Sprint(v)
	}
}
