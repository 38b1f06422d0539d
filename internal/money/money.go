// Package money converts raw token amounts into human and dollar figures and
// applies basis-point slippage bounds. USD and BPS are int64 fixed point so
// sums never drift.
package money

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Scale factors for different precisions
const (
	USDScale int64 = 100   // 2 decimals: $1.00 = 100
	BPSScale int64 = 10000 // basis points: 100% = 10000
	MaxUSD   int64 = math.MaxInt64 / USDScale
)

// USD represents US dollars in cents (2 decimal places).
type USD int64

// BPS represents basis points (1 bps = 0.01% = 0.0001).
type BPS int64

// --- USD Constructors ---

// NewUSDFromCents creates USD from cents.
func NewUSDFromCents(cents int64) USD {
	return USD(cents)
}

// USDFromDecimal rounds d to the nearest cent, half away from zero.
// Values beyond the int64 range saturate.
func USDFromDecimal(d decimal.Decimal) USD {
	cents := d.Mul(decimal.NewFromInt(USDScale)).Round(0)
	switch {
	case cents.GreaterThan(decimal.NewFromInt(math.MaxInt64)):
		return USD(math.MaxInt64)
	case cents.LessThan(decimal.NewFromInt(math.MinInt64)):
		return USD(math.MinInt64)
	}
	return USD(cents.IntPart())
}

// --- USD Arithmetic ---

// Add returns a + b.
func (a USD) Add(b USD) USD {
	return a + b
}

// Sub returns a - b.
func (a USD) Sub(b USD) USD {
	return a - b
}

// MulBPS multiplies USD by basis points and returns USD.
// Example: $100.MulBPS(50) = $0.50 (0.5%)
func (a USD) MulBPS(bps BPS) USD {
	return USD((int64(a) * int64(bps)) / BPSScale)
}

// IsZero returns true if == 0.
func (a USD) IsZero() bool {
	return a == 0
}

// Cents returns the raw cent value.
func (a USD) Cents() int64 {
	return int64(a)
}

// Decimal returns the dollar amount exactly.
func (a USD) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String returns formatted string like "$123.45" or "-$45.00".
func (a USD) String() string {
	if a < 0 {
		return "-$" + (-a).Decimal().StringFixed(2)
	}
	return "$" + a.Decimal().StringFixed(2)
}

// --- BPS ---

// NewBPSFromInt creates BPS directly from basis points.
func NewBPSFromInt(bps int64) BPS {
	return BPS(bps)
}

// BPSFromPPM converts parts per million (fee tier units) to basis points,
// rounding down: 3000 ppm = 30 bps.
func BPSFromPPM(ppm uint32) BPS {
	return BPS(int64(ppm) / 100)
}

// Valid reports whether a is within [0, 100%].
func (a BPS) Valid() bool {
	return a >= 0 && int64(a) <= BPSScale
}

// Percent returns as percentage string (e.g., "0.50%").
func (a BPS) Percent() string {
	return decimal.New(int64(a), -2).StringFixed(2) + "%"
}

// String returns basis points as string (e.g., "50 bps").
func (a BPS) String() string {
	return fmt.Sprintf("%d bps", a)
}

// --- Token amounts ---

// ToUnits scales a raw integer amount down by decimals, e.g. 1500000 with
// 6 decimals is 1.5.
func ToUnits(raw *uint256.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals))
}

// Value prices a raw amount at usdPrice per whole token.
func Value(raw *uint256.Int, decimals uint8, usdPrice decimal.Decimal) USD {
	return USDFromDecimal(ToUnits(raw, decimals).Mul(usdPrice))
}

// MinOut is the smallest acceptable output when tolerating slippage:
// floor(amount · (1 − slippage)).
func MinOut(amount *uint256.Int, slippage BPS) (*uint256.Int, error) {
	if !slippage.Valid() {
		return nil, fmt.Errorf("money: slippage %s outside [0, 10000] bps", slippage)
	}
	keep := uint256.NewInt(uint64(BPSScale - int64(slippage)))
	out, overflow := new(uint256.Int).MulDivOverflow(amount, keep, uint256.NewInt(uint64(BPSScale)))
	if overflow {
		return nil, fmt.Errorf("money: slippage bound overflows")
	}
	return out, nil
}

// Min returns the minimum of two USD values.
func Min(a, b USD) USD {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two USD values.
func Max(a, b USD) USD {
	if a > b {
		return a
	}
	return b
}
