// Package clmm implements the fixed-point math behind a concentrated-liquidity
// pool: Q64.96 square-root prices, tick conversion, swap steps and the
// conversions between token amounts and liquidity.
//
// All values are unsigned 256-bit integers. Intermediate products that could
// exceed 256 bits go through MulDiv, which keeps a 512-bit product.
package clmm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Resolution is the number of fractional bits in a Q64.96 value.
const Resolution = 96

// DefaultPricePrecision is the number of fractional digits SqrtPriceX96ToPrice keeps.
const DefaultPricePrecision int32 = 18

var (
	one = uint256.NewInt(1)

	// Q96 is 1.0 in Q64.96.
	Q96 = new(uint256.Int).Lsh(one, Resolution)

	// Q128 is 1.0 in the Q128.128 format used by fee growth accumulators.
	Q128 = new(uint256.Int).Lsh(one, 128)

	MaxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 128), one)
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 160), one)

	q192 = new(big.Int).Lsh(big.NewInt(1), 2*Resolution)
)

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *uint256.Int) *uint256.Int {
	r := new(big.Int).Sqrt(x.ToBig())
	return uint256.MustFromBig(r)
}

// MulDiv returns floor(a*b/denominator). The product is kept at 512 bits, so
// only a quotient wider than 256 bits overflows.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, fmt.Errorf("%w: zero denominator", ErrInvalidInput)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, fmt.Errorf("%w: mulDiv result exceeds 256 bits", ErrArithmeticOverflow)
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/denominator).
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		return z, nil
	}
	if _, overflow := z.AddOverflow(z, one); overflow {
		return nil, fmt.Errorf("%w: mulDiv rounding", ErrArithmeticOverflow)
	}
	return z, nil
}

// DivRoundingUp returns ceil(a/b). b must be non-zero.
func DivRoundingUp(a, b *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(a, b)
	if !new(uint256.Int).Mod(a, b).IsZero() {
		q.Add(q, one)
	}
	return q
}

// PriceToSqrtPriceX96 converts a decimal price (token Y per token X) to
// floor(sqrt(price) * 2^96). The decimal is handled as coefficient*10^exp so no
// floating point is involved.
func PriceToSqrtPriceX96(price decimal.Decimal) (*uint256.Int, error) {
	num, den, err := priceRatio(price)
	if err != nil {
		return nil, err
	}
	return ratioToSqrtPriceX96(num, den, price)
}

// InvertedPriceToSqrtPriceX96 is PriceToSqrtPriceX96(1/price) without the
// rounding a decimal division would introduce.
func InvertedPriceToSqrtPriceX96(price decimal.Decimal) (*uint256.Int, error) {
	num, den, err := priceRatio(price)
	if err != nil {
		return nil, err
	}
	return ratioToSqrtPriceX96(den, num, price)
}

func priceRatio(price decimal.Decimal) (num, den *big.Int, err error) {
	if price.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidInput, price)
	}
	num, den = new(big.Int).Set(price.Coefficient()), big.NewInt(1)
	exp := price.Exponent()
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(exp))), nil)
	if exp >= 0 {
		num.Mul(num, scale)
	} else {
		den = scale
	}
	return num, den, nil
}

// floor(sqrt(floor(x))) == floor(sqrt(x)) for x >= 0, so dividing before the
// root is exact.
func ratioToSqrtPriceX96(num, den *big.Int, price decimal.Decimal) (*uint256.Int, error) {
	n := new(big.Int).Lsh(num, 2*Resolution)
	n.Quo(n, den)

	root := n.Sqrt(n)
	if root.Sign() == 0 {
		return nil, fmt.Errorf("%w: price %s is below Q64.96 resolution", ErrInvalidInput, price)
	}
	if root.BitLen() > 160 {
		return nil, fmt.Errorf("%w: price %s exceeds Q64.96 range", ErrArithmeticOverflow, price)
	}
	return uint256.MustFromBig(root), nil
}

// SqrtPriceX96ToPrice converts a Q64.96 square-root price back to a decimal
// price, truncated toward zero to precision fractional digits.
func SqrtPriceX96ToPrice(sqrtPriceX96 *uint256.Int, precision int32) decimal.Decimal {
	if precision < 0 {
		precision = 0
	}
	s := sqrtPriceX96.ToBig()
	num := new(big.Int).Mul(s, s)
	num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil))
	num.Quo(num, q192)
	return decimal.NewFromBigInt(num, -precision)
}

// FitsUint128 reports whether x fits in 128 bits.
func FitsUint128(x *uint256.Int) bool {
	return x.BitLen() <= 128
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
