package clmm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Tick bounds: sqrt(1.0001^tick) must stay inside the Q64.96 range.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is SqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)

	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = mustDecimal("1461446703485210103287273052203988822378723970342")

	maxUint256 = new(uint256.Int).Not(new(uint256.Int))
	lowMask32  = uint256.NewInt(0xffffffff)

	// sqrt(1.0001^-(2^i)) in Q128.128, for i = 0..19.
	tickRatios = [20]*uint256.Int{
		mustHex("fffcb933bd6fad37aa2d162d1a594001"),
		mustHex("fff97272373d413259a46990580e213a"),
		mustHex("fff2e50f5f656932ef12357cf3c7fdcc"),
		mustHex("ffe5caca7e10e4e61c3624eaa0941cd0"),
		mustHex("ffcb9843d60f6159c9db58835c926644"),
		mustHex("ff973b41fa98c081472e6896dfb254c0"),
		mustHex("ff2ea16466c96a3843ec78b326b52861"),
		mustHex("fe5dee046a99a2a811c461f1969c3053"),
		mustHex("fcbe86c7900a88aedcffc83b479aa3a4"),
		mustHex("f987a7253ac413176f2b074cf7815e54"),
		mustHex("f3392b0822b70005940c7a398e4b70f3"),
		mustHex("e7159475a2c29b7443b29c7fa6e889d9"),
		mustHex("d097f3bdfd2022b8845ad8f792aa5825"),
		mustHex("a9f746462d870fdf8a65dc1f90e061e5"),
		mustHex("70d869a156d2a1b890bb3df62baf32f7"),
		mustHex("31be135f97d08fd981231505542fcfa6"),
		mustHex("9aa508b5b7a84e1c677de54f3e99bc9"),
		mustHex("5d6af8dedb81196699c329225ee604"),
		mustHex("2216e584f5fa1ea926041bedfe98"),
		mustHex("48a170391f7dc42444e8fa2"),
	}
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, rounded up.
//
// The ratio is assembled from the binary decomposition of |tick| using the
// precomputed powers above, inverted for positive ticks, then shifted from
// Q128.128 down to Q64.96.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrTickOutOfRange, tick, MinTick, MaxTick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Set(Q128)
	for i, c := range tickRatios {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, c).Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	roundUp := !new(uint256.Int).And(ratio, lowMask32).IsZero()
	ratio.Rsh(ratio, 32)
	if roundUp {
		ratio.Add(ratio, one)
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick t with SqrtRatioAtTick(t) <= sqrtPriceX96.
// The input must lie in [MinSqrtRatio, MaxSqrtRatio).
func TickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, fmt.Errorf("%w: sqrt price %s outside [%s, %s)",
			ErrTickOutOfRange, sqrtPriceX96.Dec(), MinSqrtRatio.Dec(), MaxSqrtRatio.Dec())
	}

	lo, hi := MinTick, MaxTick
	tick := MinTick
	for lo <= hi {
		mid := lo + (hi-lo)/2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			tick = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return tick, nil
}

func mustHex(s string) *uint256.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("clmm: bad hex constant " + s)
	}
	return uint256.MustFromBig(n)
}

func mustDecimal(s string) *uint256.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("clmm: bad decimal constant " + s)
	}
	return uint256.MustFromBig(n)
}
