package clmm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTick_Bounds(t *testing.T) {
	_, err := SqrtRatioAtTick(MinTick - 1)
	assert.ErrorIs(t, err, ErrTickOutOfRange, "tick too small")

	_, err = SqrtRatioAtTick(MaxTick + 1)
	assert.ErrorIs(t, err, ErrTickOutOfRange, "tick too large")

	r, err := SqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	assert.True(t, r.Eq(MinSqrtRatio), "min tick: got %s", r.Dec())

	r, err = SqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	assert.True(t, r.Eq(MaxSqrtRatio), "max tick: got %s", r.Dec())

	r, err = SqrtRatioAtTick(0)
	require.NoError(t, err)
	assert.True(t, r.Eq(Q96), "tick 0 must be exactly 2^96, got %s", r.Dec())
}

func TestSqrtRatioAtTick_KnownValues(t *testing.T) {
	tests := []struct {
		tick int32
		want string
	}{
		{MinTick + 1, "4295343490"},
		{MaxTick - 1, "1461373636630004318706518188784493106690254656249"},
	}
	for _, tt := range tests {
		r, err := SqrtRatioAtTick(tt.tick)
		require.NoError(t, err)
		assert.Equal(t, tt.want, r.Dec(), "tick %d", tt.tick)
	}
}

func TestSqrtRatioAtTick_Monotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(-1000)
	require.NoError(t, err)
	for tick := int32(-999); tick <= 1000; tick++ {
		r, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)
		require.True(t, r.Gt(prev), "ratio must increase at tick %d", tick)
		prev = r
	}
}

func TestTickAtSqrtRatio_RoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, -500000, -100000, -887, -600, -60, -1, 0, 1, 60, 600, 887, 100000, 500000, MaxTick - 1}
	for _, tick := range ticks {
		r, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)

		got, err := TickAtSqrtRatio(r)
		require.NoError(t, err)
		assert.Equal(t, tick, got, "round trip for tick %d", tick)

		if tick > MinTick {
			below, err := TickAtSqrtRatio(new(uint256.Int).Sub(r, one))
			require.NoError(t, err)
			assert.Equal(t, tick-1, below, "price just below tick %d", tick)
		}
	}
}

func TestTickAtSqrtRatio_Bounds(t *testing.T) {
	tick, err := TickAtSqrtRatio(MinSqrtRatio)
	require.NoError(t, err)
	assert.Equal(t, MinTick, tick)

	tick, err = TickAtSqrtRatio(new(uint256.Int).Sub(MaxSqrtRatio, one))
	require.NoError(t, err)
	assert.Equal(t, MaxTick-1, tick)

	_, err = TickAtSqrtRatio(MaxSqrtRatio)
	assert.ErrorIs(t, err, ErrTickOutOfRange)

	_, err = TickAtSqrtRatio(new(uint256.Int).Sub(MinSqrtRatio, one))
	assert.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestValidateTickRange(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper int32
		spacing      int32
		wantErr      error
	}{
		{"aligned straddle", -600, 600, 60, nil},
		{"usable bounds", MinUsableTick(60), MaxUsableTick(60), 60, nil},
		{"inverted", 600, -600, 60, ErrInvalidInput},
		{"empty", 60, 60, 60, ErrInvalidInput},
		{"lower misaligned", -590, 600, 60, ErrInvalidTickSpacing},
		{"upper misaligned", -600, 610, 60, ErrInvalidTickSpacing},
		{"below min", MinTick - 8, 0, 10, ErrTickOutOfRange},
		{"above max", 0, MaxTick + 8, 10, ErrTickOutOfRange},
		{"zero spacing", -600, 600, 0, ErrInvalidTickSpacing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTickRange(tt.lower, tt.upper, tt.spacing)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUsableTicks(t *testing.T) {
	assert.Equal(t, int32(-887220), MinUsableTick(60))
	assert.Equal(t, int32(887220), MaxUsableTick(60))
	assert.Equal(t, int32(-887200), MinUsableTick(200))
	assert.Equal(t, int32(887270), MaxUsableTick(10))

	perTick := MaxLiquidityPerTick(60)
	assert.True(t, perTick.Lt(MaxUint128))
	assert.True(t, perTick.Gt(MaxLiquidityPerTick(10)), "wider spacing allows more liquidity per tick")
}
