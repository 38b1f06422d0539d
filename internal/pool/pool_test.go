package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

const (
	tokenA = "0x2::sui::SUI"
	tokenB = "0x5d4b::coin::USDC"
)

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func dec(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := Create(tokenA, tokenB, feetier.Medium, decimal.NewFromInt(1))
	require.NoError(t, err)
	return p
}

// assertTickConsistent checks the tick against the price. After a swap ends
// exactly on a tick crossed downward the pool sits one tick below it.
func assertTickConsistent(t *testing.T, p *Pool) {
	t.Helper()
	want, err := clmm.TickAtSqrtRatio(p.sqrtPriceX96)
	require.NoError(t, err)
	if p.tick != want {
		assert.Equal(t, want-1, p.tick, "tick %d inconsistent with price %s", p.tick, p.sqrtPriceX96.Dec())
		boundary, err := clmm.SqrtRatioAtTick(want)
		require.NoError(t, err)
		assert.True(t, boundary.Eq(p.sqrtPriceX96))
	}
}

func TestCreate(t *testing.T) {
	p := newTestPool(t)
	assert.Equal(t, tokenA, p.TokenX())
	assert.Equal(t, tokenB, p.TokenY())
	assert.Equal(t, int32(0), p.CurrentTick())
	assert.True(t, p.SqrtPriceX96().Eq(clmm.Q96))
	assert.True(t, p.Liquidity().IsZero())
	assert.True(t, p.Price().Equal(decimal.NewFromInt(1)))
}

func TestCreate_CanonicalOrder(t *testing.T) {
	// 0.0005 X per Y quoted the wrong way round is 2000 Y per X.
	p, err := Create(tokenB, tokenA, feetier.Low, decimal.RequireFromString("0.0005"))
	require.NoError(t, err)
	assert.Equal(t, tokenA, p.TokenX())
	assert.Equal(t, tokenB, p.TokenY())

	diff := p.Price().Sub(decimal.NewFromInt(2000)).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -12)), "price %s", p.Price())
	assertTickConsistent(t, p)

	same, err := Create(tokenA, tokenB, feetier.Low, decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.Equal(t, same.ID(), p.ID(), "id depends on the pair, not the argument order")
	assert.True(t, same.SqrtPriceX96().Eq(p.SqrtPriceX96()))
}

func TestCreate_Errors(t *testing.T) {
	_, err := Create(tokenA, tokenA, feetier.Medium, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidTokenPair)

	_, err = Create("", tokenB, feetier.Medium, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidTokenPair)

	_, err = Create(tokenA, tokenB, feetier.Medium, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Create(tokenA, tokenB, feetier.Medium, decimal.NewFromInt(-3))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Create(tokenA, tokenB, feetier.Tier{Name: "BROKEN"}, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidTickSpacing)
}

func TestCreate_TickMatchesPrice(t *testing.T) {
	for _, price := range []string{"0.0001", "0.5", "1.0001", "3", "1850.25", "1000000"} {
		p, err := Create(tokenA, tokenB, feetier.High, decimal.RequireFromString(price))
		require.NoError(t, err, price)

		lo, err := clmm.SqrtRatioAtTick(p.CurrentTick())
		require.NoError(t, err)
		hi, err := clmm.SqrtRatioAtTick(p.CurrentTick() + 1)
		require.NoError(t, err)
		assert.False(t, p.SqrtPriceX96().Lt(lo), price)
		assert.True(t, p.SqrtPriceX96().Lt(hi), price)
	}
}

func TestKeyID(t *testing.T) {
	k1, _, err := KeyOf(tokenA, tokenB, feetier.Medium)
	require.NoError(t, err)
	k2, swapped, err := KeyOf(tokenB, tokenA, feetier.Medium)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, k1.ID(), k2.ID())
	assert.Len(t, k1.ID(), 66)

	k3, _, err := KeyOf(tokenA, tokenB, feetier.High)
	require.NoError(t, err)
	assert.NotEqual(t, k1.ID(), k3.ID())

	// Length prefixes keep shifted boundaries apart.
	a, _, _ := KeyOf("ab", "c", feetier.Low)
	b, _, _ := KeyOf("a", "bc", feetier.Low)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestIsUserCorrectable(t *testing.T) {
	assert.True(t, IsUserCorrectable(ErrSlippageExceeded))
	assert.True(t, IsUserCorrectable(ErrInsufficientLiquidity))
	assert.True(t, IsUserCorrectable(ErrTickOutOfRange))
	assert.True(t, IsUserCorrectable(ErrInvalidInput))
	assert.False(t, IsUserCorrectable(ErrArithmeticOverflow))
	assert.False(t, IsUserCorrectable(nil))
}

func TestHydrate(t *testing.T) {
	sqrt, err := clmm.SqrtRatioAtTick(-1200)
	require.NoError(t, err)

	p, err := Hydrate(State{
		ID:           "0xabc",
		TokenX:       tokenA,
		TokenY:       tokenB,
		Tier:         feetier.Medium,
		SqrtPriceX96: sqrt,
		Tick:         -1201,
		Liquidity:    e18(10),
		ReserveX:     e18(5),
		ReserveY:     e18(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", p.ID())
	assert.Equal(t, int32(-1200), p.CurrentTick(), "tick is taken from the price")

	x, y := p.Reserves()
	assert.True(t, x.Eq(e18(5)))
	assert.True(t, y.Eq(e18(4)))

	res, err := p.Quote(e18(1), true)
	require.NoError(t, err)
	assert.False(t, res.AmountOut.IsZero())
}

func TestHydrate_Errors(t *testing.T) {
	base := State{TokenX: tokenA, TokenY: tokenB, Tier: feetier.Medium, SqrtPriceX96: clmm.Q96}

	s := base
	s.Tick = 5
	_, err := Hydrate(s)
	assert.ErrorIs(t, err, ErrInvalidInput)

	s = base
	s.TokenX, s.TokenY = tokenB, tokenA
	_, err = Hydrate(s)
	assert.ErrorIs(t, err, ErrInvalidTokenPair)

	s = base
	s.SqrtPriceX96 = nil
	_, err = Hydrate(s)
	assert.ErrorIs(t, err, ErrInvalidInput)

	s = base
	s.SqrtPriceX96 = clmm.MaxSqrtRatio
	_, err = Hydrate(s)
	assert.ErrorIs(t, err, ErrTickOutOfRange)

	s = base
	s.Liquidity = new(uint256.Int).Lsh(uint256.NewInt(1), 130)
	_, err = Hydrate(s)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestHydrate_VirtualReserves(t *testing.T) {
	p, err := Hydrate(State{TokenX: tokenA, TokenY: tokenB, Tier: feetier.Medium, SqrtPriceX96: clmm.Q96, Liquidity: e18(3)})
	require.NoError(t, err)
	x, y := p.Reserves()
	assert.True(t, x.Eq(e18(3)))
	assert.True(t, y.Eq(e18(3)))
}

func TestHydrate_ReservesIncludeLocalRanges(t *testing.T) {
	p, err := Hydrate(State{
		TokenX: tokenA, TokenY: tokenB, Tier: feetier.Medium,
		SqrtPriceX96: clmm.Q96, Liquidity: e18(10), ReserveX: e18(5), ReserveY: e18(4),
	})
	require.NoError(t, err)
	added, err := p.AddLiquidity("alice", -600, 600, e18(1), e18(1), nil, nil)
	require.NoError(t, err)

	x, y := p.Reserves()
	assert.True(t, x.Gt(e18(5)), "source balance is kept once local ranges exist")
	assert.False(t, x.Gt(new(uint256.Int).Add(e18(5), added.AmountX)))
	assert.True(t, y.Gt(e18(4)))
	assert.False(t, y.Gt(new(uint256.Int).Add(e18(4), added.AmountY)))

	virtual, err := Hydrate(State{TokenX: tokenA, TokenY: tokenB, Tier: feetier.Medium, SqrtPriceX96: clmm.Q96, Liquidity: e18(3)})
	require.NoError(t, err)
	_, err = virtual.AddLiquidity("alice", -600, 600, e18(1), e18(1), nil, nil)
	require.NoError(t, err)
	x, _ = virtual.Reserves()
	assert.True(t, x.Gt(e18(3)), "remote liquidity still counts")
	assert.False(t, x.Gt(e18(4)))
}

func TestScenario_MediumPoolAtParity(t *testing.T) {
	p, err := Create("tokenX", "tokenY", feetier.Medium, decimal.RequireFromString("1.0"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), p.CurrentTick())
	assert.Equal(t, "0", p.Liquidity().Dec())

	added, err := p.AddLiquidity("lp", -600, 600, uint256.NewInt(1000), uint256.NewInt(1000), nil, nil)
	require.NoError(t, err)
	assert.False(t, p.Liquidity().IsZero())
	assert.Equal(t, int32(-600), added.Position.TickLower)
	assert.Equal(t, int32(600), added.Position.TickUpper)

	res, err := p.Swap(uint256.NewInt(100), true, nil)
	require.NoError(t, err)
	assert.True(t, res.AmountOut.Lt(uint256.NewInt(100)), "fee and price impact reduce the output")
	assert.Less(t, p.CurrentTick(), int32(0), "price of X falls")
}

func TestAddThenRemoveRestoresPool(t *testing.T) {
	p := poolWithRange(t)
	before := p.Liquidity()

	added, err := p.AddLiquidity("bob", -1200, 600, e18(3), e18(2), nil, nil)
	require.NoError(t, err)
	removed, err := p.RemoveLiquidity("bob", -1200, 600, added.Liquidity)
	require.NoError(t, err)

	assert.True(t, p.Liquidity().Eq(before))
	assert.True(t, new(uint256.Int).Sub(added.AmountX, removed.AmountX).Lt(uint256.NewInt(2)))
	assert.True(t, new(uint256.Int).Sub(added.AmountY, removed.AmountY).Lt(uint256.NewInt(2)))
	assert.Len(t, p.Ticks(), 2, "bob's lower tick is cleared, the shared upper tick stays")
}

func TestFeeGrowthIsSumOfSwapFees(t *testing.T) {
	p := poolWithRange(t)
	liquidity := p.Liquidity()

	want := new(uint256.Int)
	for _, amount := range []string{"1000000000000000", "250000000000000", "77777777777777", "3000000000000000"} {
		res, err := p.Swap(dec(amount), true, nil)
		require.NoError(t, err)
		require.Equal(t, 0, res.TicksCrossed)

		contribution, err := clmm.MulDiv(res.FeePaid, clmm.Q128, liquidity)
		require.NoError(t, err)
		want.Add(want, contribution)
	}

	gx, gy := p.FeeGrowthGlobal()
	assert.True(t, gx.Eq(want), "got %s want %s", gx.Dec(), want.Dec())
	assert.True(t, gy.IsZero())
}
