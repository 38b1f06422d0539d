package pool

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

// Snapshot is a read-only copy of a pool. Nothing in it aliases pool state.
type Snapshot struct {
	ID               string
	TokenX           string
	TokenY           string
	Tier             feetier.Tier
	SqrtPriceX96     *uint256.Int
	Tick             int32
	Price            decimal.Decimal
	Liquidity        *uint256.Int
	FeeGrowthGlobalX *uint256.Int
	FeeGrowthGlobalY *uint256.Int
	ReserveX         *uint256.Int
	ReserveY         *uint256.Int
	Ticks            []Tick
	Positions        int
}

func (p *Pool) Snapshot() Snapshot {
	reserveX, reserveY := p.Reserves()
	return Snapshot{
		ID:               p.id,
		TokenX:           p.tokenX,
		TokenY:           p.tokenY,
		Tier:             p.tier,
		SqrtPriceX96:     p.sqrtPriceX96.Clone(),
		Tick:             p.tick,
		Price:            p.Price(),
		Liquidity:        p.liquidity.Clone(),
		FeeGrowthGlobalX: p.feeGrowthGlobalX.Clone(),
		FeeGrowthGlobalY: p.feeGrowthGlobalY.Clone(),
		ReserveX:         reserveX,
		ReserveY:         reserveY,
		Ticks:            p.Ticks(),
		Positions:        len(p.ledger.ListPool(p.id)),
	}
}

// Reserves returns the token balances backing the pool's liquidity. Local
// ranges are summed range by range, rounded down. A hydrated pool adds the
// balances reported by its source, or failing that the virtual reserves of
// the liquidity no local range accounts for.
func (p *Pool) Reserves() (x, y *uint256.Int) {
	x, y, local := p.rangeReserves()
	if !p.hydrated {
		return x, y
	}
	if p.reserveX != nil && p.reserveY != nil {
		return x.Add(x, p.reserveX), y.Add(y, p.reserveY)
	}
	base := new(uint256.Int)
	if p.liquidity.Gt(local) {
		base.Sub(p.liquidity, local)
	}
	vx, vy := virtualReserves(base, p.sqrtPriceX96)
	return x.Add(x, vx), y.Add(y, vy)
}

// rangeReserves sums the local tick map and reports how much of the active
// liquidity it accounts for.
func (p *Pool) rangeReserves() (x, y, active *uint256.Int) {
	x, y, active = new(uint256.Int), new(uint256.Int), new(uint256.Int)
	ticks := p.Ticks()
	running := new(big.Int)
	for i := 0; i+1 < len(ticks); i++ {
		running.Add(running, ticks[i].LiquidityNet)
		if running.Sign() <= 0 {
			continue
		}
		l, overflow := uint256.FromBig(running)
		if overflow {
			continue
		}
		if ticks[i].Index <= p.tick && p.tick < ticks[i+1].Index {
			active = l.Clone()
		}
		a0, a1, err := p.amountsForLiquidity(ticks[i].Index, ticks[i+1].Index, l, false)
		if err != nil {
			continue
		}
		x.Add(x, a0)
		y.Add(y, a1)
	}
	return x, y, active
}

// x = L / sqrtP, y = L * sqrtP
func virtualReserves(liquidity, sqrtPriceX96 *uint256.Int) (x, y *uint256.Int) {
	x, y = new(uint256.Int), new(uint256.Int)
	if liquidity.IsZero() || sqrtPriceX96.IsZero() {
		return x, y
	}
	if v, err := clmm.MulDiv(liquidity, clmm.Q96, sqrtPriceX96); err == nil {
		x = v
	}
	if v, err := clmm.MulDiv(liquidity, sqrtPriceX96, clmm.Q96); err == nil {
		y = v
	}
	return x, y
}
