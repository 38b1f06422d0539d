// Package pool holds the state of a single concentrated-liquidity pool and
// the operations that move it: adding and removing liquidity, swapping and
// collecting fees. A Pool is not safe for concurrent use; Manager serializes
// access per pool.
package pool

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/position"
	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

type Pool struct {
	id     string
	tokenX string
	tokenY string
	tier   feetier.Tier

	sqrtPriceX96     *uint256.Int
	tick             int32
	liquidity        *uint256.Int
	feeGrowthGlobalX *uint256.Int
	feeGrowthGlobalY *uint256.Int

	ticks               map[int32]*Tick
	bitmap              tickBitmap
	maxLiquidityPerTick *uint256.Int

	// Balances reported by the source for hydrated pools, whose tick map is
	// not known locally.
	reserveX *uint256.Int
	reserveY *uint256.Int
	hydrated bool
	ledger   *position.Ledger
}

type Option func(*Pool)

// WithLedger records positions in a shared ledger instead of a private one.
func WithLedger(l *position.Ledger) Option {
	return func(p *Pool) { p.ledger = l }
}

func newPool(key Key, sqrtPriceX96 *uint256.Int, opts []Option) (*Pool, error) {
	tick, err := clmm.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return nil, fmt.Errorf("initial price: %w", err)
	}
	p := &Pool{
		id:                  key.ID(),
		tokenX:              key.TokenX,
		tokenY:              key.TokenY,
		tier:                key.Tier,
		sqrtPriceX96:        sqrtPriceX96,
		tick:                tick,
		liquidity:           new(uint256.Int),
		feeGrowthGlobalX:    new(uint256.Int),
		feeGrowthGlobalY:    new(uint256.Int),
		ticks:               make(map[int32]*Tick),
		bitmap:              make(tickBitmap),
		maxLiquidityPerTick: clmm.MaxLiquidityPerTick(key.Tier.TickSpacing),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ledger == nil {
		p.ledger = position.NewLedger()
	}
	return p, nil
}

// Create initializes a pool at a decimal price quoted as tokenB per tokenA.
// Tokens are put in canonical order; when that swaps them the price is
// inverted so it becomes Y per X.
func Create(tokenA, tokenB string, tier feetier.Tier, price decimal.Decimal, opts ...Option) (*Pool, error) {
	if tier.TickSpacing <= 0 {
		return nil, fmt.Errorf("%w: tier %s has spacing %d", ErrInvalidTickSpacing, tier.Name, tier.TickSpacing)
	}
	key, swapped, err := KeyOf(tokenA, tokenB, tier)
	if err != nil {
		return nil, err
	}

	var sqrtPrice *uint256.Int
	if swapped {
		sqrtPrice, err = clmm.InvertedPriceToSqrtPriceX96(price)
	} else {
		sqrtPrice, err = clmm.PriceToSqrtPriceX96(price)
	}
	if err != nil {
		return nil, fmt.Errorf("create pool %s/%s: %w", key.TokenX, key.TokenY, err)
	}
	return newPool(key, sqrtPrice, opts)
}

// State is pool state as reported by an external source.
type State struct {
	ID               string
	TokenX           string
	TokenY           string
	Tier             feetier.Tier
	SqrtPriceX96     *uint256.Int
	Tick             int32
	Liquidity        *uint256.Int
	FeeGrowthGlobalX *uint256.Int
	FeeGrowthGlobalY *uint256.Int
	ReserveX         *uint256.Int
	ReserveY         *uint256.Int
}

// Hydrate rebuilds a pool from fetched state. The tick is recomputed from the
// price; a reported tick more than one away from it is rejected. Without a
// tick map, swaps on a hydrated pool treat its active liquidity as spanning
// the whole price range.
func Hydrate(s State, opts ...Option) (*Pool, error) {
	key, swapped, err := KeyOf(s.TokenX, s.TokenY, s.Tier)
	if err != nil {
		return nil, err
	}
	if swapped {
		return nil, fmt.Errorf("%w: %s must sort before %s", ErrInvalidTokenPair, s.TokenX, s.TokenY)
	}
	if s.Tier.TickSpacing <= 0 {
		return nil, fmt.Errorf("%w: spacing %d", ErrInvalidTickSpacing, s.Tier.TickSpacing)
	}
	if s.SqrtPriceX96 == nil {
		return nil, fmt.Errorf("%w: missing sqrt price", ErrInvalidInput)
	}

	p, err := newPool(key, s.SqrtPriceX96.Clone(), opts)
	if err != nil {
		return nil, err
	}
	if d := p.tick - s.Tick; d > 1 || d < -1 {
		return nil, fmt.Errorf("%w: reported tick %d, price implies %d", ErrInvalidInput, s.Tick, p.tick)
	}
	if s.ID != "" {
		p.id = s.ID
	}
	if s.Liquidity != nil {
		if !clmm.FitsUint128(s.Liquidity) {
			return nil, fmt.Errorf("%w: liquidity exceeds 128 bits", ErrArithmeticOverflow)
		}
		p.liquidity = s.Liquidity.Clone()
	}
	p.feeGrowthGlobalX = cloneOrZero(s.FeeGrowthGlobalX)
	p.feeGrowthGlobalY = cloneOrZero(s.FeeGrowthGlobalY)
	if s.ReserveX != nil {
		p.reserveX = s.ReserveX.Clone()
	}
	if s.ReserveY != nil {
		p.reserveY = s.ReserveY.Clone()
	}
	p.hydrated = true
	return p, nil
}

func (p *Pool) ID() string {
	return p.id
}

func (p *Pool) TokenX() string {
	return p.tokenX
}

func (p *Pool) TokenY() string {
	return p.tokenY
}

func (p *Pool) Tier() feetier.Tier {
	return p.tier
}

func (p *Pool) CurrentTick() int32 {
	return p.tick
}

func (p *Pool) Key() Key {
	return Key{TokenX: p.tokenX, TokenY: p.tokenY, Tier: p.tier}
}

func (p *Pool) Ledger() *position.Ledger {
	return p.ledger
}

func (p *Pool) SqrtPriceX96() *uint256.Int {
	return p.sqrtPriceX96.Clone()
}

func (p *Pool) Liquidity() *uint256.Int {
	return p.liquidity.Clone()
}

func (p *Pool) FeeGrowthGlobal() (x, y *uint256.Int) {
	return p.feeGrowthGlobalX.Clone(), p.feeGrowthGlobalY.Clone()
}

// Price is the current price of X in Y, truncated to 18 decimals.
func (p *Pool) Price() decimal.Decimal {
	return clmm.SqrtPriceX96ToPrice(p.sqrtPriceX96, clmm.DefaultPricePrecision)
}

func (p *Pool) String() string {
	return fmt.Sprintf("pool %s %s/%s %s tick=%d", p.id, p.tokenX, p.tokenY, p.tier.Name, p.tick)
}

func cloneOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}
