// Package position keeps per-owner liquidity positions and the fees they have
// earned. Fees follow the accumulator model: a position remembers the pool's
// fee growth inside its range at the last settlement and is credited
// (inside - last) * liquidity / 2^128 whenever it is touched.
package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/pricing/clmm"
)

var (
	ErrPositionNotFound = errors.New("position: not found")
	ErrPositionNotEmpty = errors.New("position: still holds liquidity or owed tokens")
)

// Key identifies a position. Positions are always addressed by key, the
// ledger never hands out pointers to its own records.
type Key struct {
	Owner     string `json:"owner"`
	PoolID    string `json:"pool_id"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s[%d,%d)", k.Owner, k.PoolID, k.TickLower, k.TickUpper)
}

// Position is a snapshot of a ledger record.
type Position struct {
	Key
	Liquidity            *uint256.Int `json:"liquidity"`
	FeeGrowthInsideXLast *uint256.Int `json:"fee_growth_inside_x_last"`
	FeeGrowthInsideYLast *uint256.Int `json:"fee_growth_inside_y_last"`
	TokensOwedX          *uint256.Int `json:"tokens_owed_x"`
	TokensOwedY          *uint256.Int `json:"tokens_owed_y"`
}

func newPosition(key Key) *Position {
	return &Position{
		Key:                  key,
		Liquidity:            new(uint256.Int),
		FeeGrowthInsideXLast: new(uint256.Int),
		FeeGrowthInsideYLast: new(uint256.Int),
		TokensOwedX:          new(uint256.Int),
		TokensOwedY:          new(uint256.Int),
	}
}

func (p *Position) clone() Position {
	return Position{
		Key:                  p.Key,
		Liquidity:            p.Liquidity.Clone(),
		FeeGrowthInsideXLast: p.FeeGrowthInsideXLast.Clone(),
		FeeGrowthInsideYLast: p.FeeGrowthInsideYLast.Clone(),
		TokensOwedX:          p.TokensOwedX.Clone(),
		TokensOwedY:          p.TokensOwedY.Clone(),
	}
}

// Empty reports whether the position has neither liquidity nor anything owed.
func (p Position) Empty() bool {
	return p.Liquidity.IsZero() && p.TokensOwedX.IsZero() && p.TokensOwedY.IsZero()
}

// settle credits fees earned since the last snapshot and moves the snapshot
// forward. Accumulators wrap, so the difference is taken mod 2^256.
func (p *Position) settle(insideX, insideY *uint256.Int) error {
	owedX, err := accrued(insideX, p.FeeGrowthInsideXLast, p.Liquidity)
	if err != nil {
		return err
	}
	owedY, err := accrued(insideY, p.FeeGrowthInsideYLast, p.Liquidity)
	if err != nil {
		return err
	}
	p.TokensOwedX.Add(p.TokensOwedX, owedX)
	p.TokensOwedY.Add(p.TokensOwedY, owedY)
	p.FeeGrowthInsideXLast.Set(insideX)
	p.FeeGrowthInsideYLast.Set(insideY)
	return nil
}

func accrued(inside, last, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return new(uint256.Int), nil
	}
	delta := new(uint256.Int).Sub(inside, last)
	return clmm.MulDiv(delta, liquidity, clmm.Q128)
}

// Ledger stores positions for any number of pools. It is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	positions map[Key]*Position
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[Key]*Position)}
}

// Upsert settles owed fees against the supplied fee growth inside the range,
// then adds (or, with remove set, subtracts) delta from the position's
// liquidity. A position is created on first add.
func (l *Ledger) Upsert(key Key, delta *uint256.Int, remove bool, insideX, insideY *uint256.Int) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[key]
	if !ok {
		if remove {
			return Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, key)
		}
		if delta.IsZero() {
			return Position{}, fmt.Errorf("%w: cannot open %s with zero liquidity", clmm.ErrInvalidInput, key)
		}
		p = newPosition(key)
	}

	next, err := clmm.AddDelta(p.Liquidity, clmm.SignedDelta(delta, remove))
	if err != nil {
		return Position{}, fmt.Errorf("position %s: %w", key, err)
	}

	// Work on a copy so a failed settlement leaves the record untouched.
	updated := p.clone()
	if err := updated.settle(insideX, insideY); err != nil {
		return Position{}, fmt.Errorf("settle %s: %w", key, err)
	}
	updated.Liquidity = next

	l.positions[key] = &updated
	return updated.clone(), nil
}

// CollectFees settles the position and pays out everything it is owed.
func (l *Ledger) CollectFees(key Key, insideX, insideY *uint256.Int) (feeX, feeY *uint256.Int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPositionNotFound, key)
	}
	updated := p.clone()
	if err := updated.settle(insideX, insideY); err != nil {
		return nil, nil, fmt.Errorf("settle %s: %w", key, err)
	}
	feeX, feeY = updated.TokensOwedX, updated.TokensOwedY
	updated.TokensOwedX, updated.TokensOwedY = new(uint256.Int), new(uint256.Int)

	l.positions[key] = &updated
	return feeX, feeY, nil
}

func (l *Ledger) Get(key Key) (Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[key]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, key)
	}
	return p.clone(), nil
}

// Delete drops a fully withdrawn position that has nothing left to collect.
func (l *Ledger) Delete(key Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, key)
	}
	if !p.Empty() {
		return fmt.Errorf("%w: %s", ErrPositionNotEmpty, key)
	}
	delete(l.positions, key)
	return nil
}

// List returns the owner's positions across all pools.
func (l *Ledger) List(owner string) []Position {
	return l.filter(func(k Key) bool { return k.Owner == owner })
}

// ListPool returns every position in a pool.
func (l *Ledger) ListPool(poolID string) []Position {
	return l.filter(func(k Key) bool { return k.PoolID == poolID })
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

func (l *Ledger) filter(match func(Key) bool) []Position {
	l.mu.RLock()
	out := make([]Position, 0)
	for k, p := range l.positions {
		if match(k) {
			out = append(out, p.clone())
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.PoolID != b.PoolID {
			return a.PoolID < b.PoolID
		}
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.TickLower != b.TickLower {
			return a.TickLower < b.TickLower
		}
		return a.TickUpper < b.TickUpper
	})
	return out
}
