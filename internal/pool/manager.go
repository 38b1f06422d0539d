package pool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/position"
)

type entry struct {
	mu   sync.RWMutex
	pool *Pool
}

// Manager owns a set of pools. Each pool has its own lock: mutations are
// serialized per pool while reads see a consistent state and never block
// other pools. All pools share one position ledger.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*entry
	ledger *position.Ledger
}

func NewManager(ledger *position.Ledger) *Manager {
	if ledger == nil {
		ledger = position.NewLedger()
	}
	return &Manager{pools: make(map[string]*entry), ledger: ledger}
}

func (m *Manager) Ledger() *position.Ledger { return m.ledger }

// Create initializes a new pool. A pool for the same pair and tier must not
// exist yet.
func (m *Manager) Create(tokenA, tokenB string, tier feetier.Tier, price decimal.Decimal) (Snapshot, error) {
	p, err := Create(tokenA, tokenB, tier, price, WithLedger(m.ledger))
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[p.id]; ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrPoolExists, p.id)
	}
	m.pools[p.id] = &entry{pool: p}
	return p.Snapshot(), nil
}

// Put registers p, replacing any pool with the same id. The pool is switched
// to the manager's ledger.
func (m *Manager) Put(p *Pool) {
	p.ledger = m.ledger

	m.mu.Lock()
	e, ok := m.pools[p.id]
	if !ok {
		m.pools[p.id] = &entry{pool: p}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	e.mu.Lock()
	e.pool = p
	e.mu.Unlock()
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return e, nil
}

// Mutate runs fn with exclusive access to the pool.
func (m *Manager) Mutate(id string, fn func(*Pool) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.pool)
}

// View runs fn with shared access. fn must not modify the pool.
func (m *Manager) View(id string, fn func(*Pool) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.pool)
}

func (m *Manager) Snapshot(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.View(id, func(p *Pool) error {
		snap = p.Snapshot()
		return nil
	})
	return snap, err
}

func (m *Manager) Has(id string) bool {
	_, err := m.lookup(id)
	return err == nil
}

// IDs returns the registered pool ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
