package scenario

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNoActiveSet is returned when no active scenario set exists for
	// the requested symbol and timeframe.
	ErrNoActiveSet = errors.New("scenario: no active set")

	// ErrOutcomeAlreadyRecorded is returned when an outcome price is
	// recorded against a set that already has one.
	ErrOutcomeAlreadyRecorded = errors.New("scenario: outcome already recorded")
)

// Store persists scenario sets. SaveSet must deactivate the prior
// active set for the same (symbol, timeframe) and store the new one as
// a single atomic commit, so readers never observe zero or two active
// sets.
type Store interface {
	GetActiveSet(ctx context.Context, symbol, timeframe string) (*Set, error)
	SaveSet(ctx context.Context, set *Set) error
	RecordOutcome(ctx context.Context, symbol, timeframe string, closePrice float64) (*Set, error)
}

// MemoryStore is a process-local Store used when no database is
// configured, and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]*Set
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]*Set)}
}

func storeKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

func (m *MemoryStore) GetActiveSet(_ context.Context, symbol, timeframe string) (*Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.sets[storeKey(symbol, timeframe)]
	if !ok || !set.Active {
		return nil, ErrNoActiveSet
	}
	cp := *set
	cp.Scenarios = append([]Scenario(nil), set.Scenarios...)
	return &cp, nil
}

func (m *MemoryStore) SaveSet(_ context.Context, set *Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storeKey(set.Symbol, set.Timeframe)
	if prior, ok := m.sets[key]; ok {
		prior.Active = false
	}
	set.Active = true
	if set.GeneratedAt.IsZero() {
		set.GeneratedAt = time.Now()
	}
	m.sets[key] = set
	return nil
}

func (m *MemoryStore) RecordOutcome(_ context.Context, symbol, timeframe string, closePrice float64) (*Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[storeKey(symbol, timeframe)]
	if !ok || !set.Active {
		return nil, ErrNoActiveSet
	}
	if set.OutcomePrice != nil {
		return nil, ErrOutcomeAlreadyRecorded
	}
	price := closePrice
	set.OutcomePrice = &price

	cp := *set
	cp.Scenarios = append([]Scenario(nil), set.Scenarios...)
	return &cp, nil
}
