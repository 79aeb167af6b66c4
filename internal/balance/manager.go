package balance

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientBalance is returned when a debit exceeds available cash.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Manager is the cash ledger of one simulated broker account. Cash never
// goes negative: a debit larger than the balance is refused untouched.
type Manager struct {
	mu      sync.RWMutex
	initial float64
	cash    float64
}

// NewManager creates a ledger funded with initial cash.
func NewManager(initial float64) *Manager {
	return &Manager{initial: initial, cash: initial}
}

// Available returns the current cash.
func (m *Manager) Available() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cash
}

// Initial returns the cash the ledger started with.
func (m *Manager) Initial() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initial
}

// CanAfford reports whether amount can be debited.
func (m *Manager) CanAfford(amount float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return amount <= m.cash
}

// Deduct removes amount, e.g. the cost plus commission of a buy fill.
func (m *Manager) Deduct(amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount > m.cash {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, amount, m.cash)
	}
	m.cash -= amount
	return nil
}

// Add credits amount, e.g. the proceeds net of commission of a sell fill.
func (m *Manager) Add(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash += amount
}

// SetInitialBalance resets the ledger to amount.
func (m *Manager) SetInitialBalance(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initial = amount
	m.cash = amount
}
