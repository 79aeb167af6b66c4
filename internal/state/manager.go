package state

import (
	"math"
	"sync"
	"time"
)

// Position is the net holding of the simulated account. Size is signed and
// zero means flat.
type Position struct {
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avg_price"`
}

// Flat reports whether nothing is held.
func (p Position) Flat() bool {
	return p.Size == 0
}

// Trade is a round trip: opened when a fill moves the position off zero and
// closed when a later fill brings it back to zero.
type Trade struct {
	ID         int       `json:"id"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
	OpenBar    int       `json:"open_bar"`
	CloseBar   int       `json:"close_bar"`
	Long       bool      `json:"long"`
	Size       float64   `json:"size"` // peak absolute size
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Commission float64   `json:"commission"`
	PnL        float64   `json:"pnl"`
	PnLComm    float64   `json:"pnlcomm"`
	Closed     bool      `json:"closed"`

	exitValue float64
	exitSize  float64
}

// FillInput describes one execution applied to the book. Qty is signed:
// positive for buys, negative for sells.
type FillInput struct {
	Qty        float64
	Price      float64
	Commission float64
	Bar        int
	Time       time.Time
}

// Manager keeps the position and trade history of one simulated account.
type Manager struct {
	mu     sync.RWMutex
	pos    Position
	open   *Trade
	closed []Trade
	seq    int
}

func NewManager() *Manager {
	return &Manager{}
}

// Position returns a copy of the current position.
func (m *Manager) Position() Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// OpenTrade returns a copy of the trade in progress, if any.
func (m *Manager) OpenTrade() (Trade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.open == nil {
		return Trade{}, false
	}
	return *m.open, true
}

// ClosedTrades returns the completed round trips in closing order.
func (m *Manager) ClosedTrades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Trade, len(m.closed))
	copy(out, m.closed)
	return out
}

// RecordFill adjusts the position and trade bookkeeping for one fill. It
// returns the trade closed by this fill, if any. A fill that flips the
// position closes the current trade and opens a new one with the remainder;
// commission is split pro rata between the two.
func (m *Manager) RecordFill(f FillInput) (Position, *Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.Qty == 0 {
		return m.pos, nil
	}

	if m.pos.Size == 0 || sameSign(m.pos.Size, f.Qty) {
		m.increase(f.Qty, f.Price, f.Commission, f)
		return m.pos, nil
	}

	closing := math.Min(math.Abs(f.Qty), math.Abs(m.pos.Size))
	rest := math.Abs(f.Qty) - closing
	closeComm := f.Commission * closing / math.Abs(f.Qty)

	t := m.open
	dir := 1.0
	if m.pos.Size < 0 {
		dir = -1.0
	}
	t.PnL += (f.Price - m.pos.AvgPrice) * closing * dir
	t.Commission += closeComm
	t.exitValue += f.Price * closing
	t.exitSize += closing

	m.pos.Size -= closing * dir
	var done *Trade
	if m.pos.Size == 0 {
		t.Closed = true
		t.ClosedAt = f.Time
		t.CloseBar = f.Bar
		t.ExitPrice = t.exitValue / t.exitSize
		t.PnLComm = t.PnL - t.Commission
		m.closed = append(m.closed, *t)
		cp := *t
		done = &cp
		m.open = nil
		m.pos.AvgPrice = 0
	}
	if rest > 0 {
		m.increase(math.Copysign(rest, f.Qty), f.Price, f.Commission-closeComm, f)
	}
	return m.pos, done
}

func (m *Manager) increase(qty, price, comm float64, f FillInput) {
	if m.open == nil {
		m.seq++
		m.open = &Trade{
			ID:       m.seq,
			OpenedAt: f.Time,
			OpenBar:  f.Bar,
			Long:     qty > 0,
		}
	}
	abs := math.Abs(m.pos.Size)
	add := math.Abs(qty)
	m.pos.AvgPrice = (m.pos.AvgPrice*abs + price*add) / (abs + add)
	m.pos.Size += qty

	t := m.open
	t.EntryPrice = m.pos.AvgPrice
	t.Commission += comm
	if s := math.Abs(m.pos.Size); s > t.Size {
		t.Size = s
	}
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}
