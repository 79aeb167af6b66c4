package order

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"backtest-core/internal/balance"
	"backtest-core/internal/market"
	"backtest-core/internal/state"
)

// Simulator is an in-memory broker for one backtest run. It holds at most
// one pending market order and resolves it at the open of the following bar.
// Commission is charged as a fraction of the notional on every fill.
type Simulator struct {
	rate    float64
	cash    *balance.Manager
	book    *state.Manager
	pending *Order
	events  []Event
	fills   []Fill
	seq     int
}

// NewSimulator creates a broker funded with initialCash.
func NewSimulator(initialCash, commissionRate float64) *Simulator {
	return &Simulator{
		rate: commissionRate,
		cash: balance.NewManager(initialCash),
		book: state.NewManager(),
	}
}

// Commission returns the fee for trading size units at price.
func (s *Simulator) Commission(price, size float64) float64 {
	return price * size * s.rate
}

// Submit queues a market order created on the given bar. The order is
// accepted unconditionally; funding and size are checked on resolution.
func (s *Simulator) Submit(side Side, size float64, bar int, at time.Time, note string) (Order, error) {
	if s.pending != nil {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderPending, s.pending.ID)
	}
	s.seq++
	o := &Order{
		ID:         strconv.Itoa(s.seq),
		Side:       side,
		Size:       size,
		CreatedBar: bar,
		CreatedAt:  at,
		Status:     StatusPending,
		Note:       note,
	}
	s.pending = o
	return *o, nil
}

// Pending returns the outstanding order, if any.
func (s *Simulator) Pending() (Order, bool) {
	if s.pending == nil {
		return Order{}, false
	}
	return *s.pending, true
}

// Resolve executes the pending order against b's open. It returns nil when
// nothing was pending. The closed trade is returned when the fill brought
// the position back to zero.
func (s *Simulator) Resolve(b market.Bar, bar int) (*Event, *state.Trade) {
	o := s.pending
	if o == nil {
		return nil, nil
	}
	s.pending = nil

	ev := Event{OrderID: o.ID, Side: o.Side, Size: o.Size, BarIndex: bar, Timestamp: b.Timestamp}
	if o.Size <= 0 {
		return s.finish(ev, StatusRejected, fmt.Sprintf("non-positive size %v", o.Size)), nil
	}

	price := b.Open
	comm := s.Commission(price, o.Size)
	qty := o.Size

	switch o.Side {
	case SideBuy:
		if err := s.cash.Deduct(price*o.Size + comm); err != nil {
			if errors.Is(err, balance.ErrInsufficientBalance) {
				return s.finish(ev, StatusMargin, err.Error()), nil
			}
			return s.finish(ev, StatusRejected, err.Error()), nil
		}
	case SideSell:
		if held := s.book.Position().Size; held < o.Size {
			return s.finish(ev, StatusRejected, fmt.Sprintf("sell %v exceeds position %v", o.Size, held)), nil
		}
		s.cash.Add(price*o.Size - comm)
		qty = -o.Size
	default:
		return s.finish(ev, StatusRejected, fmt.Sprintf("unknown side %q", o.Side)), nil
	}

	f := Fill{OrderID: o.ID, Side: o.Side, Price: price, Size: o.Size, Commission: comm, Timestamp: b.Timestamp}
	s.fills = append(s.fills, f)
	_, closed := s.book.RecordFill(state.FillInput{
		Qty:        qty,
		Price:      price,
		Commission: comm,
		Bar:        bar,
		Time:       b.Timestamp,
	})
	ev.Fill = &f
	return s.finish(ev, StatusCompleted, ""), closed
}

// Cancel drops the pending order, if any.
func (s *Simulator) Cancel(bar int, at time.Time, reason string) *Event {
	o := s.pending
	if o == nil {
		return nil
	}
	s.pending = nil
	ev := Event{OrderID: o.ID, Side: o.Side, Size: o.Size, BarIndex: bar, Timestamp: at}
	return s.finish(ev, StatusCanceled, reason)
}

func (s *Simulator) finish(ev Event, st Status, reason string) *Event {
	ev.Status = st
	ev.Outcome = st.String()
	ev.Reason = reason
	s.events = append(s.events, ev)
	return &ev
}

// Cash returns the cash balance.
func (s *Simulator) Cash() float64 {
	return s.cash.Available()
}

// Position returns a copy of the current position.
func (s *Simulator) Position() state.Position {
	return s.book.Position()
}

// Value returns cash plus the position marked at price.
func (s *Simulator) Value(price float64) float64 {
	return s.cash.Available() + s.book.Position().Size*price
}

// Events returns every resolved order in resolution order.
func (s *Simulator) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Fills returns every execution in order.
func (s *Simulator) Fills() []Fill {
	out := make([]Fill, len(s.fills))
	copy(out, s.fills)
	return out
}

// Trades returns the closed round trips.
func (s *Simulator) Trades() []state.Trade {
	return s.book.ClosedTrades()
}

// OpenTrade returns the round trip still in progress, if any.
func (s *Simulator) OpenTrade() (state.Trade, bool) {
	return s.book.OpenTrade()
}
