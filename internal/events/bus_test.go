package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventTradeClosed, 1)

	bus.Publish(EventTradeClosed, TradeClosed{RunID: "r1", PnL: 1})
	// buffer is full: dropped, publisher must not block
	bus.Publish(EventTradeClosed, TradeClosed{RunID: "r1", PnL: 2})

	got := (<-ch).(TradeClosed)
	if got.PnL != 1 {
		t.Fatalf("pnl=%v, expected 1", got.PnL)
	}
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after unsubscribe")
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.SubscribeAll(AllEvents, 8)
	defer unsub()

	bus.Publish(EventOrderMargin, OrderOutcome{RunID: "r2", Status: "Margin"})

	select {
	case env := <-ch:
		if env.Topic != EventOrderMargin || env.RunID != "r2" {
			t.Fatalf("envelope=%+v", env)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for envelope")
	}
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(EventBacktestFinished, BacktestFinished{})
}
