package events

import (
	"sync"
)

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[e]
			for i, c := range subs {
				if c == ch {
					close(c)
					b.subs[e] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		})
	}

	return ch, unsub
}

// SubscribeAll merges several topics into one channel of envelopes. The
// returned channel is closed after unsubscribe.
func (b *Bus) SubscribeAll(topics []Event, buffer int) (<-chan Envelope, func()) {
	out := make(chan Envelope, buffer)
	var wg sync.WaitGroup
	unsubs := make([]func(), 0, len(topics))
	for _, topic := range topics {
		ch, unsub := b.Subscribe(topic, buffer)
		unsubs = append(unsubs, unsub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for payload := range ch {
				env := Envelope{Topic: topic, Payload: payload, RunID: runID(payload)}
				select {
				case out <- env:
				default:
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish fan-outs the payload to subscribers asynchronously to avoid blocking.
func (b *Bus) Publish(e Event, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep publisher non-blocking
		}
	}
}

func runID(payload any) string {
	switch p := payload.(type) {
	case OrderOutcome:
		return p.RunID
	case TradeClosed:
		return p.RunID
	case BacktestFinished:
		return p.RunID
	}
	return ""
}
