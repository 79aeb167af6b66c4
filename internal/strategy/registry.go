package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Builder creates a strategy instance from validated parameters.
type Builder func(id string, p Params) (Strategy, error)

// Registry maps strategy kinds to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds or replaces the builder for kind.
func (r *Registry) Register(kind string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = b
}

// Get retrieves the builder for kind.
func (r *Registry) Get(kind string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[kind]
	return b, ok
}

// List returns a sorted slice of registered kinds.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.builders))
	for k := range r.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build validates p and instantiates the strategy for p.Kind.
func (r *Registry) Build(id string, p Params) (Strategy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, ok := r.Get(p.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy type %q", ErrInvalidParams, p.Kind)
	}
	return b(id, p)
}

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	bollinger := func(id string, p Params) (Strategy, error) {
		rule := BollingerRSIMACD{Period: p.MAPeriod, DevFactor: p.DevFactor, Oversold: p.RSIOversold, Overbought: p.RSIOverbought}
		return NewRuleStrategy(id, rule, NewSizer(p)), nil
	}
	r.Register(KindBollingerRSIMACD, bollinger)
	r.Register(KindBollingerRSIMACDStrict, bollinger)
	r.Register(KindWMAOBV, func(id string, p Params) (Strategy, error) {
		rule := WMAOBV{Short: p.ShortPeriod, Long: p.LongPeriod, Oversold: p.RSIOversold, Overbought: p.RSIOverbought}
		return NewRuleStrategy(id, rule, NewSizer(p)), nil
	})
	r.Register(KindMACross, func(id string, p Params) (Strategy, error) {
		if p.ShortPeriod >= p.LongPeriod {
			return nil, fmt.Errorf("%w: short_period %d must be below long_period %d", ErrInvalidParams, p.ShortPeriod, p.LongPeriod)
		}
		return NewRuleStrategy(id, MACross{Short: p.ShortPeriod, Long: p.LongPeriod}, NewSizer(p)), nil
	})
	return r
}
