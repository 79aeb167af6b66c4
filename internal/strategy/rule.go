package strategy

// Rule is a pair of entry and exit predicates over indicator values.
type Rule interface {
	Name() string
	// Requires lists the snapshot values the predicates read. Until all of
	// them are available the strategy takes no action.
	Requires() []string
	Entry(in Input) (bool, string)
	Exit(in Input) (bool, string)
}

// RuleStrategy turns a Rule into a long-only Strategy: enter when flat and
// the entry predicate holds, close the whole position when the exit
// predicate holds, and stay idle while an order is pending.
type RuleStrategy struct {
	id    string
	rule  Rule
	sizer Sizer
}

// NewRuleStrategy wires a rule to a sizer.
func NewRuleStrategy(id string, rule Rule, sizer Sizer) *RuleStrategy {
	return &RuleStrategy{id: id, rule: rule, sizer: sizer}
}

func (s *RuleStrategy) ID() string {
	return s.id
}

func (s *RuleStrategy) Name() string {
	return s.rule.Name()
}

func (s *RuleStrategy) Decide(in Input) *Signal {
	if in.Pending {
		return nil
	}
	if !in.Snapshot.Has(s.rule.Requires()...) {
		return nil
	}

	switch {
	case in.Position.Flat():
		ok, note := s.rule.Entry(in)
		if !ok {
			return nil
		}
		size := s.sizer.Size(in)
		if size <= 0 {
			return nil
		}
		return &Signal{StrategyID: s.id, Action: ActionBuy, Size: size, Note: note}
	case in.Position.Size > 0:
		ok, note := s.rule.Exit(in)
		if !ok {
			return nil
		}
		return &Signal{StrategyID: s.id, Action: ActionSell, Size: in.Position.Size, Note: note}
	}
	return nil
}
