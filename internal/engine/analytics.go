package engine

// Summary aggregates the closed trades and equity curve of a run.
type Summary struct {
	Trades       int     `json:"trades"`
	Won          int     `json:"won"`
	Lost         int     `json:"lost"`
	WinRate      float64 `json:"win_rate"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	NetPnL       float64 `json:"net_pnl"`
	Commission   float64 `json:"commission"`
	MaxDrawdown  float64 `json:"max_drawdown_pct"` // <= 0
	ReturnPct    float64 `json:"return_pct"`
}

// Summarize computes the summary from a report's trades and equity.
// Wins and losses are judged on pnl net of commission.
func Summarize(r *Report) Summary {
	var s Summary
	s.Trades = len(r.Trades)
	for _, t := range r.Trades {
		s.NetPnL += t.PnLComm
		s.Commission += t.Commission
		if t.PnLComm > 0 {
			s.Won++
			s.GrossProfit += t.PnLComm
		} else {
			s.Lost++
			s.GrossLoss += -t.PnLComm
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Won) / float64(s.Trades)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	s.MaxDrawdown = maxDrawdown(r.Equity)
	if r.InitialCash > 0 {
		s.ReturnPct = (r.FinalValue - r.InitialCash) / r.InitialCash * 100
	}
	return s
}

func maxDrawdown(eq []EquityPoint) float64 {
	if len(eq) == 0 {
		return 0
	}
	peak, dd := eq[0].Value, 0.0
	for _, p := range eq {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if d := (p.Value - peak) / peak * 100; d < dd {
			dd = d
		}
	}
	return dd
}
