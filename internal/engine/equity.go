package engine

import (
	"github.com/shaumne/tony-new-bot/internal/models"
)

// EquityState compounds closed-trade returns into an equity curve and
// tracks the running peak for drawdown measurement.
type EquityState struct {
	Initial     float64
	Equity      float64
	Peak        float64
	MaxDrawdown float64
	Curve       []float64
}

// NewEquityState starts an equity curve at initialCapital.
func NewEquityState(initialCapital float64) *EquityState {
	return &EquityState{
		Initial: initialCapital,
		Equity:  initialCapital,
		Peak:    initialCapital,
		Curve:   []float64{initialCapital},
	}
}

// ApplyTrade compounds one closed trade's percentage return into equity.
func (s *EquityState) ApplyTrade(trade models.ClosedTrade) {
	s.Equity *= 1 + trade.ProfitPct/100

	if s.Equity > s.Peak {
		s.Peak = s.Equity
	}
	if s.Peak > 0 {
		drawdown := (s.Peak - s.Equity) / s.Peak * 100
		if drawdown > s.MaxDrawdown {
			s.MaxDrawdown = drawdown
		}
	}

	s.Curve = append(s.Curve, s.Equity)
}

// TotalReturn is the compounded return since the initial capital, in percent.
func (s *EquityState) TotalReturn() float64 {
	return (s.Equity/s.Initial - 1) * 100
}
