package ledger

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// CloseIntent asks the driver to close a position for the given reason at
// the given price. The ledger does not mutate anything until Close is
// called, so a failed exchange close leaves the position untouched.
type CloseIntent struct {
	Position *models.Position
	Reason   models.ExitReason
	Price    float64
}

// Ledger owns all open positions of one engine instance and the append-only
// log of closed trades. It must only be touched from the driver's tick loop.
type Ledger struct {
	positions []*models.Position
	trades    []models.ClosedTrade
	logger    zerolog.Logger
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		logger: log.With().Str("component", "ledger").Logger(),
	}
}

// Open takes ownership of a freshly filled position.
func (l *Ledger) Open(pos *models.Position) {
	l.positions = append(l.positions, pos)
	l.logger.Info().Str("id", pos.ID).Str("side", string(pos.Side)).
		Float64("entry", pos.EntryPrice).Float64("qty", pos.Quantity).
		Float64("sl", pos.StopLoss).Float64("tp1", pos.TakeProfit1).Float64("tp2", pos.TakeProfit2).
		Msg("position opened")
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int { return len(l.positions) }

// Positions returns the open positions. Callers must not mutate them.
func (l *Ledger) Positions() []*models.Position { return l.positions }

// Trades returns the closed-trade log in close order.
func (l *Ledger) Trades() []models.ClosedTrade { return l.trades }

// Sweep checks every open position against the tick's price range and the
// signal-exit predicate. Per position the transitions are checked in strict
// priority order and at most one fires per tick: a stop-loss breach closes,
// then a take-profit-2 breach closes, then a first take-profit-1 breach
// flags the position without closing it, then a signal exit closes.
//
// Live ticks pass price for high and low as well; backtest ticks pass the
// candle's real high/low for intrabar breaches. The returned tp1 positions
// have already been flagged; close intents must be confirmed via Close.
func (l *Ledger) Sweep(price, high, low float64, exitSignal func(models.Side) bool) (closes []CloseIntent, tp1 []*models.Position) {
	for _, pos := range l.positions {
		switch {
		case stopLossHit(pos, high, low):
			closes = append(closes, CloseIntent{Position: pos, Reason: models.ExitStopLoss, Price: pos.StopLoss})
		case takeProfit2Hit(pos, high, low):
			closes = append(closes, CloseIntent{Position: pos, Reason: models.ExitTakeProfit2, Price: pos.TakeProfit2})
		case !pos.TP1Hit && takeProfit1Hit(pos, high, low):
			pos.TP1Hit = true
			l.logger.Info().Str("id", pos.ID).Float64("tp1", pos.TakeProfit1).
				Msg("take profit 1 hit, consider moving stop to breakeven")
			tp1 = append(tp1, pos)
		case exitSignal != nil && exitSignal(pos.Side):
			closes = append(closes, CloseIntent{Position: pos, Reason: models.ExitSignal, Price: price})
		}
	}
	return closes, tp1
}

// Close removes the position and appends its closed-trade record. Closing
// an id that no longer exists is a no-op and returns ok=false, which makes
// repeated close attempts for the same tick harmless.
func (l *Ledger) Close(id string, exitPrice float64, reason models.ExitReason, at time.Time) (models.ClosedTrade, bool) {
	for i, pos := range l.positions {
		if pos.ID != id {
			continue
		}

		trade := models.ClosedTrade{
			EntryPrice: pos.EntryPrice,
			ExitPrice:  exitPrice,
			Side:       pos.Side,
			ProfitPct:  pos.ProfitPct(exitPrice),
			ExitReason: reason,
			ExitTime:   at,
		}

		l.positions = append(l.positions[:i], l.positions[i+1:]...)
		l.trades = append(l.trades, trade)

		l.logger.Info().Str("id", id).Str("reason", string(reason)).
			Float64("exit", exitPrice).Float64("pl_pct", trade.ProfitPct).
			Msg("position closed")

		return trade, true
	}
	return models.ClosedTrade{}, false
}

// ForceCloseAll closes every remaining position at the final price. Used by
// the backtest driver at the end of the historical window.
func (l *Ledger) ForceCloseAll(price float64, at time.Time) []models.ClosedTrade {
	var closed []models.ClosedTrade
	for len(l.positions) > 0 {
		trade, _ := l.Close(l.positions[0].ID, price, models.ExitEndOfPeriod, at)
		closed = append(closed, trade)
	}
	return closed
}

func stopLossHit(pos *models.Position, high, low float64) bool {
	if pos.Side == models.SideLong {
		return low <= pos.StopLoss
	}
	return high >= pos.StopLoss
}

func takeProfit2Hit(pos *models.Position, high, low float64) bool {
	if pos.Side == models.SideLong {
		return high >= pos.TakeProfit2
	}
	return low <= pos.TakeProfit2
}

func takeProfit1Hit(pos *models.Position, high, low float64) bool {
	if pos.Side == models.SideLong {
		return high >= pos.TakeProfit1
	}
	return low <= pos.TakeProfit1
}
