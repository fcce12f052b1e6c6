package models

import (
	"time"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the closing direction for the side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit2 ExitReason = "take_profit_2"
	ExitSignal      ExitReason = "signal_exit"
	ExitEndOfPeriod ExitReason = "end_of_period"
)

// Candle represents a single OHLCV price candle.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorFrame holds the derived indicator values for one candle.
// Values inside the warm-up window are NaN.
type IndicatorFrame struct {
	EMAShort   float64 `json:"ema_short"`
	EMALong    float64 `json:"ema_long"`
	MACDLine   float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	VWAPMiddle float64 `json:"vwap_middle"`
	VWAPUpper  float64 `json:"vwap_upper"`
	VWAPLower  float64 `json:"vwap_lower"`
	ATR        float64 `json:"atr"`
}

// Position is an open position owned by the ledger.
type Position struct {
	ID          string    `json:"id"`
	Side        Side      `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Quantity    float64   `json:"quantity"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit1 float64   `json:"take_profit_1"`
	TakeProfit2 float64   `json:"take_profit_2"`
	OpenedAt    time.Time `json:"opened_at"`
	TP1Hit      bool      `json:"tp1_hit"`
}

// ProfitPct returns the realized percentage gain for closing at exitPrice.
func (p *Position) ProfitPct(exitPrice float64) float64 {
	if p.Side == SideLong {
		return (exitPrice/p.EntryPrice - 1) * 100
	}
	return (p.EntryPrice/exitPrice - 1) * 100
}

// ClosedTrade is the immutable record appended for every closed position.
type ClosedTrade struct {
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Side       Side       `json:"side"`
	ProfitPct  float64    `json:"profit_pct"`
	ExitReason ExitReason `json:"exit_reason"`
	ExitTime   time.Time  `json:"exit_time"`
}

// RiskState tracks the per-day trade budget.
type RiskState struct {
	TradesToday   int       `json:"trades_today"`
	LastTradeDate time.Time `json:"last_trade_date"`
}

// RollDay resets the daily counter the first time the date advances past
// LastTradeDate. The caller passes the date of the candle driving the tick,
// so live and backtest share one reset rule.
func (r *RiskState) RollDay(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if day.After(r.LastTradeDate) {
		r.TradesToday = 0
		r.LastTradeDate = day
	}
}

// RecordTrade counts an accepted entry against the daily budget.
func (r *RiskState) RecordTrade(now time.Time) {
	r.RollDay(now)
	r.TradesToday++
}

// Balance is the exchange wallet snapshot for one currency.
type Balance struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// BacktestReport stores the outcome of a backtest run.
type BacktestReport struct {
	Symbol        string        `json:"symbol"`
	Timeframe     string        `json:"timeframe"`
	TotalTrades   int           `json:"total_trades"`
	WinningTrades int           `json:"winning_trades"`
	LosingTrades  int           `json:"losing_trades"`
	WinRate       float64       `json:"win_rate"`
	TotalReturn   float64       `json:"total_return"`
	MaxDrawdown   float64       `json:"max_drawdown"`
	FinalEquity   float64       `json:"final_equity"`
	Trades        []ClosedTrade `json:"trades"`
	EquityCurve   []float64     `json:"equity_curve,omitempty"`
}
