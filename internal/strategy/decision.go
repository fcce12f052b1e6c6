package strategy

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shaumne/tony-new-bot/internal/config"
	"github.com/shaumne/tony-new-bot/internal/models"
	"github.com/shaumne/tony-new-bot/internal/signal"
)

// EntryIntent is a proposed position produced by the decision engine. It is
// not a position yet: admission control and the fill have to succeed first.
type EntryIntent struct {
	Side        models.Side
	Price       float64
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64
	ATR         float64
	Band        signal.Band
}

// Engine converts indicator frames into entry and exit decisions.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates a decision engine for the given configuration.
func New(cfg *config.Config) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.With().Str("component", "strategy").Logger(),
	}
}

// CheckEntry evaluates the entry conditions on the latest two frames.
// A long needs bullish EMA and MACD crossovers with price near any VWAP
// band; a short needs both crossovers bearish near a band. All four
// sub-conditions read the same tick, never ahead of it.
func (e *Engine) CheckEntry(curr, prev models.IndicatorFrame, price float64) *EntryIntent {
	prox := signal.BandProximity(price, curr.VWAPMiddle, curr.VWAPUpper, curr.VWAPLower, e.cfg.VWAPBandThreshold)
	if !prox.Near {
		return nil
	}

	emaCross := signal.DetectCrossover(curr.EMAShort, curr.EMALong, prev.EMAShort, prev.EMALong)
	macdCross := signal.DetectCrossover(curr.MACDLine, curr.MACDSignal, prev.MACDLine, prev.MACDSignal)

	if math.IsNaN(curr.ATR) {
		return nil
	}

	sl := curr.ATR * e.cfg.StopLossATRMult
	tp1 := curr.ATR * e.cfg.TP1ATRMult
	tp2 := curr.ATR * e.cfg.TP2ATRMult

	switch {
	case emaCross == signal.CrossBullish && macdCross == signal.CrossBullish:
		e.logger.Info().Str("band", string(prox.Band)).Float64("price", price).
			Msg("LONG signal: EMA and MACD bullish crossover near VWAP band")
		return &EntryIntent{
			Side:        models.SideLong,
			Price:       price,
			StopLoss:    price - sl,
			TakeProfit1: price + tp1,
			TakeProfit2: price + tp2,
			ATR:         curr.ATR,
			Band:        prox.Band,
		}
	case emaCross == signal.CrossBearish && macdCross == signal.CrossBearish:
		e.logger.Info().Str("band", string(prox.Band)).Float64("price", price).
			Msg("SHORT signal: EMA and MACD bearish crossover near VWAP band")
		return &EntryIntent{
			Side:        models.SideShort,
			Price:       price,
			StopLoss:    price + sl,
			TakeProfit1: price - tp1,
			TakeProfit2: price - tp2,
			ATR:         curr.ATR,
			Band:        prox.Band,
		}
	}

	return nil
}

// CheckExit reports whether an open position should be closed on signal:
// both crossovers flipping against the position's direction.
func (e *Engine) CheckExit(curr, prev models.IndicatorFrame, side models.Side) bool {
	emaCross := signal.DetectCrossover(curr.EMAShort, curr.EMALong, prev.EMAShort, prev.EMALong)
	macdCross := signal.DetectCrossover(curr.MACDLine, curr.MACDSignal, prev.MACDLine, prev.MACDSignal)

	if side == models.SideLong {
		return emaCross == signal.CrossBearish && macdCross == signal.CrossBearish
	}
	return emaCross == signal.CrossBullish && macdCross == signal.CrossBullish
}

// Admit applies admission control to an entry intent at decision time.
// It returns false with a reason when the concurrency or daily-trade limit
// is reached.
func (e *Engine) Admit(openPositions int, risk *models.RiskState) (bool, string) {
	if openPositions >= e.cfg.MaxOpenOrders {
		return false, "max open orders reached"
	}
	if risk.TradesToday >= e.cfg.MaxDailyTrades {
		return false, "max daily trades reached"
	}
	return true, ""
}

// PositionSize converts the free balance into an order amount using the
// configured risk percentage, rounded down to the exchange's amount
// precision when known (precision < 0 means unknown, keep unrounded).
// A zero or negative result aborts the entry.
func (e *Engine) PositionSize(freeBalance, price float64, precision int32) float64 {
	if price <= 0 || freeBalance <= 0 {
		return 0
	}

	amount := freeBalance * (e.cfg.RiskPercentage / 100) / price
	if precision >= 0 {
		amount = decimal.NewFromFloat(amount).RoundDown(precision).InexactFloat64()
	}

	if amount <= 0 {
		e.logger.Warn().Float64("balance", freeBalance).Float64("price", price).
			Msg("computed position size is zero, skipping entry")
		return 0
	}

	return amount
}
