package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shaumne/tony-new-bot/internal/config"
	"github.com/shaumne/tony-new-bot/internal/exchange"
	"github.com/shaumne/tony-new-bot/internal/indicator"
	"github.com/shaumne/tony-new-bot/internal/ledger"
	"github.com/shaumne/tony-new-bot/internal/models"
	"github.com/shaumne/tony-new-bot/internal/strategy"
)

// Backtester replays the strategy over a historical candle window with
// synthetic fills and a compounded equity curve.
type Backtester struct {
	cfg    *config.Config
	market exchange.MarketData
	logger zerolog.Logger
}

// NewBacktester creates a backtest driver.
func NewBacktester(cfg *config.Config, market exchange.MarketData) *Backtester {
	return &Backtester{
		cfg:    cfg,
		market: market,
		logger: log.With().Str("component", "backtest").Logger(),
	}
}

// timeframeDuration converts a timeframe string into its candle duration.
func timeframeDuration(timeframe string) (time.Duration, error) {
	switch timeframe {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
}

// maxCandleFetch is the largest candle batch exchanges answer in one
// request; Bitget rejects anything above it.
const maxCandleFetch = 1000

// candlesForWindow calculates how many candles cover the date window plus
// the indicator warm-up.
func candlesForWindow(start, end time.Time, step time.Duration, warmup int) int {
	return int(end.Sub(start)/step) + warmup + 2
}

// Run replays the window [startDate, endDate] (YYYY-MM-DD, UTC) and returns
// the resulting report. Exits fill at their trigger level; remaining
// positions are force closed at the final price.
func (b *Backtester) Run(ctx context.Context, startDate, endDate string) (*models.BacktestReport, error) {
	start, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end date %s is not after start date %s", endDate, startDate)
	}

	step, err := timeframeDuration(b.cfg.Timeframe)
	if err != nil {
		return nil, err
	}

	params := indicator.Params{
		EMAShort:     b.cfg.EMAShort,
		EMALong:      b.cfg.EMALong,
		MACDFast:     b.cfg.MACDFast,
		MACDSlow:     b.cfg.MACDSlow,
		MACDSignal:   b.cfg.MACDSignal,
		VWAPLookback: b.cfg.VWAPLookback,
		ATRPeriod:    b.cfg.ATRPeriod,
	}
	warmup := params.Warmup()

	limit := candlesForWindow(start, end, step, warmup)
	if limit > maxCandleFetch {
		b.logger.Warn().Int("requested", limit).Int("cap", maxCandleFetch).
			Msg("window exceeds the exchange candle cap, replaying the most recent candles only")
		limit = maxCandleFetch
	}
	b.logger.Info().Str("start", startDate).Str("end", endDate).
		Int("candles", limit).Msg("fetching backtest window")

	candles, err := b.market.FetchCandles(ctx, b.cfg.Symbol, b.cfg.Timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching candles: %w", err)
	}
	if len(candles) < warmup+2 {
		return nil, fmt.Errorf("only %d candles available, need at least %d", len(candles), warmup+2)
	}

	frames, err := indicator.Compute(candles, params)
	if err != nil {
		return nil, fmt.Errorf("indicator computation: %w", err)
	}

	strat := strategy.New(b.cfg)
	book := ledger.New()
	risk := &models.RiskState{}
	equity := NewEquityState(b.cfg.InitialCapital)

	for i := warmup; i < len(candles); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candle := candles[i]
		curr, prev := frames.At(i), frames.At(i-1)
		price := candle.Close

		risk.RollDay(candle.Timestamp)

		closes, _ := book.Sweep(price, candle.High, candle.Low, func(side models.Side) bool {
			return strat.CheckExit(curr, prev, side)
		})
		for _, intent := range closes {
			// Synthetic fill at the trigger level for intrabar breaches.
			trade, ok := book.Close(intent.Position.ID, intent.Price, intent.Reason, candle.Timestamp)
			if !ok {
				continue
			}
			equity.ApplyTrade(trade)
		}

		intent := strat.CheckEntry(curr, prev, price)
		if intent == nil {
			continue
		}
		if ok, _ := strat.Admit(book.OpenCount(), risk); !ok {
			continue
		}

		amount := strat.PositionSize(equity.Equity, price, -1)
		if amount <= 0 {
			continue
		}

		book.Open(&models.Position{
			ID:          fmt.Sprintf("bt_%d", i),
			Side:        intent.Side,
			EntryPrice:  price,
			Quantity:    amount,
			StopLoss:    intent.StopLoss,
			TakeProfit1: intent.TakeProfit1,
			TakeProfit2: intent.TakeProfit2,
			OpenedAt:    candle.Timestamp,
		})
		risk.RecordTrade(candle.Timestamp)
	}

	final := candles[len(candles)-1]
	for _, trade := range book.ForceCloseAll(final.Close, final.Timestamp) {
		equity.ApplyTrade(trade)
	}

	return b.buildReport(book.Trades(), equity), nil
}

func (b *Backtester) buildReport(trades []models.ClosedTrade, equity *EquityState) *models.BacktestReport {
	report := &models.BacktestReport{
		Symbol:      b.cfg.Symbol,
		Timeframe:   b.cfg.Timeframe,
		TotalTrades: len(trades),
		TotalReturn: equity.TotalReturn(),
		MaxDrawdown: equity.MaxDrawdown,
		FinalEquity: equity.Equity,
		Trades:      trades,
		EquityCurve: equity.Curve,
	}

	for _, trade := range trades {
		if trade.ProfitPct > 0 {
			report.WinningTrades++
		} else {
			report.LosingTrades++
		}
	}
	if report.TotalTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100
	}

	return report
}
