package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shaumne/tony-new-bot/internal/config"
	"github.com/shaumne/tony-new-bot/internal/exchange"
	"github.com/shaumne/tony-new-bot/internal/indicator"
	"github.com/shaumne/tony-new-bot/internal/ledger"
	"github.com/shaumne/tony-new-bot/internal/metrics"
	"github.com/shaumne/tony-new-bot/internal/models"
	"github.com/shaumne/tony-new-bot/internal/notify"
	"github.com/shaumne/tony-new-bot/internal/strategy"
)

// errSkipTick marks a recoverable tick failure: the driver logs it, backs
// off one extra interval and keeps running.
var errSkipTick = errors.New("tick skipped")

// Engine drives the live trading loop: poll candles, evaluate exits and
// entries, execute the resulting intents. All state is owned by the loop
// goroutine; Run returns when the context is cancelled or a fatal error
// occurs.
type Engine struct {
	cfg      *config.Config
	market   exchange.MarketData
	exch     exchange.Exchange
	strat    *strategy.Engine
	ledger   *ledger.Ledger
	risk     *models.RiskState
	notifier notify.Notifier
	recorder *metrics.Recorder
	logger   zerolog.Logger

	params    indicator.Params
	precision int32
}

// Options wires an Engine's collaborators. Notifier and Recorder may be nil.
type Options struct {
	Config   *config.Config
	Market   exchange.MarketData
	Exchange exchange.Exchange
	Notifier notify.Notifier
	Recorder *metrics.Recorder
}

// New creates a live engine.
func New(opts Options) *Engine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}

	return &Engine{
		cfg:      opts.Config,
		market:   opts.Market,
		exch:     opts.Exchange,
		strat:    strategy.New(opts.Config),
		ledger:   ledger.New(),
		risk:     &models.RiskState{},
		notifier: notifier,
		recorder: opts.Recorder,
		logger:   log.With().Str("component", "engine").Logger(),
		params: indicator.Params{
			EMAShort:     opts.Config.EMAShort,
			EMALong:      opts.Config.EMALong,
			MACDFast:     opts.Config.MACDFast,
			MACDSlow:     opts.Config.MACDSlow,
			MACDSignal:   opts.Config.MACDSignal,
			VWAPLookback: opts.Config.VWAPLookback,
			ATRPeriod:    opts.Config.ATRPeriod,
		},
		precision: -1,
	}
}

// Run executes the polling loop until ctx is cancelled. Cancellation is
// checked at the top of every iteration so open positions are never left
// half-swept.
func (e *Engine) Run(ctx context.Context) error {
	if p, err := e.exch.AmountPrecision(ctx, e.cfg.Symbol); err == nil {
		e.precision = p
	} else {
		e.logger.Warn().Err(err).Msg("could not resolve amount precision, using unrounded sizes")
	}

	e.logger.Info().Str("symbol", e.cfg.Symbol).Str("timeframe", e.cfg.Timeframe).
		Dur("poll_interval", e.cfg.PollInterval).Msg("starting trading loop")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Int("open_positions", e.ledger.OpenCount()).Msg("trading loop stopped")
			return nil
		default:
		}

		delay := e.cfg.PollInterval
		if err := e.tick(ctx); err != nil {
			if !errors.Is(err, errSkipTick) {
				return err
			}
			// Recoverable: wait an extra interval before retrying.
			delay *= 2
		}

		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}

// tick runs one full evaluation: sweep exits first, then consider an entry.
func (e *Engine) tick(ctx context.Context) error {
	if e.recorder != nil {
		e.recorder.RecordTick(e.cfg.Symbol)
	}

	candles, err := e.market.FetchCandles(ctx, e.cfg.Symbol, e.cfg.Timeframe, e.cfg.CandleLimit)
	if err != nil {
		e.logger.Warn().Err(err).Msg("candle fetch failed, skipping tick")
		if e.recorder != nil {
			e.recorder.RecordTickError("fetch")
		}
		return errSkipTick
	}

	warmup := e.params.Warmup()
	if len(candles) < warmup+2 {
		e.logger.Warn().Int("candles", len(candles)).Int("needed", warmup+2).
			Msg("not enough candles for a defined frame, skipping tick")
		if e.recorder != nil {
			e.recorder.RecordTickError("warmup")
		}
		return errSkipTick
	}

	frames, err := indicator.Compute(candles, e.params)
	if err != nil {
		// Indicator input defects do not heal on retry.
		return fmt.Errorf("indicator computation: %w", err)
	}

	last := frames.Len() - 1
	curr, prev := frames.At(last), frames.At(last-1)

	price, err := e.exch.GetMarketPrice(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Warn().Err(err).Msg("market price unavailable, using last close")
		price = candles[len(candles)-1].Close
	}
	if e.recorder != nil {
		e.recorder.SetLastPrice(e.cfg.Symbol, price)
	}

	e.risk.RollDay(candles[len(candles)-1].Timestamp)

	e.sweepPositions(ctx, price, curr, prev)
	e.considerEntry(ctx, price, curr, prev)

	if e.recorder != nil {
		e.recorder.SetOpenPositions(e.cfg.Symbol, e.ledger.OpenCount())
		if balance, err := e.exch.GetBalance(ctx, e.cfg.QuoteCurrency()); err == nil {
			e.recorder.SetEquity(balance.Total)
		}
	}
	return nil
}

// sweepPositions applies exit transitions. A live tick has no intrabar
// range, so the current price stands in for high and low. Each close is
// confirmed on the exchange before the ledger mutates; a failed close
// leaves the position open for the next tick.
func (e *Engine) sweepPositions(ctx context.Context, price float64, curr, prev models.IndicatorFrame) {
	closes, tp1Hits := e.ledger.Sweep(price, price, price, func(side models.Side) bool {
		return e.strat.CheckExit(curr, prev, side)
	})

	for _, pos := range tp1Hits {
		e.notifier.TakeProfit1Hit(pos, e.cfg.Symbol)
	}

	for _, intent := range closes {
		pos := intent.Position
		if err := e.exch.ClosePosition(ctx, e.cfg.Symbol, pos.Side, pos.Quantity); err != nil {
			e.logger.Error().Err(err).Str("id", pos.ID).Str("reason", string(intent.Reason)).
				Msg("exchange close failed, position stays open")
			e.notifier.Error("close_position", err)
			if e.recorder != nil {
				e.recorder.RecordTickError("execution")
			}
			continue
		}

		// Live fills happen at the current mark, not the trigger level.
		trade, ok := e.ledger.Close(pos.ID, price, intent.Reason, time.Now().UTC())
		if !ok {
			continue
		}
		e.notifier.PositionClosed(trade, e.cfg.Symbol)
		if e.recorder != nil {
			e.recorder.RecordPositionClosed(string(trade.ExitReason))
		}
	}
}

// considerEntry evaluates and executes at most one entry per tick.
func (e *Engine) considerEntry(ctx context.Context, price float64, curr, prev models.IndicatorFrame) {
	intent := e.strat.CheckEntry(curr, prev, price)
	if intent == nil {
		return
	}
	if e.recorder != nil {
		e.recorder.RecordSignal(string(intent.Side))
	}

	if ok, reason := e.strat.Admit(e.ledger.OpenCount(), e.risk); !ok {
		e.logger.Info().Str("reason", reason).Str("side", string(intent.Side)).
			Msg("entry signal rejected by admission control")
		return
	}

	balance, err := e.exch.GetBalance(ctx, e.cfg.QuoteCurrency())
	if err != nil {
		e.logger.Error().Err(err).Msg("balance fetch failed, dropping entry")
		e.notifier.Error("get_balance", err)
		return
	}

	amount := e.strat.PositionSize(balance.Free, price, e.precision)
	if amount <= 0 {
		return
	}

	order, err := e.exch.PlaceOrder(ctx, e.cfg.Symbol, intent.Side, amount, 0, "market")
	if err != nil {
		e.logger.Error().Err(err).Str("side", string(intent.Side)).
			Msg("order placement failed, dropping entry")
		e.notifier.Error("place_order", err)
		if e.recorder != nil {
			e.recorder.RecordTickError("execution")
		}
		return
	}

	pos := &models.Position{
		ID:          order.ID,
		Side:        intent.Side,
		EntryPrice:  price,
		Quantity:    amount,
		StopLoss:    intent.StopLoss,
		TakeProfit1: intent.TakeProfit1,
		TakeProfit2: intent.TakeProfit2,
		OpenedAt:    order.Timestamp,
	}
	e.ledger.Open(pos)
	e.risk.RecordTrade(order.Timestamp)

	e.notifier.PositionOpened(pos, e.cfg.Symbol)
	if e.recorder != nil {
		e.recorder.RecordPositionOpened(string(pos.Side))
	}
}
