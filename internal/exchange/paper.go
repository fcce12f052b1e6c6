package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// PriceSource provides the market mark used for simulated fills.
type PriceSource interface {
	GetMarketPrice(ctx context.Context, symbol string) (float64, error)
}

type paperLot struct {
	side   models.Side
	amount float64
	cost   float64
}

// Paper simulates order execution against live market prices. Fills are
// immediate and complete at the current mark; the quote balance is margined
// per lot so a close releases exactly what the entry reserved.
type Paper struct {
	prices    PriceSource
	quoteFree float64
	quoteUsed float64
	lots      []paperLot
	precision int32
	logger    zerolog.Logger
}

// NewPaper creates a simulated exchange seeded with initialCapital in the
// quote currency.
func NewPaper(prices PriceSource, initialCapital float64) *Paper {
	return &Paper{
		prices:    prices,
		quoteFree: initialCapital,
		precision: 4,
		logger:    log.With().Str("component", "paper_exchange").Logger(),
	}
}

// GetBalance reports the simulated wallet. Only the quote currency carries
// a balance; anything else is empty.
func (p *Paper) GetBalance(_ context.Context, _ string) (models.Balance, error) {
	return models.Balance{
		Free:  p.quoteFree,
		Used:  p.quoteUsed,
		Total: p.quoteFree + p.quoteUsed,
	}, nil
}

// PlaceOrder simulates a market fill at the current mark.
func (p *Paper) PlaceOrder(ctx context.Context, symbol string, side models.Side, amount, price float64, orderType string) (*Order, error) {
	if amount <= 0 {
		return nil, &ExecutionError{Op: "place_order", Err: fmt.Errorf("non-positive amount %f", amount)}
	}

	fill := price
	if fill <= 0 {
		mark, err := p.prices.GetMarketPrice(ctx, symbol)
		if err != nil {
			return nil, &ExecutionError{Op: "place_order", Err: err}
		}
		fill = mark
	}

	cost := amount * fill
	if cost > p.quoteFree {
		return nil, &ExecutionError{Op: "place_order", Err: fmt.Errorf("insufficient balance: need %.2f, free %.2f", cost, p.quoteFree)}
	}
	p.quoteFree -= cost
	p.quoteUsed += cost
	p.lots = append(p.lots, paperLot{side: side, amount: amount, cost: cost})

	now := time.Now().UTC()
	order := &Order{
		ID:        fmt.Sprintf("paper_%d", now.UnixNano()),
		Symbol:    symbol,
		Side:      side,
		Amount:    amount,
		Price:     fill,
		Type:      orderType,
		Timestamp: now,
	}

	p.logger.Info().Str("id", order.ID).Str("side", string(side)).
		Float64("amount", amount).Float64("price", fill).
		Msg("placed paper order")

	return order, nil
}

// ClosePosition fills the close at the current mark, releasing the oldest
// matching lots and realizing their gain or loss into the free balance.
func (p *Paper) ClosePosition(ctx context.Context, symbol string, side models.Side, amount float64) error {
	mark, err := p.prices.GetMarketPrice(ctx, symbol)
	if err != nil {
		return &ExecutionError{Op: "close_position", Err: err}
	}

	remaining := amount
	kept := p.lots[:0]
	for _, lot := range p.lots {
		if lot.side != side || remaining <= 0 {
			kept = append(kept, lot)
			continue
		}

		closed := lot.amount
		if closed > remaining {
			closed = remaining
		}

		costShare := lot.cost * closed / lot.amount
		proceeds := closed * mark
		if side == models.SideShort {
			// Short lots realize inverted: gain when the mark drops.
			proceeds = costShare + (costShare - closed*mark)
		}

		p.quoteUsed -= costShare
		p.quoteFree += proceeds
		remaining -= closed

		if closed < lot.amount {
			kept = append(kept, paperLot{side: lot.side, amount: lot.amount - closed, cost: lot.cost - costShare})
		}
	}
	p.lots = kept

	p.logger.Info().Str("side", string(side)).Float64("amount", amount).
		Float64("price", mark).Msg("closed paper position")

	return nil
}

// GetMarketPrice passes through to the underlying price source.
func (p *Paper) GetMarketPrice(ctx context.Context, symbol string) (float64, error) {
	return p.prices.GetMarketPrice(ctx, symbol)
}

// AmountPrecision reports a fixed simulated precision.
func (p *Paper) AmountPrecision(_ context.Context, _ string) (int32, error) {
	return p.precision, nil
}
