package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// ErrNoData indicates the market-data source returned no candles. The
// driver treats this as recoverable and skips the tick with backoff.
var ErrNoData = errors.New("no candle data returned")

// ExecutionError wraps an order placement or close failure. The driver
// drops the intent for the tick, leaves position state unchanged and
// notifies.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failure during %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Order is the handle returned by an order placement.
type Order struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Side      models.Side `json:"side"`
	Amount    float64     `json:"amount"`
	Price     float64     `json:"price"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarketData is the candle-fetching capability of an engine instance.
type MarketData interface {
	// FetchCandles returns up to limit candles ordered oldest first.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// Exchange is the execution capability. The paper and live implementations
// are selected once at construction; decision logic never branches on mode.
type Exchange interface {
	GetBalance(ctx context.Context, currency string) (models.Balance, error)
	PlaceOrder(ctx context.Context, symbol string, side models.Side, amount, price float64, orderType string) (*Order, error)
	ClosePosition(ctx context.Context, symbol string, side models.Side, amount float64) error
	GetMarketPrice(ctx context.Context, symbol string) (float64, error)
	// AmountPrecision returns the symbol's order amount precision in
	// decimal places, or a negative value when the exchange does not
	// declare one.
	AmountPrecision(ctx context.Context, symbol string) (int32, error)
}
