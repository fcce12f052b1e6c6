package notify

import (
	"fmt"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// Notifier delivers trade lifecycle messages. Delivery is best effort; the
// driver never blocks or fails a tick on a notification error.
type Notifier interface {
	PositionOpened(pos *models.Position, symbol string)
	PositionClosed(trade models.ClosedTrade, symbol string)
	TakeProfit1Hit(pos *models.Position, symbol string)
	Error(op string, err error)
}

// Noop discards all notifications. Used when no Telegram credentials are
// configured and in backtests.
type Noop struct{}

func (Noop) PositionOpened(*models.Position, string) {}

func (Noop) PositionClosed(models.ClosedTrade, string) {}

func (Noop) TakeProfit1Hit(*models.Position, string) {}

func (Noop) Error(string, error) {}

func formatOpened(pos *models.Position, symbol string) string {
	return fmt.Sprintf(
		"🟢 Position opened\n\nSymbol: %s\nSide: %s\nEntry: %.4f\nQuantity: %.6f\nStop loss: %.4f\nTake profit 1: %.4f\nTake profit 2: %.4f",
		symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.StopLoss, pos.TakeProfit1, pos.TakeProfit2)
}

func formatClosed(trade models.ClosedTrade, symbol string) string {
	emoji := "🔴"
	if trade.ProfitPct >= 0 {
		emoji = "🟢"
	}
	return fmt.Sprintf(
		"%s Position closed\n\nSymbol: %s\nSide: %s\nEntry: %.4f\nExit: %.4f\nP/L: %.2f%%\nReason: %s",
		emoji, symbol, trade.Side, trade.EntryPrice, trade.ExitPrice, trade.ProfitPct, trade.ExitReason)
}

func formatTP1(pos *models.Position, symbol string) string {
	return fmt.Sprintf(
		"🎯 Take profit 1 reached\n\nSymbol: %s\nSide: %s\nEntry: %.4f\nTP1: %.4f\n\nConsider moving the stop to breakeven.",
		symbol, pos.Side, pos.EntryPrice, pos.TakeProfit1)
}

func formatError(op string, err error) string {
	return fmt.Sprintf("⚠️ Error during %s\n\n%v", op, err)
}
