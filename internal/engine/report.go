package engine

import (
	"fmt"
	"strings"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// FormatReport renders a backtest report for terminal output.
func FormatReport(report *models.BacktestReport) string {
	var b strings.Builder

	b.WriteString("==========================================\n")
	b.WriteString(fmt.Sprintf("Backtest Results: %s (%s)\n", report.Symbol, report.Timeframe))
	b.WriteString("==========================================\n\n")

	b.WriteString(fmt.Sprintf("Total trades:    %d\n", report.TotalTrades))
	b.WriteString(fmt.Sprintf("Winning trades:  %d\n", report.WinningTrades))
	b.WriteString(fmt.Sprintf("Losing trades:   %d\n", report.LosingTrades))
	b.WriteString(fmt.Sprintf("Win rate:        %.2f%%\n", report.WinRate))
	b.WriteString(fmt.Sprintf("Total return:    %.2f%%\n", report.TotalReturn))
	b.WriteString(fmt.Sprintf("Max drawdown:    %.2f%%\n", report.MaxDrawdown))
	b.WriteString(fmt.Sprintf("Final equity:    %.2f\n", report.FinalEquity))

	if len(report.Trades) > 0 {
		b.WriteString("\nTrades:\n")
		for i, trade := range report.Trades {
			b.WriteString(fmt.Sprintf("%3d. %-5s  entry %.4f  exit %.4f  %+.2f%%  %s  %s\n",
				i+1, trade.Side, trade.EntryPrice, trade.ExitPrice, trade.ProfitPct,
				trade.ExitReason, trade.ExitTime.Format("2006-01-02 15:04")))
		}
	}

	return b.String()
}
