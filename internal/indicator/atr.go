package indicator

import (
	"math"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// ATR computes the average true range as a simple rolling mean of the true
// range over period. The first candle has no previous close, so its true
// range degrades to high-low. Outputs are NaN until period candles exist.
func ATR(candles []models.Candle, period int) []float64 {
	n := len(candles)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}

	return out
}
