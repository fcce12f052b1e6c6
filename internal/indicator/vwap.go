package indicator

import (
	"errors"
	"math"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// ErrMissingVolume is returned when VWAP is requested for a candle series
// that carries no volume data. This is a configuration problem, not a
// transient one, so callers must abort rather than retry.
var ErrMissingVolume = errors.New("candle series has no volume data, VWAP cannot be calculated")

// VWAP computes a rolling volume-weighted average price with ±2σ bands over
// the typical price (H+L+C)/3. Outputs are NaN until lookback candles are
// available. The standard deviation is the sample deviation over the same
// window.
func VWAP(candles []models.Candle, lookback int) (middle, upper, lower []float64, err error) {
	n := len(candles)
	middle = make([]float64, n)
	upper = make([]float64, n)
	lower = make([]float64, n)

	hasVolume := false
	for i := range candles {
		if candles[i].Volume > 0 {
			hasVolume = true
			break
		}
	}
	if n > 0 && !hasVolume {
		return nil, nil, nil, ErrMissingVolume
	}

	typical := make([]float64, n)
	for i := range candles {
		typical[i] = (candles[i].High + candles[i].Low + candles[i].Close) / 3
	}

	for i := 0; i < n; i++ {
		if i < lookback-1 {
			middle[i] = math.NaN()
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}

		var sumPV, sumVol float64
		for j := i - lookback + 1; j <= i; j++ {
			sumPV += typical[j] * candles[j].Volume
			sumVol += candles[j].Volume
		}
		if sumVol == 0 {
			middle[i] = math.NaN()
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}

		mid := sumPV / sumVol
		half := 2 * rollingStdDev(typical[i-lookback+1:i+1])

		middle[i] = mid
		upper[i] = mid + half
		lower[i] = mid - half
	}

	return middle, upper, lower, nil
}

// rollingStdDev is the sample standard deviation of window.
func rollingStdDev(window []float64) float64 {
	if len(window) < 2 {
		return 0
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	var sumSquaredDiff float64
	for _, v := range window {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return math.Sqrt(sumSquaredDiff / float64(len(window)-1))
}
