package indicator

import "math"

// MACD computes the MACD line, signal line and histogram from close prices.
// All three series are NaN until the slow EMA window has completed; the
// signal EMA is seeded with the first defined MACD value.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (line, signal, hist []float64) {
	n := len(closes)
	line = make([]float64, n)
	signal = make([]float64, n)
	hist = make([]float64, n)

	fast := EMA(closes, fastPeriod)
	slow := EMA(closes, slowPeriod)

	alpha := 2.0 / (float64(signalPeriod) + 1.0)
	warm := slowPeriod - 1

	for i := 0; i < n; i++ {
		if i < warm {
			line[i] = math.NaN()
			signal[i] = math.NaN()
			hist[i] = math.NaN()
			continue
		}
		line[i] = fast[i] - slow[i]
		if i == warm {
			signal[i] = line[i]
		} else {
			signal[i] = alpha*line[i] + (1-alpha)*signal[i-1]
		}
		hist[i] = line[i] - signal[i]
	}

	return line, signal, hist
}
