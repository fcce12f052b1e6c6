package indicator

import (
	"github.com/shaumne/tony-new-bot/internal/models"
)

// warmupGuard pads the warm-up window so crossover detection never reads a
// frame whose recurrence has only just become defined.
const warmupGuard = 3

// Params are the period settings for one engine instance.
type Params struct {
	EMAShort     int
	EMALong      int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	VWAPLookback int
	ATRPeriod    int
}

// Warmup is the number of leading candles whose frames may still contain
// undefined values.
func (p Params) Warmup() int {
	warm := p.EMALong
	if p.MACDSlow+p.MACDSignal > warm {
		warm = p.MACDSlow + p.MACDSignal
	}
	if p.ATRPeriod > warm {
		warm = p.ATRPeriod
	}
	if p.VWAPLookback > warm {
		warm = p.VWAPLookback
	}
	return warm + warmupGuard
}

// Frameset holds the per-candle indicator series for a candle window.
// All series share the window's indexing; undefined values are NaN.
type Frameset struct {
	EMAShort   []float64
	EMALong    []float64
	MACDLine   []float64
	MACDSignal []float64
	MACDHist   []float64
	VWAPMiddle []float64
	VWAPUpper  []float64
	VWAPLower  []float64
	ATR        []float64
}

// Compute derives the full indicator frameset for a candle window.
func Compute(candles []models.Candle, p Params) (*Frameset, error) {
	closes := make([]float64, len(candles))
	for i := range candles {
		closes[i] = candles[i].Close
	}

	line, signal, hist := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)

	middle, upper, lower, err := VWAP(candles, p.VWAPLookback)
	if err != nil {
		return nil, err
	}

	return &Frameset{
		EMAShort:   EMA(closes, p.EMAShort),
		EMALong:    EMA(closes, p.EMALong),
		MACDLine:   line,
		MACDSignal: signal,
		MACDHist:   hist,
		VWAPMiddle: middle,
		VWAPUpper:  upper,
		VWAPLower:  lower,
		ATR:        ATR(candles, p.ATRPeriod),
	}, nil
}

// Len returns the number of frames in the set.
func (f *Frameset) Len() int { return len(f.EMAShort) }

// At returns the frame for index i.
func (f *Frameset) At(i int) models.IndicatorFrame {
	return models.IndicatorFrame{
		EMAShort:   f.EMAShort[i],
		EMALong:    f.EMALong[i],
		MACDLine:   f.MACDLine[i],
		MACDSignal: f.MACDSignal[i],
		MACDHist:   f.MACDHist[i],
		VWAPMiddle: f.VWAPMiddle[i],
		VWAPUpper:  f.VWAPUpper[i],
		VWAPLower:  f.VWAPLower[i],
		ATR:        f.ATR[i],
	}
}
