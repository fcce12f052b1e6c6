package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shaumne/tony-new-bot/internal/models"
)

func generateTestCandles(n int, build func(i int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = build(i)
	}
	return candles
}

func flatCandle(i int) models.Candle {
	return models.Candle{
		Timestamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 15 * time.Minute),
		Open:      100,
		High:      102,
		Low:       98,
		Close:     100,
		Volume:    1000,
	}
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		check  func(t *testing.T, out []float64)
	}{
		{
			name:   "empty input",
			values: nil,
			period: 9,
			check: func(t *testing.T, out []float64) {
				if len(out) != 0 {
					t.Errorf("expected empty output, got %d values", len(out))
				}
			},
		},
		{
			name:   "seeded with first value",
			values: []float64{42, 43, 44},
			period: 9,
			check: func(t *testing.T, out []float64) {
				if out[0] != 42 {
					t.Errorf("expected first output 42, got %f", out[0])
				}
			},
		},
		{
			name:   "constant series stays constant",
			values: []float64{100, 100, 100, 100, 100},
			period: 3,
			check: func(t *testing.T, out []float64) {
				for i, v := range out {
					if v != 100 {
						t.Errorf("index %d: expected 100, got %f", i, v)
					}
				}
			},
		},
		{
			name:   "period one tracks input",
			values: []float64{1, 5, 2, 9},
			period: 1,
			check: func(t *testing.T, out []float64) {
				for i, v := range out {
					if v != []float64{1, 5, 2, 9}[i] {
						t.Errorf("index %d: expected input value, got %f", i, v)
					}
				}
			},
		},
		{
			name:   "known recurrence",
			values: []float64{2, 2, 2, 8},
			period: 3,
			check: func(t *testing.T, out []float64) {
				// alpha = 0.5: 0.5*8 + 0.5*2 = 5
				if !almostEqual(out[3], 5, 1e-12) {
					t.Errorf("expected 5, got %f", out[3])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EMA(tt.values, tt.period)
			if len(out) != len(tt.values) {
				t.Fatalf("output length %d does not match input %d", len(out), len(tt.values))
			}
			tt.check(t, out)
		})
	}
}

func TestMACDWarmup(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100
	}

	line, signal, hist := MACD(closes, 3, 7, 3)

	for i := 0; i < 6; i++ {
		if !math.IsNaN(line[i]) || !math.IsNaN(signal[i]) || !math.IsNaN(hist[i]) {
			t.Errorf("index %d: expected NaN during warm-up", i)
		}
	}
	// First defined index seeds the signal with the MACD value.
	if line[6] != 0 || signal[6] != 0 || hist[6] != 0 {
		t.Errorf("index 6: expected zeroes on a constant series, got line=%f signal=%f hist=%f",
			line[6], signal[6], hist[6])
	}
	for i := 7; i < 10; i++ {
		if line[i] != 0 || hist[i] != 0 {
			t.Errorf("index %d: constant series should keep MACD at zero", i)
		}
	}
}

func TestVWAP(t *testing.T) {
	t.Run("missing volume", func(t *testing.T) {
		candles := generateTestCandles(20, func(i int) models.Candle {
			c := flatCandle(i)
			c.Volume = 0
			return c
		})

		_, _, _, err := VWAP(candles, 14)
		if !errors.Is(err, ErrMissingVolume) {
			t.Fatalf("expected ErrMissingVolume, got %v", err)
		}
	})

	t.Run("flat series collapses bands", func(t *testing.T) {
		candles := generateTestCandles(10, flatCandle)

		middle, upper, lower, err := VWAP(candles, 5)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 4; i++ {
			if !math.IsNaN(middle[i]) {
				t.Errorf("index %d: expected NaN before lookback", i)
			}
		}
		for i := 4; i < 10; i++ {
			// Typical price is (102+98+100)/3 = 100, deviation zero.
			if !almostEqual(middle[i], 100, 1e-9) {
				t.Errorf("index %d: expected middle 100, got %f", i, middle[i])
			}
			if !almostEqual(upper[i], middle[i], 1e-9) || !almostEqual(lower[i], middle[i], 1e-9) {
				t.Errorf("index %d: bands should collapse on zero deviation", i)
			}
		}
	})

	t.Run("band ordering", func(t *testing.T) {
		candles := generateTestCandles(20, func(i int) models.Candle {
			c := flatCandle(i)
			c.Close = 100 + float64(i%5)
			c.High = c.Close + 2
			c.Low = c.Close - 2
			return c
		})

		middle, upper, lower, err := VWAP(candles, 5)
		if err != nil {
			t.Fatal(err)
		}
		for i := 4; i < 20; i++ {
			if !(lower[i] < middle[i] && middle[i] < upper[i]) {
				t.Errorf("index %d: expected lower < middle < upper, got %f %f %f",
					i, lower[i], middle[i], upper[i])
			}
		}
	})
}

func TestATR(t *testing.T) {
	candles := []models.Candle{
		{High: 105, Low: 95, Close: 100},
		{High: 110, Low: 100, Close: 105},
		{High: 108, Low: 98, Close: 100},
	}

	out := ATR(candles, 2)

	if !math.IsNaN(out[0]) {
		t.Errorf("expected NaN before period, got %f", out[0])
	}
	// TR = [10, 10, 10]: first candle has no previous close.
	if !almostEqual(out[1], 10, 1e-9) {
		t.Errorf("expected 10, got %f", out[1])
	}
	if !almostEqual(out[2], 10, 1e-9) {
		t.Errorf("expected 10, got %f", out[2])
	}
}

func TestATRGap(t *testing.T) {
	candles := []models.Candle{
		{High: 101, Low: 99, Close: 100},
		// Gap down: |low - prev close| dominates the range.
		{High: 91, Low: 89, Close: 90},
	}

	out := ATR(candles, 1)
	if !almostEqual(out[1], 11, 1e-9) {
		t.Errorf("expected true range 11 from the gap, got %f", out[1])
	}
}

func TestParamsWarmup(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		expected int
	}{
		{
			name:     "macd dominates",
			params:   Params{EMAShort: 9, EMALong: 21, MACDFast: 12, MACDSlow: 26, MACDSignal: 9, VWAPLookback: 14, ATRPeriod: 14},
			expected: 38,
		},
		{
			name:     "vwap dominates",
			params:   Params{EMAShort: 3, EMALong: 7, MACDFast: 3, MACDSlow: 7, MACDSignal: 3, VWAPLookback: 50, ATRPeriod: 5},
			expected: 53,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Warmup(); got != tt.expected {
				t.Errorf("expected warmup %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestComputeFrameset(t *testing.T) {
	candles := generateTestCandles(60, flatCandle)
	params := Params{EMAShort: 9, EMALong: 21, MACDFast: 12, MACDSlow: 26, MACDSignal: 9, VWAPLookback: 14, ATRPeriod: 14}

	frames, err := Compute(candles, params)
	if err != nil {
		t.Fatal(err)
	}
	if frames.Len() != 60 {
		t.Fatalf("expected 60 frames, got %d", frames.Len())
	}

	last := frames.At(frames.Len() - 1)
	if math.IsNaN(last.EMAShort) || math.IsNaN(last.MACDLine) || math.IsNaN(last.VWAPMiddle) || math.IsNaN(last.ATR) {
		t.Errorf("expected all values defined past warm-up, got %+v", last)
	}
	if last.ATR != 4 {
		t.Errorf("expected ATR 4 on constant 98..102 range, got %f", last.ATR)
	}
}
