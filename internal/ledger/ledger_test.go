package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/shaumne/tony-new-bot/internal/models"
)

func longPosition(id string) *models.Position {
	return &models.Position{
		ID:          id,
		Side:        models.SideLong,
		EntryPrice:  100,
		Quantity:    1,
		StopLoss:    96,
		TakeProfit1: 106,
		TakeProfit2: 110,
		OpenedAt:    time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func shortPosition(id string) *models.Position {
	return &models.Position{
		ID:          id,
		Side:        models.SideShort,
		EntryPrice:  100,
		Quantity:    1,
		StopLoss:    104,
		TakeProfit1: 94,
		TakeProfit2: 90,
		OpenedAt:    time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func noExit(models.Side) bool { return false }

func TestSweepPriority(t *testing.T) {
	alwaysExit := func(models.Side) bool { return true }

	tests := []struct {
		name           string
		pos            *models.Position
		price          float64
		high           float64
		low            float64
		exit           func(models.Side) bool
		expectedReason models.ExitReason
		expectedPrice  float64
	}{
		{
			// A candle wide enough to touch everything resolves to the stop.
			name:           "stop loss beats take profits",
			pos:            longPosition("a"),
			price:          100,
			high:           111,
			low:            95,
			exit:           alwaysExit,
			expectedReason: models.ExitStopLoss,
			expectedPrice:  96,
		},
		{
			name:           "tp2 beats tp1",
			pos:            longPosition("b"),
			price:          110,
			high:           110,
			low:            107,
			exit:           noExit,
			expectedReason: models.ExitTakeProfit2,
			expectedPrice:  110,
		},
		{
			name:           "signal exit at market price",
			pos:            longPosition("c"),
			price:          100,
			high:           101,
			low:            99,
			exit:           alwaysExit,
			expectedReason: models.ExitSignal,
			expectedPrice:  100,
		},
		{
			name:           "short stop on the high",
			pos:            shortPosition("d"),
			price:          103,
			high:           104,
			low:            102,
			exit:           noExit,
			expectedReason: models.ExitStopLoss,
			expectedPrice:  104,
		},
		{
			name:           "short tp2 on the low",
			pos:            shortPosition("e"),
			price:          91,
			high:           92,
			low:            90,
			exit:           noExit,
			expectedReason: models.ExitTakeProfit2,
			expectedPrice:  90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			l.Open(tt.pos)

			closes, tp1 := l.Sweep(tt.price, tt.high, tt.low, tt.exit)
			if len(tp1) != 0 {
				t.Errorf("expected no tp1 hits, got %d", len(tp1))
			}
			if len(closes) != 1 {
				t.Fatalf("expected one close intent, got %d", len(closes))
			}
			if closes[0].Reason != tt.expectedReason {
				t.Errorf("expected reason %s, got %s", tt.expectedReason, closes[0].Reason)
			}
			if closes[0].Price != tt.expectedPrice {
				t.Errorf("expected price %f, got %f", tt.expectedPrice, closes[0].Price)
			}
		})
	}
}

func TestSweepTP1FiresOnce(t *testing.T) {
	l := New()
	l.Open(longPosition("a"))

	closes, tp1 := l.Sweep(106, 106, 105, noExit)
	if len(closes) != 0 {
		t.Fatalf("tp1 must not close the position, got %d intents", len(closes))
	}
	if len(tp1) != 1 || !tp1[0].TP1Hit {
		t.Fatal("expected the position flagged once")
	}
	if l.OpenCount() != 1 {
		t.Fatal("position must stay open after tp1")
	}

	// Same breach on the next tick stays silent.
	closes, tp1 = l.Sweep(106, 106, 105, noExit)
	if len(closes) != 0 || len(tp1) != 0 {
		t.Errorf("expected a quiet sweep, got %d closes %d tp1", len(closes), len(tp1))
	}
}

func TestSweepDoesNotMutate(t *testing.T) {
	l := New()
	l.Open(longPosition("a"))

	closes, _ := l.Sweep(95, 95, 95, noExit)
	if len(closes) != 1 {
		t.Fatal("expected a stop-loss intent")
	}
	if l.OpenCount() != 1 {
		t.Error("sweep must not remove positions, only Close may")
	}
	if len(l.Trades()) != 0 {
		t.Error("sweep must not record trades")
	}
}

func TestCloseIdempotence(t *testing.T) {
	l := New()
	l.Open(longPosition("a"))
	at := time.Date(2023, 6, 1, 1, 0, 0, 0, time.UTC)

	trade, ok := l.Close("a", 110, models.ExitTakeProfit2, at)
	if !ok {
		t.Fatal("expected first close to succeed")
	}
	if math.Abs(trade.ProfitPct-10) > 1e-9 {
		t.Errorf("expected +10%%, got %f", trade.ProfitPct)
	}

	if _, ok := l.Close("a", 110, models.ExitTakeProfit2, at); ok {
		t.Error("closing a removed id must be a no-op")
	}
	if len(l.Trades()) != 1 {
		t.Errorf("expected one trade, got %d", len(l.Trades()))
	}
}

func TestCloseShortProfit(t *testing.T) {
	l := New()
	l.Open(shortPosition("s"))

	trade, ok := l.Close("s", 90, models.ExitTakeProfit2, time.Now())
	if !ok {
		t.Fatal("expected close to succeed")
	}
	// entry/exit - 1 = 100/90 - 1
	expected := (100.0/90.0 - 1) * 100
	if math.Abs(trade.ProfitPct-expected) > 1e-9 {
		t.Errorf("expected %f, got %f", expected, trade.ProfitPct)
	}
}

func TestForceCloseAll(t *testing.T) {
	l := New()
	l.Open(longPosition("a"))
	l.Open(shortPosition("b"))
	at := time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC)

	closed := l.ForceCloseAll(105, at)
	if len(closed) != 2 {
		t.Fatalf("expected two closed trades, got %d", len(closed))
	}
	for _, trade := range closed {
		if trade.ExitReason != models.ExitEndOfPeriod {
			t.Errorf("expected end_of_period, got %s", trade.ExitReason)
		}
		if trade.ExitPrice != 105 {
			t.Errorf("expected exit at 105, got %f", trade.ExitPrice)
		}
	}
	if l.OpenCount() != 0 {
		t.Errorf("expected empty ledger, got %d positions", l.OpenCount())
	}
}

func TestSweepMultiplePositions(t *testing.T) {
	l := New()
	l.Open(longPosition("a"))
	l.Open(shortPosition("b"))

	// Low touches the long's stop, same tick leaves the short alone.
	closes, _ := l.Sweep(97, 98, 96, noExit)
	if len(closes) != 1 {
		t.Fatalf("expected one intent, got %d", len(closes))
	}
	if closes[0].Position.ID != "a" {
		t.Errorf("expected position a, got %s", closes[0].Position.ID)
	}
}
