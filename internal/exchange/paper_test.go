package exchange

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shaumne/tony-new-bot/internal/models"
)

type fixedPrice struct {
	price float64
}

func (f *fixedPrice) GetMarketPrice(context.Context, string) (float64, error) {
	return f.price, nil
}

func TestPaperLongRoundTrip(t *testing.T) {
	ctx := context.Background()
	prices := &fixedPrice{price: 100}
	paper := NewPaper(prices, 1000)

	order, err := paper.PlaceOrder(ctx, "BTC/USDT", models.SideLong, 2, 0, "market")
	if err != nil {
		t.Fatal(err)
	}
	if order.Price != 100 {
		t.Errorf("expected fill at 100, got %f", order.Price)
	}

	balance, _ := paper.GetBalance(ctx, "USDT")
	if balance.Free != 800 || balance.Used != 200 {
		t.Fatalf("expected 800 free / 200 used, got %+v", balance)
	}

	prices.price = 110
	if err := paper.ClosePosition(ctx, "BTC/USDT", models.SideLong, 2); err != nil {
		t.Fatal(err)
	}

	balance, _ = paper.GetBalance(ctx, "USDT")
	if math.Abs(balance.Free-1020) > 1e-9 || balance.Used != 0 {
		t.Errorf("expected 1020 free after a +10%% close, got %+v", balance)
	}
}

func TestPaperShortRoundTrip(t *testing.T) {
	ctx := context.Background()
	prices := &fixedPrice{price: 100}
	paper := NewPaper(prices, 1000)

	if _, err := paper.PlaceOrder(ctx, "BTC/USDT", models.SideShort, 1, 0, "market"); err != nil {
		t.Fatal(err)
	}

	// Shorts gain when the mark drops.
	prices.price = 90
	if err := paper.ClosePosition(ctx, "BTC/USDT", models.SideShort, 1); err != nil {
		t.Fatal(err)
	}

	balance, _ := paper.GetBalance(ctx, "USDT")
	if math.Abs(balance.Total-1010) > 1e-9 {
		t.Errorf("expected total 1010, got %+v", balance)
	}
}

func TestPaperInsufficientBalance(t *testing.T) {
	paper := NewPaper(&fixedPrice{price: 100}, 50)

	_, err := paper.PlaceOrder(context.Background(), "BTC/USDT", models.SideLong, 1, 0, "market")
	if err == nil {
		t.Fatal("expected an execution error")
	}

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T", err)
	}
	if execErr.Op != "place_order" {
		t.Errorf("expected op place_order, got %s", execErr.Op)
	}
}

func TestPaperRejectsNonPositiveAmount(t *testing.T) {
	paper := NewPaper(&fixedPrice{price: 100}, 1000)

	if _, err := paper.PlaceOrder(context.Background(), "BTC/USDT", models.SideLong, 0, 0, "market"); err == nil {
		t.Error("expected an error for a zero amount")
	}
}

func TestPaperPartialClose(t *testing.T) {
	ctx := context.Background()
	prices := &fixedPrice{price: 100}
	paper := NewPaper(prices, 1000)

	if _, err := paper.PlaceOrder(ctx, "BTC/USDT", models.SideLong, 4, 0, "market"); err != nil {
		t.Fatal(err)
	}
	if err := paper.ClosePosition(ctx, "BTC/USDT", models.SideLong, 1); err != nil {
		t.Fatal(err)
	}

	balance, _ := paper.GetBalance(ctx, "USDT")
	if math.Abs(balance.Used-300) > 1e-9 {
		t.Errorf("expected 300 still reserved, got %+v", balance)
	}
	if math.Abs(balance.Free-700) > 1e-9 {
		t.Errorf("expected 700 free, got %+v", balance)
	}
}
