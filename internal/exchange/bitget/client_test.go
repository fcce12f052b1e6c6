package bitget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaumne/tony-new-bot/internal/exchange"
)

func testClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(ClientOptions{RequestTimeout: 5 * time.Second})
	client.baseURL = server.URL
	return client, server
}

func TestInstID(t *testing.T) {
	if instID("BTC/USDT") != "BTCUSDT" {
		t.Errorf("expected BTCUSDT, got %s", instID("BTC/USDT"))
	}
}

func TestGranularity(t *testing.T) {
	tests := []struct{ in, out string }{
		{"1m", "1min"},
		{"15m", "15min"},
		{"1h", "1h"},
		{"1d", "1day"},
	}
	for _, tt := range tests {
		if got := granularity(tt.in); got != tt.out {
			t.Errorf("granularity(%s): expected %s, got %s", tt.in, tt.out, got)
		}
	}
}

func TestFetchCandles(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/spot/market/candles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Rows arrive newest first; the client must sort them.
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			["1672532100000","101","102","100","101.5","10","1000","1000"],
			["1672531200000","100","101","99","101","12","1200","1200"]
		]}`))
	})
	defer server.Close()

	candles, err := client.FetchCandles(context.Background(), "BTC/USDT", "15m", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if !candles[0].Timestamp.Before(candles[1].Timestamp) {
		t.Error("candles must be ordered oldest first")
	}
	if candles[0].Close != 101 || candles[0].Volume != 12 {
		t.Errorf("unexpected first candle %+v", candles[0])
	}
	if candles[1].High != 102 || candles[1].Low != 100 {
		t.Errorf("unexpected second candle %+v", candles[1])
	}
}

func TestFetchCandlesSkipsMalformedRows(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		// Unparseable close, unparseable timestamp, zero price, short row.
		w.Write([]byte(`{"code":"00000","msg":"success","data":[
			["1672531200000","100","101","99","101","12","1200","1200"],
			["1672532100000","101","102","100","oops","10","1000","1000"],
			["garbage","101","102","100","101.5","10","1000","1000"],
			["1672533000000","101","102","0","101.5","10","1000","1000"],
			["1672533900000","101"]
		]}`))
	})
	defer server.Close()

	candles, err := client.FetchCandles(context.Background(), "BTC/USDT", "15m", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected only the well-formed candle, got %d", len(candles))
	}
	if candles[0].Close != 101 {
		t.Errorf("unexpected surviving candle %+v", candles[0])
	}
}

func TestFetchCandlesEmpty(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","msg":"success","data":[]}`))
	})
	defer server.Close()

	_, err := client.FetchCandles(context.Background(), "BTC/USDT", "15m", 10)
	if !errors.Is(err, exchange.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestGetMarketPrice(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","msg":"success","data":[{"lastPr":"42123.5"}]}`))
	})
	defer server.Close()

	price, err := client.GetMarketPrice(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if price != 42123.5 {
		t.Errorf("expected 42123.5, got %f", price)
	}
}

func TestGetMarketPricePrefersFreshTick(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		t.Error("REST must not be hit while the websocket tick is fresh")
	})
	defer server.Close()

	client.setMark(42000, time.Now())

	price, err := client.GetMarketPrice(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if price != 42000 {
		t.Errorf("expected the cached tick, got %f", price)
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"40034","msg":"Parameter does not exist","data":null}`))
	})
	defer server.Close()

	_, err := client.GetMarketPrice(context.Background(), "BTC/USDT")
	if err == nil {
		t.Fatal("expected an API error")
	}

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %T: %v", err, err)
	}
	if apiErr.Code != "40034" {
		t.Errorf("expected code 40034, got %s", apiErr.Code)
	}
}

func TestAmountPrecision(t *testing.T) {
	client, server := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","msg":"success","data":[{"quantityPrecision":"6"}]}`))
	})
	defer server.Close()

	precision, err := client.AmountPrecision(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if precision != 6 {
		t.Errorf("expected 6, got %d", precision)
	}
}
