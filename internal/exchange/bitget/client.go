package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/shaumne/tony-new-bot/internal/platform/http"

	"github.com/shaumne/tony-new-bot/internal/exchange"
	"github.com/shaumne/tony-new-bot/internal/models"
)

const baseURL = "https://api.bitget.com"

// markMaxAge bounds how stale a websocket tick may be before market-price
// reads fall back to the REST ticker.
const markMaxAge = 10 * time.Second

// Client talks to the Bitget v2 spot API. It implements both the
// market-data and the execution capability of the engine.
type Client struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	public     *httpClient.Client
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.RWMutex
	markPx   float64
	markTime time.Time
}

// ClientOptions holds options for creating a new Bitget client.
type ClientOptions struct {
	APIKey         string
	SecretKey      string
	Passphrase     string
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewClient creates a new Bitget API client.
func NewClient(options ClientOptions) *Client {
	if options.RequestTimeout == 0 {
		options.RequestTimeout = 30 * time.Second
	}

	return &Client{
		apiKey:     options.APIKey,
		secretKey:  options.SecretKey,
		passphrase: options.Passphrase,
		baseURL:    baseURL,
		public: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
		}),
		httpClient: &http.Client{Timeout: options.RequestTimeout},
		logger:     log.With().Str("component", "bitget_client").Logger(),
	}
}

// apiError captures structured error info returned by Bitget.
type apiError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bitget API error %d (code=%s): %s", e.StatusCode, e.Code, e.Message)
}

type apiEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// instID converts the configured "BTC/USDT" form into Bitget's "BTCUSDT".
func instID(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// granularity maps the configured timeframe onto Bitget's candle granularity.
func granularity(timeframe string) string {
	switch timeframe {
	case "1m":
		return "1min"
	case "5m":
		return "5min"
	case "15m":
		return "15min"
	case "30m":
		return "30min"
	case "1h":
		return "1h"
	case "4h":
		return "4h"
	case "1d":
		return "1day"
	default:
		return timeframe
	}
}

// FetchCandles fetches spot candles ordered oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	url := fmt.Sprintf("%s/api/v2/spot/market/candles?symbol=%s&granularity=%s&limit=%d",
		c.baseURL, instID(symbol), granularity(timeframe), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.public.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("candle request failed: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	// Each row is [ts, open, high, low, close, baseVol, usdtVol, quoteVol].
	var rows [][]string
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("parsing candles: %w", err)
	}
	if len(rows) == 0 {
		return nil, exchange.ErrNoData
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, ok := parseCandleRow(row)
		if !ok {
			c.logger.Warn().Strs("row", row).Msg("skipping malformed candle row")
			continue
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	c.logger.Debug().Int("count", len(candles)).Msg("fetched candles")
	return candles, nil
}

// parseCandleRow converts one [ts, open, high, low, close, baseVol, ...]
// row. Rows with unparseable or non-positive prices are dropped rather than
// turned into zero-price candles.
func parseCandleRow(row []string) (models.Candle, bool) {
	if len(row) < 6 {
		return models.Candle{}, false
	}

	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, false
	}

	prices := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil || v <= 0 {
			return models.Candle{}, false
		}
		prices[i] = v
	}

	volume, err := strconv.ParseFloat(row[5], 64)
	if err != nil || volume < 0 {
		return models.Candle{}, false
	}

	return models.Candle{
		Timestamp: time.UnixMilli(ms).UTC(),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    volume,
	}, true
}

// GetMarketPrice returns the latest traded price, preferring a fresh
// websocket tick over a REST round trip.
func (c *Client) GetMarketPrice(ctx context.Context, symbol string) (float64, error) {
	c.mu.RLock()
	px, at := c.markPx, c.markTime
	c.mu.RUnlock()
	if px > 0 && time.Since(at) < markMaxAge {
		return px, nil
	}

	url := fmt.Sprintf("%s/api/v2/spot/market/tickers?symbol=%s", c.baseURL, instID(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.public.DoRequest(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("ticker request failed: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return 0, err
	}

	var tickers []struct {
		LastPr string `json:"lastPr"`
	}
	if err := json.Unmarshal(env.Data, &tickers); err != nil {
		return 0, fmt.Errorf("parsing ticker: %w", err)
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("ticker returned no data for %s", symbol)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPr, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ticker price: %w", err)
	}
	return price, nil
}

// setMark records a websocket tick for GetMarketPrice.
func (c *Client) setMark(price float64, at time.Time) {
	c.mu.Lock()
	c.markPx = price
	c.markTime = at
	c.mu.Unlock()
}

// AmountPrecision looks up the declared order quantity precision for a
// symbol, returning -1 when the exchange does not declare one.
func (c *Client) AmountPrecision(ctx context.Context, symbol string) (int32, error) {
	url := fmt.Sprintf("%s/api/v2/spot/public/symbols?symbol=%s", c.baseURL, instID(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return -1, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.public.DoRequest(ctx, req)
	if err != nil {
		return -1, fmt.Errorf("symbols request failed: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return -1, err
	}

	var symbols []struct {
		QuantityPrecision string `json:"quantityPrecision"`
	}
	if err := json.Unmarshal(env.Data, &symbols); err != nil {
		return -1, fmt.Errorf("parsing symbols: %w", err)
	}
	if len(symbols) == 0 || symbols[0].QuantityPrecision == "" {
		return -1, nil
	}

	precision, err := strconv.ParseInt(symbols[0].QuantityPrecision, 10, 32)
	if err != nil {
		return -1, nil
	}
	return int32(precision), nil
}

// GetBalance fetches the wallet snapshot for one currency.
func (c *Client) GetBalance(ctx context.Context, currency string) (models.Balance, error) {
	path := "/api/v2/spot/account/assets?coin=" + currency

	body, err := c.signedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return models.Balance{}, err
	}

	var assets []struct {
		Coin      string `json:"coin"`
		Available string `json:"available"`
		Frozen    string `json:"frozen"`
	}
	if err := json.Unmarshal(body, &assets); err != nil {
		return models.Balance{}, fmt.Errorf("parsing assets: %w", err)
	}

	for _, asset := range assets {
		if !strings.EqualFold(asset.Coin, currency) {
			continue
		}
		free, _ := strconv.ParseFloat(asset.Available, 64)
		used, _ := strconv.ParseFloat(asset.Frozen, 64)
		return models.Balance{Free: free, Used: used, Total: free + used}, nil
	}

	return models.Balance{}, nil
}

// PlaceOrder submits a spot order. Market buys on Bitget are quoted in the
// quote currency, so the caller's base amount is converted with the current
// mark for that case.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side models.Side, amount, price float64, orderType string) (*exchange.Order, error) {
	size := amount
	if orderType == "market" && side == models.SideLong {
		mark, err := c.GetMarketPrice(ctx, symbol)
		if err != nil {
			return nil, &exchange.ExecutionError{Op: "place_order", Err: err}
		}
		size = amount * mark
	}

	payload := map[string]string{
		"symbol":    instID(symbol),
		"side":      orderSide(side),
		"orderType": orderType,
		"force":     "gtc",
		"size":      strconv.FormatFloat(size, 'f', -1, 64),
	}
	if orderType == "limit" {
		payload["price"] = strconv.FormatFloat(price, 'f', -1, 64)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &exchange.ExecutionError{Op: "place_order", Err: err}
	}

	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v2/spot/trade/place-order", raw)
	if err != nil {
		return nil, &exchange.ExecutionError{Op: "place_order", Err: err}
	}

	var placed struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(body, &placed); err != nil {
		return nil, &exchange.ExecutionError{Op: "place_order", Err: fmt.Errorf("parsing order response: %w", err)}
	}

	c.logger.Info().Str("order_id", placed.OrderID).Str("side", string(side)).
		Float64("amount", amount).Msg("order placed")

	return &exchange.Order{
		ID:        placed.OrderID,
		Symbol:    symbol,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Type:      orderType,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ClosePosition closes a spot position with an opposite market order.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side models.Side, amount float64) error {
	_, err := c.PlaceOrder(ctx, symbol, side.Opposite(), amount, 0, "market")
	if err != nil {
		return &exchange.ExecutionError{Op: "close_position", Err: err}
	}
	return nil
}

func orderSide(side models.Side) string {
	if side == models.SideLong {
		return "buy"
	}
	return "sell"
}

// signedRequest performs an authenticated request. Signed calls are never
// retried: order placement is not idempotent.
func (c *Client) signedRequest(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("ACCESS-KEY", c.apiKey)
	req.Header.Set("ACCESS-SIGN", signature)
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func decodeEnvelope(resp *http.Response) (*apiEnvelope, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != "00000" {
		return nil, &apiError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Msg}
	}
	return &env, nil
}
