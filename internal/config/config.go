package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	// Exchange credentials, required for live trading only.
	BitgetAPIKey     string `validate:"required_if=TradingMode live"`
	BitgetSecretKey  string `validate:"required_if=TradingMode live"`
	BitgetPassphrase string `validate:"required_if=TradingMode live"`

	// Trading parameters.
	Symbol         string  `validate:"required,contains=/"`
	Timeframe      string  `validate:"required"`
	TradingMode    string  `validate:"oneof=paper live"`
	RiskPercentage float64 `validate:"gt=0,lte=100"`
	MaxOpenOrders  int     `validate:"gte=1"`
	MaxDailyTrades int     `validate:"gte=1"`

	// Strategy parameters.
	EMAShort          int     `validate:"gt=0"`
	EMALong           int     `validate:"gt=0,gtfield=EMAShort"`
	MACDFast          int     `validate:"gt=0"`
	MACDSlow          int     `validate:"gt=0,gtfield=MACDFast"`
	MACDSignal        int     `validate:"gt=0"`
	VWAPLookback      int     `validate:"gt=1"`
	VWAPBandThreshold float64 `validate:"gt=0,lt=1"`
	ATRPeriod         int     `validate:"gt=0"`
	StopLossATRMult   float64 `validate:"gt=0"`
	TP1ATRMult        float64 `validate:"gt=0"`
	TP2ATRMult        float64 `validate:"gt=0,gtfield=TP1ATRMult"`

	// Driver parameters.
	CandleLimit    int           `validate:"gte=50"`
	PollInterval   time.Duration `validate:"gt=0"`
	InitialCapital float64       `validate:"gt=0"`

	// Backtest window defaults, overridable on the command line.
	BacktestStartDate string `validate:"omitempty,datetime=2006-01-02"`
	BacktestEndDate   string `validate:"omitempty,datetime=2006-01-02"`

	// Notifications.
	TelegramToken  string
	TelegramChatID int64

	// Observability.
	MetricsAddr string
	LogLevel    string
}

// Load initializes configuration from environment variables, reading a .env
// file first when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		BitgetAPIKey:     os.Getenv("BITGET_API_KEY"),
		BitgetSecretKey:  os.Getenv("BITGET_SECRET_KEY"),
		BitgetPassphrase: os.Getenv("BITGET_PASSPHRASE"),

		Symbol:         getEnvWithDefault("SYMBOL", "BTC/USDT"),
		Timeframe:      getEnvWithDefault("TIMEFRAME", "15m"),
		TradingMode:    getEnvWithDefault("TRADING_MODE", "paper"),
		RiskPercentage: getEnvFloatWithDefault("RISK_PERCENTAGE", 50),
		MaxOpenOrders:  getEnvIntWithDefault("MAX_OPEN_ORDERS", 2),
		MaxDailyTrades: getEnvIntWithDefault("MAX_DAILY_TRADES", 6),

		EMAShort:          getEnvIntWithDefault("EMA_SHORT", 9),
		EMALong:           getEnvIntWithDefault("EMA_LONG", 21),
		MACDFast:          getEnvIntWithDefault("MACD_FAST", 12),
		MACDSlow:          getEnvIntWithDefault("MACD_SLOW", 26),
		MACDSignal:        getEnvIntWithDefault("MACD_SIGNAL", 9),
		VWAPLookback:      getEnvIntWithDefault("VWAP_LOOKBACK", 14),
		VWAPBandThreshold: getEnvFloatWithDefault("VWAP_BAND_THRESHOLD", 0.0015),
		ATRPeriod:         getEnvIntWithDefault("ATR_PERIOD", 14),
		StopLossATRMult:   getEnvFloatWithDefault("STOP_LOSS_ATR_MULTIPLIER", 2),
		TP1ATRMult:        getEnvFloatWithDefault("TAKE_PROFIT1_ATR_MULTIPLIER", 3),
		TP2ATRMult:        getEnvFloatWithDefault("TAKE_PROFIT2_ATR_MULTIPLIER", 5),

		CandleLimit:    getEnvIntWithDefault("CANDLE_LIMIT", 100),
		PollInterval:   time.Duration(getEnvIntWithDefault("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		InitialCapital: getEnvFloatWithDefault("INITIAL_CAPITAL", 1000),

		BacktestStartDate: getEnvWithDefault("BACKTEST_START_DATE", "2023-01-01"),
		BacktestEndDate:   getEnvWithDefault("BACKTEST_END_DATE", "2023-02-01"),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags. A failure here
// is fatal: the engine refuses to start on an invalid configuration.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BaseCurrency returns the left side of the symbol pair.
func (c *Config) BaseCurrency() string {
	base, _, _ := strings.Cut(c.Symbol, "/")
	return base
}

// QuoteCurrency returns the right side of the symbol pair.
func (c *Config) QuoteCurrency() string {
	_, quote, _ := strings.Cut(c.Symbol, "/")
	return quote
}

// LogSummary writes the effective configuration with secrets masked.
func (c *Config) LogSummary() {
	log.Info().
		Str("symbol", c.Symbol).
		Str("timeframe", c.Timeframe).
		Str("mode", c.TradingMode).
		Int("ema_short", c.EMAShort).
		Int("ema_long", c.EMALong).
		Int("macd_fast", c.MACDFast).
		Int("macd_slow", c.MACDSlow).
		Int("macd_signal", c.MACDSignal).
		Int("vwap_lookback", c.VWAPLookback).
		Float64("vwap_band_threshold", c.VWAPBandThreshold).
		Int("atr_period", c.ATRPeriod).
		Float64("sl_mult", c.StopLossATRMult).
		Float64("tp1_mult", c.TP1ATRMult).
		Float64("tp2_mult", c.TP2ATRMult).
		Float64("risk_pct", c.RiskPercentage).
		Int("max_open_orders", c.MaxOpenOrders).
		Int("max_daily_trades", c.MaxDailyTrades).
		Str("api_key", mask(c.BitgetAPIKey)).
		Msg("configuration loaded")
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// Helper functions for environment variable handling.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
