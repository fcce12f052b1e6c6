package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Recorder exposes engine counters and gauges via Prometheus.
type Recorder struct {
	ticksTotal      *prometheus.CounterVec
	tickErrors      *prometheus.CounterVec
	signalsTotal    *prometheus.CounterVec
	positionsOpened *prometheus.CounterVec
	positionsClosed *prometheus.CounterVec
	openPositions   *prometheus.GaugeVec
	lastPrice       *prometheus.GaugeVec
	equity          prometheus.Gauge
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_ticks_total",
				Help: "Total number of evaluation ticks",
			},
			[]string{"symbol"},
		),
		tickErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_tick_errors_total",
				Help: "Total number of ticks skipped due to recoverable errors",
			},
			[]string{"type"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_signals_total",
				Help: "Total number of entry signals emitted",
			},
			[]string{"side"},
		),
		positionsOpened: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_positions_opened_total",
				Help: "Total number of positions opened",
			},
			[]string{"side"},
		),
		positionsClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_positions_closed_total",
				Help: "Total number of positions closed",
			},
			[]string{"reason"},
		),
		openPositions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bot_open_positions",
				Help: "Number of currently open positions",
			},
			[]string{"symbol"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bot_last_price",
				Help: "Last observed market price for a symbol",
			},
			[]string{"symbol"},
		),
		equity: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_equity_quote",
				Help: "Current account equity in the quote currency",
			},
		),
	}
}

// RecordTick records one evaluation tick.
func (r *Recorder) RecordTick(symbol string) {
	r.ticksTotal.WithLabelValues(symbol).Inc()
}

// RecordTickError records a skipped tick by error kind.
func (r *Recorder) RecordTickError(kind string) {
	r.tickErrors.WithLabelValues(kind).Inc()
}

// RecordSignal records an emitted entry signal.
func (r *Recorder) RecordSignal(side string) {
	r.signalsTotal.WithLabelValues(side).Inc()
}

// RecordPositionOpened records a new position.
func (r *Recorder) RecordPositionOpened(side string) {
	r.positionsOpened.WithLabelValues(side).Inc()
}

// RecordPositionClosed records a closed position by exit reason.
func (r *Recorder) RecordPositionClosed(reason string) {
	r.positionsClosed.WithLabelValues(reason).Inc()
}

// SetOpenPositions records the current open-position count.
func (r *Recorder) SetOpenPositions(symbol string, n int) {
	r.openPositions.WithLabelValues(symbol).Set(float64(n))
}

// SetLastPrice records the last observed market price.
func (r *Recorder) SetLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// SetEquity records the current account equity.
func (r *Recorder) SetEquity(value float64) {
	r.equity.Set(value)
}

// Serve exposes /metrics on addr until the context is cancelled.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
