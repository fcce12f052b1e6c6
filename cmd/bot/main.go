package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shaumne/tony-new-bot/internal/config"
	"github.com/shaumne/tony-new-bot/internal/engine"
	"github.com/shaumne/tony-new-bot/internal/exchange"
	"github.com/shaumne/tony-new-bot/internal/exchange/bitget"
	"github.com/shaumne/tony-new-bot/internal/metrics"
	"github.com/shaumne/tony-new-bot/internal/notify"
)

func main() {
	root := &cobra.Command{
		Use:   "bot",
		Short: "EMA-MACD-VWAP trading bot for Bitget spot markets",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		},
		SilenceUsage: true,
	}

	root.AddCommand(runCmd(), backtestCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg.LogSummary()
	return cfg, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the live trading loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := bitget.NewClient(bitget.ClientOptions{
				APIKey:     cfg.BitgetAPIKey,
				SecretKey:  cfg.BitgetSecretKey,
				Passphrase: cfg.BitgetPassphrase,
			})
			go client.StreamTicker(ctx, cfg.Symbol)

			var exch exchange.Exchange
			if cfg.TradingMode == "live" {
				exch = client
				log.Warn().Msg("LIVE trading mode, orders will reach the exchange")
			} else {
				exch = exchange.NewPaper(client, cfg.InitialCapital)
				log.Info().Msg("paper trading mode, fills are simulated")
			}

			var notifier notify.Notifier = notify.Noop{}
			if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
				tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
				if err != nil {
					log.Warn().Err(err).Msg("telegram setup failed, notifications disabled")
				} else {
					notifier = tg
				}
			}

			var recorder *metrics.Recorder
			if cfg.MetricsAddr != "" {
				recorder = metrics.New()
				go metrics.Serve(ctx, cfg.MetricsAddr)
			}

			eng := engine.New(engine.Options{
				Config:   cfg,
				Market:   client,
				Exchange: exch,
				Notifier: notifier,
				Recorder: recorder,
			})
			return eng.Run(ctx)
		},
	}
}

func backtestCmd() *cobra.Command {
	var startDate, endDate string

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the strategy over a historical window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if startDate == "" {
				startDate = cfg.BacktestStartDate
			}
			if endDate == "" {
				endDate = cfg.BacktestEndDate
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := bitget.NewClient(bitget.ClientOptions{})
			report, err := engine.NewBacktester(cfg, client).Run(ctx, startDate, endDate)
			if err != nil {
				return err
			}

			fmt.Print(engine.FormatReport(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "window end date (YYYY-MM-DD)")
	return cmd
}
