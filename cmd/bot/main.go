// btc15mm is an automated market maker for 15-minute BTC up/down binary
// prediction markets on a Polymarket-shaped CLOB venue.
//
// Architecture:
//
//	main.go                    — entry point: flags, config, starts the supervisor, waits for shutdown
//	supervisor/supervisor.go   — orchestrator: owns the event loop, window lifecycle, and every subsystem below
//	scheduler/scheduler.go     — discovers and rolls the active 15-minute window
//	oracle/spot.go             — external BTC spot price feed that sets each window's strike
//	pricing/gate.go            — triple-gate pricing (accountant/market/execution) and ladder construction
//	pricing/arbitrage.go       — synthetic arbitrage detection across YES/NO asks
//	book/book.go               — local best-bid/ask mirror per window
//	ledger/ledger.go           — YES/NO position and cost-basis accounting
//	tracker/tracker.go         — open-order bookkeeping for ladder diffing
//	reconciler/reconciler.go   — diffs the ideal ladder against resting orders and places/cancels the difference
//	risk/risk.go               — exposure, stop-loss, and kill-switch checks
//	exchange/client.go         — REST client for the venue's CLOB API
//	exchange/auth.go           — L1 (EIP-712) and L2 (HMAC) authentication
//	exchange/feed_market.go    — market-data WebSocket feed (book snapshots + best-bid/ask)
//	exchange/feed_user.go      — authenticated user WebSocket feed (fills)
//	store/store.go             — append-only session/trade audit log
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"btc15mm/internal/config"
	"btc15mm/internal/supervisor"
)

func main() {
	var (
		markets = pflag.Int("markets", 0, "stop after N completed windows (0 = unbounded)")
		seconds = pflag.Int("seconds", 0, "stop after S seconds of trading (0 = unbounded)")
		noSkip  = pflag.Bool("no-skip", false, "do not skip the first partial window")
	)
	pflag.Parse()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BOT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}

	if *markets > 0 {
		cfg.Window.MaxWindows = *markets
	}
	if *noSkip {
		cfg.Window.SkipFirstWindow = false
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	sup, err := supervisor.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create supervisor", "error", err)
		os.Exit(1)
	}

	if err := sup.Start(); err != nil {
		logger.Error("failed to start supervisor", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("btc15mm market maker started",
		"window_seconds", cfg.Window.LengthSeconds,
		"max_windows", cfg.Window.MaxWindows,
		"base_size", cfg.Pricing.BaseSize,
		"circuit_breaker_ticks", cfg.Risk.CircuitBreaker,
		"dry_run", cfg.DryRun,
	)

	var secondsTimer <-chan time.Time
	if *seconds > 0 {
		t := time.NewTimer(time.Duration(*seconds) * time.Second)
		defer t.Stop()
		secondsTimer = t.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-secondsTimer:
		logger.Info("seconds budget reached, stopping")
	case <-sup.SchedulerDone():
		logger.Info("markets budget reached, stopping")
	case code := <-sup.Halted():
		logger.Error("bot halted (circuit breaker or order-tracker invariant violation)", "exit_code", code)
		exitCode = code
	}

	sup.Stop()
	os.Exit(exitCode)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
