// Package risk enforces the window-level hard stops the Trading Supervisor
// checks after every fill: circuit breaker on total cost, profit lock
// on guaranteed paired P&L, and a supplemental stop-loss on unhedged
// cost. A tripped guard disables new placements for the remainder of
// the current window; ingestion keeps running so the ledger stays accurate.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/internal/ledger"
	"btc15mm/pkg/types"
)

// Kill reason kinds. CircuitBreaker is the only one that halts the whole
// process (spec exit code 2); the others only disable the current window.
const (
	KindCircuitBreaker = "circuit_breaker"
	KindProfitLock     = "profit_lock"
	KindStopLoss       = "stop_loss"
)

// KillSignal tells the supervisor to cancel all resting orders and disable
// new placements for the current window.
type KillSignal struct {
	MarketID string
	Reason   string
	Kind     string
}

// Guard evaluates a single window's ledger snapshot against the configured
// limits. One Guard instance is scoped to the currently active window; the
// supervisor replaces it wholesale on window roll.
type Guard struct {
	cfg    config.RiskConfig
	logger *slog.Logger

	mu       sync.Mutex
	tripped  bool
	reason   string
	killCh   chan KillSignal
	marketID string
}

// NewGuard creates a risk guard for the given market, not yet tripped.
func NewGuard(marketID string, cfg config.RiskConfig, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:      cfg,
		logger:   logger.With("component", "risk"),
		killCh:   make(chan KillSignal, 1),
		marketID: marketID,
	}
}

// KillCh returns the channel the supervisor reads kill signals from.
func (g *Guard) KillCh() <-chan KillSignal { return g.killCh }

// Tripped reports whether placements are currently disabled for this window.
func (g *Guard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

// Check evaluates the ledger snapshot against the circuit breaker, profit
// lock, and (if enabled) stop-loss thresholds. It is idempotent: once
// tripped, a Guard stays tripped until the window rolls and a fresh Guard
// replaces it.
func (g *Guard) Check(led ledger.Snapshot) {
	g.mu.Lock()
	if g.tripped {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	totalCost := led.Cy + led.Cn
	if float64(totalCost) > g.cfg.CircuitBreaker {
		g.trip(KindCircuitBreaker, fmt.Sprintf("circuit breaker: total cost %d exceeds %.0f", totalCost, g.cfg.CircuitBreaker))
		return
	}

	minPnL := led.MinPnLUSD()
	if led.HasBothSides() && minPnL.GreaterThanOrEqual(decimal.NewFromFloat(g.cfg.ProfitLockMin)) {
		g.trip(KindProfitLock, fmt.Sprintf("profit lock: guaranteed min pnl %s >= %.2f", minPnL.String(), g.cfg.ProfitLockMin))
		return
	}

	if g.cfg.StopLossEnabled {
		if unhedged := unhedgedCostTicks(led); unhedged > types.Ticks(g.cfg.StopLossTicks) {
			g.trip(KindStopLoss, fmt.Sprintf("stop loss: unhedged cost reached %d ticks", unhedged))
			return
		}
	}
}

func (g *Guard) trip(kind, reason string) {
	g.mu.Lock()
	if g.tripped {
		g.mu.Unlock()
		return
	}
	g.tripped = true
	g.reason = reason
	g.mu.Unlock()

	g.logger.Error("risk guard tripped", "market", g.marketID, "kind", kind, "reason", reason)

	select {
	case g.killCh <- KillSignal{MarketID: g.marketID, Reason: reason, Kind: kind}:
	default:
	}
}

// unhedgedCostTicks is the cost, in ticks, of the position's naked side:
// everything we've spent that isn't part of the matched Qy/Qn pair. The
// matched pair is already a guaranteed win covered by the profit lock; the
// naked remainder is the only part still exposed to the window's outcome,
// so this is what the supplemental stop-loss measures.
func unhedgedCostTicks(led ledger.Snapshot) types.Ticks {
	_, pairCostTicks := led.PairCost()
	totalCostTicks := decimal.NewFromInt(led.Cy + led.Cn)
	unhedged := totalCostTicks.Sub(pairCostTicks)
	if unhedged.IsNegative() {
		return 0
	}
	return types.Ticks(unhedged.Round(0).IntPart())
}

// RunPeriodicSync invokes sync on every tick until ctx is cancelled, used by
// the Trading Supervisor to periodically reconcile the ledger against the
// venue's authoritative position/fill history independent of the WS feed.
func RunPeriodicSync(ctx context.Context, interval time.Duration, sync func(context.Context) error, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sync(ctx); err != nil {
				logger.Warn("periodic ledger sync failed", "error", err)
			}
		}
	}
}
