package risk

import (
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func baseCfg() config.RiskConfig {
	return config.RiskConfig{
		CircuitBreaker:  100000,
		ProfitLockMin:   10,
		StopLossEnabled: true,
		StopLossTicks:   5000,
	}
}

func TestCircuitBreakerTrips(t *testing.T) {
	t.Parallel()
	g := NewGuard("m1", baseCfg(), testLogger())

	g.Check(ledger.Snapshot{Cy: 60000, Cn: 50000})

	if !g.Tripped() {
		t.Fatal("expected circuit breaker to trip")
	}
	select {
	case sig := <-g.KillCh():
		if sig.MarketID != "m1" {
			t.Errorf("MarketID = %q", sig.MarketID)
		}
	default:
		t.Fatal("expected a kill signal")
	}
}

func TestProfitLockTrips(t *testing.T) {
	t.Parallel()
	cfg := baseCfg()
	cfg.CircuitBreaker = 1000000 // total cost 419000 must not trip the circuit breaker first
	g := NewGuard("m1", cfg, testLogger())

	// Starting from Qy=Qn=30, Cy=Cn=13500 (min_pnl=$3), adding 400 more
	// shares per side at 490 ticks brings min_pnl to exactly $11.
	led := ledger.Snapshot{
		Qy: decimal.NewFromInt(430), Qn: decimal.NewFromInt(430),
		Cy: 13500 + 490*400, Cn: 13500 + 490*400,
	}
	g.Check(led)

	if !g.Tripped() {
		t.Fatal("expected profit lock to trip per the worked example (min_pnl=$11 >= $10)")
	}
	if sig := <-g.KillCh(); sig.Kind != KindProfitLock {
		t.Fatalf("kill kind = %q, want %q", sig.Kind, KindProfitLock)
	}
}

func TestNoTripWithinLimits(t *testing.T) {
	t.Parallel()
	g := NewGuard("m1", baseCfg(), testLogger())

	led := ledger.Snapshot{
		Qy: decimal.NewFromInt(30), Qn: decimal.NewFromInt(30),
		Cy: 13500, Cn: 13500,
	}
	g.Check(led)

	if g.Tripped() {
		t.Fatal("should still be trading per the worked example before the second pair")
	}
}

func TestStopLossTripsOnNakedExposure(t *testing.T) {
	t.Parallel()
	cfg := baseCfg()
	cfg.StopLossTicks = 1000
	g := NewGuard("m1", cfg, testLogger())

	// All on the YES side, nothing paired: fully naked exposure.
	led := ledger.Snapshot{Qy: decimal.NewFromInt(10), Qn: decimal.Zero, Cy: 5000, Cn: 0}
	g.Check(led)

	if !g.Tripped() {
		t.Fatal("expected stop loss to trip on fully unhedged cost")
	}
}

func TestStopLossDisabledNeverTrips(t *testing.T) {
	t.Parallel()
	cfg := baseCfg()
	cfg.StopLossEnabled = false
	cfg.StopLossTicks = 1
	g := NewGuard("m1", cfg, testLogger())

	led := ledger.Snapshot{Qy: decimal.NewFromInt(10), Qn: decimal.Zero, Cy: 5000, Cn: 0}
	g.Check(led)

	if g.Tripped() {
		t.Fatal("stop loss disabled, should not trip")
	}
}

func TestTrippedGuardStaysIdempotent(t *testing.T) {
	t.Parallel()
	g := NewGuard("m1", baseCfg(), testLogger())
	g.Check(ledger.Snapshot{Cy: 60000, Cn: 50000})
	<-g.KillCh()

	// second breach shouldn't emit a second kill signal
	g.Check(ledger.Snapshot{Cy: 60000, Cn: 60000})
	select {
	case sig := <-g.KillCh():
		t.Fatalf("expected no second kill signal, got %+v", sig)
	default:
	}
}
