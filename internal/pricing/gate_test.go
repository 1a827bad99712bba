package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"btc15mm/internal/book"
	"btc15mm/internal/config"
	"btc15mm/internal/ledger"
	"btc15mm/pkg/types"
)

// exampleConfig mirrors the design notes' worked-example tunables:
// TICK=10, MIN_PRICE=100, BASE_SIZE=10, BASE_MARGIN=15, GAMMA=0.001,
// MAX_SKEW=100, SLIPPAGE_TOL=20, LADDER_DEPTH=5, HYSTERESIS=0.5,
// MAX_POSITION=75, PROFIT_LOCK_MIN=$10.
func exampleConfig() config.PricingConfig {
	return config.PricingConfig{
		BaseMargin:  15,
		Gamma:       0.001,
		MaxSkew:     100,
		SlippageTol: 20,
		MinPrice:    100,
		BaseSize:    10,
		MaxPosition: 75,
	}
}

func tp(v int64) *types.Ticks {
	t := types.Ticks(v)
	return &t
}

func TestTargetSizeNeutral(t *testing.T) {
	g := New(exampleConfig())
	size := g.targetSize(decimal.Zero)
	if !size.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("neutral net should give scalar=1, target=10, got %s", size)
	}
}

func TestTargetSizeFullyLight(t *testing.T) {
	g := New(exampleConfig())
	size := g.targetSize(decimal.NewFromInt(-75)) // net(side) = -MAX_POSITION
	if !size.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("net=-MAX_POSITION should give scalar=2, target=20, got %s", size)
	}
}

func TestTargetSizeHardStop(t *testing.T) {
	g := New(exampleConfig())
	size := g.targetSize(decimal.NewFromInt(75)) // net(side) == MAX_POSITION
	if !size.IsZero() {
		t.Fatalf("net >= MAX_POSITION must hard-stop to 0, got %s", size)
	}
	size = g.targetSize(decimal.NewFromInt(100))
	if !size.IsZero() {
		t.Fatalf("net > MAX_POSITION must also hard-stop to 0, got %s", size)
	}
}

func TestLadderRungsDescendByTickAndRespectMinPrice(t *testing.T) {
	rungs := buildLadder(110, decimal.NewFromInt(10), 5, 100)
	if len(rungs) != 2 {
		t.Fatalf("expected 2 rungs before dropping below MIN_PRICE=100, got %d: %+v", len(rungs), rungs)
	}
	if rungs[0].Price != 110 || rungs[1].Price != 100 {
		t.Fatalf("unexpected rung prices: %+v", rungs)
	}
}

func TestLadderEmptyWhenTargetZero(t *testing.T) {
	rungs := buildLadder(500, decimal.Zero, 5, 100)
	if rungs != nil {
		t.Fatalf("zero target must produce an empty ladder, got %+v", rungs)
	}
}

func TestEvaluateClampsToValidRange(t *testing.T) {
	g := New(exampleConfig())
	bk := book.Snapshot{
		BestAskYes: tp(995), BestBidYes: tp(985),
		BestAskNo: tp(995), BestBidNo: tp(985),
		SyncedYes: true, SyncedNo: true,
	}
	led := ledger.Snapshot{}

	gates := g.Evaluate(types.Yes, bk, led, 5)
	if gates.Final < types.Ticks(g.cfg.MinPrice) || gates.Final > 990 {
		t.Fatalf("p_final = %d must be clamped to [%d, 990]", gates.Final, g.cfg.MinPrice)
	}
	want := clampTicks(minTicks(gates.Acct, gates.Mkt, gates.Exec), types.Ticks(g.cfg.MinPrice), 990)
	if gates.Final != want {
		t.Fatalf("p_final must be the min of all three gates clamped to range (%d): %+v", want, gates)
	}
}

func TestAccountantGateNoOppositeHoldingsReturns990(t *testing.T) {
	g := New(exampleConfig())
	led := ledger.Snapshot{Qy: decimal.NewFromInt(5), Cy: 2500} // only YES held, evaluating YES (Q_other = Qn = 0)
	acct := g.accountantGate(types.Yes, led)
	if acct != 990 {
		t.Fatalf("accountant gate with no opposite holdings should not bind (990), got %d", acct)
	}
}
