package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"btc15mm/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyFillMovesQAndCTogether(t *testing.T) {
	l := New()
	l.ApplyFill(types.Yes, 480, dec("10"))

	snap := l.Snapshot()
	if !snap.Qy.Equal(dec("10")) {
		t.Fatalf("Qy = %s, want 10", snap.Qy)
	}
	if snap.Cy != 4800 {
		t.Fatalf("Cy = %d, want 4800", snap.Cy)
	}
}

func TestAvgUndefinedWhenZero(t *testing.T) {
	snap := New().Snapshot()
	if _, ok := snap.AvgYes(); ok {
		t.Fatal("avg_y should be undefined when Qy = 0")
	}
}

func TestNet(t *testing.T) {
	l := New()
	l.ApplyFill(types.Yes, 480, dec("30"))
	l.ApplyFill(types.No, 470, dec("10"))
	snap := l.Snapshot()

	if !snap.Net(types.Yes).Equal(dec("20")) {
		t.Fatalf("net(YES) = %s, want 20", snap.Net(types.Yes))
	}
	if !snap.Net(types.No).Equal(dec("-20")) {
		t.Fatalf("net(NO) = %s, want -20", snap.Net(types.No))
	}
}

func TestProfitLockScenario(t *testing.T) {
	// From the design notes' worked example: Qy=Qn=30, Cy=13500, Cn=13500
	// -> pair_cost=27000 ticks, min_payout=30*1000=30000 -> min_pnl=$3.
	l := New()
	l.ApplyFill(types.Yes, 450, dec("30"))
	l.ApplyFill(types.No, 450, dec("30"))

	snap := l.Snapshot()
	if snap.Cy != 13500 || snap.Cn != 13500 {
		t.Fatalf("unexpected cost basis Cy=%d Cn=%d", snap.Cy, snap.Cn)
	}
	pairSize, cost := snap.PairCost()
	if !pairSize.Equal(dec("30")) {
		t.Fatalf("pairSize = %s, want 30", pairSize)
	}
	if !cost.Equal(dec("27000")) {
		t.Fatalf("pair cost = %s, want 27000", cost)
	}
	if !snap.MinPnLUSD().Equal(dec("3")) {
		t.Fatalf("min_pnl = %s, want 3", snap.MinPnLUSD())
	}
}

func TestResetClearsLedger(t *testing.T) {
	l := New()
	l.ApplyFill(types.Yes, 480, dec("5"))
	l.Reset()

	snap := l.Snapshot()
	if !snap.Qy.IsZero() || !snap.Qn.IsZero() || snap.Cy != 0 || snap.Cn != 0 {
		t.Fatal("reset must zero every field")
	}
}

func TestHasBothSides(t *testing.T) {
	l := New()
	if l.Snapshot().HasBothSides() {
		t.Fatal("empty ledger must not report both sides")
	}
	l.ApplyFill(types.Yes, 480, dec("1"))
	if l.Snapshot().HasBothSides() {
		t.Fatal("single-sided ledger must not report both sides")
	}
	l.ApplyFill(types.No, 480, dec("1"))
	if !l.Snapshot().HasBothSides() {
		t.Fatal("ledger with both sides funded should report true")
	}
}

func TestAdjustUpRaisesOnMissedFill(t *testing.T) {
	l := New()
	l.ApplyFill(types.Yes, 480, dec("10"))

	l.AdjustUp(types.Yes, dec("15"), 480)

	snap := l.Snapshot()
	if !snap.Qy.Equal(dec("15")) {
		t.Fatalf("Qy = %s, want 15 after catching up a missed fill", snap.Qy)
	}
	if snap.Cy != 7200 {
		t.Fatalf("Cy = %d, want 7200 (10*480 + 5*480)", snap.Cy)
	}
}

func TestAdjustUpNeverLowers(t *testing.T) {
	l := New()
	l.ApplyFill(types.No, 480, dec("10"))

	l.AdjustUp(types.No, dec("4"), 480)

	snap := l.Snapshot()
	if !snap.Qn.Equal(dec("10")) {
		t.Fatalf("Qn = %s, want unchanged at 10 — AdjustUp must never lower a side", snap.Qn)
	}
	if snap.Cn != 4800 {
		t.Fatalf("Cn = %d, want unchanged at 4800", snap.Cn)
	}
}
