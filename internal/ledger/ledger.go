// Package ledger implements the Position Ledger: per-window accounting of
// owned YES/NO shares and their total cost in ticks. It is mutated only by
// fills and replaced atomically on every window roll — the pricer reads it,
// never writes it.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"btc15mm/pkg/types"
)

// Snapshot is an immutable, point-in-time copy of the ledger.
type Snapshot struct {
	Qy, Qn decimal.Decimal // owned shares, >= 0
	Cy, Cn int64           // total cost, in ticks (price-in-ticks * shares, summed over fills)
}

// AvgYes returns Cy/Qy, and false if Qy is zero (undefined average).
func (s Snapshot) AvgYes() (decimal.Decimal, bool) {
	return avg(s.Cy, s.Qy)
}

// AvgNo returns Cn/Qn, and false if Qn is zero.
func (s Snapshot) AvgNo() (decimal.Decimal, bool) {
	return avg(s.Cn, s.Qn)
}

// Avg returns the average cost (in ticks) per share for the given side.
func (s Snapshot) Avg(side types.Side) (decimal.Decimal, bool) {
	if side == types.Yes {
		return s.AvgYes()
	}
	return s.AvgNo()
}

func avg(cost int64, qty decimal.Decimal) (decimal.Decimal, bool) {
	if qty.IsZero() {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(cost).Div(qty), true
}

// Net returns net(side) = Q_side - Q_other, the signed inventory skew used
// by the market gate and the target-size scalar.
func (s Snapshot) Net(side types.Side) decimal.Decimal {
	if side == types.Yes {
		return s.Qy.Sub(s.Qn)
	}
	return s.Qn.Sub(s.Qy)
}

// PairCost returns the ticks spent acquiring the balanced portion of the
// position: min(Qy, Qn) shares already guarantee a payout, since one side
// always resolves to 1000 ticks. Grounded on the original bot's profit-lock
// stage, which measures pair economics rather than per-side economics.
func (s Snapshot) PairCost() (pairSize decimal.Decimal, costTicks decimal.Decimal) {
	pairSize = decimal.Min(s.Qy, s.Qn)
	if pairSize.IsZero() {
		return pairSize, decimal.Zero
	}
	avgY, _ := s.AvgYes()
	avgN, _ := s.AvgNo()
	costTicks = pairSize.Mul(avgY.Add(avgN))
	return pairSize, costTicks
}

// MinGuaranteedPayoutUSD returns the USD value of the guaranteed payout
// from the paired portion of the position (pairSize shares at 1000 ticks
// each, i.e. $1 each, since exactly one side always resolves to 1.00).
func (s Snapshot) MinGuaranteedPayoutUSD() decimal.Decimal {
	pairSize, _ := s.PairCost()
	return pairSize // 1000 ticks == $1.00 per paired share, decimal share count *is* the USD payout
}

// MinPnLUSD computes min_pnl = min_guaranteed_payout - total_cost_usd: the
// guaranteed payout from the paired portion minus everything spent so far,
// including the unpaired remainder (marked at zero, since it is still live
// risk rather than locked-in profit). This mirrors the original bot's
// profit-lock formula: min(Qy,Qn)*1000 - (Cy+Cn), expressed in USD
// (ticks/1000).
func (s Snapshot) MinPnLUSD() decimal.Decimal {
	totalCostTicks := decimal.NewFromInt(s.Cy + s.Cn)
	pairSize, _ := s.PairCost()
	guaranteedTicks := pairSize.Mul(decimal.NewFromInt(int64(types.MaxTicks)))
	pnlTicks := guaranteedTicks.Sub(totalCostTicks)
	return pnlTicks.Div(decimal.NewFromInt(int64(types.MaxTicks)))
}

// HasBothSides reports whether the ledger holds a nonzero position on both
// outcome tokens.
func (s Snapshot) HasBothSides() bool {
	return s.Qy.IsPositive() && s.Qn.IsPositive()
}

// Ledger is the mutable, concurrency-safe Position Ledger for the active
// window.
type Ledger struct {
	mu sync.RWMutex
	qy decimal.Decimal
	qn decimal.Decimal
	cy int64
	cn int64
}

// New returns an empty ledger, as built at window-open or window-roll.
func New() *Ledger {
	return &Ledger{qy: decimal.Zero, qn: decimal.Zero}
}

// ApplyFill records a fill of size shares at price ticks on the given side,
// moving Q and C together monotonically — the invariant this type exists
// to protect.
func (l *Ledger) ApplyFill(side types.Side, price types.Ticks, size decimal.Decimal) {
	if size.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	costTicks := size.Mul(decimal.NewFromInt(int64(price)))
	// costTicks is rounded to whole ticks: fractional-tick cost has no
	// venue meaning since price is always an integer number of ticks.
	costInt := costTicks.Round(0).IntPart()

	if side == types.Yes {
		l.qy = l.qy.Add(size)
		l.cy += costInt
	} else {
		l.qn = l.qn.Add(size)
		l.cn += costInt
	}
}

// AdjustUp reconciles one side of the ledger against the venue's
// authoritative position query. Per the periodic ledger sync policy it only
// ever raises Q/C: a missed fill is always an under-count, and reporting
// lag at the venue must never be treated as a position shrinking. venueQty
// and venuePrice are the venue's reported share count and average price
// (in ticks) for the side; if venueQty is not greater than what's already
// tracked, this is a no-op.
func (l *Ledger) AdjustUp(side types.Side, venueQty decimal.Decimal, venuePrice types.Ticks) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.qy
	if side == types.No {
		current = l.qn
	}
	if venueQty.LessThanOrEqual(current) {
		return
	}

	missed := venueQty.Sub(current)
	missedCost := missed.Mul(decimal.NewFromInt(int64(venuePrice))).Round(0).IntPart()

	if side == types.Yes {
		l.qy = venueQty
		l.cy += missedCost
	} else {
		l.qn = venueQty
		l.cn += missedCost
	}
}

// Snapshot returns a consistent copy for strategy evaluation.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{Qy: l.qy, Qn: l.qn, Cy: l.cy, Cn: l.cn}
}

// Reset clears the ledger back to empty. The supervisor's window roll does
// not call it; it builds a fresh ledger with New instead.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.qy = decimal.Zero
	l.qn = decimal.Zero
	l.cy = 0
	l.cn = 0
}
