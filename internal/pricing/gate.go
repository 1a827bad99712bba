// Package pricing implements the Pricing Gate: the triple-gate price model
// (accountant, market, execution) that produces p_final and target_size for
// one side of the ladder on every reconciliation cycle.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"btc15mm/internal/book"
	"btc15mm/internal/config"
	"btc15mm/internal/ledger"
	"btc15mm/pkg/types"
)

// Rung is one price/size pair in an ideal ladder.
type Rung struct {
	Price types.Ticks
	Size  decimal.Decimal
}

// Gates captures the three intermediate gate prices alongside the final
// clamped price, kept around for logging and tests rather than collapsed
// immediately to p_final.
type Gates struct {
	Acct   types.Ticks
	Mkt    types.Ticks
	Exec   types.Ticks
	Final  types.Ticks
	Target decimal.Decimal
	Ladder []Rung
}

// Gate evaluates the triple-gate model using config-supplied tunables.
type Gate struct {
	cfg config.PricingConfig
}

// New returns a Gate bound to the given pricing tunables.
func New(cfg config.PricingConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate computes p_final, target_size, and the resulting ideal ladder
// for one side, given the current Market Book and Position Ledger
// snapshots. ladderDepth rungs are produced at TICK spacing, clamped to
// >= MIN_PRICE.
func (g *Gate) Evaluate(side types.Side, bk book.Snapshot, led ledger.Snapshot, ladderDepth int) Gates {
	net := led.Net(side)

	acct := g.accountantGate(side, led)
	mkt := g.marketGate(side, bk, led)
	exec := g.executionGate(side, bk, net)

	final := minTicks(acct, mkt, exec)
	final = clampTicks(final, types.Ticks(g.cfg.MinPrice), 990)

	target := g.targetSize(net)

	gates := Gates{Acct: acct, Mkt: mkt, Exec: exec, Final: final, Target: target}
	gates.Ladder = buildLadder(final, target, ladderDepth, types.Ticks(g.cfg.MinPrice))
	return gates
}

// accountantGate implements P_acct: never accept a resting price that locks
// in a portfolio loss against the opposite side's already-paid cost.
func (g *Gate) accountantGate(side types.Side, led ledger.Snapshot) types.Ticks {
	other := side.Opposite()
	net := led.Net(side)

	qOther := led.Qn
	cSideTicks := led.Cy
	if side == types.No {
		qOther = led.Qy
		cSideTicks = led.Cn
	}

	avgOther, avgOtherOK := led.Avg(other)

	if qOther.IsZero() {
		return 990 // no opposite holdings: accountant gate does not bind
	}

	if net.IsNegative() {
		// This side is light.
		absNet := net.Abs()
		// P_acct = (Q_other*(1000 - avg_other) - C_side) / |net|
		oneMinusAvg := decimal.NewFromInt(int64(types.MaxTicks))
		if avgOtherOK {
			oneMinusAvg = oneMinusAvg.Sub(avgOther)
		}
		numerator := qOther.Mul(oneMinusAvg).Sub(decimal.NewFromInt(cSideTicks))
		priceDec := numerator.Div(absNet)
		return types.Ticks(priceDec.Round(0).IntPart())
	}

	// Heavy or neutral.
	avg := decimal.Zero
	if avgOtherOK {
		avg = avgOther
	}
	return types.Ticks(int64(types.MaxTicks)) - types.Ticks(avg.Round(0).IntPart()) - types.Ticks(g.cfg.BaseMargin)
}

// marketGate implements P_mkt: track the market with an inventory skew.
func (g *Gate) marketGate(side types.Side, bk book.Snapshot, led ledger.Snapshot) types.Ticks {
	other := side.Opposite()
	askOther := bestAsk(bk, other)

	anchor := types.Ticks(int64(types.MaxTicks))
	if askOther != nil {
		anchor = types.Ticks(int64(types.MaxTicks)) - *askOther - types.Ticks(g.cfg.BaseMargin)
	} else {
		anchor = types.Ticks(int64(types.MaxTicks)) - types.Ticks(g.cfg.BaseMargin)
	}

	net := led.Net(side)
	skewRaw := net.Mul(decimal.NewFromFloat(g.cfg.Gamma)).Mul(decimal.NewFromInt(int64(types.MaxTicks)))
	skew := clampTicks(types.Ticks(skewRaw.Round(0).IntPart()), -types.Ticks(g.cfg.MaxSkew), types.Ticks(g.cfg.MaxSkew))

	return anchor - skew
}

// executionGate implements Cap_exec: control how far we may cross our own
// side's ask.
func (g *Gate) executionGate(side types.Side, bk book.Snapshot, net decimal.Decimal) types.Ticks {
	askThis := bestAsk(bk, side)
	ask := types.Ticks(int64(types.MaxTicks))
	if askThis != nil {
		ask = *askThis
	}

	if net.IsNegative() {
		return ask + types.Ticks(g.cfg.SlippageTol)
	}
	return ask - types.TickSize
}

// targetSize implements scalar = clamp(1 - net/MAX_POSITION, 0, 2),
// target_size = floor(BASE_SIZE * scalar * 100)/100, hard-stopping to 0
// once net(side) >= MAX_POSITION.
func (g *Gate) targetSize(net decimal.Decimal) decimal.Decimal {
	maxPos := decimal.NewFromFloat(g.cfg.MaxPosition)
	if net.GreaterThanOrEqual(maxPos) {
		return decimal.Zero
	}

	scalar := decimal.NewFromInt(1).Sub(net.Div(maxPos))
	scalar = decimal.Max(decimal.Zero, decimal.Min(scalar, decimal.NewFromInt(2)))

	baseSize := decimal.NewFromFloat(g.cfg.BaseSize)
	raw := baseSize.Mul(scalar)
	floored := math.Floor(raw.InexactFloat64() * 100)
	return decimal.NewFromFloat(floored / 100)
}

// buildLadder produces up to depth rungs descending from final at TICK
// spacing, dropping any rung below minPrice. An empty target yields an
// empty ladder.
func buildLadder(final types.Ticks, target decimal.Decimal, depth int, minPrice types.Ticks) []Rung {
	if target.Sign() <= 0 {
		return nil
	}
	rungs := make([]Rung, 0, depth)
	for i := 0; i < depth; i++ {
		price := final - types.Ticks(i)*types.TickSize
		if price < minPrice {
			break
		}
		rungs = append(rungs, Rung{Price: price, Size: target})
	}
	return rungs
}

func bestAsk(bk book.Snapshot, side types.Side) *types.Ticks {
	if side == types.Yes {
		return bk.BestAskYes
	}
	return bk.BestAskNo
}

func minTicks(vs ...types.Ticks) types.Ticks {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func clampTicks(v, lo, hi types.Ticks) types.Ticks {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
