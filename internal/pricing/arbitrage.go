package pricing

import (
	"github.com/shopspring/decimal"

	"btc15mm/internal/book"
	"btc15mm/internal/ledger"
	"btc15mm/pkg/types"
)

// ArbitrageSignal reports a synthetic-arbitrage opportunity: the combined
// cost of buying the best ask on both YES and NO is less than a guaranteed
// 1000-tick payout. Grounded on the original bot's Priority-0 synthetic
// arbitrage stage; supplemented here as it sits outside the triple-gate
// pricer's per-side scope and is config-gated (PricingConfig.ArbitrageEnabled).
type ArbitrageSignal struct {
	AskYes, AskNo types.Ticks
	ProfitTicks   types.Ticks
	Size          decimal.Decimal
}

// Arbitrage checks for a synthetic-arbitrage opportunity and, if one clears
// the configured minimum edge, returns the size to buy on each side. Returns
// (nil, false) when the book is unsynced, either ask is unknown, the edge
// doesn't clear ArbitrageMinEdgeTicks, or the ledger already holds a
// complete (both-sided) arbitrage position.
func (g *Gate) Arbitrage(bk book.Snapshot, led ledger.Snapshot, maxTradeSize decimal.Decimal) (*ArbitrageSignal, bool) {
	if !g.cfg.ArbitrageEnabled {
		return nil, false
	}
	if !bk.Synced() {
		return nil, false
	}
	if bk.BestAskYes == nil || bk.BestAskNo == nil {
		return nil, false
	}
	if led.HasBothSides() {
		return nil, false
	}

	total := *bk.BestAskYes + *bk.BestAskNo
	if total >= types.MaxTicks {
		return nil, false
	}

	profit := types.MaxTicks - total
	if profit < types.Ticks(g.cfg.ArbitrageMinEdgeTicks) {
		return nil, false
	}

	return &ArbitrageSignal{
		AskYes:      *bk.BestAskYes,
		AskNo:       *bk.BestAskNo,
		ProfitTicks: profit,
		Size:        maxTradeSize,
	}, true
}
