// Package reconciler implements the Ladder Reconciler: given an ideal
// ladder from the Pricing Gate and the live view from the Order Tracker, it
// issues the minimum set of cancel/place venue calls to converge one side's
// resting orders onto the ideal, using the cancel/place/stack/shrink/hold
// diff algorithm and per-fill vs per-market-data serialization rules.
package reconciler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/internal/pricing"
	"btc15mm/internal/tracker"
	"btc15mm/pkg/types"
)

// Venue is the subset of the exchange client the reconciler needs: batch
// placement and cancellation by id. Kept as a narrow interface so the
// reconciler can be tested without a real CLOB client.
type Venue interface {
	PlaceOrders(ctx context.Context, marketID string, orders []types.UserOrder) ([]PlacedOrder, error)
	CancelOrders(ctx context.Context, orderIDs []string) (types.CancelResponse, error)
}

// notCanceledExistsReason is the venue's literal not_canceled reason string
// meaning the order was already gone rather than still resting. Only ids
// reported canceled or carrying this reason are safe to drop from the
// tracker; any other not_canceled reason means the order is still live at
// the venue and must stay tracked, or it becomes an untracked ghost order.
const notCanceledExistsReason = "does not exist"

// confirmedCancelIDs returns the subset of requested ids that are safe to
// remove from the tracker: those the venue actually canceled, plus those it
// refused to cancel only because they no longer exist.
func confirmedCancelIDs(resp types.CancelResponse) []string {
	ids := make([]string, 0, len(resp.Canceled))
	ids = append(ids, resp.Canceled...)
	for id, reason := range resp.NotCanceled {
		if reason == notCanceledExistsReason {
			ids = append(ids, id)
		}
	}
	return ids
}

// PlacedOrder pairs a venue-assigned order id with the order that produced
// it, so the reconciler knows which (side, price, size) to record.
type PlacedOrder struct {
	OrderID string
	Side    types.Side
	Price   types.Ticks
	Size    decimal.Decimal
	Err     error
}

// Reconciler converges the live order book for one market onto the ideal
// ladders computed by the Pricing Gate.
type Reconciler struct {
	venue   Venue
	tracker *tracker.Tracker
	gate    *pricing.Gate
	cfg     config.LadderConfig
	log     *slog.Logger

	// runMu serializes fill-driven cycles against themselves, per the
	// design notes' requirement that a single fill is fully reconciled
	// before another is processed.
	runMu sync.Mutex

	// coalesce guards market-data-driven runs: at most one additional run
	// is queued while one is in flight; a burst of book updates collapses
	// to a single re-run instead of one per event.
	coalesceMu      sync.Mutex
	coalescePending bool
	coalesceRunning bool
}

// New returns a Reconciler wired to a venue adapter, the shared order
// tracker, and a pricing gate.
func New(venue Venue, trk *tracker.Tracker, gate *pricing.Gate, cfg config.LadderConfig, log *slog.Logger) *Reconciler {
	return &Reconciler{venue: venue, tracker: trk, gate: gate, cfg: cfg, log: log}
}

// plan is the outcome of the diff algorithm for one side, before any venue
// calls are issued.
type plan struct {
	cancelIDs []string
	placeOps  []placeOp
}

type placeOp struct {
	price types.Ticks
	size  decimal.Decimal
}

// diff implements steps 2-3 of the design notes' algorithm: cancel phase
// then place/stack/shrink/hold phase, against the live tracker state.
func diff(side types.Side, trk *tracker.Tracker, ladder []pricing.Rung, minOrderSize decimal.Decimal, hysteresis float64) plan {
	ideal := make(map[types.Ticks]decimal.Decimal, len(ladder))
	for _, r := range ladder {
		ideal[r.Price] = r.Size
	}

	var p plan

	// Cancel phase: any resting price not in the ideal ladder is fully
	// cancelled.
	for _, price := range trk.Prices(side) {
		if _, ok := ideal[price]; !ok {
			p.cancelIDs = append(p.cancelIDs, trk.IDsAt(side, price)...)
		}
	}

	// Place/stack/shrink/hold phase.
	for price, target := range ideal {
		current := trk.TotalSizeAt(side, price)

		switch {
		case current.IsZero():
			if target.GreaterThanOrEqual(minOrderSize) {
				p.placeOps = append(p.placeOps, placeOp{price, target})
			}
		case current.LessThan(target):
			diffSize := target.Sub(current)
			if diffSize.GreaterThanOrEqual(minOrderSize) {
				p.placeOps = append(p.placeOps, placeOp{price, diffSize})
			}
		case current.GreaterThan(target.Mul(decimal.NewFromFloat(1 + hysteresis))):
			p.cancelIDs = append(p.cancelIDs, trk.IDsAt(side, price)...)
			if target.GreaterThanOrEqual(minOrderSize) {
				p.placeOps = append(p.placeOps, placeOp{price, target})
			}
		default:
			// hold
		}
	}

	return p
}

// ReconcileSide runs one reconciliation cycle for a single side: compute
// the ideal ladder, diff against the tracker, and flush cancels then places
// against the venue. The two sides share no locks and may run concurrently.
func (r *Reconciler) ReconcileSide(ctx context.Context, marketID string, side types.Side, gates pricing.Gates) error {
	p := diff(side, r.tracker, gates.Ladder, decimal.NewFromFloat(r.cfg.MinOrderSize), r.cfg.Hysteresis)

	if len(p.cancelIDs) == 0 && len(p.placeOps) == 0 {
		return nil
	}

	if len(p.cancelIDs) > 0 {
		resp, err := r.venue.CancelOrders(ctx, p.cancelIDs)
		if err != nil {
			r.log.Error("cancel phase failed", "side", side, "err", err)
			return err
		}
		if len(resp.NotCanceled) > 0 {
			r.log.Warn("some cancels refused", "side", side, "not_canceled", resp.NotCanceled)
		}
		r.tracker.RemoveByIDs(confirmedCancelIDs(resp))
	}

	for start := 0; start < len(p.placeOps); start += r.cfg.BatchMax {
		end := start + r.cfg.BatchMax
		if end > len(p.placeOps) {
			end = len(p.placeOps)
		}
		batch := p.placeOps[start:end]

		orders := make([]types.UserOrder, len(batch))
		for i, op := range batch {
			orders[i] = types.UserOrder{Side: side, Price: op.price, Size: op.size, OrderType: types.OrderTypeGTC}
		}

		placed, err := r.venue.PlaceOrders(ctx, marketID, orders)
		if err != nil {
			r.log.Error("place phase failed", "side", side, "err", err)
			return err
		}
		for _, po := range placed {
			if po.Err != nil {
				r.log.Warn("order rejected", "side", po.Side, "price", po.Price, "err", po.Err)
				continue
			}
			r.tracker.Add(po.OrderID, po.Side, po.Price, po.Size)
		}
	}

	return nil
}

// ReconcileFill runs a fill-driven reconciliation for a side, serialized
// against every other fill-driven cycle so that a single fill is fully
// reconciled before another is processed.
func (r *Reconciler) ReconcileFill(ctx context.Context, marketID string, side types.Side, gates pricing.Gates) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.ReconcileSide(ctx, marketID, side, gates)
}

// ReconcileMarketData schedules a market-data-driven reconciliation for a
// side. If one is already running, this call is coalesced into a single
// pending re-run rather than queued individually — a burst of book updates
// produces at most one extra cycle.
func (r *Reconciler) ReconcileMarketData(ctx context.Context, marketID string, side types.Side, computeGates func() pricing.Gates) error {
	r.coalesceMu.Lock()
	if r.coalesceRunning {
		r.coalescePending = true
		r.coalesceMu.Unlock()
		return nil
	}
	r.coalesceRunning = true
	r.coalesceMu.Unlock()

	var firstErr error
	for {
		gates := computeGates()
		r.runMu.Lock()
		err := r.ReconcileSide(ctx, marketID, side, gates)
		r.runMu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}

		r.coalesceMu.Lock()
		if !r.coalescePending {
			r.coalesceRunning = false
			r.coalesceMu.Unlock()
			break
		}
		r.coalescePending = false
		r.coalesceMu.Unlock()
	}
	return firstErr
}

// CancelAllSide cancels every tracked order on one side without consulting
// the ideal ladder — used for circuit-breaker/profit-lock/stop-loss halts
// and window-roll hygiene.
func (r *Reconciler) CancelAllSide(ctx context.Context, side types.Side) error {
	ids := r.tracker.IDsAtAll(side)
	if len(ids) == 0 {
		return nil
	}
	resp, err := r.venue.CancelOrders(ctx, ids)
	if err != nil {
		return err
	}
	if len(resp.NotCanceled) > 0 {
		r.log.Warn("some cancels refused", "side", side, "not_canceled", resp.NotCanceled)
	}
	r.tracker.RemoveByIDs(confirmedCancelIDs(resp))
	return nil
}
