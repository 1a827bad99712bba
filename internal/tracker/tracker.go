// Package tracker implements the Order Tracker: the live view of our own
// resting orders on the venue, keyed by side and price, supporting multiple
// stacked orders at a single price level and decrementing by order id (not
// by price level) on fills.
package tracker

import (
	"sync"

	"github.com/shopspring/decimal"

	"btc15mm/pkg/types"
)

// Order is one resting order the tracker knows about. Size is the current
// remaining size; OriginalSize is fixed at Add time and never mutates,
// letting callers check the tracker invariant 0 <= remaining <= original.
type Order struct {
	ID           string
	Side         types.Side
	Price        types.Ticks
	Size         decimal.Decimal
	OriginalSize decimal.Decimal
}

// Tracker holds all orders the reconciler believes are live, organized for
// O(1) amortized add/remove/lookup by (side, price) and by id.
type Tracker struct {
	mu sync.Mutex

	byID  map[string]*Order
	byKey map[key][]string // side|price -> ordered list of order ids at that level
}

type key struct {
	side  types.Side
	price types.Ticks
}

// New returns an empty tracker, as built at window-open, window-roll, or
// after a clear-all sweep.
func New() *Tracker {
	return &Tracker{
		byID:  make(map[string]*Order),
		byKey: make(map[key][]string),
	}
}

// Add records a newly accepted order. Called by the reconciler once the
// venue confirms an orderID for a placed order.
func (t *Tracker) Add(id string, side types.Side, price types.Ticks, size decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o := &Order{ID: id, Side: side, Price: price, Size: size, OriginalSize: size}
	t.byID[id] = o
	k := key{side, price}
	t.byKey[k] = append(t.byKey[k], id)
}

// RemoveByIDs drops the given order ids entirely — used after a confirmed
// cancel. Unknown ids are ignored.
func (t *Tracker) RemoveByIDs(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.removeLocked(id)
	}
}

func (t *Tracker) removeLocked(id string) {
	o, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	k := key{o.Side, o.Price}
	ids := t.byKey[k]
	for i, existing := range ids {
		if existing == id {
			t.byKey[k] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(t.byKey[k]) == 0 {
		delete(t.byKey, k)
	}
}

// ApplyFill decrements a single order's remaining size by the matched
// amount, identified by order id — never by price level, since multiple
// stacked orders may share a price. An order whose remaining size reaches
// zero is removed. Returns violated=true if matchedSize exceeded the
// order's remaining size, i.e. the venue reported filling more than was
// resting — an InvariantViolation (size > original) the caller must halt
// on; the order is still removed, since the venue considers it filled.
func (t *Tracker) ApplyFill(orderID string, matchedSize decimal.Decimal) (violated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.byID[orderID]
	if !ok {
		return false
	}
	violated = matchedSize.GreaterThan(o.Size)
	o.Size = o.Size.Sub(matchedSize)
	if o.Size.Sign() <= 0 {
		t.removeLocked(orderID)
	}
	return violated
}

// OrdersAt returns a copy of the orders resting at (side, price), in the
// order they were added.
func (t *Tracker) OrdersAt(side types.Side, price types.Ticks) []Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.byKey[key{side, price}]
	out := make([]Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.byID[id])
	}
	return out
}

// TotalSizeAt returns the sum of remaining sizes of all orders resting at
// (side, price) — the reconciler's "current" for that rung.
func (t *Tracker) TotalSizeAt(side types.Side, price types.Ticks) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := decimal.Zero
	for _, id := range t.byKey[key{side, price}] {
		total = total.Add(t.byID[id].Size)
	}
	return total
}

// Prices returns the distinct prices with at least one resting order on the
// given side. Used by the reconciler to find rungs present in "current" but
// absent from "ideal" (candidates to cancel).
func (t *Tracker) Prices(side types.Side) []types.Ticks {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[types.Ticks]bool)
	var out []types.Ticks
	for k := range t.byKey {
		if k.side == side && !seen[k.price] {
			seen[k.price] = true
			out = append(out, k.price)
		}
	}
	return out
}

// IDsAt returns the order ids resting at (side, price), in insertion order.
func (t *Tracker) IDsAt(side types.Side, price types.Ticks) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.byKey[key{side, price}]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// IDsAtAll returns every order id resting on the given side, across all
// price levels — used for a side-wide cancel sweep (circuit breaker,
// profit lock, stop loss) that does not consult the ideal ladder.
func (t *Tracker) IDsAtAll(side types.Side) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for k, ids := range t.byKey {
		if k.side == side {
			out = append(out, ids...)
		}
	}
	return out
}

// ClearAll drops every tracked order without a venue call, for use once a
// market-wide cancel sweep has already emptied the venue side. The
// supervisor's window roll does not call it; it builds a fresh tracker.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[string]*Order)
	t.byKey = make(map[key][]string)
}

// Summary returns every order currently tracked, for logging/dashboard use.
func (t *Tracker) Summary() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Order, 0, len(t.byID))
	for _, o := range t.byID {
		out = append(out, *o)
	}
	return out
}
