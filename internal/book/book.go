// Package book maintains the canonical view of best bid/ask for the two
// outcome tokens of the currently active window (the Market Book).
//
// Unlike a full order-book mirror, Book tracks only best-bid-ask per side,
// in integer ticks, plus a per-side synced flag. It is updated exclusively
// by the market-data ingestor and the window scheduler; the pricer only
// ever reads a Snapshot.
package book

import (
	"sync"
	"time"

	"btc15mm/pkg/types"
)

// Snapshot is an immutable copy of a Book taken under lock, safe to pass
// to the pricer without further synchronization.
type Snapshot struct {
	MarketID string
	Slug     string
	AssetYes string
	AssetNo  string
	Strike   string
	EndTS    time.Time

	BestBidYes *types.Ticks
	BestAskYes *types.Ticks
	BestBidNo  *types.Ticks
	BestAskNo  *types.Ticks

	SyncedYes bool
	SyncedNo  bool
	Updated   time.Time
}

// Synced is the conjunction of the per-side synced flags: true only once
// an initial snapshot has been observed for both YES and NO.
func (s Snapshot) Synced() bool {
	return s.SyncedYes && s.SyncedNo
}

// TimeRemaining returns the duration until EndTS, floored at zero.
func (s Snapshot) TimeRemaining(now time.Time) time.Duration {
	d := s.EndTS.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Book is the mutable, concurrency-safe Market Book for one active window.
// It is rebuilt wholesale on every window roll (see the supervisor's
// handleRoll); within a window it is mutated only through ApplyBestBidAsk,
// fed by market-data snapshots and updates and by the periodic REST book
// re-fetch.
type Book struct {
	mu sync.RWMutex

	marketID string
	slug     string
	assetYes string
	assetNo  string
	strike   string
	endTS    time.Time

	bestBidYes *types.Ticks
	bestAskYes *types.Ticks
	bestBidNo  *types.Ticks
	bestAskNo  *types.Ticks

	syncedYes bool
	syncedNo  bool
	updated   time.Time
}

// New creates the Market Book for a newly-discovered window. Called only
// by the supervisor when it applies a window roll.
func New(marketID, slug, assetYes, assetNo, strike string, endTS time.Time) *Book {
	return &Book{
		marketID: marketID,
		slug:     slug,
		assetYes: assetYes,
		assetNo:  assetNo,
		strike:   strike,
		endTS:    endTS,
	}
}

// AssetIDs returns the YES and NO CLOB token ids, used by the ingestor to
// know what to subscribe to and by incoming events to know which side to
// route an update to.
func (b *Book) AssetIDs() (yes, no string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.assetYes, b.assetNo
}

// ApplyBestBidAsk updates one token's best bid/ask from a market-data
// event already translated into ticks. Returns true if the update is a
// material change — a different side synced for the first time, or a
// bid/ask value actually moved — which is the signal the reconciler
// should wake on.
func (b *Book) ApplyBestBidAsk(assetID string, bid, ask *types.Ticks) (material bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.updated = time.Now()

	switch assetID {
	case b.assetYes:
		material = !firstSynced(b.syncedYes) || !tickPtrEqual(b.bestBidYes, bid) || !tickPtrEqual(b.bestAskYes, ask)
		b.bestBidYes, b.bestAskYes = bid, ask
		b.syncedYes = true
	case b.assetNo:
		material = !firstSynced(b.syncedNo) || !tickPtrEqual(b.bestBidNo, bid) || !tickPtrEqual(b.bestAskNo, ask)
		b.bestBidNo, b.bestAskNo = bid, ask
		b.syncedNo = true
	default:
		return false
	}
	return material
}

func firstSynced(wasSynced bool) bool { return wasSynced }

func tickPtrEqual(a, b *types.Ticks) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot returns a consistent point-in-time copy for strategy evaluation,
// grounded on the original bot's deep-copy snapshot: the pricer must never
// observe the book mutate mid-evaluation.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		MarketID:   b.marketID,
		Slug:       b.slug,
		AssetYes:   b.assetYes,
		AssetNo:    b.assetNo,
		Strike:     b.strike,
		EndTS:      b.endTS,
		BestBidYes: b.bestBidYes,
		BestAskYes: b.bestAskYes,
		BestBidNo:  b.bestBidNo,
		BestAskNo:  b.bestAskNo,
		SyncedYes:  b.syncedYes,
		SyncedNo:   b.syncedNo,
		Updated:    b.updated,
	}
}

// Synced reports whether both sides have received an initial snapshot.
func (b *Book) Synced() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.syncedYes && b.syncedNo
}

// IsStale returns true if no update has arrived within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}
