package book

import (
	"testing"
	"time"

	"btc15mm/pkg/types"
)

func tp(v int64) *types.Ticks {
	t := types.Ticks(v)
	return &t
}

func TestNewUnsynced(t *testing.T) {
	b := New("m1", "btc-up-1500", "yes1", "no1", "100000", time.Now().Add(15*time.Minute))
	if b.Synced() {
		t.Fatal("expected unsynced book before any bbo applied")
	}
	snap := b.Snapshot()
	if snap.Synced() {
		t.Fatal("snapshot should mirror unsynced state")
	}
}

func TestApplyBestBidAskMaterialOnFirstSync(t *testing.T) {
	b := New("m1", "slug", "yes1", "no1", "100000", time.Now().Add(time.Minute))

	if material := b.ApplyBestBidAsk("yes1", tp(480), tp(500)); !material {
		t.Fatal("first update for a side must be material")
	}
	if b.Synced() {
		t.Fatal("book should not be synced until both sides report")
	}
	if material := b.ApplyBestBidAsk("no1", tp(470), tp(490)); !material {
		t.Fatal("first update on the second side must be material")
	}
	if !b.Synced() {
		t.Fatal("book should be synced once both sides have reported")
	}
}

func TestApplyBestBidAskNoopWhenUnchanged(t *testing.T) {
	b := New("m1", "slug", "yes1", "no1", "100000", time.Now().Add(time.Minute))
	b.ApplyBestBidAsk("yes1", tp(480), tp(500))

	if material := b.ApplyBestBidAsk("yes1", tp(480), tp(500)); material {
		t.Fatal("repeating the same bbo should not be material")
	}
}

func TestApplyBestBidAskMaterialOnChange(t *testing.T) {
	b := New("m1", "slug", "yes1", "no1", "100000", time.Now().Add(time.Minute))
	b.ApplyBestBidAsk("yes1", tp(480), tp(500))

	if material := b.ApplyBestBidAsk("yes1", tp(490), tp(500)); !material {
		t.Fatal("a bid move should be material")
	}
}

func TestApplyBestBidAskUnknownAssetIgnored(t *testing.T) {
	b := New("m1", "slug", "yes1", "no1", "100000", time.Now().Add(time.Minute))
	if material := b.ApplyBestBidAsk("stale-token", tp(1), tp(2)); material {
		t.Fatal("events for unknown asset ids (e.g. post window-switch) must be dropped, never material")
	}
}

func TestIsStale(t *testing.T) {
	b := New("m1", "slug", "yes1", "no1", "100000", time.Now().Add(time.Minute))
	if !b.IsStale(time.Millisecond) {
		t.Fatal("a book with no updates at all is stale")
	}
	b.ApplyBestBidAsk("yes1", tp(480), tp(500))
	if b.IsStale(time.Minute) {
		t.Fatal("a freshly updated book should not be stale")
	}
}
