package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWindowStartFloors(t *testing.T) {
	t.Parallel()
	// 1700000037 is not on a 900s boundary (nor is 1700000000), so compute
	// the expected floor directly.
	length := 900 * time.Second
	now := time.Unix(1700000037, 0)
	got := windowStart(now, length)
	wantUnix := (int64(1700000037) / 900) * 900
	if got.Unix() != wantUnix {
		t.Errorf("windowStart = %d, want %d", got.Unix(), wantUnix)
	}
}

type fakeFetcher struct {
	calls   int32
	failN   int32 // fail this many times before succeeding
	info    types.MarketInfo
	lastErr error
}

func (f *fakeFetcher) SlugForWindowStart(ws time.Time) string {
	return "slug-" + ws.UTC().Format(time.RFC3339)
}

func (f *fakeFetcher) FetchWindow(ctx context.Context, slug string) (types.MarketInfo, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failN {
		return types.MarketInfo{}, errors.New("transient discovery failure")
	}
	info := f.info
	info.Slug = slug
	return info, nil
}

type fakeSpot struct {
	price decimal.Decimal
	ok    bool
}

func (f fakeSpot) Price() (decimal.Decimal, bool) { return f.price, f.ok }

func TestFetchWithBackoffRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{failN: 2, info: types.MarketInfo{MarketID: "m1"}}
	s := New(fetcher, nil, config.WindowConfig{LengthSeconds: 900, LeadSeconds: 5}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := s.fetchWithBackoff(ctx, time.Now())
	if err != nil {
		t.Fatalf("fetchWithBackoff: %v", err)
	}
	if info.MarketID != "m1" {
		t.Errorf("MarketID = %q", info.MarketID)
	}
	if fetcher.calls != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + 1 success)", fetcher.calls)
	}
}

func TestFetchWithBackoffAbortsOnCancel(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{failN: 1000}
	s := New(fetcher, nil, config.WindowConfig{LengthSeconds: 900, LeadSeconds: 5}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.fetchWithBackoff(ctx, time.Now()); err == nil {
		t.Fatal("expected error when ctx is already cancelled")
	}
}

func TestResolveStrikePrefersOracleWhenFresh(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{}
	spot := fakeSpot{price: decimal.NewFromInt(65000), ok: true}
	s := New(fetcher, spot, config.WindowConfig{}, testLogger())

	got := s.resolveStrike(types.MarketInfo{Strike: decimal.NewFromInt(1)})
	if !got.Equal(decimal.NewFromInt(65000)) {
		t.Errorf("strike = %s, want 65000", got)
	}
}

func TestResolveStrikeFallsBackToDiscoveryWhenNoOracle(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{}
	s := New(fetcher, nil, config.WindowConfig{}, testLogger())

	got := s.resolveStrike(types.MarketInfo{Strike: decimal.NewFromInt(42)})
	if !got.Equal(decimal.NewFromInt(42)) {
		t.Errorf("strike = %s, want 42 (fallback)", got)
	}
}

func TestResolveStrikeFallsBackWhenOracleStale(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{}
	spot := fakeSpot{ok: false}
	s := New(fetcher, spot, config.WindowConfig{}, testLogger())

	got := s.resolveStrike(types.MarketInfo{Strike: decimal.NewFromInt(42)})
	if !got.Equal(decimal.NewFromInt(42)) {
		t.Errorf("strike = %s, want 42 (fallback on stale oracle)", got)
	}
}
