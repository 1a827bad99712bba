// Package scheduler rolls the bot from one 15-minute BTC up/down window to
// the next: it computes window boundaries, fetches the next window's
// metadata ahead of the roll, resolves the strike, and emits a RollEvent for
// the Trading Supervisor to apply atomically.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"btc15mm/internal/config"
	"btc15mm/pkg/types"
)

// WindowFetcher resolves a window's slug to its venue metadata. Satisfied by
// *exchange.Discovery.
type WindowFetcher interface {
	SlugForWindowStart(windowStart time.Time) string
	FetchWindow(ctx context.Context, slug string) (types.MarketInfo, error)
}

// SpotPricer reports the underlier's current spot price, used to set a new
// window's strike at open. Satisfied by *oracle.SpotFeed.
type SpotPricer interface {
	Price() (decimal.Decimal, bool)
}

// RollEvent is emitted once per window, timed to arrive LeadSeconds before
// the new window's official start. The supervisor is responsible for
// cancelling the expiring window's orders, clearing the tracker, rebuilding
// the book and ledger, and switching the market-data subscription.
type RollEvent struct {
	Window      types.MarketInfo
	WindowStart time.Time
	WindowEnd   time.Time
	IsFirst     bool
}

// Scheduler drives the window-roll timing loop.
type Scheduler struct {
	fetcher WindowFetcher
	spot    SpotPricer
	cfg     config.WindowConfig
	logger  *slog.Logger

	rollCh chan RollEvent
}

// New creates a scheduler. spot may be nil if no oracle feed is configured;
// strike then falls back to zero (discovery metadata carries none either —
// see spec's resolution of the strike-source Open Question).
func New(fetcher WindowFetcher, spot SpotPricer, cfg config.WindowConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		spot:    spot,
		cfg:     cfg,
		logger:  logger.With("component", "scheduler"),
		rollCh:  make(chan RollEvent, 1),
	}
}

// Events returns the channel the supervisor reads roll events from.
func (s *Scheduler) Events() <-chan RollEvent { return s.rollCh }

// Run drives the roll loop under a tomb so the supervisor can treat it like
// any other supervised task. Blocks until ctx is cancelled or MaxWindows
// completed windows have rolled.
func (s *Scheduler) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return s.loop(ctx)
	})
	return t.Wait()
}

func (s *Scheduler) loop(ctx context.Context) error {
	length := time.Duration(s.cfg.LengthSeconds) * time.Second
	lead := time.Duration(s.cfg.LeadSeconds) * time.Second

	first := true
	completed := 0
	var lastStart time.Time

	for {
		now := time.Now()
		start := windowStart(now, length)
		nextStart := start.Add(length)
		if first && !s.cfg.SkipFirstWindow {
			// Roll straight into the window already in progress.
			nextStart = start
		}
		if !nextStart.After(lastStart) {
			// This window has already been rolled into; wait for the next.
			nextStart = lastStart.Add(length)
		}

		wakeAt := nextStart.Add(-lead)
		if err := sleepUntil(ctx, wakeAt); err != nil {
			return err
		}

		info, err := s.fetchWithBackoff(ctx, nextStart)
		if err != nil {
			// Context was cancelled while retrying; the previous window
			// keeps trading until its natural end.
			return err
		}

		info.Strike = s.resolveStrike(info)

		evt := RollEvent{
			Window:      info,
			WindowStart: nextStart,
			WindowEnd:   nextStart.Add(length),
			IsFirst:     first,
		}
		select {
		case s.rollCh <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}

		lastStart = nextStart
		first = false
		completed++
		if s.cfg.MaxWindows > 0 && completed >= s.cfg.MaxWindows {
			s.logger.Info("max windows reached, scheduler stopping", "completed", completed)
			return nil
		}
	}
}

// fetchWithBackoff retries discovery with capped exponential backoff until
// it succeeds or ctx is cancelled. Per spec, a failed fetch never blocks the
// previous window's trading — the caller keeps running the old window while
// this retries in the background of the scheduler's own goroutine.
func (s *Scheduler) fetchWithBackoff(ctx context.Context, windowStart time.Time) (types.MarketInfo, error) {
	slug := s.fetcher.SlugForWindowStart(windowStart)
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		info, err := s.fetcher.FetchWindow(ctx, slug)
		if err == nil {
			return info, nil
		}

		s.logger.Warn("window metadata fetch failed, retrying", "slug", slug, "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return types.MarketInfo{}, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// resolveStrike sets the new window's strike from the oracle spot feed if
// one is configured and fresh; otherwise falls back to whatever discovery
// metadata already populated (zero, on this venue, but the fallback stays
// explicit since discovery's contract could change).
func (s *Scheduler) resolveStrike(info types.MarketInfo) decimal.Decimal {
	if s.spot != nil {
		if price, ok := s.spot.Price(); ok {
			return price
		}
	}
	return info.Strike
}

func sleepUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// windowStart floors t to the most recent multiple of length since the
// Unix epoch, matching spec.md's `start = floor(now/W)*W`.
func windowStart(t time.Time, length time.Duration) time.Time {
	unix := t.Unix()
	secs := int64(length / time.Second)
	floored := (unix / secs) * secs
	return time.Unix(floored, 0).UTC()
}
