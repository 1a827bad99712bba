// Package oracle provides the underlier spot-price feed used to set a
// window's strike at open. Grounded on the original bot's Coinbase ticker
// oracle, adapted from a push WebSocket to a polled REST feed to match this
// module's config (a poll interval, not a reconnect policy) — any HTTP
// endpoint returning a JSON price field works, so the bot isn't tied to one
// venue for spot.
package oracle

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// SpotFeed polls an HTTP endpoint for the underlier's current spot price.
type SpotFeed struct {
	http   *resty.Client
	url    string
	field  string
	logger *slog.Logger

	mu    sync.RWMutex
	price decimal.Decimal
	fresh bool
}

// NewSpotFeed creates a spot feed. An empty url means no oracle is
// configured; Price will always report !ok and callers should fall back to
// discovery metadata for strike.
func NewSpotFeed(url string, logger *slog.Logger) *SpotFeed {
	return &SpotFeed{
		http:   resty.New().SetTimeout(5 * time.Second),
		url:    url,
		field:  "price",
		logger: logger.With("component", "oracle"),
	}
}

// Enabled reports whether a spot feed URL was configured.
func (f *SpotFeed) Enabled() bool { return f.url != "" }

// Price returns the most recently polled spot price, or !ok if no poll has
// succeeded yet (or no feed is configured).
func (f *SpotFeed) Price() (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price, f.fresh
}

// Run polls at interval until ctx is cancelled. A no-op if no feed URL was
// configured.
func (f *SpotFeed) Run(ctx context.Context, interval time.Duration) {
	if !f.Enabled() {
		return
	}

	f.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *SpotFeed) poll(ctx context.Context) {
	var raw map[string]json.Number
	resp, err := f.http.R().SetContext(ctx).SetResult(&raw).Get(f.url)
	if err != nil {
		f.logger.Warn("spot poll failed", "error", err)
		return
	}
	if resp.StatusCode() != 200 {
		f.logger.Warn("spot poll non-200", "status", resp.StatusCode())
		return
	}
	num, ok := raw[f.field]
	if !ok {
		f.logger.Warn("spot poll missing price field", "field", f.field)
		return
	}
	price, err := decimal.NewFromString(num.String())
	if err != nil {
		f.logger.Warn("spot poll unparseable price", "error", err)
		return
	}

	f.mu.Lock()
	f.price = price
	f.fresh = true
	f.mu.Unlock()
}
