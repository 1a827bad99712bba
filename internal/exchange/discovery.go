// discovery.go implements the venue's market-discovery HTTP client: a
// single-slug Gamma-shaped lookup returning the metadata the Market
// Scheduler needs to roll into the next window.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/pkg/types"
)

// gammaMarket is the JSON shape returned by GET /markets/slug/{slug}.
type gammaMarket struct {
	ConditionID  string `json:"conditionId"`
	Slug         string `json:"slug"`
	EndDate      string `json:"endDate"`
	ClobTokenIds string `json:"clobTokenIds"` // JSON-encoded two-element array: [yes, no]
	NegRisk      bool   `json:"negRisk"`
}

// Discovery fetches window metadata from the venue's discovery service.
type Discovery struct {
	http   *resty.Client
	prefix string
	logger *slog.Logger
}

// NewDiscovery creates a discovery client scoped to the configured slug
// prefix for this BTC up/down series.
func NewDiscovery(cfg config.Config, logger *slog.Logger) *Discovery {
	client := resty.New().
		SetBaseURL(cfg.API.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Discovery{
		http:   client,
		prefix: cfg.Oracle.DiscoverySlugPrefix,
		logger: logger.With("component", "discovery"),
	}
}

// SlugForWindowStart builds the series slug for the window beginning at
// windowStart, following the venue's convention of one slug per window
// keyed by the window's start time.
func (d *Discovery) SlugForWindowStart(windowStart time.Time) string {
	return fmt.Sprintf("%s-%d", d.prefix, windowStart.Unix())
}

// FetchWindow resolves a window's slug to its market metadata: condition id,
// both outcome token ids, and resolution time. strike is left zero — the
// caller sets it from an oracle spot feed when configured, falling back to
// discovery metadata only when no oracle feed is available (discovery never
// returns a strike price itself; the Gamma endpoint doesn't carry one).
func (d *Discovery) FetchWindow(ctx context.Context, slug string) (types.MarketInfo, error) {
	var gm gammaMarket
	resp, err := d.http.R().
		SetContext(ctx).
		SetResult(&gm).
		Get("/markets/slug/" + slug)
	if err != nil {
		return types.MarketInfo{}, fmt.Errorf("fetch market %q: %w", slug, err)
	}
	if resp.StatusCode() != 200 {
		return types.MarketInfo{}, fmt.Errorf("fetch market %q: status %d", slug, resp.StatusCode())
	}

	assetYes, assetNo, err := parseClobTokenIds(gm.ClobTokenIds)
	if err != nil {
		return types.MarketInfo{}, fmt.Errorf("market %q: %w", slug, err)
	}

	endTS, err := time.Parse(time.RFC3339, gm.EndDate)
	if err != nil {
		return types.MarketInfo{}, fmt.Errorf("market %q: parse endDate %q: %w", slug, gm.EndDate, err)
	}

	return types.MarketInfo{
		MarketID:   gm.ConditionID,
		Slug:       gm.Slug,
		AssetIDYes: assetYes,
		AssetIDNo:  assetNo,
		Strike:     decimal.Zero,
		EndTS:      endTS,
		NegRisk:    gm.NegRisk,
	}, nil
}

// parseClobTokenIds decodes the venue's clobTokenIds field: a JSON-encoded
// two-element array, [yesTokenID, noTokenID], carried as a string.
func parseClobTokenIds(raw string) (yes, no string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty clobTokenIds")
	}

	var ids []string
	if err := json.Unmarshal([]byte(trimmed), &ids); err != nil {
		return "", "", fmt.Errorf("parse clobTokenIds %q: %w", raw, err)
	}
	if len(ids) != 2 {
		return "", "", fmt.Errorf("expected 2 clobTokenIds, got %d", len(ids))
	}
	return ids[0], ids[1], nil
}
