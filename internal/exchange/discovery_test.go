package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"btc15mm/internal/config"
)

func TestFetchWindowParsesMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/slug/bitcoin-up-or-down-1700000000" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"conditionId": "0xcond123",
			"slug": "bitcoin-up-or-down-1700000000",
			"endDate": "2026-07-30T15:15:00Z",
			"clobTokenIds": "[\"1111\", \"2222\"]",
			"negRisk": false
		}`))
	}))
	defer srv.Close()

	cfg := config.Config{API: config.APIConfig{GammaBaseURL: srv.URL}, Oracle: config.OracleConfig{DiscoverySlugPrefix: "bitcoin-up-or-down"}}
	d := NewDiscovery(cfg, testLogger())

	info, err := d.FetchWindow(context.Background(), "bitcoin-up-or-down-1700000000")
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if info.MarketID != "0xcond123" {
		t.Errorf("MarketID = %q", info.MarketID)
	}
	if info.AssetIDYes != "1111" || info.AssetIDNo != "2222" {
		t.Errorf("AssetIDYes/No = %q/%q", info.AssetIDYes, info.AssetIDNo)
	}
	wantEnd, _ := time.Parse(time.RFC3339, "2026-07-30T15:15:00Z")
	if !info.EndTS.Equal(wantEnd) {
		t.Errorf("EndTS = %v, want %v", info.EndTS, wantEnd)
	}
}

func TestFetchWindowRejectsMalformedTokenIds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conditionId":"0xc","slug":"s","endDate":"2026-07-30T15:15:00Z","clobTokenIds":"[\"only-one\"]"}`))
	}))
	defer srv.Close()

	cfg := config.Config{API: config.APIConfig{GammaBaseURL: srv.URL}}
	d := NewDiscovery(cfg, testLogger())

	if _, err := d.FetchWindow(context.Background(), "s"); err == nil {
		t.Fatal("expected error for malformed clobTokenIds")
	}
}

func TestSlugForWindowStart(t *testing.T) {
	t.Parallel()
	cfg := config.Config{Oracle: config.OracleConfig{DiscoverySlugPrefix: "bitcoin-up-or-down"}}
	d := NewDiscovery(cfg, testLogger())

	ws := time.Unix(1700000000, 0).UTC()
	got := d.SlugForWindowStart(ws)
	want := "bitcoin-up-or-down-1700000000"
	if got != want {
		t.Errorf("slug = %q, want %q", got, want)
	}
}
