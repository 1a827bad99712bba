package exchange

import (
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"btc15mm/pkg/types"
)

func testResolver(yesAsset, noAsset string) func(string) (types.Side, bool) {
	return func(assetID string) (types.Side, bool) {
		switch assetID {
		case yesAsset:
			return types.Yes, true
		case noAsset:
			return types.No, true
		default:
			return types.Side(""), false
		}
	}
}

func newTestUserFeed(t *testing.T, resolve func(string) (types.Side, bool)) *UserFeed {
	t.Helper()
	auth := testAuth(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewUserFeed("ws://localhost", auth, resolve, logger)
}

func TestNormalizeTakerFill(t *testing.T) {
	t.Parallel()
	f := newTestUserFeed(t, testResolver("yes-asset", "no-asset"))

	evt := types.WSTradeEvent{
		OrderID:    "order-taker-1",
		AssetID:    "yes-asset",
		Price:      "0.55",
		Size:       "25",
		Status:     "MATCHED",
		TraderSide: "TAKER",
	}

	fill, ok := f.normalize(evt)
	if !ok {
		t.Fatal("expected a normalized fill")
	}
	if fill.IsMaker {
		t.Error("taker-side trade should not be marked IsMaker")
	}
	if fill.Side != types.Yes {
		t.Errorf("side = %v, want Yes", fill.Side)
	}
	if fill.Price != 550 {
		t.Errorf("price = %d, want 550", fill.Price)
	}
	if !fill.Size.Equal(decimal.NewFromInt(25)) {
		t.Errorf("size = %s, want 25", fill.Size)
	}
}

func TestNormalizeMakerFillScansMakerOrders(t *testing.T) {
	t.Parallel()
	auth := testAuth(t)
	f := newTestUserFeed(t, testResolver("yes-asset", "no-asset"))

	wallet := auth.Address().Hex()

	evt := types.WSTradeEvent{
		OrderID:    "order-taker-other",
		AssetID:    "yes-asset",
		Price:      "0.55",
		Size:       "25",
		Status:     "MATCHED",
		TraderSide: "MAKER",
		MakerOrders: []types.WSMakerOrder{
			{OrderID: "not-us", MakerAddress: "0xdeadbeef", AssetID: "yes-asset", Price: "0.55", MatchedSize: "25"},
			{OrderID: "our-maker-order", MakerAddress: wallet, AssetID: "no-asset", Price: "0.40", MatchedSize: "12"},
		},
	}

	fill, ok := f.normalize(evt)
	if !ok {
		t.Fatal("expected a normalized fill")
	}
	if !fill.IsMaker {
		t.Error("expected IsMaker true")
	}
	if fill.OrderID != "our-maker-order" {
		t.Errorf("order id = %q, want our-maker-order", fill.OrderID)
	}
	if fill.Side != types.No {
		t.Errorf("side = %v, want No", fill.Side)
	}
	if fill.Price != 400 {
		t.Errorf("price = %d, want 400", fill.Price)
	}
}

func TestNormalizeMakerFillNoMatchReturnsFalse(t *testing.T) {
	t.Parallel()
	f := newTestUserFeed(t, testResolver("yes-asset", "no-asset"))

	evt := types.WSTradeEvent{
		AssetID:    "yes-asset",
		Price:      "0.55",
		Size:       "25",
		Status:     "MATCHED",
		TraderSide: "MAKER",
		MakerOrders: []types.WSMakerOrder{
			{OrderID: "not-us", MakerAddress: "0xdeadbeef", AssetID: "yes-asset", Price: "0.55", MatchedSize: "25"},
		},
	}

	if _, ok := f.normalize(evt); ok {
		t.Fatal("expected no fill when our wallet is absent from maker_orders")
	}
}

func TestNormalizeUnknownAssetDropsEvent(t *testing.T) {
	t.Parallel()
	f := newTestUserFeed(t, testResolver("yes-asset", "no-asset"))

	evt := types.WSTradeEvent{
		AssetID:    "stale-asset-from-prior-window",
		Price:      "0.55",
		Size:       "25",
		Status:     "MATCHED",
		TraderSide: "TAKER",
	}

	if _, ok := f.normalize(evt); ok {
		t.Fatal("expected event for an unresolvable asset id to be dropped")
	}
}

func TestDispatchMessageIgnoresNonMatchedStatus(t *testing.T) {
	t.Parallel()
	f := newTestUserFeed(t, testResolver("yes-asset", "no-asset"))

	f.dispatchMessage([]byte(`{"event_type":"trade","status":"MINED","asset_id":"yes-asset","trader_side":"TAKER","price":"0.5","size":"1"}`))

	select {
	case fill := <-f.fillCh:
		t.Fatalf("expected no fill for non-MATCHED status, got %+v", fill)
	default:
	}
}
