package exchange

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newDryRunClient() *Client {
	return &Client{
		dryRun:    true,
		rl:        NewRateLimiter(),
		logger:    testLogger(),
		resolvers: make(map[string]AssetResolver),
	}
}

func fixedResolver(yes, no string) AssetResolver {
	return func(side types.Side) string {
		if side == types.Yes {
			return yes
		}
		return no
	}
}

func TestDryRunPostOrders(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	orders := []types.UserOrder{
		{Side: types.Yes, Price: 500, Size: decimal.NewFromInt(10), OrderType: types.OrderTypeGTC},
		{Side: types.No, Price: 480, Size: decimal.NewFromInt(10), OrderType: types.OrderTypeGTC},
	}

	results, err := c.PostOrders(context.Background(), orders, fixedResolver("yes1", "no1"))
	if err != nil {
		t.Fatalf("PostOrders: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.Success || r.OrderID == "" || r.Status != "live" {
			t.Errorf("result[%d] = %+v, want success/live with an id", i, r)
		}
	}
}

func TestDryRunPostOrdersEmpty(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	results, err := c.PostOrders(context.Background(), nil, fixedResolver("y", "n"))
	if err != nil || results != nil {
		t.Fatalf("expected (nil, nil) for empty orders, got (%v, %v)", results, err)
	}
}

func TestDryRunCancelOrders(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	resp, err := c.CancelOrders(context.Background(), []string{"order-1", "order-2"})
	if err != nil {
		t.Fatalf("CancelOrders: %v", err)
	}
	if len(resp.Canceled) != 2 {
		t.Fatalf("expected both dry-run ids reported canceled, got %+v", resp)
	}
}

func TestDryRunCancelAll(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	resp, err := c.CancelAll(context.Background())
	if err != nil || resp == nil {
		t.Fatalf("CancelAll: resp=%v err=%v", resp, err)
	}
}

func TestNewClientDryRunFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Config{DryRun: true, API: config.APIConfig{CLOBBaseURL: "http://localhost"}}
	auth := &Auth{}
	c := NewClient(cfg, auth, testLogger())

	if !c.dryRun {
		t.Error("client.dryRun should be true when config.DryRun is true")
	}
}

func testAuth(t *testing.T) *Auth {
	t.Helper()
	cfg := config.Config{
		Wallet: config.WalletConfig{
			PrivateKey:    "0x1111111111111111111111111111111111111111111111111111111111111111",
			ChainID:       137,
			SignatureType: 0,
		},
		API: config.APIConfig{
			CLOBBaseURL: "http://localhost",
			ApiKey:      "test-key",
			Secret:      "test-secret",
			Passphrase:  "test-pass",
		},
	}
	auth, err := NewAuth(cfg)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return auth
}

func TestBuildOrderPayloadSignsOrder(t *testing.T) {
	t.Parallel()
	auth := testAuth(t)
	cfg := config.Config{API: config.APIConfig{CLOBBaseURL: "http://localhost"}}
	c := NewClient(cfg, auth, testLogger())

	payload := c.buildOrderPayload(types.UserOrder{
		Side:      types.Yes,
		Price:     550,
		Size:      decimal.NewFromInt(10),
		OrderType: types.OrderTypeGTC,
	}, "12345678901234567890")

	if payload.Order.TokenID != "12345678901234567890" {
		t.Fatalf("tokenID = %q", payload.Order.TokenID)
	}
	if payload.Order.Side != "BUY" {
		t.Fatalf("side = %q, want BUY (this domain never sells to reconcile)", payload.Order.Side)
	}
	if payload.Order.Nonce != "0" {
		t.Fatalf("nonce = %q, want 0", payload.Order.Nonce)
	}
	if payload.Owner != "test-key" {
		t.Fatalf("owner = %q, want test-key", payload.Owner)
	}
	if payload.IdempotencyID == "" || !strings.Contains(payload.Order.Salt, "-") {
		t.Fatalf("expected a uuid idempotency id/salt, got %+v", payload)
	}
}
