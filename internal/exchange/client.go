// Package exchange implements the venue's CLOB REST and WebSocket clients.
//
// The REST client (Client) talks to the venue's CLOB API for order management:
//   - GetOrderBook:       GET  /book               — fetch L2 book for a token
//   - PostOrders:         POST /orders              — batch-place up to 15 signed orders
//   - CancelOrders:       DELETE /orders            — cancel specific orders by ID
//   - CancelAll:          DELETE /cancel-all         — emergency cancel everything
//   - CancelMarketOrders: DELETE /cancel-market-orders — cancel one market's orders
//   - DeriveAPIKey:       GET  /auth/derive-api-key — bootstrap L2 creds from L1 wallet
//
// A second, separately-hosted client (dataAPI) serves GetPositions, the
// read-only data API the periodic ledger sync polls for authoritative
// position sizes.
//
// Every request except DeriveAPIKey is rate-limited via per-category TokenBuckets;
// requests are automatically retried on 5xx errors and authenticated with L2 HMAC
// headers (except book and position reads, and DeriveAPIKey, which uses L1 headers).
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"btc15mm/internal/config"
	"btc15mm/internal/reconciler"
	"btc15mm/pkg/types"
)

// Client is the venue's CLOB REST API client. It wraps a resty HTTP client
// with rate limiting, retry, and auth, and implements reconciler.Venue so
// it can be wired directly into the Ladder Reconciler. dataAPI is a second,
// unauthenticated resty client pointed at the separate positions data host
// the periodic ledger sync polls.
type Client struct {
	http    *resty.Client
	dataAPI *resty.Client
	auth    *Auth
	rl      *RateLimiter
	dryRun  bool
	logger  *slog.Logger

	resolversMu sync.RWMutex
	resolvers   map[string]AssetResolver
}

var _ reconciler.Venue = (*Client)(nil)

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	dataAPIClient := resty.New().
		SetBaseURL(cfg.API.DataAPIBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:      httpClient,
		dataAPI:   dataAPIClient,
		auth:      auth,
		rl:        NewRateLimiter(),
		dryRun:    cfg.DryRun,
		logger:    logger,
		resolvers: make(map[string]AssetResolver),
	}
}

// GetOrderBook fetches the order book for a single token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// GetPositions fetches the account's current holdings for a single
// condition (market) from the venue's data API, used by the periodic
// ledger sync to catch fills the user WebSocket feed silently dropped.
// Unlike the CLOB endpoints this is an unauthenticated, read-only host, so
// no L2 headers are attached.
func (c *Client) GetPositions(ctx context.Context, conditionID string) ([]types.Position, error) {
	if err := c.rl.Positions.Wait(ctx); err != nil {
		return nil, err
	}

	var result []types.Position
	resp, err := c.dataAPI.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":          c.auth.FunderAddress().Hex(),
			"market":        conditionID,
			"sizeThreshold": "0",
		}).
		SetResult(&result).
		Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get positions: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// buildOrderPayload converts a high-level UserOrder into the on-chain
// SignedOrder + metadata the REST API expects. The maker is the funder
// wallet (proxy), the signer is the EOA, and the taker is the zero address
// (open order, anyone can fill). assetID is the CLOB token id for the
// order's Side, resolved by the caller from the active Market Book.
func (c *Client) buildOrderPayload(order types.UserOrder, assetID string) types.OrderPayload {
	makerAmt, takerAmt := PriceToAmounts(order.Price, order.Size)
	idempotencyID := uuid.NewString()

	return types.OrderPayload{
		Order: types.SignedOrder{
			Salt:          idempotencyID,
			Maker:         c.auth.FunderAddress().Hex(),
			Signer:        c.auth.Address().Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       assetID,
			MakerAmount:   makerAmt.String(),
			TakerAmount:   takerAmt.String(),
			Side:          "BUY",
			Expiration:    fmt.Sprintf("%d", order.Expiration),
			Nonce:         "0",
			FeeRateBps:    "0",
			SignatureType: c.auth.sigType,
		},
		Owner:         c.auth.creds.ApiKey,
		OrderType:     order.OrderType,
		IdempotencyID: idempotencyID,
	}
}

// AssetResolver maps a Side to the active window's CLOB token id.
type AssetResolver func(side types.Side) string

// PostOrders places up to 15 orders in a single batch, using resolveAsset
// to translate each order's Side into the window's YES/NO token id.
func (c *Client) PostOrders(ctx context.Context, orders []types.UserOrder, resolveAsset AssetResolver) ([]types.OrderResponse, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > 15 {
		return nil, fmt.Errorf("batch limit is 15 orders, got %d", len(orders))
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would post orders", "count", len(orders))
		results := make([]types.OrderResponse, len(orders))
		for i := range orders {
			results[i] = types.OrderResponse{Success: true, OrderID: "dry-run-" + uuid.NewString(), Status: "live"}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payloads := make([]types.OrderPayload, len(orders))
	for i, order := range orders {
		payloads[i] = c.buildOrderPayload(order, resolveAsset(order.Side))
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var results []types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payloads).
		SetResult(&results).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	return results, nil
}

// PlaceOrders implements reconciler.Venue. marketID selects which window's
// asset resolver to use; it is registered by the supervisor via
// RegisterMarket, which owns the current Market Book.
func (c *Client) PlaceOrders(ctx context.Context, marketID string, orders []types.UserOrder) ([]reconciler.PlacedOrder, error) {
	c.resolversMu.RLock()
	resolver, ok := c.resolvers[marketID]
	c.resolversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no asset resolver registered for market %s", marketID)
	}

	results, err := c.PostOrders(ctx, orders, resolver)
	if err != nil {
		return nil, err
	}

	placed := make([]reconciler.PlacedOrder, len(results))
	for i, r := range results {
		po := reconciler.PlacedOrder{Side: orders[i].Side, Price: orders[i].Price, Size: orders[i].Size}
		if r.Success {
			po.OrderID = r.OrderID
		} else {
			po.Err = fmt.Errorf("%s", r.ErrorMsg)
		}
		placed[i] = po
	}
	return placed, nil
}

// CancelOrders implements reconciler.Venue and cancels multiple orders by
// ID. The returned CancelResponse's NotCanceled map is the caller's only
// signal that an id is still live at the venue; callers must not assume a
// nil error means every id was actually removed.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) (types.CancelResponse, error) {
	if len(orderIDs) == 0 {
		return types.CancelResponse{}, nil
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel orders", "count", len(orderIDs))
		return types.CancelResponse{Canceled: orderIDs}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return types.CancelResponse{}, err
	}

	payload := struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: orderIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.CancelResponse{}, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.auth.L2Headers("DELETE", "/orders", string(body))
	if err != nil {
		return types.CancelResponse{}, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/orders")
	if err != nil {
		return types.CancelResponse{}, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.CancelResponse{}, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("orders cancelled", "count", len(result.Canceled), "not_canceled", len(result.NotCanceled))
	return result, nil
}

// CancelAll cancels every open order across all markets — used at startup
// as a hygiene sweep and again at shutdown.
func (c *Client) CancelAll(ctx context.Context) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all orders")
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.L2Headers("DELETE", "/cancel-all", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Delete("/cancel-all")
	if err != nil {
		return nil, fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Warn("all orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelMarketOrders cancels all orders for a specific market — used by
// the supervisor at window roll as a belt-and-suspenders sweep alongside
// cancel-by-id (see the design notes' ghost-order fix).
func (c *Client) CancelMarketOrders(ctx context.Context, conditionID string) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel market orders", "market", conditionID)
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	body := fmt.Sprintf(`{"market":"%s"}`, conditionID)
	headers, err := c.auth.L2Headers("DELETE", "/cancel-market-orders", body)
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/cancel-market-orders")
	if err != nil {
		return nil, fmt.Errorf("cancel market orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel market orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// DeriveAPIKey derives L2 API credentials via L1 authentication.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}

// RegisterMarket installs the asset resolver for a window so PlaceOrders
// can translate Side into a CLOB token id. Called by the supervisor on
// window-open/window-roll; UnregisterMarket removes it afterward.
func (c *Client) RegisterMarket(marketID string, resolver AssetResolver) {
	c.resolversMu.Lock()
	c.resolvers[marketID] = resolver
	c.resolversMu.Unlock()
}

// UnregisterMarket drops a window's asset resolver.
func (c *Client) UnregisterMarket(marketID string) {
	c.resolversMu.Lock()
	delete(c.resolvers, marketID)
	c.resolversMu.Unlock()
}
