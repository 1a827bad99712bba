// Package types defines the shared vocabulary for the market-making core:
// prices in ticks, outcome sides, order wire shapes, and the WebSocket
// event envelopes exchanged with the venue. It has no dependency on any
// other internal package so every layer can import it.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticks is the integer price unit used throughout the core. 1.00 == 1000
// ticks; the minimum increment (TICK) is 10 ticks (~1 cent).
type Ticks int64

const (
	TickSize   Ticks = 10   // minimum price increment
	MaxTicks   Ticks = 1000 // a fully-resolved YES or NO share pays this
	FullWinTick Ticks = 1000
)

// Side is one of the two complementary outcome tokens in a window.
type Side string

const (
	Yes Side = "YES"
	No  Side = "NO"
)

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == Yes {
		return No
	}
	return Yes
}

// OrderType enumerates supported order lifecycles. Only GTC is used by the
// reconciler; the venue adapter still models it as a type for parity with
// the CLOB's wire contract.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC"
)

// SignatureType identifies the signing scheme for the venue's exchange
// contract (kept from the venue adapter; the core never inspects it).
type SignatureType int

const (
	SigEOA        SignatureType = 0
	SigProxy      SignatureType = 1
	SigGnosisSafe SignatureType = 2
)

// MarketInfo is the metadata describing one 15-minute window, as returned
// by the discovery endpoint and/or an oracle feed.
type MarketInfo struct {
	MarketID    string // condition id
	Slug        string
	AssetIDYes  string // CLOB token id for YES
	AssetIDNo   string // CLOB token id for NO
	Strike      decimal.Decimal
	EndTS       time.Time
	NegRisk     bool
}

// UserOrder is a single resting buy order the reconciler wants live.
// Every order in this system is a BUY of the given Side's token — the
// strategy never sells to reduce; it only accumulates cheap shares toward
// a locked-in pair.
type UserOrder struct {
	Side       Side
	Price      Ticks
	Size       decimal.Decimal
	OrderType  OrderType
	Expiration int64 // unix seconds, 0 = no expiry
}

// SignedOrder is the on-chain order shape the venue's CLOB expects.
type SignedOrder struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   string        `json:"makerAmount"`
	TakerAmount   string        `json:"takerAmount"`
	Side          string        `json:"side"` // always "BUY"
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	SignatureType SignatureType `json:"signatureType"`
	Signature     string        `json:"signature"`
}

// OrderPayload is the REST request body for a single order in a batch POST.
type OrderPayload struct {
	Order         SignedOrder `json:"order"`
	Owner         string      `json:"owner"`
	OrderType     OrderType   `json:"orderType"`
	IdempotencyID string      `json:"idempotencyId"`
}

// OrderResponse is the per-order result of a batch POST.
type OrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// CancelResponse is returned by every cancel-shaped venue call.
type CancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"` // id -> reason
}

// OpenOrder represents a live resting order in the venue's open-orders
// listing. No client method in this module fetches that listing.
type OpenOrder struct {
	ID            string `json:"id"`
	Market        string `json:"market"`
	AssetID       string `json:"asset_id"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	OriginalSize  string `json:"original_size"`
	SizeMatched   string `json:"size_matched"`
}

// PriceLevel is a single bid or ask rung as reported by the venue, prices
// and sizes as decimal strings to preserve precision on the wire.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookResponse is the REST response for GET /book?token_id=....
type BookResponse struct {
	AssetID string       `json:"asset_id"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
	Hash    string       `json:"hash"`
}

// Position is one entry of the data API's GET /positions response: the
// account's holding of a single CLOB token, as the venue's own books see
// it. Size and AvgPrice are decimal strings to preserve precision on the
// wire, the same convention as PriceLevel.
type Position struct {
	Asset    string `json:"asset"` // CLOB token id
	Size     string `json:"size"`
	AvgPrice string `json:"avgPrice"`
}

// ———————————————————————————————————————————————————————————————
// WebSocket event envelopes
// ———————————————————————————————————————————————————————————————

// WSBookEvent is a full order-book snapshot for one token.
type WSBookEvent struct {
	EventType string       `json:"event_type"` // "book"
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Buys      []PriceLevel `json:"buys"`
	Sells     []PriceLevel `json:"sells"`
}

// WSBestBidAsk is an incremental best-bid-ask update for one token.
// Best* fields are nil-able on the wire (empty string = not provided).
type WSBestBidAsk struct {
	EventType string `json:"event_type"` // "best_bid_ask"
	AssetID   string `json:"asset_id"`
	BestBid   string `json:"best_bid,omitempty"`
	BestAsk   string `json:"best_ask,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WSTradeEvent is a fill notification on the user channel.
type WSTradeEvent struct {
	EventType    string           `json:"event_type"` // "trade"
	ID           string           `json:"id"`
	Market       string           `json:"market"`
	AssetID      string           `json:"asset_id"`
	Side         string           `json:"side"` // "BUY" or "SELL"
	Size         string           `json:"size"`
	Price        string           `json:"price"`
	Status       string           `json:"status"` // MATCHED, MINED, CONFIRMED
	TraderSide   string           `json:"trader_side"` // MAKER or TAKER
	OrderID      string           `json:"order_id"`
	MakerOrders  []WSMakerOrder   `json:"maker_orders,omitempty"`
	Timestamp    string           `json:"timestamp"`
}

// WSMakerOrder is one entry in a trade event's maker-orders list, scanned
// when we were the maker side of a match.
type WSMakerOrder struct {
	OrderID      string `json:"order_id"`
	MakerAddress string `json:"maker_address"`
	AssetID      string `json:"asset_id"`
	Price        string `json:"price"`
	MatchedSize  string `json:"matched_amount"`
}

// WSSubscribeMsg is the initial subscription frame sent on connect.
type WSSubscribeMsg struct {
	AssetIDs []string `json:"asset_ids,omitempty"`
	Type     string   `json:"type,omitempty"` // "market" or "user"
	Auth     *WSAuth  `json:"auth,omitempty"`
	Extended bool     `json:"extended"`
	Op       string   `json:"op,omitempty"`
}

// WSAuth carries the L2 credential triplet for the user channel.
type WSAuth struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// WSUpdateMsg dynamically subscribes/unsubscribes after the connection is
// already open — used by the market feed's Switch on window roll.
type WSUpdateMsg struct {
	AssetIDs  []string `json:"asset_ids,omitempty"`
	Operation string   `json:"operation"` // "subscribe" or "unsubscribe"
}
