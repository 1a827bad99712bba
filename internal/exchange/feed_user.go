// feed_user.go implements the User-Fill Ingestor (G): an authenticated
// WebSocket to the venue's user channel, translating each MATCHED trade
// into a FillEvent delivered exactly once, in arrival order, with no
// business logic beyond maker/taker resolution.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"btc15mm/pkg/types"
)

// FillEvent is the ingestor's normalized output, independent of whether we
// were the maker or the taker side of the match.
type FillEvent struct {
	OrderID string
	AssetID string
	Side    types.Side
	Price   types.Ticks
	Size    decimal.Decimal
	IsMaker bool
	Ts      time.Time
}

// UserFeed maintains the authenticated user-channel WebSocket.
type UserFeed struct {
	url          string
	auth         *Auth
	walletAddr   string // lowercased, for maker-orders scan
	conn         *websocket.Conn
	connMu       sync.Mutex
	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	fillCh chan FillEvent
	logger *slog.Logger

	// resolveAssetSide maps a CLOB asset id to its Side within the active
	// window, so fills can be attributed without the ingestor needing to
	// know about the Market Book directly.
	resolveAssetSide func(assetID string) (types.Side, bool)
}

// NewUserFeed creates the authenticated user-data feed. resolveAssetSide is
// supplied by the supervisor and must reflect the currently active window.
func NewUserFeed(wsURL string, auth *Auth, resolveAssetSide func(assetID string) (types.Side, bool), logger *slog.Logger) *UserFeed {
	return &UserFeed{
		url:              wsURL,
		auth:             auth,
		walletAddr:       strings.ToLower(auth.FunderAddress().Hex()),
		subscribed:       make(map[string]bool),
		fillCh:           make(chan FillEvent, eventBufferSize),
		resolveAssetSide: resolveAssetSide,
		logger:           logger.With("component", "feed_user"),
	}
}

// Fills returns a read-only channel of normalized fill events.
func (f *UserFeed) Fills() <-chan FillEvent { return f.fillCh }

// Run connects and maintains the WebSocket connection with exponential
// backoff. Blocks until ctx is cancelled.
func (f *UserFeed) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("user feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe adds condition (market) ids to the user channel subscription.
func (f *UserFeed) Subscribe(ids []string) error {
	f.subscribedMu.Lock()
	for _, id := range ids {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()
	return f.writeJSON(types.WSUpdateMsg{AssetIDs: ids, Operation: "subscribe"})
}

// Unsubscribe removes condition ids from the subscription.
func (f *UserFeed) Unsubscribe(ids []string) error {
	f.subscribedMu.Lock()
	for _, id := range ids {
		delete(f.subscribed, id)
	}
	f.subscribedMu.Unlock()
	return f.writeJSON(types.WSUpdateMsg{AssetIDs: ids, Operation: "unsubscribe"})
}

// Close gracefully closes the connection.
func (f *UserFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *UserFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("user feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatchMessage(msg)
	}
}

func (f *UserFeed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(types.WSSubscribeMsg{Type: "user", Auth: f.auth.WSAuthPayload(), AssetIDs: ids})
}

func (f *UserFeed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message")
		return
	}
	if envelope.EventType != "trade" {
		f.logger.Debug("ignoring event", "type", envelope.EventType)
		return
	}

	var evt types.WSTradeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.logger.Error("unmarshal trade event", "error", err)
		return
	}
	if evt.Status != "MATCHED" {
		return
	}

	fill, ok := f.normalize(evt)
	if !ok {
		return
	}

	select {
	case f.fillCh <- fill:
	default:
		f.logger.Warn("fill channel full, dropping event", "order_id", fill.OrderID)
	}
}

// normalize resolves a trade event to a FillEvent. If we were the taker,
// the event's own fields are used directly. If we were the maker, the
// event's maker-orders list is scanned for an entry whose maker-address
// equals our wallet.
func (f *UserFeed) normalize(evt types.WSTradeEvent) (FillEvent, bool) {
	size, err := decimal.NewFromString(evt.Size)
	if err != nil {
		f.logger.Error("parse trade size", "error", err)
		return FillEvent{}, false
	}

	if strings.EqualFold(evt.TraderSide, "TAKER") {
		price, err := TicksFromDecimalString(evt.Price)
		if err != nil {
			f.logger.Error("parse trade price", "error", err)
			return FillEvent{}, false
		}
		side, ok := f.resolveAssetSide(evt.AssetID)
		if !ok {
			return FillEvent{}, false
		}
		return FillEvent{
			OrderID: evt.OrderID, AssetID: evt.AssetID, Side: side,
			Price: price, Size: size, IsMaker: false, Ts: time.Now(),
		}, true
	}

	for _, mo := range evt.MakerOrders {
		if !strings.EqualFold(mo.MakerAddress, f.walletAddr) {
			continue
		}
		price, err := TicksFromDecimalString(mo.Price)
		if err != nil {
			f.logger.Error("parse maker order price", "error", err)
			return FillEvent{}, false
		}
		matched, err := decimal.NewFromString(mo.MatchedSize)
		if err != nil {
			f.logger.Error("parse matched size", "error", err)
			return FillEvent{}, false
		}
		side, ok := f.resolveAssetSide(mo.AssetID)
		if !ok {
			return FillEvent{}, false
		}
		return FillEvent{
			OrderID: mo.OrderID, AssetID: mo.AssetID, Side: side,
			Price: price, Size: matched, IsMaker: true, Ts: time.Now(),
		}, true
	}

	return FillEvent{}, false
}

func (f *UserFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *UserFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *UserFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
