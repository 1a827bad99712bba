// feed_market.go implements the Market-Data Ingestor (F): a single
// WebSocket to the venue's public book channel, subscribed to the two
// outcome tokens of the current window. It forwards every "book" event as a
// full snapshot and every best_bid_ask event as an incremental update, with
// prices still as decimal strings; the supervisor converts them to ticks and
// applies them to the Market Book.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"btc15mm/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 60 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 256
)

// MarketFeed maintains the public market-data WebSocket for the two
// outcome tokens of the currently active window.
type MarketFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	bookCh chan types.WSBookEvent
	bboCh  chan types.WSBestBidAsk

	logger *slog.Logger
}

// NewMarketFeed creates the public market-data feed.
func NewMarketFeed(wsURL string, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		bookCh:     make(chan types.WSBookEvent, eventBufferSize),
		bboCh:      make(chan types.WSBestBidAsk, eventBufferSize),
		logger:     logger.With("component", "feed_market"),
	}
}

// BookEvents returns a read-only channel of full book snapshots — every
// "book" event the venue sends, not only the first per asset.
func (f *MarketFeed) BookEvents() <-chan types.WSBookEvent { return f.bookCh }

// BestBidAskEvents returns a read-only channel of incremental bbo updates.
func (f *MarketFeed) BestBidAskEvents() <-chan types.WSBestBidAsk { return f.bboCh }

// Run connects and maintains the WebSocket connection with exponential
// backoff (1s -> 60s), preserving subscription intent across reconnects.
// Blocks until ctx is cancelled.
func (f *MarketFeed) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("market feed disconnected, reconnecting", "error", err, "backoff", backoff)

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

// Switch unsubscribes from the outgoing window's token ids and subscribes
// to the incoming window's, for the Market Scheduler (H). Callers must
// treat the book as unsynced until fresh snapshots arrive for both new ids.
func (f *MarketFeed) Switch(ctx context.Context, oldIDs, newIDs []string) error {
	if len(oldIDs) > 0 {
		if err := f.Unsubscribe(oldIDs); err != nil {
			return fmt.Errorf("unsubscribe old window: %w", err)
		}
	}
	return f.Subscribe(newIDs)
}

// Subscribe adds asset IDs to the market channel subscription.
func (f *MarketFeed) Subscribe(ids []string) error {
	f.subscribedMu.Lock()
	for _, id := range ids {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(types.WSUpdateMsg{AssetIDs: ids, Operation: "subscribe"})
}

// Unsubscribe removes asset IDs from the subscription.
func (f *MarketFeed) Unsubscribe(ids []string) error {
	f.subscribedMu.Lock()
	for _, id := range ids {
		delete(f.subscribed, id)
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(types.WSUpdateMsg{AssetIDs: ids, Operation: "unsubscribe"})
}

// Close gracefully closes the connection.
func (f *MarketFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *MarketFeed) connectAndRead(ctx context.Context) error {
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
	f.logger.Info("market feed connected")

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

func (f *MarketFeed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(types.WSSubscribeMsg{Type: "market", AssetIDs: ids})
}

func (f *MarketFeed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message")
		return
	}

	switch envelope.EventType {
	case "book":
		var evt types.WSBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		select {
		case f.bookCh <- evt:
		default:
			f.logger.Warn("book channel full, dropping event", "asset", evt.AssetID)
		}

	case "best_bid_ask":
		var evt types.WSBestBidAsk
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal best_bid_ask event", "error", err)
			return
		}
		select {
		case f.bboCh <- evt:
		default:
			f.logger.Warn("bbo channel full, dropping event", "asset", evt.AssetID)
		}

	default:
		f.logger.Debug("ignoring event", "type", envelope.EventType)
	}
}

func (f *MarketFeed) pingLoop(ctx context.Context) {
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

func (f *MarketFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *MarketFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}

// TicksFromDecimalString converts a decimal-fraction price string (e.g.
// "0.495") to the nearest integer tick, as required when translating
// market-data events before notifying the Market Book.
func TicksFromDecimalString(s string) (types.Ticks, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	raw := v * float64(types.MaxTicks)
	nearest := int64(raw/float64(types.TickSize)+0.5) * int64(types.TickSize)
	return types.Ticks(nearest), nil
}
