// Package supervisor implements the Trading Supervisor: the central
// orchestrator that wires the Market-Data Ingestor, User-Fill Ingestor,
// Market Scheduler, Pricing Gate, Ladder Reconciler, and the risk guard into
// one running bot.
//
// The supervisor's event loop applies feed events to the active window's
// Market Book, Position Ledger, and Order Tracker, but it is not their only
// writer: the reconciliation and arbitrage goroutines add and remove tracker
// orders, and the periodic sync goroutine updates the book and raises the
// ledger. Each of the three guards itself with its own mutex; no single lock
// covers them together. A window roll replaces the book/ledger/
// tracker/reconciler/guard set wholesale rather than mutating them in place.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"btc15mm/internal/book"
	"btc15mm/internal/config"
	"btc15mm/internal/exchange"
	"btc15mm/internal/ledger"
	"btc15mm/internal/oracle"
	"btc15mm/internal/pricing"
	"btc15mm/internal/reconciler"
	"btc15mm/internal/risk"
	"btc15mm/internal/scheduler"
	"btc15mm/internal/store"
	"btc15mm/internal/tracker"
	"btc15mm/pkg/types"
)

// ledgerSyncInterval is how often the supervisor re-fetches the venue's
// authoritative order book and position sizes for the active window, as a
// catch-up against any market-data or fill event the WebSocket feeds
// silently dropped.
const ledgerSyncInterval = 10 * time.Second

// activeWindow bundles the per-window components the supervisor replaces
// wholesale on every roll.
type activeWindow struct {
	info        types.MarketInfo
	windowStart time.Time
	windowEnd   time.Time

	book    *book.Book
	ledger  *ledger.Ledger
	tracker *tracker.Tracker
	recon   *reconciler.Reconciler
	guard   *risk.Guard

	// disabled is set once the risk guard trips, blocking further
	// placements for the remainder of this window. Ingestion (fills,
	// market data) keeps running so the ledger stays accurate.
	disabled atomic.Bool
}

// windowHolder publishes the currently active window to every goroutine
// that needs to read it (the user feed's fill-attribution callback, the
// event loop itself) without them needing their own lock.
type windowHolder struct {
	mu sync.RWMutex
	aw *activeWindow
}

func (h *windowHolder) Get() *activeWindow {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.aw
}

func (h *windowHolder) Set(aw *activeWindow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aw = aw
}

// ResolveSide satisfies the UserFeed's resolveAssetSide dependency: it maps
// a CLOB asset id to its Side within whatever window is currently active.
func (h *windowHolder) ResolveSide(assetID string) (types.Side, bool) {
	aw := h.Get()
	if aw == nil {
		return "", false
	}
	yes, no := aw.book.AssetIDs()
	switch assetID {
	case yes:
		return types.Yes, true
	case no:
		return types.No, true
	default:
		return "", false
	}
}

// Supervisor wires together every subsystem and owns the process lifetime.
type Supervisor struct {
	cfg    config.Config
	logger *slog.Logger

	auth      *exchange.Auth
	client    *exchange.Client
	mktFeed   *exchange.MarketFeed
	usrFeed   *exchange.UserFeed
	discovery *exchange.Discovery
	spot      *oracle.SpotFeed
	sched     *scheduler.Scheduler
	gate      *pricing.Gate

	holder *windowHolder
	store  *store.Store

	// schedulerDone closes once the scheduler stops on its own (its
	// `--markets` budget exhausted) rather than via ctx cancellation, so
	// the entry point can exit 0 instead of waiting on a signal forever.
	schedulerDone chan struct{}
	// haltCh carries a requested process exit code when a window's risk
	// guard trips the circuit breaker specifically, or when a fill breaks the
	// order tracker's invariant — unlike a profit-lock or stop-loss trip,
	// which only disables the tripped window, both halt the whole bot
	// (spec exit code 2).
	haltCh chan int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires all components. If L2 API credentials aren't pre-configured, it
// derives them via L1 (EIP-712) auth before returning.
func New(cfg config.Config, logger *slog.Logger) (*Supervisor, error) {
	auth, err := exchange.NewAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	client := exchange.NewClient(cfg, auth, logger)

	if !auth.HasL2Credentials() {
		logger.Info("no L2 credentials configured, deriving via L1 auth")
		if _, err := client.DeriveAPIKey(context.Background()); err != nil {
			return nil, fmt.Errorf("derive api key: %w", err)
		}
	}

	holder := &windowHolder{}
	mktFeed := exchange.NewMarketFeed(cfg.API.WSMarketURL, logger)
	usrFeed := exchange.NewUserFeed(cfg.API.WSUserURL, auth, holder.ResolveSide, logger)
	discovery := exchange.NewDiscovery(cfg, logger)
	spot := oracle.NewSpotFeed(cfg.Oracle.SpotFeedURL, logger)
	sched := scheduler.New(discovery, spot, cfg.Window, logger)
	gate := pricing.New(cfg.Pricing)

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		cfg:             cfg,
		logger:          logger.With("component", "supervisor"),
		auth:            auth,
		client:          client,
		mktFeed:         mktFeed,
		usrFeed:         usrFeed,
		discovery:       discovery,
		spot:            spot,
		sched:           sched,
		gate:            gate,
		holder:        holder,
		store:         st,
		schedulerDone: make(chan struct{}),
		haltCh:        make(chan int, 1),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// SchedulerDone reports when the scheduler stops on its own after exhausting
// its configured window/time budget, as opposed to the process being
// cancelled. The entry point treats this as a normal exit.
func (s *Supervisor) SchedulerDone() <-chan struct{} { return s.schedulerDone }

// Halted delivers a requested process exit code when a circuit breaker trips
// or a fill exceeds the tracked order's remaining size. Profit-lock and
// stop-loss trips never send here; they only disable their window.
func (s *Supervisor) Halted() <-chan int { return s.haltCh }

// Start performs startup hygiene (a global cancel-all, in case a previous
// run left resting orders behind) and launches every background task and
// the event loop. Returns once everything is running; does not block.
func (s *Supervisor) Start() error {
	cancelCtx, cancelDone := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDone()
	if _, err := s.client.CancelAll(cancelCtx); err != nil {
		s.logger.Error("startup cancel-all failed", "error", err)
	}

	s.wg.Add(5)
	go func() {
		defer s.wg.Done()
		if err := s.mktFeed.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("market feed stopped", "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.usrFeed.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("user feed stopped", "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		err := s.sched.Run(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error("scheduler stopped", "error", err)
			return
		}
		s.logger.Info("scheduler budget exhausted, signaling normal shutdown")
		close(s.schedulerDone)
	}()
	go func() {
		defer s.wg.Done()
		s.spot.Run(s.ctx, s.cfg.Oracle.PollInterval)
	}()
	go func() {
		defer s.wg.Done()
		risk.RunPeriodicSync(s.ctx, ledgerSyncInterval, s.periodicSync, s.logger)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()

	return nil
}

// Stop cancels every background task, sweeps any resting orders as a
// safety net, and waits for clean shutdown.
func (s *Supervisor) Stop() {
	s.logger.Info("shutting down")
	s.cancel()

	cancelCtx, cancelDone := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDone()
	if _, err := s.client.CancelAll(cancelCtx); err != nil {
		s.logger.Error("shutdown cancel-all failed", "error", err)
	}

	s.wg.Wait()

	s.mktFeed.Close()
	s.usrFeed.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err)
	}

	s.logger.Info("shutdown complete")
}

// loop is the single consumer of every event source. It applies feed events
// to the book, ledger and tracker directly; reconciliation and venue calls
// triggered from here run in their own goroutines, guarded by the
// reconciler's own serialization, leaving the loop free to keep draining
// events while a venue round trip is in flight.
func (s *Supervisor) loop() {
	for {
		aw := s.holder.Get()
		var killCh <-chan risk.KillSignal
		if aw != nil {
			killCh = aw.guard.KillCh()
		}

		select {
		case <-s.ctx.Done():
			return

		case evt := <-s.sched.Events():
			s.handleRoll(evt)

		case evt := <-s.mktFeed.BookEvents():
			s.handleBookSnapshot(evt)

		case evt := <-s.mktFeed.BestBidAskEvents():
			s.handleBestBidAsk(evt)

		case fill := <-s.usrFeed.Fills():
			s.handleFill(fill)

		case kill := <-killCh:
			s.handleKill(kill)
		}
	}
}

// handleRoll applies a window transition atomically: cancel the expiring
// window's resting orders, rebuild book/ledger/tracker/reconciler/guard for
// the incoming window, and switch both feeds' subscriptions.
func (s *Supervisor) handleRoll(evt scheduler.RollEvent) {
	old := s.holder.Get()

	if old != nil {
		s.logger.Info("window closing", "market_id", old.info.MarketID, "slug", old.info.Slug)
		cancelCtx, cancelDone := context.WithTimeout(context.Background(), 10*time.Second)
		if err := old.recon.CancelAllSide(cancelCtx, types.Yes); err != nil {
			s.logger.Error("roll: cancel yes side failed", "error", err)
		}
		if err := old.recon.CancelAllSide(cancelCtx, types.No); err != nil {
			s.logger.Error("roll: cancel no side failed", "error", err)
		}
		if _, err := s.client.CancelMarketOrders(cancelCtx, old.info.MarketID); err != nil {
			s.logger.Error("roll: market-wide cancel failed", "error", err)
		}
		cancelDone()
		s.client.UnregisterMarket(old.info.MarketID)
		if err := s.usrFeed.Unsubscribe([]string{old.info.MarketID}); err != nil {
			s.logger.Error("roll: user feed unsubscribe failed", "error", err)
		}
	}

	info := evt.Window
	bk := book.New(info.MarketID, info.Slug, info.AssetIDYes, info.AssetIDNo, info.Strike.String(), info.EndTS)
	led := ledger.New()
	trk := tracker.New()
	recon := reconciler.New(s.client, trk, s.gate, s.cfg.Ladder, s.logger)
	guard := risk.NewGuard(info.MarketID, s.cfg.Risk, s.logger)

	aw := &activeWindow{
		info:        info,
		windowStart: evt.WindowStart,
		windowEnd:   evt.WindowEnd,
		book:        bk,
		ledger:      led,
		tracker:     trk,
		recon:       recon,
		guard:       guard,
	}
	s.holder.Set(aw)

	s.client.RegisterMarket(info.MarketID, func(side types.Side) string {
		yes, no := bk.AssetIDs()
		if side == types.Yes {
			return yes
		}
		return no
	})

	var oldIDs []string
	if old != nil {
		yes, no := old.book.AssetIDs()
		oldIDs = []string{yes, no}
	}
	newIDs := []string{info.AssetIDYes, info.AssetIDNo}

	switchCtx, switchDone := context.WithTimeout(context.Background(), 10*time.Second)
	defer switchDone()
	if err := s.mktFeed.Switch(switchCtx, oldIDs, newIDs); err != nil {
		s.logger.Error("roll: market feed switch failed", "error", err)
	}
	if err := s.usrFeed.Subscribe([]string{info.MarketID}); err != nil {
		s.logger.Error("roll: user feed subscribe failed", "error", err)
	}

	s.logger.Info("window opened",
		"market_id", info.MarketID, "slug", info.Slug,
		"strike", info.Strike.String(), "end_ts", info.EndTS, "is_first", evt.IsFirst)

	if err := s.store.LogEvent(store.SessionEvent{Kind: "window_open", MarketID: info.MarketID, Detail: info.Slug}); err != nil {
		s.logger.Error("session log write failed", "error", err)
	}
}

// handleBookSnapshot applies a full order-book snapshot. Every "book" event
// is applied this way, not only the first per asset: its best levels are
// converted to ticks here, and applying them marks that asset's side synced.
func (s *Supervisor) handleBookSnapshot(evt types.WSBookEvent) {
	aw := s.holder.Get()
	if aw == nil {
		return
	}

	bid, err := bestLevel(evt.Buys, true)
	if err != nil {
		s.logger.Warn("book snapshot: unparseable bid", "asset", evt.AssetID, "error", err)
	}
	ask, err := bestLevel(evt.Sells, false)
	if err != nil {
		s.logger.Warn("book snapshot: unparseable ask", "asset", evt.AssetID, "error", err)
	}

	if aw.book.ApplyBestBidAsk(evt.AssetID, bid, ask) && aw.book.Synced() {
		s.onMaterialUpdate(aw)
	}
}

// handleBestBidAsk applies an incremental update. Either side may be blank
// on the wire (meaning "unchanged"), so a blank field is filled in from the
// book's current value for that asset rather than clearing it to unknown.
func (s *Supervisor) handleBestBidAsk(evt types.WSBestBidAsk) {
	aw := s.holder.Get()
	if aw == nil {
		return
	}

	var bid, ask *types.Ticks
	if evt.BestBid != "" {
		if t, err := exchange.TicksFromDecimalString(evt.BestBid); err == nil {
			bid = &t
		} else {
			s.logger.Warn("bbo: unparseable bid", "asset", evt.AssetID, "error", err)
		}
	}
	if evt.BestAsk != "" {
		if t, err := exchange.TicksFromDecimalString(evt.BestAsk); err == nil {
			ask = &t
		} else {
			s.logger.Warn("bbo: unparseable ask", "asset", evt.AssetID, "error", err)
		}
	}

	bid, ask = fillUnset(aw.book, evt.AssetID, bid, ask)

	if aw.book.ApplyBestBidAsk(evt.AssetID, bid, ask) && aw.book.Synced() {
		s.onMaterialUpdate(aw)
	}
}

// fillUnset preserves whichever side of (bid, ask) the event left blank,
// since ApplyBestBidAsk overwrites both sides unconditionally.
func fillUnset(bk *book.Book, assetID string, bid, ask *types.Ticks) (*types.Ticks, *types.Ticks) {
	if bid != nil && ask != nil {
		return bid, ask
	}
	snap := bk.Snapshot()
	yes, _ := bk.AssetIDs()
	curBid, curAsk := snap.BestBidNo, snap.BestAskNo
	if assetID == yes {
		curBid, curAsk = snap.BestBidYes, snap.BestAskYes
	}
	if bid == nil {
		bid = curBid
	}
	if ask == nil {
		ask = curAsk
	}
	return bid, ask
}

// onMaterialUpdate runs once a book update actually changed something and
// both sides are synced: it checks for a synthetic-arbitrage take, then
// kicks off a market-data-driven reconciliation cycle per side.
func (s *Supervisor) onMaterialUpdate(aw *activeWindow) {
	if aw.disabled.Load() {
		return
	}

	s.tryArbitrage(aw)

	for _, side := range []types.Side{types.Yes, types.No} {
		side := side
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			computeGates := func() pricing.Gates {
				return s.gate.Evaluate(side, aw.book.Snapshot(), aw.ledger.Snapshot(), s.cfg.Ladder.Depth)
			}
			if err := aw.recon.ReconcileMarketData(ctx, aw.info.MarketID, side, computeGates); err != nil {
				s.logger.Error("market-data reconcile failed", "side", side, "error", err)
			}
		}()
	}
}

// tryArbitrage fires the supplemented synthetic-arbitrage trade when the
// Pricing Gate detects one: two simultaneous aggressive buys at the current
// best asks, bypassing the ladder reconciler since this is a one-off take
// rather than a maintained resting ladder. Placed orders are still added to
// the tracker so later diffs see the resulting size.
func (s *Supervisor) tryArbitrage(aw *activeWindow) {
	sig, ok := s.gate.Arbitrage(aw.book.Snapshot(), aw.ledger.Snapshot(), decimal.NewFromFloat(s.cfg.Pricing.BaseSize))
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		orders := []types.UserOrder{
			{Side: types.Yes, Price: sig.AskYes, Size: sig.Size, OrderType: types.OrderTypeGTC},
			{Side: types.No, Price: sig.AskNo, Size: sig.Size, OrderType: types.OrderTypeGTC},
		}
		placed, err := s.client.PlaceOrders(ctx, aw.info.MarketID, orders)
		if err != nil {
			s.logger.Error("arbitrage place failed", "error", err)
			return
		}
		for _, po := range placed {
			if po.Err != nil {
				s.logger.Warn("arbitrage order rejected", "side", po.Side, "error", po.Err)
				continue
			}
			aw.tracker.Add(po.OrderID, po.Side, po.Price, po.Size)
		}
		s.logger.Info("synthetic arbitrage executed", "profit_ticks", sig.ProfitTicks, "size", sig.Size.String())
	}()
}

// handleFill applies a fill to the ledger and tracker, checks the risk
// guard, and — if still enabled — kicks off a fill-driven reconciliation.
func (s *Supervisor) handleFill(fill exchange.FillEvent) {
	aw := s.holder.Get()
	if aw == nil {
		return
	}

	aw.ledger.ApplyFill(fill.Side, fill.Price, fill.Size)
	if aw.tracker.ApplyFill(fill.OrderID, fill.Size) {
		s.logger.Error("invariant violation: fill size exceeded tracked remaining size",
			"order_id", fill.OrderID, "side", fill.Side, "size", fill.Size.String())
		select {
		case s.haltCh <- 2:
		default:
		}
		return
	}

	aw.guard.Check(aw.ledger.Snapshot())

	if err := s.store.RecordTrade(store.TradeRecord{
		MarketID: aw.info.MarketID,
		OrderID:  fill.OrderID,
		Side:     fill.Side,
		Price:    fill.Price,
		Size:     fill.Size,
		IsMaker:  fill.IsMaker,
		Ts:       fill.Ts,
	}); err != nil {
		s.logger.Error("trade record write failed", "error", err)
	}

	if aw.disabled.Load() || aw.guard.Tripped() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		gates := s.gate.Evaluate(fill.Side, aw.book.Snapshot(), aw.ledger.Snapshot(), s.cfg.Ladder.Depth)
		if err := aw.recon.ReconcileFill(ctx, aw.info.MarketID, fill.Side, gates); err != nil {
			s.logger.Error("fill reconcile failed", "side", fill.Side, "error", err)
		}
	}()
}

// handleKill disables further placements for the remainder of the window
// and sweeps both sides' resting orders.
func (s *Supervisor) handleKill(kill risk.KillSignal) {
	aw := s.holder.Get()
	if aw == nil {
		return
	}
	aw.disabled.Store(true)
	s.logger.Error("risk guard tripped, halting placements for this window",
		"market_id", kill.MarketID, "reason", kill.Reason)

	if err := s.store.LogEvent(store.SessionEvent{Kind: "kill", MarketID: kill.MarketID, Detail: kill.Reason}); err != nil {
		s.logger.Error("session log write failed", "error", err)
	}

	if kill.Kind == risk.KindCircuitBreaker {
		select {
		case s.haltCh <- 2:
		default:
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := aw.recon.CancelAllSide(ctx, types.Yes); err != nil {
			s.logger.Error("kill: cancel yes side failed", "error", err)
		}
		if err := aw.recon.CancelAllSide(ctx, types.No); err != nil {
			s.logger.Error("kill: cancel no side failed", "error", err)
		}
	}()
}

// periodicSync runs the two independent self-heal checks the supervisor
// performs on a fixed cadence, each guarding against a different silent
// drop: periodicBookSync re-derives best-bid/ask from the order book in
// case a market-data event never arrived, and periodicLedgerSync re-derives
// position size from the venue's own books in case a fill event never
// arrived. A failure in one does not prevent the other from running.
func (s *Supervisor) periodicSync(ctx context.Context) error {
	bookErr := s.periodicBookSync(ctx)
	ledgerErr := s.periodicLedgerSync(ctx)
	if bookErr != nil {
		return bookErr
	}
	return ledgerErr
}

// periodicBookSync re-fetches the venue's authoritative order book for the
// active window's two tokens, independent of the WebSocket feed, so a
// silently dropped market-data event eventually self-heals.
func (s *Supervisor) periodicBookSync(ctx context.Context) error {
	aw := s.holder.Get()
	if aw == nil {
		return nil
	}

	yes, no := aw.book.AssetIDs()
	for _, assetID := range []string{yes, no} {
		resp, err := s.client.GetOrderBook(ctx, assetID)
		if err != nil {
			return fmt.Errorf("sync %s: %w", assetID, err)
		}
		bid, err := bestLevel(resp.Bids, true)
		if err != nil {
			s.logger.Warn("periodic book sync: unparseable bid", "asset", assetID, "error", err)
			continue
		}
		ask, err := bestLevel(resp.Asks, false)
		if err != nil {
			s.logger.Warn("periodic book sync: unparseable ask", "asset", assetID, "error", err)
			continue
		}
		if aw.book.ApplyBestBidAsk(assetID, bid, ask) && aw.book.Synced() {
			s.onMaterialUpdate(aw)
		}
	}
	return nil
}

// periodicLedgerSync implements the design notes' "periodic ledger sync"
// policy: query the venue's positions endpoint for the active window's
// condition id and, for each side where the venue reports more shares than
// the ledger tracks, raise the ledger up to match. It never lowers a side —
// reporting lag at the venue must never look like a position shrinking.
func (s *Supervisor) periodicLedgerSync(ctx context.Context) error {
	aw := s.holder.Get()
	if aw == nil {
		return nil
	}

	positions, err := s.client.GetPositions(ctx, aw.info.MarketID)
	if err != nil {
		return fmt.Errorf("sync positions for %s: %w", aw.info.MarketID, err)
	}

	yes, no := aw.book.AssetIDs()
	for _, pos := range positions {
		var side types.Side
		switch pos.Asset {
		case yes:
			side = types.Yes
		case no:
			side = types.No
		default:
			continue
		}

		qty, err := decimal.NewFromString(pos.Size)
		if err != nil {
			s.logger.Warn("periodic ledger sync: unparseable position size", "asset", pos.Asset, "error", err)
			continue
		}
		price, err := exchange.TicksFromDecimalString(pos.AvgPrice)
		if err != nil {
			s.logger.Warn("periodic ledger sync: unparseable avg price", "asset", pos.Asset, "error", err)
			continue
		}

		trackedQty := sideQty(aw.ledger.Snapshot(), side)
		aw.ledger.AdjustUp(side, qty, price)
		if newQty := sideQty(aw.ledger.Snapshot(), side); !newQty.Equal(trackedQty) {
			s.logger.Warn("periodic ledger sync: caught a missed fill",
				"market_id", aw.info.MarketID, "side", side,
				"tracked_qty", trackedQty.String(), "venue_qty", newQty.String())
		}
	}
	return nil
}

// sideQty returns Qy or Qn for side, used only to compare before/after an
// AdjustUp call for logging.
func sideQty(s ledger.Snapshot, side types.Side) decimal.Decimal {
	if side == types.Yes {
		return s.Qy
	}
	return s.Qn
}

// bestLevel returns the best (max for bids, min for asks) price among a
// list of venue price levels, or (nil, nil) for an empty list.
func bestLevel(levels []types.PriceLevel, wantMax bool) (*types.Ticks, error) {
	if len(levels) == 0 {
		return nil, nil
	}
	var best types.Ticks
	for i, lvl := range levels {
		t, err := exchange.TicksFromDecimalString(lvl.Price)
		if err != nil {
			return nil, fmt.Errorf("parse level %q: %w", lvl.Price, err)
		}
		if i == 0 {
			best = t
			continue
		}
		if wantMax && t > best {
			best = t
		}
		if !wantMax && t < best {
			best = t
		}
	}
	return &best, nil
}
