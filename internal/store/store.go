// Package store provides an append-only audit trail for a trading session:
// a session-event log (window opens/closes, risk trips) and, when enabled,
// a JSONL trade record of every fill. This is not position persistence —
// the Position Ledger is always rebuilt fresh from fills observed within a
// window, so there is nothing to recover across a restart. Grounded on the
// teacher's atomic-write discipline (os.WriteFile then os.Rename) adapted
// from "replace a mutable position file" to "append one line per event",
// since an audit trail is never rewritten, only grown.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btc15mm/internal/config"
	"btc15mm/pkg/types"
)

// TradeRecord is one fill, persisted verbatim for later reconciliation
// against the venue's own trade history.
type TradeRecord struct {
	Ts       time.Time       `json:"ts"`
	MarketID string          `json:"market_id"`
	OrderID  string          `json:"order_id"`
	Side     types.Side      `json:"side"`
	Price    types.Ticks     `json:"price"`
	Size     decimal.Decimal `json:"size"`
	IsMaker  bool            `json:"is_maker"`
}

// SessionEvent is a coarse-grained lifecycle event: window rolls, risk
// trips, startup/shutdown. Kept separate from trade records so a dashboard
// or postmortem can tail just the session log without wading through every
// fill.
type SessionEvent struct {
	Ts       time.Time `json:"ts"`
	Kind     string    `json:"kind"`
	MarketID string    `json:"market_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// Store appends JSON lines to two files under a data directory:
// session.jsonl (always) and trades.jsonl (only when RecordTrades is set).
type Store struct {
	mu sync.Mutex

	sessionFile *os.File
	tradesFile  *os.File // nil when recording is disabled
}

// Open creates the data directory if needed and opens (or creates) both
// log files in append mode.
func Open(cfg config.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	sessionFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "session.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	s := &Store{sessionFile: sessionFile}

	if cfg.RecordTrades {
		tradesFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "trades.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			sessionFile.Close()
			return nil, fmt.Errorf("open trades log: %w", err)
		}
		s.tradesFile = tradesFile
	}

	return s, nil
}

// Close flushes and closes both open log files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.tradesFile != nil {
		if cerr := s.tradesFile.Close(); cerr != nil {
			err = cerr
		}
	}
	if cerr := s.sessionFile.Close(); cerr != nil {
		err = cerr
	}
	return err
}

// LogEvent appends a session event. Stamp Ts before calling if the zero
// value isn't what the caller wants recorded.
func (s *Store) LogEvent(evt SessionEvent) error {
	if evt.Ts.IsZero() {
		evt.Ts = time.Now().UTC()
	}
	return s.appendLine(s.sessionFile, evt)
}

// RecordTrade appends a fill to the trade log. A no-op if trade recording
// was not enabled at Open.
func (s *Store) RecordTrade(rec TradeRecord) error {
	if s.tradesFile == nil {
		return nil
	}
	if rec.Ts.IsZero() {
		rec.Ts = time.Now().UTC()
	}
	return s.appendLine(s.tradesFile, rec)
}

func (s *Store) appendLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}
