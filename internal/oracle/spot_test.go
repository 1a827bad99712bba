package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDisabledFeedNeverReportsFresh(t *testing.T) {
	t.Parallel()
	f := NewSpotFeed("", testLogger())
	if f.Enabled() {
		t.Fatal("expected feed with empty url to be disabled")
	}
	if _, ok := f.Price(); ok {
		t.Fatal("expected no price from a disabled feed")
	}
}

func TestPollUpdatesPrice(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": "65432.10"}`))
	}))
	defer srv.Close()

	f := NewSpotFeed(srv.URL, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.poll(ctx)

	price, ok := f.Price()
	if !ok {
		t.Fatal("expected a fresh price after poll")
	}
	if price.String() != "65432.1" {
		t.Errorf("price = %s, want 65432.1", price.String())
	}
}

func TestPollIgnoresBadResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewSpotFeed(srv.URL, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.poll(ctx)

	if _, ok := f.Price(); ok {
		t.Fatal("expected no price after a failed poll")
	}
}
