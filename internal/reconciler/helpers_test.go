package reconciler

import (
	"io"
	"log/slog"

	"btc15mm/internal/config"
)

func defaultLadderConfig() config.LadderConfig {
	return config.LadderConfig{Depth: 5, MinOrderSize: 1, Hysteresis: 0.5, BatchMax: 15}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
