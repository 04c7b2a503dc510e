package otp

import (
	"log/slog"
	"os"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

// Config configures a channel. Only Paths[0] is used; it is the channel
// directory holding keys/, the ledger files and the markers.
type Config struct {
	// Paths contains the channel directory. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is kept free on the volume after generation.
	MinimumFreeGB uint
	// Layout is the channel geometry. Zero fields take the production values.
	Layout keyunit.Layout
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
	// Workers bounds parallel unit file writes. Zero means one per CPU.
	Workers int
}

func defaultLogger() *slog.Logger { // A
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}
