package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run loads config, wires the App, and serves until SIGINT/SIGTERM. It is
// the whole of cmd/steenauth; returning the error keeps defers effective.
func Run() error {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := New(cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
