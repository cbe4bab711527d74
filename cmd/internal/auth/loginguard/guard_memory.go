package loginguard

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is an in-memory Guard for tests and single-process setups.
type MemoryGuard struct {
	mu       sync.Mutex
	cfg      Config
	attempts map[string][]time.Time
}

// NewMemoryGuard creates an empty in-memory guard.
func NewMemoryGuard(cfg Config) *MemoryGuard {
	return &MemoryGuard{cfg: cfg, attempts: make(map[string][]time.Time)}
}

func (g *MemoryGuard) IsLockedOut(ctx context.Context, userID string, now time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-g.cfg.Window)
	n := 0
	for _, at := range g.attempts[userID] {
		if !at.Before(cutoff) {
			n++
		}
	}
	return n >= g.cfg.Threshold, nil
}

func (g *MemoryGuard) RecordFailure(ctx context.Context, userID string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Drop entries that have aged out while appending, so memory stays
	// bounded by the window rather than by total failures.
	cutoff := now.Add(-g.cfg.Window)
	kept := g.attempts[userID][:0]
	for _, at := range g.attempts[userID] {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	g.attempts[userID] = append(kept, now)
	return nil
}

func (g *MemoryGuard) Reset(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, userID)
	return nil
}
