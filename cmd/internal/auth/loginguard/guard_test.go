package loginguard

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGuard_LocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(Config{Threshold: 3, Window: 15 * time.Minute})
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		if err := g.RecordFailure(ctx, "u1", now); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	locked, err := g.IsLockedOut(ctx, "u1", now)
	if err != nil || locked {
		t.Fatalf("below threshold must not lock: locked=%v err=%v", locked, err)
	}

	if err := g.RecordFailure(ctx, "u1", now); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	locked, err = g.IsLockedOut(ctx, "u1", now)
	if err != nil || !locked {
		t.Fatalf("at threshold must lock: locked=%v err=%v", locked, err)
	}
}

func TestMemoryGuard_WindowSlides(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(Config{Threshold: 3, Window: 15 * time.Minute})
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := g.RecordFailure(ctx, "u1", now); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	later := now.Add(16 * time.Minute)
	locked, err := g.IsLockedOut(ctx, "u1", later)
	if err != nil || locked {
		t.Fatalf("failures outside window must not count: locked=%v err=%v", locked, err)
	}
}

func TestMemoryGuard_ResetClearsWindow(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(Config{Threshold: 1, Window: 15 * time.Minute})
	now := time.Now().UTC()

	if err := g.RecordFailure(ctx, "u1", now); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := g.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	locked, err := g.IsLockedOut(ctx, "u1", now)
	if err != nil || locked {
		t.Fatalf("reset must clear the window: locked=%v err=%v", locked, err)
	}
}

func TestMemoryGuard_AccountsAreIndependent(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(Config{Threshold: 1, Window: 15 * time.Minute})
	now := time.Now().UTC()

	if err := g.RecordFailure(ctx, "u1", now); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	locked, err := g.IsLockedOut(ctx, "u2", now)
	if err != nil || locked {
		t.Fatalf("other accounts must be unaffected: locked=%v err=%v", locked, err)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("STEEN_AUTH_LOCKOUT_THRESHOLD", "8")
	t.Setenv("STEEN_AUTH_LOCKOUT_WINDOW", "5m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Threshold != 8 || cfg.Window != 5*time.Minute {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadConfigFromEnv_RejectsZeroThreshold(t *testing.T) {
	t.Setenv("STEEN_AUTH_LOCKOUT_THRESHOLD", "0")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
