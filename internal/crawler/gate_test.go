package crawler

import (
	"context"
	"testing"
	"time"
)

// TestGate tests permit accounting.
func TestGate(t *testing.T) {
	t.Parallel()

	t.Run("default capacity", func(t *testing.T) {
		t.Parallel()

		if got := NewGate(0).Capacity(); got != DefaultMaxConcurrency {
			t.Errorf("Capacity() = %d, want %d", got, DefaultMaxConcurrency)
		}
	})

	t.Run("acquire blocks when exhausted", func(t *testing.T) {
		t.Parallel()

		g := NewGate(1)
		if err := g.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := g.Acquire(ctx); err == nil {
			t.Fatal("expected Acquire to fail while the only permit is held")
		}

		g.Release()
		if err := g.Acquire(context.Background()); err != nil {
			t.Errorf("Acquire after Release failed: %v", err)
		}
		g.Release()
	})

	t.Run("rate limiter spaces out calls", func(t *testing.T) {
		t.Parallel()

		g := NewGate(5, WithRateLimit(20, 1))
		start := time.Now()
		for range 3 {
			if err := g.Acquire(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			g.Release()
		}
		// Burst 1 at 20/s: the second and third call wait ~50ms each.
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("elapsed = %v, want >= 80ms", elapsed)
		}
	})

	t.Run("canceled rate wait returns the permit", func(t *testing.T) {
		t.Parallel()

		g := NewGate(1, WithRateLimit(0.001, 1))
		// Consume the single burst token.
		if err := g.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		g.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := g.Acquire(ctx); err == nil {
			t.Fatal("expected rate wait to fail")
		}

		// The semaphore permit must be free again.
		if !g.sem.TryAcquire(1) {
			t.Error("permit leaked after failed rate wait")
		}
	})

	t.Run("non-positive rate disables limiter", func(t *testing.T) {
		t.Parallel()

		if g := NewGate(1, WithRateLimit(0, 1)); g.limiter != nil {
			t.Error("limiter should be nil")
		}
	})
}
