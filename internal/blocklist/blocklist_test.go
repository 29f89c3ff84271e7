package blocklist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestParse tests the file format.
func TestParse(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"# contracts",
		"0xABCdef0000000000000000000000000000000001",
		"",
		"   0x00000000000000000000000000000000000000ff   # trailing comment",
		"0xabcdef0000000000000000000000000000000001",
	}, "\n")

	set, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
	if !set.Contains("0xabcdef0000000000000000000000000000000001") {
		t.Error("mixed-case entry should be normalized")
	}
	if !set.Contains("0x00000000000000000000000000000000000000ff") {
		t.Error("entry with trailing comment missing")
	}
}

// TestListReload tests loading and the keep-previous rule.
func TestListReload(t *testing.T) {
	t.Parallel()

	t.Run("loads file and calls hook", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "blocklist.txt")
		if err := os.WriteFile(path, []byte("0xa\n0xb\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		var hooked atomic.Int32
		l := New(path, WithLogger(quietLogger()), WithReloadHook(func(n int) { hooked.Store(int32(n)) })) //nolint:gosec // small
		if l.Len() != 0 {
			t.Errorf("Len() before reload = %d, want 0", l.Len())
		}
		if err := l.Reload(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !l.Current().Contains("0xa") || l.Len() != 2 {
			t.Errorf("Current() does not hold the file contents")
		}
		if hooked.Load() != 2 {
			t.Errorf("hook got %d, want 2", hooked.Load())
		}
	})

	t.Run("missing file keeps previous set", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "blocklist.txt")
		if err := os.WriteFile(path, []byte("0xa\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		l := New(path, WithLogger(quietLogger()))
		if err := l.Reload(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
		if err := l.Reload(); err == nil {
			t.Fatal("expected error for missing file")
		}
		if !l.Current().Contains("0xa") {
			t.Error("previous set should stay in effect")
		}
	})

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()

		l := New("", WithLogger(quietLogger()))
		if err := l.Reload(); !errors.Is(err, ErrNoPath) {
			t.Errorf("err = %v, want ErrNoPath", err)
		}
		if l.Current().Contains("0xa") {
			t.Error("empty list should block nothing")
		}
	})
}

// TestListWatch tests reload on file change.
func TestListWatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blocklist.txt")
	if err := os.WriteFile(path, []byte("0xa\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l := New(path, WithLogger(quietLogger()))
	if err := l.Reload(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("0xa\n0xb\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !l.Current().Contains("0xb") {
		if time.Now().After(deadline) {
			t.Fatal("blocklist was not reloaded after the file changed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

// TestListWatchInterval tests the periodic reload.
func TestListWatchInterval(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blocklist.txt")
	if err := os.WriteFile(path, []byte("0xa\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	l := New(path,
		WithLogger(quietLogger()),
		WithInterval(30*time.Millisecond),
		WithReloadHook(func(int) { reloads.Add(1) }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := l.Watch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloads.Load() < 2 {
		t.Errorf("reloads = %d, want at least 2", reloads.Load())
	}
}
