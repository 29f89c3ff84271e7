package blocklist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nao1215/trustcrawl/internal/model"
)

// ErrNoPath is returned by Reload when the List has no file configured.
var ErrNoPath = errors.New("blocklist path is not configured")

// debounce is how long Watch waits after a file event before reloading.
const debounce = 200 * time.Millisecond

// List is a reloadable blocklist. It is safe for concurrent use.
type List struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	onReload func(size int)

	current atomic.Pointer[model.StaticSet]
}

// Option configures a List.
type Option func(*List)

// WithInterval reloads the file every d in Watch. Zero disables the timer.
func WithInterval(d time.Duration) Option {
	return func(l *List) {
		l.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *List) {
		l.logger = logger
	}
}

// WithReloadHook registers fn to be called with the new size after every
// successful reload.
func WithReloadHook(fn func(size int)) Option {
	return func(l *List) {
		l.onReload = fn
	}
}

// New creates an empty List backed by path. Call Reload to load it.
// An empty path yields a List that never blocks anything.
func New(path string, opts ...Option) *List {
	l := &List{path: path}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.current.Store(model.NewStaticSet())
	return l
}

// Current returns the set in effect. The returned set is never modified.
func (l *List) Current() model.AddressSet {
	return l.current.Load()
}

// Len returns the size of the set in effect.
func (l *List) Len() int {
	return l.current.Load().Len()
}

// Path returns the backing file.
func (l *List) Path() string {
	return l.path
}

// Reload reads the file and swaps in the new set.
// On failure the previous set stays in effect.
func (l *List) Reload() error {
	if l.path == "" {
		return ErrNoPath
	}
	set, err := LoadFile(l.path)
	if err != nil {
		return err
	}
	l.current.Store(set)
	l.logger.Info("blocklist loaded", "path", l.path, "addresses", set.Len())
	if l.onReload != nil {
		l.onReload(set.Len())
	}
	return nil
}

// Watch reloads the list on the configured interval and whenever the file
// is written, created or renamed into place. It blocks until ctx ends.
func (l *List) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic replacements (write temp, rename) are seen.
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	name := filepath.Clean(l.path)

	var tick <-chan time.Time
	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			l.reloadAndLog("interval")
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(debounce)
			}
		case <-pending:
			pending = nil
			l.reloadAndLog("file change")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("blocklist watcher error", "error", err)
		}
	}
}

func (l *List) reloadAndLog(trigger string) {
	if err := l.Reload(); err != nil {
		l.logger.Warn("blocklist reload failed, keeping previous list",
			"path", l.path,
			"trigger", trigger,
			"error", err,
		)
	}
}

// LoadFile reads a blocklist file.
func LoadFile(path string) (*model.StaticSet, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one address per line.
func Parse(r io.Reader) (*model.StaticSet, error) {
	addrs := make([]model.Address, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		addr, err := model.NewAddress(line)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blocklist: %w", err)
	}
	return model.NewStaticSet(addrs...), nil
}
