// Package watch re-registers reference recordings when they appear or
// change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event for a file
// before it is registered.
const DefaultDebounce = 500 * time.Millisecond

// RegisterFunc registers the reference file name, relative to the watched
// directory.
type RegisterFunc func(ctx context.Context, name string) error

// Options configures a Watcher.
type Options struct {
	// Include lists doublestar patterns matched against file names.
	// Empty matches every file.
	Include []string

	// Debounce is the per-file quiet period. Zero means DefaultDebounce.
	Debounce time.Duration

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Watcher watches one directory (not recursively).
type Watcher struct {
	dir      string
	register RegisterFunc
	include  []string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a Watcher for dir.
func New(dir string, register RegisterFunc, opts Options) (*Watcher, error) {
	for _, p := range opts.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("watch: invalid pattern %q", p)
		}
	}
	w := &Watcher{
		dir:      dir,
		register: register,
		include:  opts.Include,
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// Run watches until ctx is cancelled. Registration errors are logged and
// do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	w.logger.Info("watching reference directory", "dir", w.dir)

	// pending maps file name to the time its debounce window ends.
	pending := make(map[string]time.Time)
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	rearm := func() {
		if armed && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		armed = false
		if len(pending) == 0 {
			return
		}
		next := slices.MinFunc(slices.Collect(maps.Values(pending)), time.Time.Compare)
		timer.Reset(max(time.Until(next), 0))
		armed = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, keep := w.relevant(event)
			if !keep {
				continue
			}
			pending[name] = time.Now().Add(w.debounce)
			rearm()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			armed = false
			now := time.Now()
			due := make([]string, 0, len(pending))
			for name, at := range pending {
				if !at.After(now) {
					due = append(due, name)
				}
			}
			slices.Sort(due)
			for _, name := range due {
				delete(pending, name)
				if err := w.register(ctx, name); err != nil {
					w.logger.Warn("watch register failed", "file", name, "error", err)
				}
			}
			rearm()
		}
	}
}

// relevant reports whether event should trigger registration and returns
// the file name relative to the watched directory.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, w.matches(name)
}

func (w *Watcher) matches(name string) bool {
	if len(w.include) == 0 {
		return true
	}
	for _, p := range w.include {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
