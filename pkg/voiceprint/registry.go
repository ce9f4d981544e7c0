package voiceprint

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Options configures an extractor backend.
type Options struct {
	// SampleRate is the input sample rate in Hz. Zero means 16000.
	SampleRate int

	// Logger receives backend diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) sampleRate() int {
	if o.SampleRate > 0 {
		return o.SampleRate
	}
	return 16000
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Factory opens an extractor backend.
type Factory func(opts Options) (Extractor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to Open under name. Registering the
// same name twice panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("voiceprint: Register called twice for backend " + name)
	}
	registry[name] = f
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open opens the backend registered under name.
func Open(name string, opts Options) (Extractor, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voiceprint: unknown model %q (available: %v)", name, Backends())
	}
	ext, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: open %s: %w", name, err)
	}
	opts.logger().Debug("voiceprint model opened", "model", name, "dim", ext.Dimension())
	return ext, nil
}
