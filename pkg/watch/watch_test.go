package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recorder struct {
	mu    sync.Mutex
	names []string
	got   chan string
}

func newRecorder() *recorder { return &recorder{got: make(chan string, 16)} }

func (r *recorder) register(_ context.Context, name string) error {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	r.got <- name
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

func startWatcher(t *testing.T, dir string, rec *recorder, opts Options) {
	t.Helper()
	w, err := New(dir, rec.register, opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	// Give the watcher time to add the directory.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec, Options{Include: []string{"*.wav"}, Debounce: 150 * time.Millisecond})

	path := filepath.Join(dir, "alice.wav")
	for i := range 5 {
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, ".alice.wav.tmp-1"), []byte("x"), 0o644)

	select {
	case name := <-rec.got:
		if name != "alice.wav" {
			t.Fatalf("registered %q", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no registration")
	}
	time.Sleep(400 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("registered %d times, want 1", n)
	}
}

func TestWatcherSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec, Options{Debounce: 50 * time.Millisecond})

	os.WriteFile(filepath.Join(dir, "a.wav"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("b"), 0o644)

	seen := map[string]bool{}
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case name := <-rec.got:
			seen[name] = true
		case <-deadline:
			t.Fatalf("seen = %v", seen)
		}
	}
	if !seen["a.wav"] || !seen["b.mp3"] {
		t.Errorf("seen = %v", seen)
	}
}

func TestRelevant(t *testing.T) {
	w, err := New("/refs", nil, Options{Include: []string{"*.wav", "*.mp3"}})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		event fsnotify.Event
		name  string
		want  bool
	}{
		{fsnotify.Event{Name: "/refs/a.wav", Op: fsnotify.Create}, "a.wav", true},
		{fsnotify.Event{Name: "/refs/a.mp3", Op: fsnotify.Write}, "a.mp3", true},
		{fsnotify.Event{Name: "/refs/a.wav", Op: fsnotify.Remove}, "", false},
		{fsnotify.Event{Name: "/refs/a.wav", Op: fsnotify.Chmod}, "", false},
		{fsnotify.Event{Name: "/refs/a.txt", Op: fsnotify.Create}, "a.txt", false},
		{fsnotify.Event{Name: "/refs/.a.wav.tmp-9", Op: fsnotify.Create}, "", false},
	}
	for _, tt := range tests {
		name, ok := w.relevant(tt.event)
		if ok != tt.want || (ok && name != tt.name) {
			t.Errorf("relevant(%v) = %q, %v; want %q, %v", tt.event, name, ok, tt.name, tt.want)
		}
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	if _, err := New(t.TempDir(), nil, Options{Include: []string{"[unclosed"}}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
