package commands

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/haivivi/speakerid/pkg/activity"
	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/speaker"
	"github.com/haivivi/speakerid/pkg/storage"
	"github.com/haivivi/speakerid/pkg/templates"
)

type zeroExtractor struct{}

func (zeroExtractor) Extract([]float32) ([]float32, error) { return []float32{1, 0}, nil }
func (zeroExtractor) Dimension() int                       { return 2 }
func (zeroExtractor) Close() error                         { return nil }

// newTestApp builds an app around a controller whose activity log keeps
// only capacity lines.
func newTestApp(t *testing.T, capacity int) *app {
	t.Helper()
	root := t.TempDir()
	blobs, err := storage.NewLocal(filepath.Join(root, "data"))
	if err != nil {
		t.Fatal(err)
	}
	refs, err := storage.NewLocal(filepath.Join(root, "ref"))
	if err != nil {
		t.Fatal(err)
	}
	store := templates.New(blobs, refs)
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	log, err := activity.New(activity.Options{
		Capacity: capacity,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := speaker.New(speaker.Deps{
		Store:      store,
		References: refs,
		Extractor:  zeroExtractor{},
		Activity:   log,
	}, speaker.Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ctrl.Close() })

	cfg := cli.DefaultConfig(appName)
	cfg.AutoRegisterOnStart = false
	return &app{cfg: cfg, ctrl: ctrl, styles: cli.NewStyles(cli.DefaultTheme)}
}

func TestFlushAfterLogIsFull(t *testing.T) {
	a := newTestApp(t, 3)
	for i := range 5 {
		a.ctrl.Activity().Info("old %d", i)
	}

	var buf bytes.Buffer
	if n := a.flush(&buf); n != 3 {
		t.Fatalf("first flush wrote %d lines, want 3", n)
	}
	if n := a.flush(&buf); n != 0 {
		t.Fatalf("second flush wrote %d lines, want 0", n)
	}

	buf.Reset()
	if _, err := a.ctrl.DeleteSpeaker(context.Background(), "ghost"); err != nil {
		t.Fatal(err)
	}
	if n := a.flush(&buf); n == 0 || !strings.Contains(buf.String(), "ghost") {
		t.Fatalf("flush after full buffer wrote %d lines: %q", n, buf.String())
	}

	buf.Reset()
	a.ctrl.ClearLog()
	if n := a.flush(&buf); n != 1 || !strings.Contains(buf.String(), "Log cleared.") {
		t.Errorf("flush after clear wrote %d lines: %q", n, buf.String())
	}
}

func TestShellKeepsPrintingWhenLogIsFull(t *testing.T) {
	a := newTestApp(t, 3)
	for i := range 5 {
		a.ctrl.Activity().Info("old %d", i)
	}
	a.flush(&bytes.Buffer{})

	var errOut bytes.Buffer
	oldErr := cli.Stderr
	cli.Stderr = &errOut
	t.Cleanup(func() { cli.Stderr = oldErr })

	in := strings.NewReader("delete ghost\nlist extra\ndelete ghost2\nquit\n")
	var out bytes.Buffer
	if err := runShell(context.Background(), a, in, &out); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"ghost", "ghost2", "Goodbye!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("shell output missing %q:\n%s", want, out.String())
		}
	}
	// Only the usage error is printed directly; delete results come from
	// the activity log.
	if got := errOut.String(); strings.Count(got, "Error:") != 1 || !strings.Contains(got, "usage: list") {
		t.Errorf("stderr = %q", got)
	}
}

func TestRenderLine(t *testing.T) {
	s := cli.NewStyles(cli.DefaultTheme)
	ts := time.Date(2026, 1, 2, 13, 14, 15, 0, time.Local)
	tests := []struct {
		level activity.Level
		glyph string
	}{
		{activity.LevelInfo, "ℹ"},
		{activity.LevelSuccess, "✓"},
		{activity.LevelWarn, "⚠"},
		{activity.LevelError, "✗"},
	}
	for _, tt := range tests {
		got := ansi.Strip(renderLine(s, activity.Line{Time: ts, Level: tt.level, Message: "hello"}))
		if got != "13:14:15 "+tt.glyph+" hello" {
			t.Errorf("renderLine(%s) = %q", tt.level, got)
		}
	}
}

func TestPrompt(t *testing.T) {
	a := newTestApp(t, 8)
	if got := ansi.Strip(prompt(a)); got != "[0.75] speakerid> " {
		t.Errorf("prompt = %q", got)
	}
	if err := a.ctrl.SetThreshold(0.6); err != nil {
		t.Fatal(err)
	}
	if got := ansi.Strip(prompt(a)); got != "[0.60] speakerid> " {
		t.Errorf("prompt after SetThreshold = %q", got)
	}
}
