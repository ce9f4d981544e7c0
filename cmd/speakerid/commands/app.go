package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/haivivi/speakerid/pkg/activity"
	"github.com/haivivi/speakerid/pkg/audio/capture"
	"github.com/haivivi/speakerid/pkg/audio/normalize"
	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/history"
	"github.com/haivivi/speakerid/pkg/speaker"
	"github.com/haivivi/speakerid/pkg/storage"
	"github.com/haivivi/speakerid/pkg/templates"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// app is a fully wired controller plus the terminal state of one command.
type app struct {
	cfg    *cli.Config
	ctrl   *speaker.Controller
	styles cli.Styles

	// seen is the Seq of the last activity line written by flush.
	seen uint64
}

// openApp loads the template store, opens the embedding model and builds
// the controller from the global configuration.
func openApp(ctx context.Context) (*app, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	logger := slog.Default()

	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureLogDir(); err != nil {
		return nil, err
	}
	if err := paths.EnsureTempDir(); err != nil {
		return nil, err
	}

	blobs, err := storage.NewLocal(cfg.DataPath())
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	refs, err := storage.NewLocal(cfg.ReferencePath())
	if err != nil {
		return nil, fmt.Errorf("reference dir: %w", err)
	}
	probes, err := storage.NewLocal(cfg.ProbePath())
	if err != nil {
		return nil, fmt.Errorf("probe dir: %w", err)
	}

	store := templates.New(blobs, refs, templates.WithLogger(logger))
	if err := store.Load(ctx); err != nil {
		if errors.Is(err, templates.ErrCorrupt) {
			return nil, fmt.Errorf("template store %s cannot be read and was left untouched; move it aside to start over: %w",
				store.BlobPath(), err)
		}
		return nil, err
	}

	ext, err := voiceprint.Open(cfg.Model, voiceprint.Options{SampleRate: cfg.SampleRate, Logger: logger})
	if err != nil {
		return nil, err
	}
	ext = voiceprint.NewCached(ext, cfg.CacheSize)

	minDuration, err := cfg.MinDurationValue()
	if err != nil {
		ext.Close()
		return nil, err
	}
	norm := &normalize.Normalizer{
		TargetRate:  cfg.SampleRate,
		MinDuration: minDuration,
		TempDir:     paths.TempDir(),
		Logger:      logger,
	}

	rec, err := capture.Open(cfg.SampleRate)
	if err != nil {
		logger.Warn("audio capture unavailable", "error", err)
		rec = capture.Unavailable{Rate: cfg.SampleRate}
	}

	hist, err := history.Open(cfg.History, filepath.Join(cfg.DataPath(), "history"), logger)
	if err != nil {
		// Another speakerid process may hold the database lock.
		logger.Warn("identification history disabled", "error", err)
		hist = history.Nop{}
	}

	// Activity lines are rendered by the CLI itself; only echo them to
	// slog in verbose mode.
	activityLogger := slog.New(slog.DiscardHandler)
	if verbose {
		activityLogger = logger
	}
	log, err := activity.New(activity.Options{MirrorPath: paths.ActivityLog(), Logger: activityLogger})
	if err != nil {
		ext.Close()
		hist.Close()
		return nil, err
	}

	ctrl, err := speaker.New(speaker.Deps{
		Store:      store,
		References: refs,
		Probes:     probes,
		Normalizer: norm,
		Extractor:  ext,
		Recorder:   rec,
		History:    hist,
		Activity:   log,
	}, speaker.Config{
		Threshold:      cfg.Threshold,
		Include:        cfg.Include,
		RecordDuration: cfg.RecordDuration(),
		Logger:         logger,
	})
	if err != nil {
		ext.Close()
		hist.Close()
		log.Close()
		return nil, err
	}
	return &app{cfg: cfg, ctrl: ctrl, styles: cli.NewStyles(cli.DefaultTheme)}, nil
}

// Close releases the controller.
func (a *app) Close() error { return a.ctrl.Close() }

// flush writes the activity lines appended since the previous flush and
// reports how many it wrote.
func (a *app) flush(w io.Writer) int {
	lines := a.ctrl.Activity().Since(a.seen)
	for _, l := range lines {
		fmt.Fprintln(w, renderLine(a.styles, l))
	}
	if len(lines) > 0 {
		a.seen = lines[len(lines)-1].Seq
	}
	return len(lines)
}

// follow prints activity lines as they are appended until ctx is done.
func (a *app) follow(ctx context.Context, w io.Writer) {
	lines, cancel := a.ctrl.Activity().Subscribe(64)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case l, ok := <-lines:
				if !ok {
					return
				}
				fmt.Fprintln(w, renderLine(a.styles, l))
			}
		}
	}()
}

// startupRegister runs auto-registration when the config asks for it.
func (a *app) startupRegister(ctx context.Context, w io.Writer) {
	if !a.cfg.AutoRegisterOnStart {
		return
	}
	if _, err := a.ctrl.AutoRegisterDirectory(ctx, nil); err != nil {
		slog.Warn("startup auto-registration failed", "error", err)
	}
	a.flush(w)
}

// withApp opens the app, runs fn and prints the activity lines it produced.
func withApp(ctx context.Context, w io.Writer, fn func(a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	err = fn(a)
	if !outputJSON {
		a.flush(w)
	}
	return err
}

// renderLine renders an activity line with a level glyph and color.
func renderLine(s cli.Styles, l activity.Line) string {
	ts := s.Help.Render(l.Time.Format("15:04:05"))
	switch l.Level {
	case activity.LevelSuccess:
		return ts + " " + s.Success.Render("✓ "+l.Message)
	case activity.LevelWarn:
		return ts + " " + s.Warn.Render("⚠ "+l.Message)
	case activity.LevelError:
		return ts + " " + s.Error.Render("✗ "+l.Message)
	default:
		return ts + " ℹ " + l.Message
	}
}
