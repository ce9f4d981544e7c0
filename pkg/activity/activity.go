// Package activity keeps the operator-facing status log.
//
// Every workflow step appends a short human-readable line ("Registered
// alice", "Identified: bob (0.8123)"). Lines are kept in a capped in-memory
// buffer for display, appended to a mirror file, echoed to slog and fanned
// out to live subscribers such as the websocket feed.
package activity

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultCapacity is the number of lines kept in memory.
const DefaultCapacity = 500

// Level classifies a status line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalJSON encodes the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Line is one status line.
type Line struct {
	// Seq numbers lines from 1 in append order. It keeps increasing
	// across Clear and trimming, so it identifies lines already seen.
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// String formats the line as "[15:04:05] LEVEL message".
func (l Line) String() string {
	return fmt.Sprintf("[%s] %-7s %s", l.Time.Format(time.TimeOnly), l.Level, l.Message)
}

// Options configures a Log.
type Options struct {
	// Capacity bounds the in-memory buffer. Zero means DefaultCapacity.
	Capacity int

	// MirrorPath, when set, receives every line appended. The file is
	// opened in append mode and created if missing.
	MirrorPath string

	// Logger receives a copy of every line. Nil means slog.Default().
	Logger *slog.Logger
}

// Log is the activity log. It is safe for concurrent use.
type Log struct {
	logger *slog.Logger
	cap    int

	mu     sync.RWMutex
	seq    uint64
	lines  []Line
	mirror io.WriteCloser
	subs   map[chan Line]struct{}
}

// New creates a Log.
func New(opts Options) (*Log, error) {
	l := &Log{
		logger: opts.Logger,
		cap:    opts.Capacity,
		subs:   make(map[chan Line]struct{}),
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.cap <= 0 {
		l.cap = DefaultCapacity
	}
	if opts.MirrorPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.MirrorPath), 0o755); err != nil {
			return nil, fmt.Errorf("activity: create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.MirrorPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("activity: open mirror: %w", err)
		}
		l.mirror = f
	}
	return l, nil
}

// Add appends a line at level.
func (l *Log) Add(level Level, msg string) Line {
	line := Line{Time: time.Now(), Level: level, Message: msg}

	l.mu.Lock()
	l.seq++
	line.Seq = l.seq
	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.cap; over > 0 {
		l.lines = append(l.lines[:0], l.lines[over:]...)
	}
	if l.mirror != nil {
		if _, err := fmt.Fprintln(l.mirror, line.String()); err != nil {
			l.logger.Warn("activity mirror write failed", "error", err)
		}
	}
	for ch := range l.subs {
		select {
		case ch <- line:
		default:
			// Drop if the subscriber is slow.
		}
	}
	l.mu.Unlock()

	l.logger.Log(context.Background(), level.slog(), msg, "activity", level.String())
	return line
}

// Info appends an info line.
func (l *Log) Info(format string, args ...any) Line {
	return l.Add(LevelInfo, fmt.Sprintf(format, args...))
}

// Success appends a success line.
func (l *Log) Success(format string, args ...any) Line {
	return l.Add(LevelSuccess, fmt.Sprintf(format, args...))
}

// Warn appends a warning line.
func (l *Log) Warn(format string, args ...any) Line {
	return l.Add(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error line.
func (l *Log) Error(format string, args ...any) Line {
	return l.Add(LevelError, fmt.Sprintf(format, args...))
}

// Lines returns a copy of the buffered lines, oldest first.
func (l *Log) Lines() []Line {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

// Since returns the buffered lines with Seq greater than seq, oldest
// first. Lines trimmed from the buffer are not returned.
func (l *Log) Since(seq uint64) []Line {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, _ := slices.BinarySearchFunc(l.lines, seq+1, func(line Line, target uint64) int {
		return cmp.Compare(line.Seq, target)
	})
	return slices.Clone(l.lines[i:])
}

// Clear empties the in-memory buffer and records "Log cleared.".
// The mirror file is left untouched.
func (l *Log) Clear() Line {
	l.mu.Lock()
	l.lines = l.lines[:0]
	l.mu.Unlock()
	return l.Info("Log cleared.")
}

// Subscribe returns a channel receiving every new line and a function that
// cancels the subscription. Lines are dropped when the channel is full.
func (l *Log) Subscribe(buffer int) (<-chan Line, func()) {
	ch := make(chan Line, max(buffer, 1))
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// Close closes the mirror file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mirror == nil {
		return nil
	}
	err := l.mirror.Close()
	l.mirror = nil
	return err
}
