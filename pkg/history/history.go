// Package history records identification attempts.
//
// Each attempt is stored as a msgpack-encoded Entry under a key that sorts
// by time, so listing newest-first is a reverse prefix scan. The package
// includes a BadgerDB-backed store for persistence across runs, an
// in-memory store for tests and ephemeral sessions, and a no-op store.
package history

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// Store kinds accepted by Open.
const (
	KindBadger = "badger"
	KindMemory = "memory"
	KindOff    = "off"
)

// keyPrefix namespaces history keys.
const keyPrefix = "history:"

// maxCandidates bounds the candidate list kept per entry.
const maxCandidates = 5

// Entry is one identification attempt.
type Entry struct {
	ID         string                 `msgpack:"id" json:"id"`
	Time       time.Time              `msgpack:"time" json:"time"`
	Source     string                 `msgpack:"source" json:"source"`
	UserID     string                 `msgpack:"user_id,omitempty" json:"user_id,omitempty"`
	Score      float64                `msgpack:"score" json:"score"`
	Matched    bool                   `msgpack:"matched" json:"matched"`
	Accepted   bool                   `msgpack:"accepted" json:"accepted"`
	Threshold  float64                `msgpack:"threshold" json:"threshold"`
	Candidates []voiceprint.Candidate `msgpack:"candidates,omitempty" json:"candidates,omitempty"`
}

// FromMatch builds an Entry for a match result. Source names the probe
// (a file path or "microphone").
func FromMatch(source string, res voiceprint.MatchResult) Entry {
	e := Entry{
		Source:    source,
		UserID:    res.UserID,
		Score:     res.Score,
		Matched:   res.Matched,
		Accepted:  res.Accepted,
		Threshold: res.Threshold,
	}
	if n := min(len(res.Candidates), maxCandidates); n > 0 {
		e.Candidates = append([]voiceprint.Candidate(nil), res.Candidates[:n]...)
	}
	return e
}

// Store persists identification history.
type Store interface {
	// Append assigns an ID and timestamp (when unset) and stores e.
	Append(ctx context.Context, e Entry) (Entry, error)

	// List returns up to limit entries, newest first. A non-positive
	// limit returns every entry.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Clear deletes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Open creates a store of the given kind. dir is only used by KindBadger.
func Open(kind, dir string, logger *slog.Logger) (Store, error) {
	switch kind {
	case KindBadger:
		return NewBadger(BadgerOptions{Dir: dir, Logger: logger})
	case KindMemory, "":
		return NewMemory(), nil
	case KindOff:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("history: unknown store kind %q", kind)
	}
}

func prepare(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Time = e.Time.UTC()
	return e
}

// key orders entries by time, then by ID.
func key(e Entry) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(e.Time.UnixNano()))
	return []byte(keyPrefix + hex.EncodeToString(ts[:]) + ":" + e.ID)
}

func encode(e Entry) ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("history: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("history: decode: %w", err)
	}
	return e, nil
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Append(_ context.Context, e Entry) (Entry, error) { return prepare(e), nil }
func (Nop) List(context.Context, int) ([]Entry, error)       { return nil, nil }
func (Nop) Clear(context.Context) (int, error)               { return 0, nil }
func (Nop) Close() error                                     { return nil }
