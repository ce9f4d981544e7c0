// Package templates persists the mapping from user id to voice embedding.
//
// The whole mapping lives in memory and is written back as a single
// msgpack blob after every mutation:
//
//	{version: 1, dim: 160, templates: {"alice": [...], "bob": [...]}}
//
// Each enrolled user may also have a reference recording
// "<user_id>.wav" in a separate directory. Reference files are a copy of
// the enrollment audio and play no part in matching.
package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/speakerid/pkg/storage"
)

// BlobName is the default blob file name.
const BlobName = "templates.msgpack"

const blobVersion = 1

var (
	// ErrCorrupt is returned by Load when the blob exists but cannot be
	// decoded.
	ErrCorrupt = errors.New("templates: corrupt template blob")

	// ErrDimension is returned by Put when the embedding length differs
	// from the templates already stored.
	ErrDimension = errors.New("templates: embedding dimension mismatch")
)

// blob is the on-disk document.
type blob struct {
	Version   int                  `msgpack:"version"`
	Dim       int                  `msgpack:"dim"`
	Templates map[string][]float32 `msgpack:"templates"`
}

// RemoveResult reports what Remove deleted.
type RemoveResult struct {
	Embedding bool `json:"embedding"`
	Reference bool `json:"reference"`
}

// NotFound reports that neither an embedding nor a reference file existed.
func (r RemoveResult) NotFound() bool { return !r.Embedding && !r.Reference }

// Store is the template store. It is safe for concurrent use.
type Store struct {
	blobs  storage.FileStore
	refs   storage.FileStore
	name   string
	logger *slog.Logger

	mu  sync.RWMutex
	dim int
	m   map[string][]float32
}

// Option configures a Store.
type Option func(*Store)

// WithBlobName overrides the blob file name (default BlobName).
func WithBlobName(name string) Option {
	return func(s *Store) { s.name = name }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty Store. The blob is kept in blobs and reference
// recordings in refs. Call Load to read existing templates.
func New(blobs, refs storage.FileStore, opts ...Option) *Store {
	s := &Store{
		blobs:  blobs,
		refs:   refs,
		name:   BlobName,
		logger: slog.Default(),
		m:      make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BlobPath returns the filesystem location of the blob.
func (s *Store) BlobPath() string { return s.blobs.Path(s.name) }

// ReferenceName returns the reference file name for userID.
func ReferenceName(userID string) string { return userID + ".wav" }

// ReferencePath returns the filesystem location of userID's reference
// recording.
func (s *Store) ReferencePath(userID string) string {
	return s.refs.Path(ReferenceName(userID))
}

// HasReference reports whether userID has a reference recording.
func (s *Store) HasReference(ctx context.Context, userID string) bool {
	ok, err := s.refs.Exists(ctx, ReferenceName(userID))
	return err == nil && ok
}

// Load replaces the in-memory mapping with the blob contents. A missing
// blob yields an empty store. On error the in-memory mapping is unchanged.
func (s *Store) Load(ctx context.Context) error {
	r, err := s.blobs.Read(ctx, s.name)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.m = make(map[string][]float32)
		s.dim = 0
		s.mu.Unlock()
		s.logger.Debug("no template blob, starting empty", "path", s.BlobPath())
		return nil
	}
	if err != nil {
		return fmt.Errorf("templates: open %s: %w", s.BlobPath(), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("templates: read %s: %w", s.BlobPath(), err)
	}
	b, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrCorrupt, s.BlobPath(), err)
	}

	s.mu.Lock()
	s.m = b.Templates
	s.dim = b.Dim
	s.mu.Unlock()
	s.logger.Debug("templates loaded", "path", s.BlobPath(), "count", len(b.Templates), "dim", b.Dim)
	return nil
}

func decode(data []byte) (*blob, error) {
	var b blob
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("unsupported version %d", b.Version)
	}
	if b.Templates == nil {
		b.Templates = make(map[string][]float32)
	}
	for id, emb := range b.Templates {
		if id == "" {
			return nil, errors.New("empty user id")
		}
		if len(emb) != b.Dim {
			return nil, fmt.Errorf("template %q has %d dims, blob declares %d", id, len(emb), b.Dim)
		}
	}
	return &b, nil
}

// Save writes the full mapping, replacing the previous blob atomically.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&blob{Version: blobVersion, Dim: s.dim, Templates: s.m}); err != nil {
		return fmt.Errorf("templates: encode: %w", err)
	}

	w, err := s.blobs.Write(ctx, s.name)
	if err != nil {
		return fmt.Errorf("templates: write %s: %w", s.BlobPath(), err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Abort()
		return fmt.Errorf("templates: write %s: %w", s.BlobPath(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("templates: write %s: %w", s.BlobPath(), err)
	}
	return nil
}

// Put stores embedding under userID, replacing any previous one, and saves.
// If saving fails the in-memory mapping is rolled back.
func (s *Store) Put(ctx context.Context, userID string, embedding []float32) error {
	if userID == "" {
		return errors.New("templates: empty user id")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.m) > 0 && len(embedding) != s.dim {
		return fmt.Errorf("%w: got %d, store holds %d", ErrDimension, len(embedding), s.dim)
	}
	prev, existed := s.m[userID]
	prevDim := s.dim

	s.m[userID] = slices.Clone(embedding)
	s.dim = len(embedding)
	if err := s.saveLocked(ctx); err != nil {
		if existed {
			s.m[userID] = prev
		} else {
			delete(s.m, userID)
		}
		s.dim = prevDim
		return err
	}
	return nil
}

// Remove deletes userID's embedding (saving the store if it existed) and
// its reference recording. Absence of either is not an error.
func (s *Store) Remove(ctx context.Context, userID string) (RemoveResult, error) {
	var res RemoveResult

	s.mu.Lock()
	prev, ok := s.m[userID]
	if ok {
		prevDim := s.dim
		delete(s.m, userID)
		if len(s.m) == 0 {
			s.dim = 0
		}
		if err := s.saveLocked(ctx); err != nil {
			s.m[userID] = prev
			s.dim = prevDim
			s.mu.Unlock()
			return res, err
		}
		res.Embedding = true
	}
	s.mu.Unlock()

	removed, err := s.refs.Delete(ctx, ReferenceName(userID))
	if err != nil {
		return res, fmt.Errorf("templates: remove reference %s: %w", s.ReferencePath(userID), err)
	}
	res.Reference = removed
	return res, nil
}

// Get returns a copy of userID's embedding.
func (s *Store) Get(userID string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emb, ok := s.m[userID]
	if !ok {
		return nil, false
	}
	return slices.Clone(emb), true
}

// IDs returns the enrolled user ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.m))
}

// Len returns the number of enrolled users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Dim returns the shared embedding dimension, 0 when empty.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Snapshot returns a copy of the mapping. Embedding slices are shared
// with the store and must not be modified; they are never mutated in
// place by the store either.
func (s *Store) Snapshot() map[string][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.m)
}
