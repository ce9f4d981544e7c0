package templates

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/haivivi/speakerid/pkg/storage"
)

type fixture struct {
	blobs *storage.Local
	refs  *storage.Local
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs, err := storage.NewLocal(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	refs, err := storage.NewLocal(filepath.Join(t.TempDir(), "ref"))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{blobs: blobs, refs: refs}
}

func (f *fixture) open(t *testing.T) *Store {
	t.Helper()
	s := New(f.blobs, f.refs)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := newFixture(t).open(t)
	if s.Len() != 0 || s.Dim() != 0 {
		t.Fatalf("Len=%d Dim=%d, want empty", s.Len(), s.Dim())
	}
}

func TestPutPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t)

	if err := s.Put(ctx, "bob", []float32{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "alice", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	reloaded := f.open(t)
	if got := reloaded.IDs(); !slices.Equal(got, []string{"alice", "bob"}) {
		t.Fatalf("IDs = %v", got)
	}
	emb, ok := reloaded.Get("alice")
	if !ok || !slices.Equal(emb, []float32{1, 0, 0}) {
		t.Fatalf("Get(alice) = %v, %v", emb, ok)
	}
	if reloaded.Dim() != 3 {
		t.Errorf("Dim = %d", reloaded.Dim())
	}
}

func TestSaveLoadIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t)
	for i, id := range []string{"c", "a", "b", "d"} {
		if err := s.Put(ctx, id, []float32{float32(i), 1, 2, 3}); err != nil {
			t.Fatal(err)
		}
	}
	first, err := os.ReadFile(s.BlobPath())
	if err != nil {
		t.Fatal(err)
	}

	for range 2 {
		s = f.open(t)
		if err := s.Save(ctx); err != nil {
			t.Fatal(err)
		}
	}
	second, err := os.ReadFile(s.BlobPath())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("Save(Load()) changed the blob")
	}
}

func TestPutOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t)

	s.Put(ctx, "alice", []float32{1, 0})
	if err := s.Put(ctx, "alice", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	emb, _ := f.open(t).Get("alice")
	if !slices.Equal(emb, []float32{0, 1}) {
		t.Fatalf("Get(alice) = %v, want second embedding", emb)
	}
}

func TestPutDimensionMismatch(t *testing.T) {
	s := newFixture(t).open(t)
	ctx := context.Background()
	s.Put(ctx, "alice", []float32{1, 0, 0})

	err := s.Put(ctx, "bob", []float32{1, 0})
	if !errors.Is(err, ErrDimension) {
		t.Fatalf("err = %v, want ErrDimension", err)
	}
	if _, ok := s.Get("bob"); ok {
		t.Fatal("mismatched embedding was stored")
	}
	if err := s.Put(ctx, "", []float32{1, 0, 0}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestPutCopiesInput(t *testing.T) {
	s := newFixture(t).open(t)
	emb := []float32{1, 2}
	s.Put(context.Background(), "alice", emb)
	emb[0] = 99
	got, _ := s.Get("alice")
	if got[0] != 1 {
		t.Fatal("store aliases caller slice")
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t)
	s.Put(ctx, "alice", []float32{1, 0})
	s.Put(ctx, "bob", []float32{0, 1})
	if err := os.WriteFile(s.ReferencePath("alice"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.HasReference(ctx, "alice") {
		t.Fatal("HasReference(alice) = false")
	}

	res, err := s.Remove(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Embedding || !res.Reference || res.NotFound() {
		t.Fatalf("Remove(alice) = %+v", res)
	}
	if s.HasReference(ctx, "alice") {
		t.Error("reference file still present")
	}
	if got := f.open(t).IDs(); !slices.Equal(got, []string{"bob"}) {
		t.Fatalf("persisted IDs = %v", got)
	}
}

func TestRemoveReferenceOnly(t *testing.T) {
	s := newFixture(t).open(t)
	os.WriteFile(s.ReferencePath("ghost"), []byte("RIFF"), 0o644)
	res, err := s.Remove(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if res.Embedding || !res.Reference {
		t.Fatalf("Remove(ghost) = %+v", res)
	}
}

func TestRemoveUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t)
	s.Put(ctx, "alice", []float32{1, 0})
	before, _ := os.ReadFile(s.BlobPath())

	res, err := s.Remove(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if !res.NotFound() {
		t.Fatalf("Remove(nobody) = %+v, want not found", res)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
	after, _ := os.ReadFile(s.BlobPath())
	if !bytes.Equal(before, after) {
		t.Fatal("blob rewritten for unknown id")
	}
}

func TestRemoveLastResetsDim(t *testing.T) {
	s := newFixture(t).open(t)
	ctx := context.Background()
	s.Put(ctx, "alice", []float32{1, 0})
	s.Remove(ctx, "alice")
	if err := s.Put(ctx, "bob", []float32{1, 0, 0}); err != nil {
		t.Fatalf("Put after emptying store: %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("definitely not msgpack \xff\xfe")},
		{"truncated", []byte{0x83, 0xa7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			path := f.blobs.Path(BlobName)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			s := New(f.blobs, f.refs)
			err := s.Load(context.Background())
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
			got, _ := os.ReadFile(path)
			if !bytes.Equal(got, tt.data) {
				t.Fatal("corrupt blob was modified")
			}
		})
	}
}

func TestLoadRejectsInconsistentDim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t)
	s.Put(ctx, "alice", []float32{1, 0})

	// Corrupt the in-memory dim and persist it to simulate a bad writer.
	s.mu.Lock()
	s.m["bob"] = []float32{1, 2, 3}
	s.mu.Unlock()
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if err := New(f.blobs, f.refs).Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := newFixture(t).open(t)
	s.Put(context.Background(), "alice", []float32{1})
	snap := s.Snapshot()
	delete(snap, "alice")
	if s.Len() != 1 {
		t.Fatal("Snapshot aliases the store map")
	}
}
