package voiceprint

import (
	"errors"
	"testing"
)

type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) Extract(samples []float32) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	var sum float32
	for _, s := range samples {
		sum += s
	}
	return []float32{sum, 1}, nil
}

func (c *countingExtractor) Dimension() int { return 2 }
func (c *countingExtractor) Close() error   { return nil }

func TestCachedExtractorHits(t *testing.T) {
	inner := &countingExtractor{}
	ext := NewCached(inner, 2)

	a := []float32{0.1, 0.2}
	b := []float32{0.3}
	for range 3 {
		if _, err := ext.Extract(a); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	ext.Extract(b)
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
	if got := ext.(*CachedExtractor).Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
	if ext.Dimension() != 2 {
		t.Errorf("Dimension = %d", ext.Dimension())
	}
}

func TestCachedExtractorReturnsCopies(t *testing.T) {
	ext := NewCached(&countingExtractor{}, 4)
	clip := []float32{0.5}
	first, _ := ext.Extract(clip)
	first[0] = 99
	second, _ := ext.Extract(clip)
	if second[0] == 99 {
		t.Fatal("cache entry was mutated through a returned slice")
	}
}

func TestCachedExtractorSkipsErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := &countingExtractor{err: boom}
	ext := NewCached(inner, 4)
	for range 2 {
		if _, err := ext.Extract([]float32{1}); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("errors were cached: calls = %d", inner.calls)
	}
}

func TestNewCachedDisabled(t *testing.T) {
	inner := &countingExtractor{}
	if ext := NewCached(inner, 0); ext != Extractor(inner) {
		t.Fatal("size 0 should return the inner extractor")
	}
}
