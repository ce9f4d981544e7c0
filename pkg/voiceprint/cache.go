package voiceprint

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedExtractor memoizes embeddings of recently seen clips. Keys are
// xxhash digests of the raw sample data, so re-registering or re-identifying
// the same file skips extraction.
type CachedExtractor struct {
	Extractor
	cache *lru.Cache[uint64, []float32]
}

// NewCached wraps ext with an LRU cache holding up to size embeddings.
// A non-positive size returns ext unchanged.
func NewCached(ext Extractor, size int) Extractor {
	if size <= 0 {
		return ext
	}
	cache, err := lru.New[uint64, []float32](size)
	if err != nil {
		return ext
	}
	return &CachedExtractor{Extractor: ext, cache: cache}
}

// Extract returns the cached embedding for samples or computes and caches
// it. Callers receive their own copy.
func (c *CachedExtractor) Extract(samples []float32) ([]float32, error) {
	key := sampleKey(samples)
	if emb, ok := c.cache.Get(key); ok {
		return clone(emb), nil
	}
	emb, err := c.Extractor.Extract(samples)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clone(emb))
	return emb, nil
}

// Len returns the number of cached embeddings.
func (c *CachedExtractor) Len() int { return c.cache.Len() }

// Purge drops every cached embedding.
func (c *CachedExtractor) Purge() { c.cache.Purge() }

func sampleKey(samples []float32) uint64 {
	d := xxhash.New()
	var buf [4]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(s))
		d.Write(buf[:])
	}
	return d.Sum64()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
