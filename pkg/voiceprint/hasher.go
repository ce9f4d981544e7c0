package voiceprint

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// DefaultHashSeed is the seed used for display labels. Keeping it fixed
// makes labels stable across restarts.
const DefaultHashSeed = 42

// Hasher projects embeddings into compact locality-sensitive hashes using
// random hyperplane LSH.
//
// Each of the `bits` hyperplanes contributes one bit: 1 when the dot
// product with the embedding is positive. Bits are rendered as uppercase
// hex, so 16 bits yield 4 characters (e.g., "A3F8"). Embeddings with a high
// cosine similarity fall on the same side of most hyperplanes and share
// most or all of their hash.
type Hasher struct {
	dim    int
	bits   int
	planes [][]float32 // bits × dim, unit rows
}

// NewHasher creates a Hasher for embeddings of length dim. bits must be a
// positive multiple of 4.
func NewHasher(dim, bits int, seed uint64) (*Hasher, error) {
	if bits <= 0 || bits%4 != 0 {
		return nil, fmt.Errorf("voiceprint: hash bits must be a positive multiple of 4, got %d", bits)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("voiceprint: hash dim must be positive, got %d", dim)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
	planes := make([][]float32, bits)
	for i := range planes {
		plane := make([]float32, dim)
		for j := range plane {
			plane[j] = float32(rng.NormFloat64())
		}
		l2Normalize(plane)
		planes[i] = plane
	}
	return &Hasher{dim: dim, bits: bits, planes: planes}, nil
}

// Hash returns the uppercase hex hash of embedding.
func (h *Hasher) Hash(embedding []float32) (string, error) {
	if len(embedding) != h.dim {
		return "", fmt.Errorf("voiceprint: hash: embedding has %d dims, want %d", len(embedding), h.dim)
	}
	var sb strings.Builder
	sb.Grow(h.bits / 4)
	for i := 0; i < h.bits; i += 4 {
		var nibble byte
		for _, plane := range h.planes[i : i+4] {
			nibble <<= 1
			if dot32(plane, embedding) > 0 {
				nibble |= 1
			}
		}
		sb.WriteByte("0123456789ABCDEF"[nibble])
	}
	return sb.String(), nil
}

// Label returns VoiceLabel(Hash(embedding)), or "voice:?" when the
// embedding cannot be hashed.
func (h *Hasher) Label(embedding []float32) string {
	hash, err := h.Hash(embedding)
	if err != nil {
		return VoiceLabel("?")
	}
	return VoiceLabel(hash)
}

// Bits returns the number of hash bits.
func (h *Hasher) Bits() int { return h.bits }

// Dim returns the expected embedding dimension.
func (h *Hasher) Dim() int { return h.dim }

func dot32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
