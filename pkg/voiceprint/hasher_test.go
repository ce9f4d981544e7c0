package voiceprint

import "testing"

func ramp(dim int, step float32) []float32 {
	emb := make([]float32, dim)
	for i := range emb {
		emb[i] = float32(i) * step
	}
	return emb
}

func mustHasher(t testing.TB, dim, bits int, seed uint64) *Hasher {
	t.Helper()
	h, err := NewHasher(dim, bits, seed)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestHasherDeterministic(t *testing.T) {
	emb := ramp(160, 0.01)

	h1 := mustHasher(t, 160, 16, DefaultHashSeed)
	h2 := mustHasher(t, 160, 16, DefaultHashSeed)
	hash1, err := h1.Hash(emb)
	if err != nil {
		t.Fatal(err)
	}
	hash2, _ := h2.Hash(emb)
	if hash1 != hash2 {
		t.Errorf("same seed produced different hashes: %q vs %q", hash1, hash2)
	}
	if len(hash1) != 4 {
		t.Errorf("expected 4 hex chars, got %q", hash1)
	}
	t.Logf("hash = %s", hash1)
}

func TestHasherHexFormat(t *testing.T) {
	h := mustHasher(t, 8, 24, 99)
	hash, err := h.Hash([]float32{1, -2, 3, -4, 5, -6, 7, -8})
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != 6 {
		t.Fatalf("expected length 6, got %q", hash)
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')) {
			t.Errorf("non-uppercase-hex char %c in hash %q", c, hash)
		}
	}
}

func TestHasherScaleInvariant(t *testing.T) {
	h := mustHasher(t, 64, 16, 7)
	emb := ramp(64, 0.01)
	scaled := make([]float32, len(emb))
	for i, v := range emb {
		scaled[i] = v * 10
	}
	a, _ := h.Hash(emb)
	b, _ := h.Hash(scaled)
	if a != b {
		t.Errorf("scaled vector changed hash: %q vs %q", a, b)
	}
}

func TestHasherOppositeVectors(t *testing.T) {
	h := mustHasher(t, 64, 16, 7)
	emb := ramp(64, 0.01)
	neg := make([]float32, len(emb))
	for i, v := range emb {
		neg[i] = -v
	}
	a, _ := h.Hash(emb)
	b, _ := h.Hash(neg)
	// Every bit flips unless a dot product is exactly zero.
	if a == b {
		t.Errorf("opposite vectors share hash %q", a)
	}
}

func TestHasherErrors(t *testing.T) {
	if _, err := NewHasher(192, 3, 0); err == nil {
		t.Error("expected error for bits=3")
	}
	if _, err := NewHasher(0, 16, 0); err == nil {
		t.Error("expected error for dim=0")
	}
	h := mustHasher(t, 192, 16, 0)
	if _, err := h.Hash([]float32{1, 2, 3}); err == nil {
		t.Error("expected error for wrong dim")
	}
	if got := h.Label([]float32{1}); got != "voice:?" {
		t.Errorf("Label(wrong dim) = %q", got)
	}
}

func TestHasherLabel(t *testing.T) {
	h := mustHasher(t, 16, 16, 1)
	emb := ramp(16, 1)
	hash, _ := h.Hash(emb)
	if got := h.Label(emb); got != "voice:"+hash {
		t.Errorf("Label = %q, want voice:%s", got, hash)
	}
	if h.Bits() != 16 || h.Dim() != 16 {
		t.Errorf("Bits/Dim = %d/%d", h.Bits(), h.Dim())
	}
}

func BenchmarkHash(b *testing.B) {
	h := mustHasher(b, 160, 16, DefaultHashSeed)
	emb := ramp(160, 0.01)
	b.ResetTimer()
	for range b.N {
		h.Hash(emb)
	}
}
