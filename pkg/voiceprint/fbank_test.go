package voiceprint

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

// voice synthesizes a harmonic signal with a little broadband noise, a
// crude stand-in for voiced speech with fundamental f0.
func voice(f0 float64, seconds float64, seed uint64) []float32 {
	const rate = 16000
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float32, int(seconds*rate))
	for i := range out {
		tt := float64(i) / rate
		var v float64
		for h := 1; h <= 8; h++ {
			v += math.Sin(2*math.Pi*f0*float64(h)*tt) / float64(h)
		}
		out[i] = float32(0.2*v + 0.01*rng.NormFloat64())
	}
	return out
}

func TestFbankExtractorDimensionAndNorm(t *testing.T) {
	m, err := NewFbankExtractor(16000)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	emb, err := m.Extract(voice(150, 3, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != m.Dimension() || m.Dimension() != 160 {
		t.Fatalf("len = %d, Dimension = %d", len(emb), m.Dimension())
	}
	var norm float64
	for _, v := range emb {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("squared norm = %f, want 1", norm)
	}
}

func TestFbankExtractorDeterministic(t *testing.T) {
	m, _ := NewFbankExtractor(16000)
	clip := voice(150, 3, 1)
	a, err := m.Extract(clip)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Extract(clip)
	if s := Cosine(a, b); math.Abs(s-1) > 1e-6 {
		t.Fatalf("Cosine(e, e) = %f, want 1", s)
	}
}

func TestFbankExtractorSeparatesVoices(t *testing.T) {
	m, _ := NewFbankExtractor(16000)
	alice, _ := m.Extract(voice(120, 3, 1))
	aliceAgain, _ := m.Extract(voice(120, 3, 2))
	bob, _ := m.Extract(voice(260, 3, 3))

	same := Cosine(alice, aliceAgain)
	diff := Cosine(alice, bob)
	t.Logf("same=%.4f diff=%.4f", same, diff)
	if same < DefaultThreshold {
		t.Errorf("same voice scored %.4f, want >= %.2f", same, DefaultThreshold)
	}
	if diff >= same {
		t.Errorf("different voice scored %.4f, not below same voice %.4f", diff, same)
	}
}

func TestFbankExtractorSilence(t *testing.T) {
	m, _ := NewFbankExtractor(16000)
	_, err := m.Extract(make([]float32, 48000))
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("err = %v, want ErrNoSpeech", err)
	}
}

func TestFbankExtractorRate(t *testing.T) {
	if _, err := NewFbankExtractor(8000); err == nil {
		t.Fatal("expected error for 8 kHz")
	}
}

func TestRegistryOpen(t *testing.T) {
	ext, err := Open(FbankModel, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer ext.Close()
	if ext.Dimension() != 160 {
		t.Errorf("Dimension = %d", ext.Dimension())
	}

	if _, err := Open("ecapa-tdnn", Options{}); err == nil {
		t.Fatal("expected error for unknown model")
	}

	found := false
	for _, name := range Backends() {
		found = found || name == FbankModel
	}
	if !found {
		t.Errorf("Backends() = %v, missing %q", Backends(), FbankModel)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(FbankModel, nil)
}
