package voiceprint

import (
	"fmt"
	"math"
	"sync"

	"github.com/haivivi/speakerid/pkg/audio/fbank"
)

// FbankModel is the built-in extractor registered as "fbank".
const FbankModel = "fbank"

const (
	// voicedRange keeps frames within this many log units of the loudest
	// frame.
	voicedRange = 6.0

	// silenceFloor is the mean log mel energy below which a frame is
	// treated as silence regardless of the clip's dynamic range.
	silenceFloor = -18.0

	// minVoicedFrames is 0.5 s of 10 ms frames.
	minVoicedFrames = 50
)

func init() {
	Register(FbankModel, func(opts Options) (Extractor, error) {
		return NewFbankExtractor(opts.sampleRate())
	})
}

// FbankExtractor derives a speaker embedding from log mel filterbank
// statistics. Voiced frames are pooled into a per-band mean, centered to
// remove overall gain, followed by the per-band standard deviation. The
// result is L2-normalized, so cosine similarity reduces to a dot product.
//
// It is deterministic and needs no model files; identical audio always
// yields identical embeddings.
type FbankExtractor struct {
	mu  sync.Mutex
	ext *fbank.Extractor
	dim int
}

// NewFbankExtractor creates an extractor for mono audio at sampleRate.
func NewFbankExtractor(sampleRate int) (*FbankExtractor, error) {
	cfg := fbank.DefaultConfig()
	if sampleRate != cfg.SampleRate {
		return nil, fmt.Errorf("fbank: unsupported sample rate %d (want %d)", sampleRate, cfg.SampleRate)
	}
	return &FbankExtractor{
		ext: fbank.New(cfg),
		dim: 2 * cfg.NumMels,
	}, nil
}

// Dimension returns twice the number of mel bands.
func (m *FbankExtractor) Dimension() int { return m.dim }

// Close is a no-op.
func (m *FbankExtractor) Close() error { return nil }

// Extract computes the embedding for samples.
func (m *FbankExtractor) Extract(samples []float32) ([]float32, error) {
	m.mu.Lock()
	features := m.ext.Extract(samples)
	m.mu.Unlock()

	voiced := voicedFrames(features)
	if len(voiced) < minVoicedFrames {
		return nil, fmt.Errorf("%w: %d voiced frames", ErrNoSpeech, len(voiced))
	}

	mean, std := fbank.Stats(voiced)
	var avg float32
	for _, v := range mean {
		avg += v
	}
	avg /= float32(len(mean))

	emb := make([]float32, 0, m.dim)
	for _, v := range mean {
		emb = append(emb, v-avg)
	}
	emb = append(emb, std...)
	if !l2Normalize(emb) {
		return nil, fmt.Errorf("%w: flat spectrum", ErrNoSpeech)
	}
	return emb, nil
}

// voicedFrames drops silent frames from the front, back and middle of the
// clip.
func voicedFrames(features [][]float32) [][]float32 {
	energy := fbank.FrameEnergy(features)
	peak := float32(math.Inf(-1))
	for _, e := range energy {
		peak = max(peak, e)
	}
	out := make([][]float32, 0, len(features))
	for t, e := range energy {
		if e > silenceFloor && e >= peak-voicedRange {
			out = append(out, features[t])
		}
	}
	return out
}

// l2Normalize scales v to unit length in place. It reports false when v
// has zero length.
func l2Normalize(v []float32) bool {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm < 1e-12 {
		return false
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return true
}
