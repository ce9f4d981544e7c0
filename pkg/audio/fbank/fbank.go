// Package fbank computes log mel filterbank features from mono PCM audio.
//
// It is the acoustic front end of the built-in speaker embedding backend.
// The power spectrum is computed with gonum's real FFT.
//
// Default parameters follow the Kaldi convention used by speaker
// verification models:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     80
//	LowFreq:     20
//	HighFreq:  7600
//	PreEmphasis: 0.97
package fbank

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// energyFloor bounds mel energies away from zero before taking the log.
const energyFloor = 1e-10

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	WindowSize  int     // window length in samples (default 400 = 25ms)
	HopSize     int     // hop length in samples (default 160 = 10ms)
	FFTSize     int     // FFT size, power of two >= WindowSize (default 512)
	NumMels     int     // number of mel bins (default 80)
	LowFreq     float64 // lowest mel frequency (default 20)
	HighFreq    float64 // highest mel frequency (default 7600)
	PreEmphasis float64 // pre-emphasis coefficient (default 0.97)
}

// DefaultConfig returns the standard 16 kHz configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
	}
}

// NumFrames returns the number of feature frames produced for n samples.
func (c Config) NumFrames(n int) int {
	if n < c.WindowSize {
		return 0
	}
	return (n-c.WindowSize)/c.HopSize + 1
}

// filter is one triangular mel filter restricted to its non-zero bins.
type filter struct {
	start   int
	weights []float64
}

// Extractor computes mel filterbank features. It is not safe for
// concurrent use because it reuses FFT work buffers.
type Extractor struct {
	cfg     Config
	window  []float64
	filters []filter
	fft     *fourier.FFT
	frame   []float64
	coeffs  []complex128
}

// New creates an Extractor for cfg.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:     cfg,
		window:  hamming(cfg.WindowSize),
		filters: melFilters(cfg),
		fft:     fourier.NewFFT(cfg.FFTSize),
		frame:   make([]float64, cfg.FFTSize),
		coeffs:  make([]complex128, cfg.FFTSize/2+1),
	}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract computes log mel energies for normalized samples in [-1, 1].
// The result is a [frames][NumMels] matrix; nil when the input is shorter
// than one window.
func (e *Extractor) Extract(pcm []float32) [][]float32 {
	cfg := e.cfg
	numFrames := cfg.NumFrames(len(pcm))
	if numFrames == 0 {
		return nil
	}

	features := make([][]float32, numFrames)
	for t := range numFrames {
		start := t * cfg.HopSize
		for i := range cfg.WindowSize {
			s := float64(pcm[start+i])
			if i > 0 {
				s -= cfg.PreEmphasis * float64(pcm[start+i-1])
			}
			e.frame[i] = s * e.window[i]
		}
		clear(e.frame[cfg.WindowSize:])

		e.coeffs = e.fft.Coefficients(e.coeffs, e.frame)

		mel := make([]float32, cfg.NumMels)
		for m, f := range e.filters {
			var sum float64
			for k, w := range f.weights {
				c := e.coeffs[f.start+k]
				sum += w * (real(c)*real(c) + imag(c)*imag(c))
			}
			mel[m] = float32(math.Log(max(sum, energyFloor)))
		}
		features[t] = mel
	}
	return features
}

// CMVN applies per-dimension mean and variance normalization in place.
func CMVN(features [][]float32) {
	mean, std := Stats(features)
	for _, f := range features {
		for m := range f {
			f[m] = (f[m] - mean[m]) / std[m]
		}
	}
}

// Stats returns the per-dimension mean and standard deviation over all
// frames. Standard deviations are floored at 1e-5 so they can be divided by.
func Stats(features [][]float32) (mean, std []float32) {
	if len(features) == 0 {
		return nil, nil
	}
	dim := len(features[0])
	n := float64(len(features))
	mean = make([]float32, dim)
	std = make([]float32, dim)
	for m := range dim {
		var sum float64
		for _, f := range features {
			sum += float64(f[m])
		}
		mu := sum / n
		var sq float64
		for _, f := range features {
			d := float64(f[m]) - mu
			sq += d * d
		}
		mean[m] = float32(mu)
		std[m] = float32(max(math.Sqrt(sq/n), 1e-5))
	}
	return mean, std
}

// FrameEnergy returns the mean log mel energy of each frame. It is a cheap
// loudness track for voice activity gating.
func FrameEnergy(features [][]float32) []float32 {
	out := make([]float32, len(features))
	for t, f := range features {
		var sum float32
		for _, v := range f {
			sum += v
		}
		if len(f) > 0 {
			out[t] = sum / float32(len(f))
		}
	}
	return out
}

func hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// hzToMel uses the HTK mel scale.
func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilters builds NumMels triangular filters evenly spaced on the mel
// scale between LowFreq and HighFreq. Every filter spans at least one bin.
func melFilters(cfg Config) []filter {
	bins := cfg.FFTSize/2 + 1
	lo, hi := hzToMel(cfg.LowFreq), hzToMel(cfg.HighFreq)
	step := (hi - lo) / float64(cfg.NumMels+1)

	edges := make([]int, cfg.NumMels+2)
	for i := range edges {
		hz := melToHz(lo + float64(i)*step)
		edges[i] = min(int(math.Round(hz*float64(cfg.FFTSize)/float64(cfg.SampleRate))), bins-1)
		if i > 0 && edges[i] <= edges[i-1] {
			edges[i] = edges[i-1] + 1
		}
	}

	filters := make([]filter, cfg.NumMels)
	for m := range filters {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		right = min(right, bins-1)
		if left >= bins {
			filters[m] = filter{start: bins - 1, weights: []float64{1}}
			continue
		}
		weights := make([]float64, right-left+1)
		for k := left; k <= right; k++ {
			switch {
			case k < center:
				weights[k-left] = float64(k-left) / float64(center-left)
			case k == center:
				weights[k-left] = 1
			default:
				weights[k-left] = float64(right-k) / float64(right-center)
			}
		}
		filters[m] = filter{start: left, weights: weights}
	}
	return filters
}
