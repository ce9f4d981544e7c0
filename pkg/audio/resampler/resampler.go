// Package resampler converts whole audio clips between sample rates and
// channel layouts.
//
// Sample rate conversion is pure Go (go-audio-resampling, high quality
// preset). Clips are processed in one pass, which suits the short
// enrollment and probe recordings this module handles.
//
// Example usage:
//
//	mono := resampler.Downmix(pcm.Samples, pcm.Channels)
//	out, err := resampler.Resample(mono, pcm.SampleRate, 16000)
package resampler

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Format describes a clip layout.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 44100, 48000).
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// flusher is implemented by resamplers that buffer filter state.
type flusher interface {
	Flush() ([]float64, error)
}

// Downmix averages interleaved channels into a mono clip. The input is not
// modified; mono input is returned as a copy.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		base := i * channels
		for c := range channels {
			sum += samples[base+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// OutputLen returns the number of frames a clip of n frames has after
// conversion from rate `from` to rate `to`.
func OutputLen(n, from, to int) int {
	return int(math.Round(float64(n) * float64(to) / float64(from)))
}

// Resample converts a mono clip from one sample rate to another. When the
// rates match the samples are copied through unchanged. The result always
// holds OutputLen(len(samples), from, to) frames.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", from, to)
	}
	if from == to {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}
	if len(samples) == 0 {
		return nil, nil
	}

	var rs resampling.Resampler
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	if f, ok := any(rs).(flusher); ok {
		tail, err := f.Flush()
		if err != nil {
			return nil, fmt.Errorf("resampler: flush: %w", err)
		}
		output = append(output, tail...)
	}

	want := OutputLen(len(samples), from, to)
	out := make([]float32, want)
	for i := 0; i < want && i < len(output); i++ {
		v := output[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return out, nil
}

// Convert downmixes a clip in format src to mono and resamples it to dstRate.
func Convert(samples []float32, src Format, dstRate int) ([]float32, error) {
	return Resample(Downmix(samples, src.Channels), src.SampleRate, dstRate)
}
