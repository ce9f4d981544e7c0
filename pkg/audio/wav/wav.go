// Package wav reads and writes RIFF/WAVE files holding integer PCM.
//
// Decoded audio is returned as interleaved float32 samples normalized to
// [-1, 1], which is the working representation of the audio pipeline.
// Encoding always produces 16-bit signed little-endian PCM.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalid is returned when the input is not a readable integer-PCM WAV file.
var ErrInvalid = errors.New("wav: invalid or unsupported file")

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// PCM is decoded audio.
type PCM struct {
	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int

	// Samples holds interleaved samples in [-1, 1].
	Samples []float32
}

// Frames returns the number of sample frames (samples per channel).
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playback duration.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Decode reads a complete WAV stream.
func Decode(r io.ReadSeeker) (*PCM, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if d.NumChans < 1 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalid)
	}
	switch d.WavAudioFormat {
	case formatPCM, formatExtensible:
	case formatFloat:
		return nil, fmt.Errorf("%w: IEEE float samples", ErrInvalid)
	default:
		return nil, fmt.Errorf("%w: audio format %d", ErrInvalid, d.WavAudioFormat)
	}
	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrInvalid, d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: no PCM data", ErrInvalid)
	}

	return &PCM{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		Samples:    toFloat(buf.Data, int(d.BitDepth)),
	}, nil
}

// DecodeFile opens and decodes the WAV file at path.
func DecodeFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes samples as a 16-bit PCM WAV stream. The writer must be
// seekable because the RIFF header sizes are patched on completion.
func Encode(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("wav: invalid format %d Hz x %d ch", sampleRate, channels)
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, formatPCM)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           toInt16(samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: finalize header: %w", err)
	}
	return nil
}

// EncodeFile writes samples to a new WAV file at path, truncating any
// existing file.
func EncodeFile(path string, samples []float32, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, samples, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// toFloat scales integer samples of the given bit depth to [-1, 1].
// 8-bit WAV samples are unsigned with a 128 midpoint.
func toFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth == 8 {
		for i, v := range data {
			out[i] = float32(v-128) / 128
		}
		return out
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range data {
		out[i] = float32(v) / scale
	}
	return out
}

func toInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			out[i] = 32767
		case s <= -1:
			out[i] = -32768
		default:
			out[i] = int(s * 32767)
		}
	}
	return out
}
