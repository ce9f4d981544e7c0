// Package mp3 transcodes MPEG-1/2 Layer III audio into WAV.
//
// Decoding is pure Go (go-mp3). The decoder always yields 16-bit stereo,
// so the produced WAV is stereo even for mono sources; channel reduction is
// left to the caller.
package mp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/haivivi/speakerid/pkg/audio/wav"
)

// ErrInvalid is returned when the input cannot be decoded as MP3.
var ErrInvalid = errors.New("mp3: invalid or unsupported stream")

const decodedChannels = 2

// Decode reads the whole MP3 stream into interleaved stereo samples.
func Decode(r io.Reader) (*wav.PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: no audio frames", ErrInvalid)
	}

	n := len(raw) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(s) / 32768
	}
	return &wav.PCM{
		SampleRate: dec.SampleRate(),
		Channels:   decodedChannels,
		Samples:    samples,
	}, nil
}

// ToWAV decodes the MP3 stream from r and writes it to w as 16-bit WAV at
// the source sample rate.
func ToWAV(r io.Reader, w io.WriteSeeker) error {
	pcm, err := Decode(r)
	if err != nil {
		return err
	}
	return wav.Encode(w, pcm.Samples, pcm.SampleRate, pcm.Channels)
}
