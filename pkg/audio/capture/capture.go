// Package capture records fixed-length mono clips from an input device.
//
// The PortAudio backend is compiled only with the "portaudio" build tag:
//
//	go build -tags portaudio ./cmd/speakerid
//
// Without the tag, Open returns a Recorder whose every call fails with
// ErrUnavailable, so the rest of the program keeps working from files.
package capture

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when no capture backend is compiled in or no
// input device can be opened.
var ErrUnavailable = errors.New("capture: audio capture unavailable")

// Recorder captures mono audio.
type Recorder interface {
	// Record blocks for d and returns mono samples in [-1, 1] at SampleRate.
	Record(d time.Duration) ([]float32, error)

	// SampleRate returns the capture sample rate in Hz.
	SampleRate() int
}

// Func adapts a function to the Recorder interface.
type Func struct {
	Rate int
	Fn   func(d time.Duration) ([]float32, error)
}

// Record calls f.Fn.
func (f Func) Record(d time.Duration) ([]float32, error) { return f.Fn(d) }

// SampleRate returns f.Rate.
func (f Func) SampleRate() int { return f.Rate }

// Unavailable is a Recorder that always fails with ErrUnavailable.
type Unavailable struct {
	Rate int
}

// Record returns ErrUnavailable.
func (u Unavailable) Record(time.Duration) ([]float32, error) { return nil, ErrUnavailable }

// SampleRate returns u.Rate.
func (u Unavailable) SampleRate() int { return u.Rate }

// samplesFor returns the number of frames that cover d at rate.
func samplesFor(d time.Duration, rate int) int {
	return int(d * time.Duration(rate) / time.Second)
}
