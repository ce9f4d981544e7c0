//go:build portaudio

package capture

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>

static PaError pa_open_input(void **stream, PaDeviceIndex device,
                             double latency, double sampleRate,
                             unsigned long framesPerBuffer) {
    PaStreamParameters in;
    in.device = device;
    in.channelCount = 1;
    in.sampleFormat = paInt16;
    in.suggestedLatency = latency;
    in.hostApiSpecificStreamInfo = NULL;
    return Pa_OpenStream((PaStream**)stream, &in, NULL, sampleRate,
                         framesPerBuffer, paClipOff, NULL, NULL);
}

static PaError pa_start_stream(void *stream) { return Pa_StartStream((PaStream*)stream); }
static PaError pa_stop_stream(void *stream) { return Pa_StopStream((PaStream*)stream); }
static PaError pa_close_stream(void *stream) { return Pa_CloseStream((PaStream*)stream); }

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// Available reports whether a capture backend is compiled in.
const Available = true

// framesPerBuffer is 20 ms at 16 kHz.
const framesPerBuffer = 320

var (
	initOnce sync.Once
	initErr  error
)

func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

func initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// portAudio records from the default input device.
type portAudio struct {
	mu   sync.Mutex
	rate int
}

// Open initializes PortAudio and checks for a default input device.
func Open(sampleRate int) (Recorder, error) {
	if err := initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if C.Pa_GetDefaultInputDevice() == C.paNoDevice {
		return nil, fmt.Errorf("%w: no default input device", ErrUnavailable)
	}
	return &portAudio{rate: sampleRate}, nil
}

func (p *portAudio) SampleRate() int { return p.rate }

// Record opens a mono 16-bit stream, reads d worth of frames and closes it.
func (p *portAudio) Record(d time.Duration) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	device := C.Pa_GetDefaultInputDevice()
	if device == C.paNoDevice {
		return nil, fmt.Errorf("%w: no default input device", ErrUnavailable)
	}
	info := C.Pa_GetDeviceInfo(device)
	if info == nil {
		return nil, fmt.Errorf("%w: no device info", ErrUnavailable)
	}

	var stream unsafe.Pointer
	if err := paError(C.pa_open_input(&stream, device, info.defaultLowInputLatency,
		C.double(p.rate), C.ulong(framesPerBuffer))); err != nil {
		return nil, fmt.Errorf("capture: open stream: %w", err)
	}
	defer C.pa_close_stream(stream)

	if err := paError(C.pa_start_stream(stream)); err != nil {
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	defer C.pa_stop_stream(stream)

	buf := C.malloc(C.size_t(framesPerBuffer * 2))
	defer C.free(buf)
	chunk := unsafe.Slice((*int16)(buf), framesPerBuffer)

	total := samplesFor(d, p.rate)
	out := make([]float32, 0, total)
	for len(out) < total {
		if err := paError(C.pa_read_stream(stream, buf, C.ulong(framesPerBuffer))); err != nil {
			return nil, fmt.Errorf("capture: read: %w", err)
		}
		for _, s := range chunk[:min(framesPerBuffer, total-len(out))] {
			out = append(out, float32(s)/32768)
		}
	}
	return out, nil
}
