//go:build !portaudio

package capture

// Available reports whether a capture backend is compiled in.
const Available = false

// Open returns a Recorder that reports ErrUnavailable.
func Open(sampleRate int) (Recorder, error) {
	return Unavailable{Rate: sampleRate}, nil
}
