// Package normalize turns audio files and raw sample buffers into validated
// mono clips at a fixed sample rate.
//
// WAV files are decoded directly. MP3 files are first transcoded to a
// temporary WAV file that is removed on every exit path. Every clip is
// downmixed to mono, checked against a minimum duration at its source rate
// and then resampled to the target rate.
//
//	n := normalize.New()
//	clip, err := n.NormalizeFile("alice.mp3")
//	if errors.Is(err, normalize.ErrTooShort) {
//		// reject
//	}
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haivivi/speakerid/pkg/audio/mp3"
	"github.com/haivivi/speakerid/pkg/audio/resampler"
	"github.com/haivivi/speakerid/pkg/audio/wav"
)

// Defaults used by New.
const (
	DefaultTargetRate  = 16000
	DefaultMinDuration = 2 * time.Second
)

var (
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("normalize: cannot decode audio")

	// ErrTooShort is returned when a clip is shorter than the minimum
	// duration.
	ErrTooShort = errors.New("normalize: audio too short")
)

// DecodeError reports a file or buffer that could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("normalize: decode: %v", e.Err)
	}
	return fmt.Sprintf("normalize: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports ErrDecode as matching so callers can test the category.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Clip is a validated mono clip.
type Clip struct {
	// Samples holds mono samples in [-1, 1].
	Samples []float32

	// SampleRate is the clip sample rate in Hz.
	SampleRate int

	// SourceRate is the sample rate before normalization.
	SourceRate int
}

// Duration returns the clip playback duration.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// WriteFile stores the clip as 16-bit mono WAV at path.
func (c *Clip) WriteFile(path string) error {
	return wav.EncodeFile(path, c.Samples, c.SampleRate, 1)
}

// Normalizer validates and converts audio.
type Normalizer struct {
	// TargetRate is the output sample rate. Zero means DefaultTargetRate.
	TargetRate int

	// MinDuration is the shortest accepted clip. Zero means
	// DefaultMinDuration.
	MinDuration time.Duration

	// TempDir holds transient transcoding files. Empty means os.TempDir().
	TempDir string

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// New returns a Normalizer with default settings.
func New() *Normalizer {
	return &Normalizer{
		TargetRate:  DefaultTargetRate,
		MinDuration: DefaultMinDuration,
	}
}

func (n *Normalizer) targetRate() int {
	if n.TargetRate > 0 {
		return n.TargetRate
	}
	return DefaultTargetRate
}

func (n *Normalizer) minDuration() time.Duration {
	if n.MinDuration > 0 {
		return n.MinDuration
	}
	return DefaultMinDuration
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Supported reports whether path has an extension NormalizeFile accepts.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3":
		return true
	}
	return false
}

// NormalizeFile decodes the file at path and normalizes it.
func (n *Normalizer) NormalizeFile(path string) (*Clip, error) {
	var (
		pcm *wav.PCM
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		pcm, err = wav.DecodeFile(path)
	case ".mp3":
		pcm, err = n.decodeMP3(path)
	default:
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("unsupported format %q", ext)}
	}
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	n.logger().Debug("audio decoded", "path", path,
		"rate", pcm.SampleRate, "channels", pcm.Channels, "duration", pcm.Duration())
	return n.NormalizeSamples(pcm.Samples, pcm.SampleRate, pcm.Channels)
}

// decodeMP3 transcodes the MP3 at path into a temporary WAV file and
// decodes that. The temporary file never outlives the call.
func (n *Normalizer) decodeMP3(path string) (*wav.PCM, error) {
	var pcm *wav.PCM
	err := n.withTempWAV(func(tmp *os.File) error {
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		if err := mp3.ToWAV(src, tmp); err != nil {
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		pcm, err = wav.DecodeFile(tmp.Name())
		return err
	})
	return pcm, err
}

// withTempWAV creates a temporary .wav file, passes it to fn and removes it
// afterwards regardless of the outcome.
func (n *Normalizer) withTempWAV(fn func(tmp *os.File) error) error {
	tmp, err := os.CreateTemp(n.TempDir, "speakerid-*.wav")
	if err != nil {
		return fmt.Errorf("normalize: create temp file: %w", err)
	}
	name := tmp.Name()
	defer func() {
		tmp.Close()
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			n.logger().Warn("remove temp file", "path", name, "error", err)
		}
	}()
	return fn(tmp)
}

// NormalizeSamples validates and converts an interleaved sample buffer.
// The input slice is never modified.
func (n *Normalizer) NormalizeSamples(samples []float32, sampleRate, channels int) (*Clip, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("invalid format %d Hz x %d ch", sampleRate, channels)}
	}
	frames := len(samples) / channels
	got := time.Duration(frames) * time.Second / time.Duration(sampleRate)
	minFrames := int(n.minDuration() * time.Duration(sampleRate) / time.Second)
	if frames < minFrames {
		return nil, fmt.Errorf("%w: %.2fs < %s", ErrTooShort, got.Seconds(), n.minDuration())
	}

	out, err := resampler.Convert(samples, resampler.Format{SampleRate: sampleRate, Channels: channels}, n.targetRate())
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &Clip{
		Samples:    out,
		SampleRate: n.targetRate(),
		SourceRate: sampleRate,
	}, nil
}
