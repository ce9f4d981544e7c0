// Package speaker implements the enrollment and identification workflow.
//
// A Controller owns the template store and wires the audio normalizer,
// embedding extractor, matcher, recorder, identification history and
// activity log together. Every operation is synchronous and serialized by
// a single mutex, so the CLI, the HTTP server and the directory watcher can
// share one Controller.
//
//	ctrl, err := speaker.New(deps, speaker.Config{Threshold: 0.75})
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//	res, err := ctrl.Identify(ctx, "probe.wav")
package speaker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrExtractionFailed wraps any embedding backend failure.
	ErrExtractionFailed = errors.New("speaker: embedding extraction failed")

	// ErrNoTemplates is returned by identification on an empty store.
	ErrNoTemplates = errors.New("speaker: no templates enrolled")

	// ErrInvalidUserID is returned for empty or unsafe user ids.
	ErrInvalidUserID = errors.New("speaker: invalid user id")

	// ErrThresholdRange is returned by SetThreshold for values outside
	// [voiceprint.MinThreshold, voiceprint.MaxThreshold].
	ErrThresholdRange = errors.New("speaker: threshold out of range")

	// ErrUsage is returned by Operation.Execute for a wrong argument count.
	ErrUsage = errors.New("usage")
)

// ValidateUserID checks that id is usable as a template key and as a
// reference file name.
func ValidateUserID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	case strings.TrimSpace(id) != id:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidUserID, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidUserID, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidUserID, id)
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: %q contains control characters", ErrInvalidUserID, id)
	}
	return nil
}
