// Package voiceprint turns normalized speech into speaker embeddings and
// scores embeddings against enrolled templates.
//
// # Architecture
//
// The pipeline has three parts:
//
//  1. Extractor.Extract: 16 kHz mono samples → fixed-length embedding
//  2. Identify: probe embedding × templates → ranked cosine scores and an
//     accept/reject decision against a threshold
//  3. Hasher.Hash: embedding → short LSH hex hash for display (e.g., "A3F8")
//
// Extractors are opened by name through a registry:
//
//	ext, err := voiceprint.Open("fbank", voiceprint.Options{})
//	if err != nil {
//		return err
//	}
//	defer ext.Close()
//	ext = voiceprint.NewCached(ext, 64)
//
// # Voice Labels
//
// Voice hashes support multi-level precision via prefix truncation,
// similar to geohash:
//
//	16 bit: A3F8  ← exact bucket
//	12 bit: A3F   ← fuzzy
//	 8 bit: A3    ← group
//
// Labels are only a display aid; matching always uses full cosine scores.
package voiceprint

import "errors"

// ErrNoSpeech is returned when a clip has too little voiced audio to embed.
var ErrNoSpeech = errors.New("voiceprint: not enough voiced audio")

// Extractor computes speaker embeddings.
//
// The input must be mono samples in [-1, 1] at the sample rate the
// extractor was opened with (16 kHz by default). The output is an
// L2-normalized vector of length Dimension().
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Extract computes a speaker embedding from mono samples.
	Extract(samples []float32) ([]float32, error)

	// Dimension returns the length of the vectors produced by Extract.
	Dimension() int

	// Close releases any resources held by the extractor.
	Close() error
}

// VoiceLabel returns a prefixed voice label string for display.
// Format: "voice:{hash}".
func VoiceLabel(hash string) string {
	return "voice:" + hash
}
