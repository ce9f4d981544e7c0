package voiceprint

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Threshold bounds and default for accepting a match.
const (
	MinThreshold     = 0.30
	MaxThreshold     = 0.95
	DefaultThreshold = 0.75
)

// Candidate is one scored template.
type Candidate struct {
	UserID string  `json:"user_id" msgpack:"user_id"`
	Score  float64 `json:"score" msgpack:"score"`
}

// MatchResult is the outcome of comparing a probe against all templates.
type MatchResult struct {
	// UserID is the best-scoring template, empty when nothing was scored.
	UserID string `json:"user_id,omitempty"`

	// Score is the best cosine similarity in [-1, 1].
	Score float64 `json:"score"`

	// Matched reports whether any template was scored.
	Matched bool `json:"matched"`

	// Accepted reports Score >= Threshold.
	Accepted bool `json:"accepted"`

	// Threshold is the acceptance threshold used.
	Threshold float64 `json:"threshold"`

	// Candidates lists every scored template, best first.
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Cosine returns the cosine similarity of a and b. It returns 0 for
// vectors of different length or zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	x, y := widen(a), widen(b)
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

// Identify scores probe against every template and picks the best one.
// Equal scores are broken by the lexicographically smallest user id.
// Templates whose length differs from the probe are skipped.
func Identify(probe []float32, templates map[string][]float32, threshold float64) MatchResult {
	res := MatchResult{Threshold: threshold}
	cands := make([]Candidate, 0, len(templates))
	for id, emb := range templates {
		if len(emb) != len(probe) {
			continue
		}
		cands = append(cands, Candidate{UserID: id, Score: Cosine(probe, emb)})
	}
	if len(cands) == 0 {
		return res
	}
	slices.SortFunc(cands, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	best := cands[0]
	res.UserID = best.UserID
	res.Score = best.Score
	res.Matched = true
	res.Accepted = best.Score >= threshold
	res.Candidates = cands
	return res
}

// ValidThreshold reports whether t lies in [MinThreshold, MaxThreshold].
func ValidThreshold(t float64) bool {
	return t >= MinThreshold && t <= MaxThreshold
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
