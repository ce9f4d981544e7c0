package speaker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haivivi/speakerid/pkg/activity"
	"github.com/haivivi/speakerid/pkg/audio/capture"
	"github.com/haivivi/speakerid/pkg/audio/normalize"
	"github.com/haivivi/speakerid/pkg/audio/wav"
	"github.com/haivivi/speakerid/pkg/history"
	"github.com/haivivi/speakerid/pkg/storage"
	"github.com/haivivi/speakerid/pkg/templates"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// ProbeName is the file name of the last recorded identification probe.
const ProbeName = "recorded_test.wav"

// DefaultRecordDuration is the capture length for record operations.
const DefaultRecordDuration = 5 * time.Second

// DefaultInclude lists the reference directory patterns scanned by
// AutoRegisterDirectory.
var DefaultInclude = []string{"*.wav", "*.mp3"}

// Deps are the collaborators of a Controller. Store, References and
// Extractor are required; nil optional fields get working defaults.
type Deps struct {
	Store      *templates.Store
	References storage.FileStore
	Probes     storage.FileStore
	Normalizer *normalize.Normalizer
	Extractor  voiceprint.Extractor
	Recorder   capture.Recorder
	History    history.Store
	Activity   *activity.Log
}

// Config holds workflow settings.
type Config struct {
	// Threshold is the initial acceptance threshold. Zero means
	// voiceprint.DefaultThreshold.
	Threshold float64

	// Include lists doublestar patterns for AutoRegisterDirectory.
	// Empty means DefaultInclude.
	Include []string

	// RecordDuration is the capture length. Zero means
	// DefaultRecordDuration.
	RecordDuration time.Duration

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Controller runs the workflow operations.
type Controller struct {
	store   *templates.Store
	refs    storage.FileStore
	probes  storage.FileStore
	norm    *normalize.Normalizer
	ext     voiceprint.Extractor
	rec     capture.Recorder
	hist    history.Store
	log     *activity.Log
	logger  *slog.Logger
	include []string
	recDur  time.Duration

	mu        sync.Mutex
	threshold float64
	hasher    *voiceprint.Hasher
}

// New creates a Controller. The template store must already be loaded.
func New(deps Deps, cfg Config) (*Controller, error) {
	if deps.Store == nil || deps.References == nil || deps.Extractor == nil {
		return nil, errors.New("speaker: Store, References and Extractor are required")
	}
	threshold := cmp.Or(cfg.Threshold, voiceprint.DefaultThreshold)
	if !voiceprint.ValidThreshold(threshold) {
		return nil, fmt.Errorf("%w: %.2f", ErrThresholdRange, threshold)
	}
	c := &Controller{
		store:     deps.Store,
		refs:      deps.References,
		probes:    deps.Probes,
		norm:      deps.Normalizer,
		ext:       deps.Extractor,
		rec:       deps.Recorder,
		hist:      deps.History,
		log:       deps.Activity,
		logger:    cfg.Logger,
		include:   cfg.Include,
		recDur:    cmp.Or(cfg.RecordDuration, DefaultRecordDuration),
		threshold: threshold,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.probes == nil {
		c.probes = c.refs
	}
	if c.norm == nil {
		c.norm = normalize.New()
		c.norm.Logger = c.logger
	}
	if c.rec == nil {
		c.rec = capture.Unavailable{Rate: normalize.DefaultTargetRate}
	}
	if c.hist == nil {
		c.hist = history.Nop{}
	}
	if c.log == nil {
		l, err := activity.New(activity.Options{Logger: c.logger})
		if err != nil {
			return nil, err
		}
		c.log = l
	}
	if len(c.include) == 0 {
		c.include = DefaultInclude
	}
	return c, nil
}

// Activity returns the activity log.
func (c *Controller) Activity() *activity.Log { return c.log }

// Store returns the template store.
func (c *Controller) Store() *templates.Store { return c.store }

// Close releases the extractor, history store and activity log mirror.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.ext.Close(), c.hist.Close(), c.log.Close())
}

// Enrollment describes a successful registration.
type Enrollment struct {
	UserID    string        `json:"user_id"`
	Source    string        `json:"source"`
	Duration  time.Duration `json:"duration"`
	Overwrote bool          `json:"overwrote"`
	Reference string        `json:"reference,omitempty"`
	Label     string        `json:"label"`
}

// Register enrolls the audio file at path under userID, replacing any
// previous template, and copies the normalized audio to the reference
// directory.
func (c *Controller) Register(ctx context.Context, path, userID string) (*Enrollment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ValidateUserID(userID); err != nil {
		c.log.Error("Registration rejected: %v", err)
		return nil, err
	}
	clip, err := c.norm.NormalizeFile(path)
	if err != nil {
		c.log.Error("Registration failed for %s: %v", userID, err)
		return nil, err
	}
	return c.enrollLocked(ctx, clip, path, userID, "Registered speaker")
}

// enrollLocked extracts, stores and writes the reference recording.
func (c *Controller) enrollLocked(ctx context.Context, clip *normalize.Clip, source, userID, verb string) (*Enrollment, error) {
	emb, err := c.extractLocked(clip)
	if err != nil {
		c.log.Error("Registration failed for %s: %v", userID, err)
		return nil, err
	}
	_, existed := c.store.Get(userID)
	if err := c.store.Put(ctx, userID, emb); err != nil {
		c.log.Error("Registration failed for %s: %v", userID, err)
		return nil, err
	}

	enr := &Enrollment{
		UserID:    userID,
		Source:    source,
		Duration:  clip.Duration(),
		Overwrote: existed,
		Label:     c.labelLocked(emb),
	}
	if ref, err := c.writeReferenceLocked(ctx, clip, source, userID); err != nil {
		c.log.Warn("Reference audio not saved for %s: %v", userID, err)
	} else {
		enr.Reference = ref
	}

	if existed {
		c.log.Success("%s: %s (overwrote previous template)", verb, userID)
	} else {
		c.log.Success("%s: %s", verb, userID)
	}
	c.logger.Info("speaker enrolled", "user", userID, "source", source, "duration", enr.Duration, "label", enr.Label)
	return enr, nil
}

func (c *Controller) extractLocked(clip *normalize.Clip) ([]float32, error) {
	emb, err := c.ext.Extract(clip.Samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return emb, nil
}

// writeReferenceLocked stores clip as <userID>.wav unless source already is
// that file.
func (c *Controller) writeReferenceLocked(ctx context.Context, clip *normalize.Clip, source, userID string) (string, error) {
	target := c.store.ReferencePath(userID)
	if sameFile(source, target) {
		return target, nil
	}
	w, err := c.refs.Write(ctx, templates.ReferenceName(userID))
	if err != nil {
		return "", err
	}
	if err := wav.Encode(w, clip.Samples, clip.SampleRate, 1); err != nil {
		w.Abort()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return target, nil
}

func sameFile(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}

// Identify scores the audio file at path against every template.
func (c *Controller) Identify(ctx context.Context, path string) (voiceprint.MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Len() == 0 {
		c.log.Warn("No speakers registered; enroll a voice first.")
		return voiceprint.MatchResult{Threshold: c.threshold}, ErrNoTemplates
	}
	clip, err := c.norm.NormalizeFile(path)
	if err != nil {
		c.log.Error("Identification failed: %v", err)
		return voiceprint.MatchResult{Threshold: c.threshold}, err
	}
	return c.matchLocked(ctx, clip, path)
}

func (c *Controller) matchLocked(ctx context.Context, clip *normalize.Clip, source string) (voiceprint.MatchResult, error) {
	probe, err := c.extractLocked(clip)
	if err != nil {
		c.log.Error("Identification failed: %v", err)
		return voiceprint.MatchResult{Threshold: c.threshold}, err
	}
	res := voiceprint.Identify(probe, c.store.Snapshot(), c.threshold)

	switch {
	case !res.Matched:
		c.log.Warn("No comparable templates (embedding dimension %d)", len(probe))
	case res.Accepted:
		c.log.Success("Speaker matched: %s (score %.4f >= %.2f)", res.UserID, res.Score, res.Threshold)
	default:
		c.log.Warn("Unknown speaker (best: %s, score %.4f < %.2f)", res.UserID, res.Score, res.Threshold)
	}
	if _, err := c.hist.Append(ctx, history.FromMatch(source, res)); err != nil {
		c.logger.Warn("history append failed", "error", err)
	}
	c.logger.Info("identification", "source", source, "user", res.UserID,
		"score", res.Score, "accepted", res.Accepted, "threshold", res.Threshold)
	return res, nil
}

// DeleteResult reports what DeleteSpeaker removed.
type DeleteResult struct {
	UserID string `json:"user_id"`
	templates.RemoveResult
}

// DeleteSpeaker removes userID's template and reference recording.
// Deleting an unknown id is not an error; the result reports NotFound.
func (c *Controller) DeleteSpeaker(ctx context.Context, userID string) (DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := DeleteResult{UserID: userID}
	if err := ValidateUserID(userID); err != nil {
		c.log.Error("Delete rejected: %v", err)
		return res, err
	}
	rr, err := c.store.Remove(ctx, userID)
	res.RemoveResult = rr
	if err != nil {
		c.log.Error("Delete failed for %s: %v", userID, err)
		return res, err
	}
	if rr.Embedding {
		c.log.Success("Embedding deleted for: %s", userID)
	} else {
		c.log.Warn("No embedding found for: %s", userID)
	}
	if rr.Reference {
		c.log.Success("Audio file deleted: %s", c.store.ReferencePath(userID))
	} else {
		c.log.Warn("No audio file found for: %s", userID)
	}
	return res, nil
}

// SetThreshold changes the acceptance threshold.
func (c *Controller) SetThreshold(v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !voiceprint.ValidThreshold(v) {
		c.log.Error("Threshold %.2f outside [%.2f, %.2f]", v, voiceprint.MinThreshold, voiceprint.MaxThreshold)
		return fmt.Errorf("%w: %.2f not in [%.2f, %.2f]", ErrThresholdRange, v, voiceprint.MinThreshold, voiceprint.MaxThreshold)
	}
	c.threshold = v
	c.log.Info("Threshold set to %.2f", v)
	return nil
}

// Threshold returns the current acceptance threshold.
func (c *Controller) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// ClearLog empties the activity log.
func (c *Controller) ClearLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Clear()
}

// SpeakerInfo describes one enrolled speaker.
type SpeakerInfo struct {
	UserID    string `json:"user_id"`
	Label     string `json:"label"`
	Dim       int    `json:"dim"`
	Reference bool   `json:"reference"`
}

// Speakers lists enrolled speakers in user id order.
func (c *Controller) Speakers(ctx context.Context) []SpeakerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.store.IDs()
	out := make([]SpeakerInfo, 0, len(ids))
	for _, id := range ids {
		emb, _ := c.store.Get(id)
		out = append(out, SpeakerInfo{
			UserID:    id,
			Label:     c.labelLocked(emb),
			Dim:       len(emb),
			Reference: c.store.HasReference(ctx, id),
		})
	}
	return out
}

// History returns recent identification attempts, newest first.
func (c *Controller) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return c.hist.List(ctx, limit)
}

// ClearHistory deletes every recorded identification attempt.
func (c *Controller) ClearHistory(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.hist.Clear(ctx)
	if err != nil {
		c.log.Error("Clearing history failed: %v", err)
		return 0, err
	}
	c.log.Info("History cleared (%d entries)", n)
	return n, nil
}

// labelLocked returns the display label for emb, building the hasher for
// the embedding dimension on first use.
func (c *Controller) labelLocked(emb []float32) string {
	if len(emb) == 0 {
		return voiceprint.VoiceLabel("?")
	}
	if c.hasher == nil || c.hasher.Dim() != len(emb) {
		h, err := voiceprint.NewHasher(len(emb), 16, voiceprint.DefaultHashSeed)
		if err != nil {
			return voiceprint.VoiceLabel("?")
		}
		c.hasher = h
	}
	return c.hasher.Label(emb)
}
