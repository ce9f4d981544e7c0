package speaker

import (
	"context"
	"fmt"

	"github.com/haivivi/speakerid/pkg/audio/normalize"
	"github.com/haivivi/speakerid/pkg/audio/wav"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// RecordAndRegister captures a clip from the recorder and enrolls it under
// userID. The recording becomes the reference audio.
func (c *Controller) RecordAndRegister(ctx context.Context, userID string) (*Enrollment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ValidateUserID(userID); err != nil {
		c.log.Error("Registration rejected: %v", err)
		return nil, err
	}
	clip, err := c.recordLocked()
	if err != nil {
		return nil, err
	}
	return c.enrollLocked(ctx, clip, "", userID, "Recorded & registered")
}

// RecordAndIdentify captures a clip, saves it as the probe recording and
// identifies it.
func (c *Controller) RecordAndIdentify(ctx context.Context) (voiceprint.MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Len() == 0 {
		c.log.Warn("No speakers registered; enroll a voice first.")
		return voiceprint.MatchResult{Threshold: c.threshold}, ErrNoTemplates
	}
	clip, err := c.recordLocked()
	if err != nil {
		return voiceprint.MatchResult{Threshold: c.threshold}, err
	}
	if err := c.saveProbeLocked(ctx, clip); err != nil {
		c.log.Warn("Failed to save probe recording: %v", err)
	} else {
		c.log.Info("Saved to %s", c.probes.Path(ProbeName))
	}
	return c.matchLocked(ctx, clip, "microphone")
}

func (c *Controller) recordLocked() (*normalize.Clip, error) {
	c.log.Info("Recording %s...", c.recDur)
	samples, err := c.rec.Record(c.recDur)
	if err != nil {
		c.log.Error("Recording failed: %v", err)
		return nil, fmt.Errorf("speaker: record: %w", err)
	}
	clip, err := c.norm.NormalizeSamples(samples, c.rec.SampleRate(), 1)
	if err != nil {
		c.log.Error("Recording rejected: %v", err)
		return nil, err
	}
	return clip, nil
}

func (c *Controller) saveProbeLocked(ctx context.Context, clip *normalize.Clip) error {
	w, err := c.probes.Write(ctx, ProbeName)
	if err != nil {
		return err
	}
	if err := wav.Encode(w, clip.Samples, clip.SampleRate, 1); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}
