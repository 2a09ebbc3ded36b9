package playback

import (
	"math"

	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/metrics"
)

const (
	previewVolumeDB = -5.0
	previewAudioPan = 0.9  // song preview to the right
	previewVideoPan = -1.0 // video audio to the left
)

// Preview update outcomes for the preview counter.
const (
	previewStopped    = "stopped"
	previewIgnored    = "ignored"
	previewDefault    = "default"
	previewUnexpected = "unexpected"
	previewNotMenu    = "not_menu"
	previewAccepted   = "accepted"
)

// UpdatePreview follows the menu preview player. A song clip arriving with
// the expected remaining time starts the video preview in step with it.
func (c *Controller) UpdatePreview(u lifecycle.PreviewUpdate) {
	c.transport = u.Active
	c.sources = u.Sources
	c.audio = lifecycle.AudioSample{}
	c.ref.Reset()

	outcome := c.handlePreviewUpdate(u)
	metrics.IncrementPreviewUpdate(outcome)
	c.sampler.Debug(logger.CategoryPreview, "Preview player update", logger.Fields{
		"outcome":   outcome,
		"start":     u.StartTime,
		"remaining": u.TimeRemaining,
		"default":   u.IsDefault,
	})
}

func (c *Controller) handlePreviewUpdate(u lifecycle.PreviewUpdate) string {
	if c.preview.playing {
		if u.IsDefault {
			c.stopPreview(false)
			return previewStopped
		}
		c.preview.waitingForPreviewPlayer = true
		return previewIgnored
	}

	if u.IsDefault {
		c.stopPreview(true)
		c.clock.FadeOutDefault()
		c.preview.waitingForPreviewPlayer = true
		return previewDefault
	}

	expected := c.sync.PreviewDefaultRemaining.Seconds()
	if !c.preview.waitingForPreviewPlayer &&
		math.Abs(u.TimeRemaining-expected) > c.sync.PreviewRemainingTolerance.Seconds() {
		c.stopPreview(true)
		c.clock.FadeOutDefault()
		return previewUnexpected
	}

	if c.scene != sceneMenu {
		return previewNotMenu
	}

	start := u.StartTime
	if level, ok := sessionLevel(c.session).Get(); ok && level.SongDuration > 0 && start > level.SongDuration {
		start = 0
	}
	c.preview.startTime = start
	c.preview.timeRemaining = u.TimeRemaining
	c.preview.capturedAt = c.now()
	c.preview.waitingForPreviewPlayer = false
	c.startSongPreview()
	return previewAccepted
}

// startSongPreview plays the video alongside the captured preview clip once
// both the preview player and the video are ready.
func (c *Controller) startSongPreview() {
	s, ok := c.playable()
	if !c.plugin.Enabled || !ok {
		return
	}
	if c.preview.playing || c.preview.waitingForPreviewPlayer || c.preview.waitingForVideoPlayer {
		return
	}
	if c.clock.IsPlaying() || c.clock.WaitingForFirstFrame() {
		return
	}
	if level, ok := s.Level.Get(); ok && level.IsDLC {
		return
	}

	delay := c.now().Sub(c.preview.capturedAt).Seconds()
	remaining := c.preview.timeRemaining
	if remaining-delay <= c.sync.PreviewMinRemaining.Seconds() && remaining != 0 {
		c.logger.WithField("remaining", remaining-delay).Debug("Not enough preview time left")
		return
	}

	c.logger.WithField("start", c.preview.startTime+delay).Debug("Starting song preview")
	c.playVideo(c.preview.startTime + delay)
}

// TogglePreview starts or stops the manual preview of the selected video.
func (c *Controller) TogglePreview() {
	s, ok := c.video()
	level, hasLevel := s.Level.Get()
	if !ok || !hasLevel {
		c.logger.Warn("No video or level selected for preview")
		return
	}

	if c.preview.playing {
		c.logger.Debug("Stopping preview")
		c.stopPreview(true)
		return
	}

	c.logger.Debug("Starting preview")
	c.preview.playing = true
	if c.clock.IsPlaying() {
		c.stopPlayback()
	}
	if !c.clock.IsPrepared() {
		c.logger.Debug("Video not prepared yet")
	}

	start := 0.0
	if s.Config.Offset < 0 {
		start = -s.Timing.OffsetSeconds()
	}

	if c.previewPlayer == nil {
		c.logger.Error("No preview player available")
		c.preview.playing = false
		return
	}
	if err := c.previewPlayer.CrossfadeTo(level, previewVolumeDB, start, level.SongDuration); err != nil {
		c.logger.WithError(err).Error("Failed to start preview audio")
		c.preview.playing = false
		return
	}

	c.setAudioPanning(previewAudioPan)
	c.startAudioWait(true)
	c.clock.SetPanStereo(previewVideoPan)
	c.clock.Unmute()
}

func (c *Controller) stopPreview(stopMusic bool) {
	if !c.preview.playing {
		return
	}
	c.logger.Debug("Stopping preview")
	c.clock.FadeOutDefault()
	c.sched.StopAll()

	if stopMusic && c.previewPlayer != nil {
		c.previewPlayer.CrossfadeToDefault()
	}

	c.preview.playing = false
	c.setAudioPanning(0)
	c.clock.Mute()
	c.phase = Idle
}

// setAudioPanning pans the active preview channel, or every channel when
// centering.
func (c *Controller) setAudioPanning(pan float64) {
	if pan == 0 || c.transport == nil {
		for _, src := range c.sources {
			src.SetPanStereo(pan)
		}
		return
	}
	c.transport.SetPanStereo(pan)
}
