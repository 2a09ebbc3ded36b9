package playback

import (
	"math"
	"time"

	"github.com/samber/mo"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/metrics"
	"github.com/zsiec/theater/internal/refclock"
	"github.com/zsiec/theater/internal/tick"
	"github.com/zsiec/theater/internal/videoconfig"
)

// frameReady compares the decoded position against the audio reference
// once per rendered frame and corrects drift.
func (c *Controller) frameReady(frame int64) {
	s, ok := c.video()
	if !ok || c.transport == nil || c.phase != Playing {
		return
	}
	if c.clock.IsFading() || c.syncing {
		return
	}

	sample := c.audio.Position
	duration := c.clock.Duration()
	pos := c.clock.Time()
	ref := refclock.Wrap(c.ref.Reference(sample, s.Timing), duration)
	syncErr := ref - pos

	if !c.audio.IsPlaying {
		return
	}

	metrics.ObserveSyncError(syncErr)
	c.sampler.Debug(logger.CategoryDrift, "Frame sync", logger.Fields{
		"frame":    frame,
		"player":   pos,
		"audio":    sample,
		"error_ms": math.Round(syncErr * 1000),
	})

	c.fadeTowardsEnd(s.Config, ref, duration)

	if c.ref.Jumped(sample, c.sync.SeekDetectThreshold.Seconds()) && c.clock.IsPlaying() {
		c.logger.WithField("audio", sample).Debug("Detected audio seek, resyncing")
		c.resync(mo.None[float64](), metrics.ReasonSeek)
	}

	if math.Abs(syncErr) > c.sync.DriftThreshold.Seconds() &&
		math.Abs(duration-pos) > c.sync.LoopGuard.Seconds() &&
		c.clock.IsPlaying() && !c.audio.ForcedNoAudioSync {
		c.logger.WithField("error_ms", math.Round(syncErr*1000)).Debug("Video drifted, resyncing")
		c.resync(mo.None[float64](), metrics.ReasonDrift)
	}

	c.ref.Observe(sample)
}

// fadeTowardsEnd dims the screen over the last window before the configured
// end, or before the end of a video that does not loop.
func (c *Controller) fadeTowardsEnd(vc *videoconfig.VideoConfig, ref, duration float64) {
	window := c.sync.EndFadeWindow.Seconds()
	end, hasEnd := vc.EndVideoAt.Get()
	if !hasEnd {
		if vc.Loops() || duration <= 0 {
			return
		}
		end = duration
	}
	if ref >= end-window {
		c.clock.SetBrightness(math.Max(0, end-ref))
	}
}

// resync seeks the video to the reference, or to ref when given. Seeks
// within the tolerance are skipped; negative targets become a delayed start.
func (c *Controller) resync(ref mo.Option[float64], reason string) {
	if _, ok := c.playable(); !ok || c.transport == nil {
		return
	}

	t := ref.OrElse(c.reference())
	if t < 0 {
		c.clock.Hide()
		c.startDelayed(durationFromSeconds(-t))
		return
	}
	if d := c.clock.Duration(); d > 0 && t > d {
		t = math.Mod(t, d)
	}
	if math.Abs(c.clock.Time()-t) < c.sync.ResyncTolerance.Seconds() {
		return
	}

	c.logger.WithFields(map[string]interface{}{
		"from":   c.clock.Time(),
		"to":     t,
		"reason": reason,
	}).Debug("Resyncing video")
	c.clock.Seek(t)
	metrics.IncrementResync(reason)
}

// startDelayed parks the video at zero, hidden, and starts it after d of
// tick time. A newer delayed start replaces a pending one.
func (c *Controller) startDelayed(d time.Duration) {
	metrics.IncrementDelayedStart()
	c.logger.WithField("delay", d).Debug("Delaying video start")

	c.clock.Pause()
	c.clock.Hide()
	c.clock.Seek(0)
	c.phase = DelayedStart

	c.sched.Start(taskDelayedStart, tick.Delay(d, func() {
		c.ref.Observe(c.audio.Position)
		c.phase = Playing
		c.clock.Play()
	}))
}

// playVideo starts the video for an audio position of start seconds.
func (c *Controller) playVideo(start float64) {
	s, ok := c.video()
	if !ok {
		return
	}
	c.syncing = false

	total := s.Timing.OffsetSeconds()
	speed := 1.0
	if g, ok := c.gameplay.Get(); ok {
		var practice bool
		speed, practice = g.Speed()
		// Practice mode scales the audio lead-in, so a negative start does too.
		if practice && speed > 0 && total+start < 0 {
			total /= speed * s.Config.PlaybackSpeed()
		}
	}
	speed *= s.Config.PlaybackSpeed()
	c.clock.SetPlaybackSpeed(speed)
	total += start

	// A slowed-down song with a positive offset crashes some decoders.
	if speed < 1 && total > 0 {
		c.errs.Report(errors.NewTimingPreconditionError("video playback disabled to prevent a decoder crash with a slowed song and positive offset"))
		metrics.IncrementPlaybackAbort(metrics.ReasonSlowSong)
		c.clock.Hide()
		c.stopPlayback()
		c.session = newSession(sessionLevel(c.session), nil)
		return
	}

	if !c.preview.playing {
		total += c.sync.StartLagCompensation.Seconds()
	}
	if end, ok := s.Config.EndVideoAt.Get(); ok && total > end {
		total = end
	}
	if d := c.clock.Duration(); d > 0 && total > d {
		total = math.Mod(total, d)
	}
	if math.Abs(total) < c.sync.SeekSnapThreshold.Seconds() {
		total = 0
	}

	c.sched.Stop(taskDelayedStart)
	c.ref.Observe(c.audio.Position)

	if total < 0 {
		if !c.preview.playing {
			c.startDelayed(durationFromSeconds(-total))
			return
		}
		// The preview audio already starts late by the offset.
		total = 0
	}

	c.logger.WithFields(map[string]interface{}{
		"start": total,
		"speed": speed,
	}).Debug("Playing video")
	c.phase = Playing
	c.clock.Play()
	if !c.clock.IsPrepared() {
		c.clock.SeekAfterPrepare(total, c.now())
	} else {
		c.clock.Seek(total)
	}
}

func (c *Controller) stopPlayback() {
	c.clock.Stop()
	c.sched.StopAll()
	c.phase = Idle
}

// StopAndUnload ends any preview or playback, hides the screen and drops
// the loaded video.
func (c *Controller) StopAndUnload() {
	c.stopPreview(true)
	c.stopPlayback()
	c.clock.Hide()
	c.clock.Unload()
}

func (c *Controller) pause() {
	c.pausedDuringAudioWait = c.sched.Running(taskAudioWait)
	c.sched.StopAll()
	_, hasVideo := c.video()
	if !hasVideo {
		return
	}
	if c.clock.IsPlaying() {
		c.clock.Pause()
	}
	c.phase = Paused
}

func (c *Controller) resume() {
	s, ok := c.playable()
	if !c.plugin.Enabled || !ok || c.clock.IsPlaying() {
		return
	}
	if c.pausedDuringAudioWait {
		c.pausedDuringAudioWait = false
		c.startAudioWait(false)
		return
	}
	if c.clock.HasEnded() && !s.Config.Loops() {
		return
	}

	ref := c.reference()
	if ref > 0 {
		c.phase = Playing
		c.clock.Play()
		return
	}
	if !c.sched.Running(taskDelayedStart) {
		c.startDelayed(durationFromSeconds(-ref))
	}
}

// ApplyOffset shifts the video by deltaMs relative to the audio. During
// playback the audio is held until the video renders at the new position.
func (c *Controller) ApplyOffset(deltaMs int) {
	s, ok := c.video()
	if !ok {
		return
	}
	s.Config.Offset += deltaMs
	c.session = newSession(s.Level, s.Config)

	if !c.clock.IsPlaying() || c.transport == nil {
		return
	}

	c.logger.WithField("offset_ms", deltaMs).Debug("Applying offset")
	c.syncing = true
	c.transport.Pause()
	c.applyOffsetToVideo(float64(deltaMs))
	c.clock.OnNextFrame(func(int64) {
		c.guard("offset", c.resumeAfterOffset)
	})
	metrics.IncrementResync(metrics.ReasonOffset)
}

func (c *Controller) applyOffsetToVideo(ms float64) {
	if _, ok := c.playable(); !ok || c.transport == nil {
		return
	}
	t := c.clock.Time() + ms/1000
	if t < 0 {
		c.clock.Hide()
		c.startDelayed(durationFromSeconds(-t))
		return
	}
	if d := c.clock.Duration(); d > 0 && t > d {
		t = math.Mod(t, d)
	}
	c.clock.Seek(t)
}

func (c *Controller) resumeAfterOffset() {
	c.syncing = false
	if c.transport == nil {
		c.logger.Warn("Audio source lost while applying offset")
		return
	}
	if !c.transport.IsPlaying() {
		c.transport.Play()
	}
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
