package playback

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/metrics"
	"github.com/zsiec/theater/internal/tick"
	"github.com/zsiec/theater/internal/videoconfig"
)

// OnSceneLifecycle dispatches a host scene event.
func (c *Controller) OnSceneLifecycle(e lifecycle.Event) {
	c.logger.WithField("event", e.Kind.String()).Debug("Scene lifecycle event")
	switch e.Kind {
	case lifecycle.MenuLoaded:
		c.menuLoaded()
	case lifecycle.GameplayLoaded:
		c.gameplayLoaded(e.Gameplay)
	case lifecycle.GameplayActive:
		c.logger.Debug("Gameplay scene active")
	case lifecycle.Paused:
		c.pause()
	case lifecycle.Resumed:
		c.resume()
	case lifecycle.SceneLeft:
		c.sceneLeft()
	}
}

func (c *Controller) menuLoaded() {
	c.scene = sceneMenu
	c.gameplay = mo.None[lifecycle.GameplaySetup]()
	c.transport = nil
	c.audio = lifecycle.AudioSample{}
	c.coverShown = false
	c.pausedDuringAudioWait = false
	c.clock.Hide()
	c.sched.StopAll()
	c.phase = Idle
	c.preview.waitingForPreviewPlayer = true
}

func (c *Controller) gameplayLoaded(setup mo.Option[lifecycle.GameplaySetup]) {
	c.sched.StopAll()
	c.scene = sceneGameplay
	c.gameplay = setup
	c.transport = nil
	c.audio = lifecycle.AudioSample{}
	c.coverShown = false
	c.preview.playing = false

	if !c.plugin.Enabled {
		c.logger.Info("Plugin disabled")
		c.clock.Hide()
		c.phase = Idle
		return
	}

	c.stopPlayback()
	c.clock.Hide()

	g, ok := setup.Get()
	if !ok {
		c.logger.Info("No level data in gameplay setup")
		return
	}
	if cur, ok := sessionLevel(c.session).Get(); !ok || cur.ID != g.Level.ID {
		c.SetSelectedLevel(mo.Some(g.Level), c.forLevel(g.Level))
	}

	if _, ok := c.playable(); !ok {
		c.logger.WithField("level_id", g.Level.ID).Info("No video configured or video is not playable")
		s, hasVideo := c.video()
		if c.plugin.CoverEnabled && !(hasVideo && s.Config.ForcesEnvironment()) {
			c.coverShown = true
			c.clock.FadeInDefault()
		}
		return
	}

	c.clock.Show()
	c.setAudioPanning(0)
	c.clock.Mute()
	c.logger.WithField("level_id", g.Level.ID).Info("Playing video from gameplay setup")
	c.startAudioWait(false)
}

func (c *Controller) sceneLeft() {
	c.stopPlayback()
	c.clock.Hide()
	c.scene = sceneOther
	c.transport = nil
	c.coverShown = false
	c.preview.playing = false
	c.pausedDuringAudioWait = false
}

func (c *Controller) forLevel(level lifecycle.Level) *videoconfig.VideoConfig {
	if c.configs == nil {
		return nil
	}
	return c.configs.ForLevel(level)
}

// startAudioWait begins waiting for the audio transport to play, then starts
// the video at its position. Gameplay first polls the resolver; previews
// already know their transport.
func (c *Controller) startAudioWait(preview bool) {
	c.phase = AwaitingAudioSource
	c.sched.Start(taskAudioWait, c.audioWaitTask(preview))
}

func (c *Controller) audioWaitTask(preview bool) tick.Task {
	var waited time.Duration
	resolved, armed := preview, false
	return func(_ context.Context, dt time.Duration) bool {
		if !resolved {
			waited += dt
			if t, ok := c.resolveAudio(); ok {
				c.transport = t
				c.audio = lifecycle.AudioSample{}
				c.logger.WithField("audio_source", t.Name()).Debug("Found audio source")
			} else if waited < c.sync.AudioSourceTimeout {
				return false
			}
			resolved = true
		}

		if !armed {
			if c.transport == nil {
				c.audioSourceMissing(waited)
				return true
			}
			armed = true
			c.ref.Reset()
			c.logger.WithField("audio_source", c.transport.Name()).Debug("Waiting for audio source to start playing")
		}

		if !c.audio.IsPlaying {
			return false
		}
		c.playVideo(c.audio.Position)
		return true
	}
}

func (c *Controller) audioSourceMissing(waited time.Duration) {
	c.errs.Report(errors.NewAudioSourceMissingError(waited))
	metrics.IncrementPlaybackAbort(metrics.ReasonAudioMiss)
	c.stopPreview(true)
	c.phase = Idle
}

// SetSelectedLevel makes level the current session with vc as its video,
// which may be nil. The video is prepared right away.
func (c *Controller) SetSelectedLevel(level mo.Option[lifecycle.Level], vc *videoconfig.VideoConfig) {
	c.preview.waitingForPreviewPlayer = true
	c.preview.waitingForVideoPlayer = true
	c.session = newSession(level, vc)
	c.ref.Reset()
	c.clearConfigPrepared()

	if l, ok := level.Get(); ok {
		logger.WithLevel(c.logger, l.ID).Debug("Selected level")
	}

	if vc == nil {
		c.clock.FadeOutDefault()
		c.sched.StopAll()
		c.phase = Idle
		return
	}

	c.prepareVideo(vc)
	if l, ok := level.Get(); ok && l.IsDLC {
		c.clock.FadeOutDefault()
	}
}

// prepareVideo loads the video of vc. A video file still locked by a
// download is given VideoLockTimeout before preparing anyway.
func (c *Controller) prepareVideo(vc *videoconfig.VideoConfig) {
	c.preview.waitingForVideoPlayer = true
	c.sched.Stop(taskPrepare)
	c.clock.ClearFrame()
	c.clock.Pause()

	if vc.DownloadState != videoconfig.Downloaded {
		c.logger.WithField("video_id", vc.VideoID).Debug("Video not downloaded")
		c.clock.FadeOutDefault()
		return
	}
	c.clock.SetLooping(vc.Loops())

	path := vc.VideoPath()
	if path == "" {
		c.logger.Debug("Video path is empty")
		return
	}
	c.logger.WithField("path", path).Info("Loading video")

	if vc.VideoFile == "" || c.clock.URL() == path || c.configs == nil {
		c.clock.Prepare(path)
		return
	}
	c.sched.Start(taskPrepare, tick.WaitUntil(
		func() bool { return !c.configs.FileLocked(path) },
		c.plugin.VideoLockTimeout,
		func(timedOut bool) {
			if timedOut {
				c.logger.WithField("path", path).Warn("Video file still locked, preparing anyway")
			}
			c.clock.Prepare(path)
		},
	))
}

func (c *Controller) onPrepareComplete() {
	if c.scene != sceneMenu {
		return
	}
	c.preview.waitingForVideoPlayer = false
	c.startSongPreview()
}

// OnConfigResolved applies a config that changed on disk. nil means the
// config was deleted or could not be read.
func (c *Controller) OnConfigResolved(vc *videoconfig.VideoConfig) {
	prevPath := ""
	if s, ok := c.video(); ok {
		prevPath = s.Config.VideoPath()
	}
	c.session = newSession(sessionLevel(c.session), vc)

	if vc == nil {
		c.logger.Info("Video config removed")
		c.clock.Hide()
		c.sched.Stop(taskDelayedStart)
		c.sched.Stop(taskAudioWait)
		c.phase = Idle
		return
	}
	c.logger.WithField("offset_ms", vc.Offset).Info("Video config changed")

	if !vc.IsPlayable() && !vc.ForcesEnvironment() {
		return
	}

	if c.scene == sceneMenu {
		c.stopPreview(true)
	} else {
		c.resync(mo.None[float64](), metrics.ReasonConfig)
	}

	if prevPath == vc.VideoPath() {
		c.clock.SetLooping(vc.Loops())
		return
	}

	c.clearConfigPrepared()
	c.configPrepared = c.clock.OnPrepared(func() {
		c.clearConfigPrepared()
		c.guard("config_prepared", c.configChangedPrepared)
	})
	c.prepareVideo(vc)
}

func (c *Controller) clearConfigPrepared() {
	if c.configPrepared != nil {
		c.configPrepared()
		c.configPrepared = nil
	}
}

func (c *Controller) configChangedPrepared() {
	if c.scene == sceneMenu || c.transport == nil {
		return
	}
	c.clock.OnNextFrame(func(int64) {
		c.guard("config_frame", c.configChangedFirstFrame)
	})
	c.playVideo(c.ref.LastKnown())
}

// configChangedFirstFrame leaves the new video paused on its first frame
// when the song is not running.
func (c *Controller) configChangedFirstFrame() {
	c.logger.Debug("First frame after config change")
	if c.transport == nil || c.audio.IsPlaying {
		return
	}
	c.clock.Pause()
	c.clock.SetBrightness(1)
	c.phase = Paused
}

// OnDifficultySelected disables playback for difficulties without a video
// suggestion when another difficulty has one, and for WIP levels without a
// suggestion.
func (c *Controller) OnDifficultySelected(sel lifecycle.DifficultySelection) {
	s, ok := c.video()
	if !ok {
		return
	}
	lacks := sel.LacksSuggestion()
	disabled := (lacks && sel.AnyDifficultyHasSuggestion()) || (s.Config.IsWIPLevel() && lacks)
	s.Config.PlaybackDisabledByMissingSuggestion = disabled

	if disabled {
		c.logger.Debug("Video disabled for this difficulty")
		c.clock.FadeOut(c.sync.QuickFadeOutDuration)
		return
	}
	if !c.clock.IsPlaying() {
		c.startSongPreview()
	}
}

func (c *Controller) onBackendError(message string) {
	c.stopPlayback()

	if s, ok := c.video(); ok {
		if c.configs != nil {
			c.configs.RefreshDownloadState(s.Config)
		}
		msg := errors.UserMessage(message, c.gpuVendor)
		s.Config.ErrorMessage = msg
		c.errorMessage = msg
	} else {
		c.errorMessage = errors.UserMessage(message, c.gpuVendor)
	}

	c.errs.Report(errors.NewPlaybackError(message))
	metrics.IncrementPlaybackAbort(metrics.ReasonBackendErr)
}
