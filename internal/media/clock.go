package media

import (
	"math"
	"time"

	"github.com/samber/mo"
	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/easing"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/metrics"
)

// MaxVolume is the video audio level at full brightness and volume scale 1.
const MaxVolume = 0.28

type Options struct {
	FadeIn      time.Duration
	FadeOut     time.Duration
	SeekSnap    float64 // seconds; seeks closer to zero snap to zero
	VolumeScale float64
	Now         func() time.Time
}

func DefaultOptions() Options {
	s := config.DefaultSyncConfig()
	p := config.DefaultPluginConfig()
	return OptionsFromConfig(s, p)
}

func OptionsFromConfig(s *config.SyncConfig, p *config.PluginConfig) Options {
	return Options{
		FadeIn:      s.FadeInDuration,
		FadeOut:     s.FadeOutDuration,
		SeekSnap:    s.SeekSnapThreshold.Seconds(),
		VolumeScale: p.VolumeScale,
		Now:         time.Now,
	}
}

type pendingSeek struct {
	offset     float64
	capturedAt time.Time
}

// Clock owns a Backend and the brightness ramp of the screen it renders to.
type Clock struct {
	backend Backend
	ease    *easing.Controller
	opts    Options
	logger  logger.Logger

	muted             bool
	waitingForFadeOut bool
	currentlyPlaying  string
	ended             bool
	statusPlaying     bool
	blank             bool

	// Set while Play waits for the first decoded frame.
	firstFrameSince mo.Option[time.Time]

	seekAfterPrepare mo.Option[pendingSeek]

	frames      registry[func(frame int64)]
	nextFrame   registry[func(frame int64)]
	prepared    registry[func()]
	errorsSubs  registry[func(message string)]
	unsubscribe func()
}

func NewClock(b Backend, ease *easing.Controller, opts Options, l logger.Logger) *Clock {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Clock{
		backend: b,
		ease:    ease,
		opts:    opts,
		logger:  logger.WithComponent(l, "media"),
		blank:   true,
	}

	b.Bind(Events{
		FrameReady:       c.handleFrame,
		PrepareCompleted: c.handlePrepared,
		Started:          c.handleStarted,
		LoopPointReached: c.handleLoopPoint,
		ErrorReceived:    c.handleError,
	})
	c.unsubscribe = ease.OnUpdate(c.handleFade)

	c.Mute()
	c.backend.SetLooping(false)
	c.Hide()
	return c
}

// Close detaches every subscription.
func (c *Clock) Close() {
	c.backend.Bind(Events{})
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.frames.clear()
	c.nextFrame.clear()
	c.prepared.clear()
	c.errorsSubs.clear()
}

// OnFrame registers fn for every rendered frame.
func (c *Clock) OnFrame(fn func(frame int64)) func() { return c.frames.add(fn) }

// OnNextFrame registers fn for the next rendered frame only.
func (c *Clock) OnNextFrame(fn func(frame int64)) func() { return c.nextFrame.add(fn) }

func (c *Clock) OnPrepared(fn func()) func() { return c.prepared.add(fn) }

// OnError registers fn for backend errors worth reporting.
func (c *Clock) OnError(fn func(message string)) func() { return c.errorsSubs.add(fn) }

// Prepare loads url. An empty url is ignored.
func (c *Clock) Prepare(url string) {
	if url == "" {
		c.logger.Debug("Prepare skipped, no video path")
		return
	}
	c.waitingForFadeOut = false
	c.backend.SetURL(url)
	c.backend.Prepare()
}

// Unload drops the current video. The backend reports an empty-url error
// which is swallowed.
func (c *Clock) Unload() {
	c.backend.SetURL("")
	c.backend.Prepare()
}

// Play starts playback. Calls made while waiting for the first frame are
// ignored so a pending start is not restarted.
func (c *Clock) Play() {
	if c.firstFrameSince.IsPresent() {
		return
	}
	c.logger.Debug("Starting playback, waiting for first frame...")
	c.waitingForFadeOut = false
	c.firstFrameSince = mo.Some(c.opts.Now())
	c.statusPlaying = true
	c.backend.Play()
}

// Pause keeps the last frame on screen.
func (c *Clock) Pause() {
	c.backend.Pause()
	c.firstFrameSince = mo.None[time.Time]()
}

// Stop halts playback and blanks the screen.
func (c *Clock) Stop() {
	c.logger.Debug("Stopping playback")
	c.backend.Stop()
	c.statusPlaying = false
	c.blank = true
	c.firstFrameSince = mo.None[time.Time]()
}

func (c *Clock) Time() float64 { return c.backend.Time() }

// Seek moves the playhead. With a known duration, targets closer to zero
// than the snap threshold land on exactly zero since decoders drop such
// tiny seeks while playing.
func (c *Clock) Seek(t float64) {
	if c.backend.Duration() > 0 && math.Abs(t) < c.opts.SeekSnap {
		t = 0
	}
	c.backend.SetTime(t)
}

func (c *Clock) Duration() float64 { return c.backend.Duration() }

func (c *Clock) IsPrepared() bool { return c.backend.IsPrepared() }

func (c *Clock) IsPlaying() bool { return c.backend.IsPlaying() }

// HasEnded is set at the loop point of a non-looping video.
func (c *Clock) HasEnded() bool { return c.ended }

// StatusPlaying mirrors the renderer's is-playing flag.
func (c *Clock) StatusPlaying() bool { return c.statusPlaying }

// ShowsBlank reports whether the screen shows no video frame.
func (c *Clock) ShowsBlank() bool { return c.blank }

func (c *Clock) URL() string { return c.backend.URL() }

func (c *Clock) WaitingForFirstFrame() bool { return c.firstFrameSince.IsPresent() }

func (c *Clock) SetPlaybackSpeed(speed float64) { c.backend.SetPlaybackSpeed(speed) }

func (c *Clock) PlaybackSpeed() float64 { return c.backend.PlaybackSpeed() }

func (c *Clock) SetLooping(loop bool) { c.backend.SetLooping(loop) }

func (c *Clock) IsLooping() bool { return c.backend.IsLooping() }

// SeekAfterPrepare records a start offset to apply once the backend is
// prepared, advanced by the time spent preparing.
func (c *Clock) SeekAfterPrepare(offset float64, capturedAt time.Time) {
	c.seekAfterPrepare = mo.Some(pendingSeek{offset: offset, capturedAt: capturedAt})
}

func (c *Clock) HasPendingSeek() bool { return c.seekAfterPrepare.IsPresent() }

// ClearFrame blanks the screen without stopping playback.
func (c *Clock) ClearFrame() { c.blank = true }

// Brightness and fades

func (c *Clock) FadeIn(d time.Duration) {
	c.waitingForFadeOut = false
	c.ease.EaseIn(d)
}

// FadeOut ramps to black. Reaching zero stops the video that is playing.
func (c *Clock) FadeOut(d time.Duration) {
	c.waitingForFadeOut = true
	c.ease.EaseOut(d)
}

// FadeInDefault and FadeOutDefault use the configured durations.
func (c *Clock) FadeInDefault() { c.FadeIn(c.opts.FadeIn) }

func (c *Clock) FadeOutDefault() { c.FadeOut(c.opts.FadeOut) }

func (c *Clock) Show() { c.FadeIn(0) }

func (c *Clock) Hide() { c.FadeOut(0) }

func (c *Clock) SetBrightness(v float64) { c.ease.SetValue(v) }

func (c *Clock) Brightness() float64 { return c.ease.Value() }

func (c *Clock) IsFading() bool { return c.ease.IsFading() }

func (c *Clock) State() PlayerState {
	return PlayerState{Visual: c.visual(), Brightness: c.ease.Value()}
}

func (c *Clock) visual() VisualState {
	switch {
	case c.ease.IsFading() && c.ease.Target() == 1:
		return FadingIn
	case c.ease.IsFading():
		return FadingOut
	case c.ease.IsZero():
		return Hidden
	default:
		return Visible
	}
}

// Audio

func (c *Clock) Mute() {
	c.muted = true
	c.backend.SetVolume(0)
}

func (c *Clock) Unmute() {
	c.muted = false
}

func (c *Clock) IsMuted() bool { return c.muted }

func (c *Clock) SetVolumeScale(scale float64) { c.opts.VolumeScale = scale }

func (c *Clock) SetPanStereo(pan float64) { c.backend.SetPanStereo(pan) }

// Backend events

func (c *Clock) handleFade(value float64) {
	if !c.muted {
		c.backend.SetVolume(MaxVolume * c.opts.VolumeScale * value)
	}
	if value == 0 && c.waitingForFadeOut && c.backend.URL() == c.currentlyPlaying {
		c.Stop()
	}
}

func (c *Clock) handleFrame(frame int64) {
	c.blank = false
	if since, ok := c.firstFrameSince.Get(); ok {
		c.firstFrameSince = mo.None[time.Time]()
		c.FadeIn(c.opts.FadeIn)
		c.logger.WithField("delay_ms", c.opts.Now().Sub(since).Milliseconds()).Debug("First frame after Play()")
	}
	for _, fn := range c.frames.snapshot() {
		fn(frame)
	}
	for _, fn := range c.nextFrame.drain() {
		fn(frame)
	}
}

func (c *Clock) handlePrepared() {
	c.logger.WithField("duration", c.backend.Duration()).Debug("Video player prepare complete")
	if p, ok := c.seekAfterPrepare.Get(); ok {
		if p.offset > 0 {
			t := c.opts.Now().Sub(p.capturedAt).Seconds() + p.offset
			c.logger.WithField("time", t).Debug("Applying offset after prepare")
			c.Seek(t)
		}
		c.seekAfterPrepare = mo.None[pendingSeek]()
	}
	c.ClearFrame()
	for _, fn := range c.prepared.snapshot() {
		fn()
	}
}

func (c *Clock) handleStarted() {
	c.currentlyPlaying = c.backend.URL()
	c.waitingForFadeOut = false
	c.ended = false
}

func (c *Clock) handleLoopPoint() {
	if !c.backend.IsLooping() {
		c.ended = true
		c.SetBrightness(0)
	}
}

func (c *Clock) handleError(message string) {
	if errors.IsIgnoredBackendError(message) {
		return
	}
	metrics.IncrementPlaybackError()
	c.logger.WithField("backend_message", message).Error("Video player error")
	for _, fn := range c.errorsSubs.snapshot() {
		fn(message)
	}
}
