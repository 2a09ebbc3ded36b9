// Package playback keeps a video player locked to the host's audio clock.
//
// The Controller is driven from a single goroutine: the host pushes audio
// samples and lifecycle events through a lifecycle.Hub and calls Tick once
// per frame. Waits (audio discovery, delayed starts, file locks) are tick
// tasks, never sleeps.
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/easing"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/media"
	"github.com/zsiec/theater/internal/metrics"
	"github.com/zsiec/theater/internal/refclock"
	"github.com/zsiec/theater/internal/tick"
	"github.com/zsiec/theater/internal/videoconfig"
)

const (
	taskDelayedStart tick.Kind = "delayed_start"
	taskAudioWait    tick.Kind = "audio_wait"
	taskPrepare      tick.Kind = "prepare"
)

// ConfigSource resolves video configs and inspects video files.
type ConfigSource interface {
	ForLevel(level lifecycle.Level) *videoconfig.VideoConfig
	RefreshDownloadState(vc *videoconfig.VideoConfig)
	FileLocked(path string) bool
}

type Deps struct {
	Backend media.Backend
	Configs ConfigSource
	Audio   lifecycle.AudioResolver
	Preview lifecycle.PreviewPlayer // optional
	Sync    *config.SyncConfig
	Plugin  *config.PluginConfig
	Logger  logger.Logger
	Now     func() time.Time
	// GPUVendor selects vendor specific hints in playback error messages.
	GPUVendor string
}

type previewState struct {
	playing                 bool
	waitingForPreviewPlayer bool
	waitingForVideoPlayer   bool
	startTime               float64
	timeRemaining           float64
	capturedAt              time.Time
}

// Controller owns the media clock and its fade for the lifetime of a scene
// set.
type Controller struct {
	sync          *config.SyncConfig
	plugin        *config.PluginConfig
	configs       ConfigSource
	resolver      lifecycle.AudioResolver
	previewPlayer lifecycle.PreviewPlayer
	gpuVendor     string
	now           func() time.Time

	logger  logger.Logger
	sampler *logger.FrameSampler
	errs    *errors.ErrorHandler

	ease  *easing.Controller
	clock *media.Clock
	sched *tick.Scheduler
	ref   refclock.Clock

	session   Session
	scene     scene
	gameplay  mo.Option[lifecycle.GameplaySetup]
	phase     State
	audio     lifecycle.AudioSample
	transport lifecycle.AudioTransport
	sources   []lifecycle.AudioTransport
	preview   previewState

	syncing               bool // an offset scrub holds the audio until the next frame
	coverShown            bool
	pausedDuringAudioWait bool
	errorMessage          string

	configPrepared func() // removes the pending config-change prepare handler
	unsubscribe    []func()
}

func New(ctx context.Context, d Deps) *Controller {
	if d.Logger == nil {
		d.Logger = logger.NewNullLogger()
	}
	if d.Sync == nil {
		d.Sync = config.DefaultSyncConfig()
	}
	if d.Plugin == nil {
		d.Plugin = config.DefaultPluginConfig()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	l := logger.WithComponent(d.Logger, "playback")
	opts := media.OptionsFromConfig(d.Sync, d.Plugin)
	opts.Now = d.Now
	ease := easing.New(0)

	c := &Controller{
		sync:          d.Sync,
		plugin:        d.Plugin,
		configs:       d.Configs,
		resolver:      d.Audio,
		previewPlayer: d.Preview,
		gpuVendor:     d.GPUVendor,
		now:           d.Now,
		logger:        l,
		sampler:       logger.NewFrameSampler(l, d.Sync.DriftLogEveryFrames),
		errs:          errors.NewErrorHandler(l),
		ease:          ease,
		clock:         media.NewClock(d.Backend, ease, opts, d.Logger),
		sched:         tick.NewScheduler(ctx, d.Logger),
		session:       NoLevel{},
		preview:       previewState{waitingForPreviewPlayer: true, waitingForVideoPlayer: true},
	}

	c.unsubscribe = append(c.unsubscribe,
		c.clock.OnFrame(func(frame int64) {
			c.guard("frame", func() { c.frameReady(frame) })
		}),
		c.clock.OnPrepared(func() {
			c.guard("prepared", c.onPrepareComplete)
		}),
		c.clock.OnError(func(message string) {
			c.guard("backend_error", func() { c.onBackendError(message) })
		}),
	)
	c.clock.SetVolumeScale(d.Plugin.VolumeScale)
	return c
}

// Attach registers the controller on the host hooks. Close removes them.
func (c *Controller) Attach(h *lifecycle.Hub) {
	c.unsubscribe = append(c.unsubscribe,
		h.Scene.Subscribe(func(e lifecycle.Event) {
			c.guard("scene", func() { c.OnSceneLifecycle(e) })
		}),
		h.Audio.Subscribe(c.OnAudioSample),
		h.Difficulty.Subscribe(func(sel lifecycle.DifficultySelection) {
			c.guard("difficulty", func() { c.OnDifficultySelected(sel) })
		}),
		h.Preview.Subscribe(func(u lifecycle.PreviewUpdate) {
			c.guard("preview", func() { c.UpdatePreview(u) })
		}),
		h.Offset.Subscribe(func(deltaMs int) {
			c.guard("offset", func() { c.ApplyOffset(deltaMs) })
		}),
	)
}

// Close detaches every callback and cancels running tasks.
func (c *Controller) Close() {
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
	if c.configPrepared != nil {
		c.configPrepared()
		c.configPrepared = nil
	}
	c.sched.Close()
	c.clock.Close()
}

// Tick advances tasks and fades by dt.
func (c *Controller) Tick(dt time.Duration) {
	c.guard("tick", func() {
		c.sched.Step(dt)
		c.ease.Update(dt)
	})
	metrics.SetControllerState(c.State().String(), stateNames)
}

// guard runs fn, turning a panic into a logged and counted failure so the
// host keeps ticking.
func (c *Controller) guard(component string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrementTickFailure(component)
			c.errs.Report(errors.NewInternalError(fmt.Sprintf("%s handler panicked: %v", component, r)))
		}
	}()
	fn()
}

// OnAudioSample records the latest audio transport reading.
func (c *Controller) OnAudioSample(s lifecycle.AudioSample) {
	c.audio = s
}

// Outputs

func (c *Controller) State() State {
	if c.phase == Playing && c.clock.IsFading() {
		return Fading
	}
	return c.phase
}

func (c *Controller) PlayerState() media.PlayerState { return c.clock.State() }

// ErrorMessage is the user facing text of the last playback failure.
func (c *Controller) ErrorMessage() string { return c.errorMessage }

func (c *Controller) IsPreviewPlaying() bool { return c.preview.playing }

func (c *Controller) Session() Session { return c.session }

// Level is the level of the current session, if any.
func (c *Controller) Level() mo.Option[lifecycle.Level] { return sessionLevel(c.session) }

// VideoConfig is the config of the current session, or nil.
func (c *Controller) VideoConfig() *videoconfig.VideoConfig {
	if s, ok := c.video(); ok {
		return s.Config
	}
	return nil
}

// Clock exposes the media clock to the host renderer.
func (c *Controller) Clock() *media.Clock { return c.clock }

// CoverShown reports whether the song cover replaces the video.
func (c *Controller) CoverShown() bool { return c.coverShown }

type Status struct {
	State          State             `json:"state"`
	Session        string            `json:"session"`
	LevelID        string            `json:"level_id,omitempty"`
	VideoPath      string            `json:"video_path,omitempty"`
	Player         media.PlayerState `json:"player"`
	Position       float64           `json:"position"`
	Duration       float64           `json:"duration"`
	Reference      float64           `json:"reference"`
	AudioPosition  float64           `json:"audio_position"`
	AudioPlaying   bool              `json:"audio_playing"`
	PreviewPlaying bool              `json:"preview_playing"`
	CoverShown     bool              `json:"cover_shown,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Tasks          []string          `json:"tasks,omitempty"`
}

// Status is a snapshot for the status endpoint. Call it from the tick
// goroutine.
func (c *Controller) Status() Status {
	st := Status{
		State:          c.State(),
		Session:        c.session.sessionKind(),
		Player:         c.clock.State(),
		Position:       c.clock.Time(),
		Duration:       c.clock.Duration(),
		Reference:      refclock.Wrap(c.reference(), c.clock.Duration()),
		AudioPosition:  c.audio.Position,
		AudioPlaying:   c.audio.IsPlaying,
		PreviewPlaying: c.preview.playing,
		CoverShown:     c.CoverShown(),
		ErrorMessage:   c.errorMessage,
		Tasks:          lo.Map(c.sched.Kinds(), func(k tick.Kind, _ int) string { return string(k) }),
	}
	if level, ok := sessionLevel(c.session).Get(); ok {
		st.LevelID = level.ID
	}
	if s, ok := c.video(); ok {
		st.VideoPath = s.Config.VideoPath()
	}
	return st
}

// Session helpers

func (c *Controller) video() (LevelWithVideo, bool) {
	s, ok := c.session.(LevelWithVideo)
	return s, ok
}

func (c *Controller) playable() (LevelWithVideo, bool) {
	s, ok := c.video()
	return s, ok && s.Config.IsPlayable()
}

// reference is the unwrapped position the video should be at.
func (c *Controller) reference() float64 {
	s, ok := c.video()
	if !ok || c.transport == nil {
		return 0
	}
	return c.ref.Reference(c.audio.Position, s.Timing)
}

func (c *Controller) resolveAudio() (lifecycle.AudioTransport, bool) {
	if c.resolver == nil {
		return nil, false
	}
	t, ok := c.resolver.ResolveAudio()
	return t, ok && t != nil
}
