// Package simhost is a headless stand-in for the game: a song transport, a
// menu preview player and a scripted menu → gameplay → menu session.
package simhost

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/afero"

	"github.com/zsiec/theater/internal/app"
	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/media"
	"github.com/zsiec/theater/internal/videoconfig"
)

// Transport is a song playhead advanced by the simulation.
type Transport struct {
	name     string
	position float64
	playing  bool
	pan      float64
	speed    float64
}

func NewTransport(name string, speed float64) *Transport {
	return &Transport{name: name, speed: speed}
}

func (t *Transport) Name() string             { return t.name }
func (t *Transport) IsPlaying() bool          { return t.playing }
func (t *Transport) Pause()                   { t.playing = false }
func (t *Transport) Play()                    { t.playing = true }
func (t *Transport) SetPanStereo(pan float64) { t.pan = pan }
func (t *Transport) Position() float64        { return t.position }
func (t *Transport) Pan() float64             { return t.pan }

func (t *Transport) seek(pos float64) { t.position = pos }

func (t *Transport) advance(dt time.Duration) {
	if t.playing {
		t.position += dt.Seconds() * t.speed
	}
}

// Resolver hands out the song transport once it exists.
type Resolver struct {
	transport *Transport
	ready     bool
}

func (r *Resolver) ResolveAudio() (lifecycle.AudioTransport, bool) {
	if !r.ready {
		return nil, false
	}
	return r.transport, true
}

// PreviewPlayer plays level clips on one channel and falls back to the
// menu music.
type PreviewPlayer struct {
	channel    *Transport
	Crossfades int
	Defaults   int
}

func (p *PreviewPlayer) CrossfadeTo(level lifecycle.Level, volumeDB, start, duration float64) error {
	if duration > 0 && start > duration {
		return fmt.Errorf("start %.2fs beyond clip length %.2fs", start, duration)
	}
	p.Crossfades++
	p.channel.seek(start)
	p.channel.Play()
	return nil
}

func (p *PreviewPlayer) CrossfadeToDefault() {
	p.Defaults++
	p.channel.seek(0)
}

// Phase is the scene the simulated game is in.
type Phase int

const (
	PhaseMenu Phase = iota
	PhaseGameplay
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseMenu:
		return "menu"
	case PhaseGameplay:
		return "gameplay"
	default:
		return "done"
	}
}

// menuDwell is how long the simulated player browses before starting the
// level.
const menuDwell = 5 * time.Second

// Host runs the scripted session against an App.
type Host struct {
	cfg     *config.SimulationConfig
	logger  logger.Logger
	level   lifecycle.Level
	backend *media.SimulatedBackend

	song     *Transport
	preview  *Transport
	resolver *Resolver
	player   *PreviewPlayer

	app     *app.App
	phase   Phase
	elapsed time.Duration
	rounds  int
}

// New creates the simulated game for level. videoPath is the file the
// backend pretends to decode.
func New(cfg *config.SimulationConfig, level lifecycle.Level, videoPath string, l logger.Logger) *Host {
	if l == nil {
		l = logger.NewNullLogger()
	}
	song := NewTransport("song", cfg.SongSpeed)
	preview := NewTransport("preview", 1)
	return &Host{
		cfg:      cfg,
		logger:   logger.WithComponent(l, "simhost"),
		level:    level,
		backend:  media.NewSimulatedBackend(map[string]float64{videoPath: cfg.VideoDuration.Seconds()}),
		song:     song,
		preview:  preview,
		resolver: &Resolver{transport: song},
		player:   &PreviewPlayer{channel: preview},
	}
}

// AppHost is the host side handed to app.New.
func (h *Host) AppHost() app.Host {
	return app.Host{Backend: h.backend, Audio: h.resolver, Preview: h.player}
}

func (h *Host) Backend() *media.SimulatedBackend { return h.backend }
func (h *Host) Song() *Transport                 { return h.song }
func (h *Host) Phase() Phase                     { return h.phase }
func (h *Host) Rounds() int                      { return h.rounds }

// Start enters the menu and selects the level.
func (h *Host) Start(a *app.App) {
	h.app = a
	h.enterMenu()
}

func (h *Host) enterMenu() {
	h.phase = PhaseMenu
	h.elapsed = 0
	h.song.Pause()
	h.song.seek(0)
	h.resolver.ready = false

	hub := h.app.Hub()
	hub.Scene.Publish(lifecycle.Event{Kind: lifecycle.MenuLoaded})
	h.app.SelectLevel(h.level)
	hub.Difficulty.Publish(lifecycle.DifficultySelection{
		HasSuggestion:    mo.Some(true),
		AnyHasSuggestion: mo.Some(true),
	})

	start := h.level.SongDuration * 0.4
	h.preview.seek(start)
	h.preview.Play()
	hub.Preview.Publish(lifecycle.PreviewUpdate{
		Sources:       []lifecycle.AudioTransport{h.preview},
		Active:        h.preview,
		StartTime:     start,
		TimeRemaining: 2.5,
	})
	h.logger.WithField("level_id", h.level.ID).Info("Menu loaded, previewing level")
}

func (h *Host) enterGameplay() {
	h.phase = PhaseGameplay
	h.elapsed = 0
	h.preview.Pause()
	h.app.Hub().Scene.Publish(lifecycle.Event{
		Kind:     lifecycle.GameplayLoaded,
		Gameplay: mo.Some(lifecycle.GameplaySetup{Level: h.level, SongSpeed: h.cfg.SongSpeed}),
	})
	h.logger.WithField("level_id", h.level.ID).Info("Gameplay loaded")
}

// Step advances the game by dt: the song, the hooks, the engine, then the
// video backend.
func (h *Host) Step(dt time.Duration) {
	if h.app == nil || h.phase == PhaseDone {
		return
	}
	h.elapsed += dt
	h.script()

	h.song.advance(dt)
	h.preview.advance(dt)

	sample := lifecycle.AudioSample{Position: h.song.Position(), IsPlaying: h.song.IsPlaying()}
	if h.phase == PhaseMenu {
		sample = lifecycle.AudioSample{Position: h.preview.Position(), IsPlaying: h.preview.IsPlaying()}
	}
	h.app.Hub().Audio.Publish(sample)
	h.app.Tick(dt)
	h.backend.Advance(dt)
}

func (h *Host) script() {
	switch h.phase {
	case PhaseMenu:
		if h.elapsed >= menuDwell {
			h.enterGameplay()
		}
	case PhaseGameplay:
		if !h.resolver.ready && h.elapsed >= h.cfg.AudioDelay {
			h.resolver.ready = true
			h.song.Play()
			h.app.Hub().Scene.Publish(lifecycle.Event{Kind: lifecycle.GameplayActive})
		}
		if h.song.Position() >= h.level.SongDuration {
			h.song.Pause()
			h.app.Hub().Scene.Publish(lifecycle.Event{Kind: lifecycle.SceneLeft})
			h.rounds++
			h.logger.WithField("rounds", h.rounds).Info("Level finished")
			if !h.cfg.Loop {
				h.phase = PhaseDone
				return
			}
			h.enterMenu()
		}
	}
}

// Done reports whether the scripted session has ended.
func (h *Host) Done() bool { return h.phase == PhaseDone }

// Seed creates the demo level folder with a placeholder video and its
// config unless a config already exists. It returns the level and the video
// path.
func Seed(fs afero.Fs, loader *videoconfig.Loader, cfg *config.Config) (lifecycle.Level, string, error) {
	level := lifecycle.Level{
		ID:           cfg.Simulation.LevelID,
		SongName:     "Theater Demo",
		Dir:          filepath.Join(cfg.Plugin.VideoDir, cfg.Simulation.LevelID),
		SongDuration: cfg.Simulation.SongDuration.Seconds(),
	}

	if vc := loader.LoadDir(level.Dir); vc != nil {
		return level, vc.VideoPath(), nil
	}

	if err := fs.MkdirAll(level.Dir, 0o755); err != nil {
		return level, "", fmt.Errorf("create level directory: %w", err)
	}
	vc := &videoconfig.VideoConfig{
		VideoID:   "demo",
		Title:     "Theater Demo",
		VideoFile: cfg.Simulation.LevelID + ".mp4",
		Duration:  int(cfg.Simulation.VideoDuration.Seconds()),
		LevelDir:  level.Dir,
	}
	if cfg.Simulation.Loop {
		vc.Loop = mo.Some(true)
	}
	if err := afero.WriteFile(fs, vc.VideoPath(), nil, 0o644); err != nil {
		return level, "", fmt.Errorf("create placeholder video: %w", err)
	}
	if err := loader.Save(vc); err != nil {
		return level, "", err
	}
	return level, vc.VideoPath(), nil
}
