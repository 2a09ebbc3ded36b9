// Package lifecycle describes the host game as the playback engine sees it:
// scene transitions, the audio transport, level data and menu preview
// updates. The Hub carries them to subscribers.
package lifecycle

import "github.com/samber/mo"

type EventKind int

const (
	MenuLoaded EventKind = iota
	GameplayLoaded
	GameplayActive
	Paused
	Resumed
	SceneLeft
)

func (k EventKind) String() string {
	switch k {
	case MenuLoaded:
		return "menu_loaded"
	case GameplayLoaded:
		return "gameplay_loaded"
	case GameplayActive:
		return "gameplay_active"
	case Paused:
		return "paused"
	case Resumed:
		return "resumed"
	case SceneLeft:
		return "scene_left"
	default:
		return "unknown"
	}
}

// Level identifies a beatmap.
type Level struct {
	ID           string
	SongName     string
	Dir          string  // folder holding the level files; empty when unknown
	SongDuration float64 // seconds
	IsDLC        bool
}

// GameplaySetup is the level data of a gameplay scene.
type GameplaySetup struct {
	Level     Level
	SongSpeed float64
	// Set in practice mode, where it replaces the modifier speed.
	PracticeSpeed mo.Option[float64]
}

// Speed returns the song speed multiplier in effect and whether practice
// mode provided it. A practice speed of zero or less is ignored.
func (g GameplaySetup) Speed() (float64, bool) {
	if p, ok := g.PracticeSpeed.Get(); ok && p > 0 {
		return p, true
	}
	if g.SongSpeed <= 0 {
		return 1, false
	}
	return g.SongSpeed, false
}

type Event struct {
	Kind EventKind
	// Present for GameplayLoaded when the host has level data. It is absent
	// in the tutorial and in modes without a level.
	Gameplay mo.Option[GameplaySetup]
}

// AudioSample is pushed once per host tick.
type AudioSample struct {
	Position  float64
	IsPlaying bool
	// Set while the host lets audio drift on purpose, e.g. after failing a level.
	ForcedNoAudioSync bool
}

// DifficultySelection reports whether difficulties carry a video
// suggestion. Absent values mean the host had no data for the question.
type DifficultySelection struct {
	HasSuggestion    mo.Option[bool]
	AnyHasSuggestion mo.Option[bool]
}

// LacksSuggestion is true only when the selected difficulty is known to
// have no suggestion.
func (d DifficultySelection) LacksSuggestion() bool {
	has, ok := d.HasSuggestion.Get()
	return ok && !has
}

// AnyDifficultyHasSuggestion is true only when known.
func (d DifficultySelection) AnyDifficultyHasSuggestion() bool {
	return d.AnyHasSuggestion.OrElse(false)
}

// PreviewUpdate is raised whenever the menu song preview player changes
// clip.
type PreviewUpdate struct {
	Sources       []AudioTransport // every preview channel
	Active        AudioTransport   // nil when the host has none
	StartTime     float64
	TimeRemaining float64 // seconds until the player returns to its default clip
	IsDefault     bool
}

// AudioTransport is the audio source the video follows. The engine only
// pauses it around an offset scrub and pans it during previews.
type AudioTransport interface {
	Name() string
	IsPlaying() bool
	Pause()
	Play()
	SetPanStereo(pan float64)
}

// AudioResolver finds the gameplay audio transport. It is polled once per
// tick until it succeeds.
type AudioResolver interface {
	ResolveAudio() (AudioTransport, bool)
}

// PreviewPlayer is the host menu preview player.
type PreviewPlayer interface {
	CrossfadeTo(level Level, volumeDB, startTime, duration float64) error
	CrossfadeToDefault()
}
