package playback

import (
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/refclock"
	"github.com/zsiec/theater/internal/videoconfig"
)

// Session is what the controller currently plays for: NoLevel,
// LevelNoVideo or LevelWithVideo.
type Session interface {
	sessionKind() string
}

type NoLevel struct{}

type LevelNoVideo struct {
	Level lifecycle.Level
}

// LevelWithVideo carries the timing resolved from Config when the session
// was created. Changing the offset or speed creates a new session.
type LevelWithVideo struct {
	Level  mo.Option[lifecycle.Level]
	Config *videoconfig.VideoConfig
	Timing refclock.Timing
}

func (NoLevel) sessionKind() string        { return "no_level" }
func (LevelNoVideo) sessionKind() string   { return "level_no_video" }
func (LevelWithVideo) sessionKind() string { return "level_with_video" }

func newSession(level mo.Option[lifecycle.Level], vc *videoconfig.VideoConfig) Session {
	if vc != nil {
		return LevelWithVideo{Level: level, Config: vc, Timing: vc.Timing()}
	}
	if l, ok := level.Get(); ok {
		return LevelNoVideo{Level: l}
	}
	return NoLevel{}
}

func sessionLevel(s Session) mo.Option[lifecycle.Level] {
	switch s := s.(type) {
	case LevelNoVideo:
		return mo.Some(s.Level)
	case LevelWithVideo:
		return s.Level
	default:
		return mo.None[lifecycle.Level]()
	}
}

// State is the controller phase reported to observers.
type State int

const (
	Idle State = iota
	AwaitingAudioSource
	DelayedStart
	Playing
	Paused
	Fading
)

var states = []State{Idle, AwaitingAudioSource, DelayedStart, Playing, Paused, Fading}

// stateNames feeds the controller state gauge.
var stateNames = lo.Map(states, func(s State, _ int) string { return s.String() })

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAudioSource:
		return "awaiting_audio_source"
	case DelayedStart:
		return "delayed_start"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Fading:
		return "fading"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type scene int

const (
	sceneOther scene = iota
	sceneMenu
	sceneGameplay
)
