package media

import (
	"math"
	"time"
)

// SimulatedBackend is a Backend driven by Advance instead of a decoder.
// Every Advance while playing renders one frame.
type SimulatedBackend struct {
	durations    map[string]float64
	failures     map[string]string
	prepareDelay time.Duration

	url       string
	time      float64
	speed     float64
	looping   bool
	volume    float64
	pan       float64
	prepared  bool
	playing   bool
	preparing prepareState
	remaining time.Duration
	startNext bool
	frame     int64

	events Events

	PlayCalls  int
	PauseCalls int
	StopCalls  int
	SeekCalls  int
	LastSeek   float64
}

// prepareState tracks an in-flight prepare and whether Play waits on it.
type prepareState struct {
	active       bool
	playWhenDone bool
}

// NewSimulatedBackend creates a backend that knows the duration of each url.
// Unknown urls fail to prepare.
func NewSimulatedBackend(durations map[string]float64) *SimulatedBackend {
	return &SimulatedBackend{
		durations: durations,
		failures:  make(map[string]string),
		speed:     1,
	}
}

// SetPrepareDelay makes Prepare complete after d of Advance time.
func (b *SimulatedBackend) SetPrepareDelay(d time.Duration) { b.prepareDelay = d }

// FailWith makes preparing url report message as a backend error.
func (b *SimulatedBackend) FailWith(url, message string) { b.failures[url] = message }

func (b *SimulatedBackend) Bind(events Events) { b.events = events }

func (b *SimulatedBackend) SetURL(url string) {
	if url != b.url {
		b.prepared = false
		b.playing = false
		b.time = 0
	}
	b.url = url
}

func (b *SimulatedBackend) URL() string { return b.url }

func (b *SimulatedBackend) Prepare() {
	b.preparing = prepareState{active: true, playWhenDone: b.preparing.playWhenDone}
	b.remaining = b.prepareDelay
	if b.remaining <= 0 {
		b.finishPrepare()
	}
}

func (b *SimulatedBackend) finishPrepare() {
	playWhenDone := b.preparing.playWhenDone
	b.preparing = prepareState{}

	if b.url == "" {
		b.raiseError("Can't play movie []")
		return
	}
	if msg, ok := b.failures[b.url]; ok {
		b.raiseError(msg)
		return
	}
	if _, ok := b.durations[b.url]; !ok {
		b.raiseError("Can't play movie [" + b.url + "]")
		return
	}
	b.prepared = true
	if b.events.PrepareCompleted != nil {
		b.events.PrepareCompleted()
	}
	if playWhenDone {
		b.startPlaying()
	}
}

func (b *SimulatedBackend) raiseError(message string) {
	b.prepared = false
	b.playing = false
	if b.events.ErrorReceived != nil {
		b.events.ErrorReceived(message)
	}
}

func (b *SimulatedBackend) Play() {
	b.PlayCalls++
	if !b.prepared {
		b.preparing.playWhenDone = true
		if !b.preparing.active {
			b.Prepare()
		}
		return
	}
	b.startPlaying()
}

func (b *SimulatedBackend) startPlaying() {
	if b.playing {
		return
	}
	b.playing = true
	b.startNext = true
}

func (b *SimulatedBackend) Pause() {
	b.PauseCalls++
	b.playing = false
	b.preparing.playWhenDone = false
}

func (b *SimulatedBackend) Stop() {
	b.StopCalls++
	b.playing = false
	b.preparing.playWhenDone = false
	b.time = 0
}

func (b *SimulatedBackend) Time() float64 { return b.time }

func (b *SimulatedBackend) SetTime(t float64) {
	b.SeekCalls++
	b.LastSeek = t
	b.time = math.Max(0, t)
}

func (b *SimulatedBackend) Duration() float64 {
	if !b.prepared {
		return 0
	}
	return b.durations[b.url]
}

func (b *SimulatedBackend) IsPrepared() bool { return b.prepared }

func (b *SimulatedBackend) IsPlaying() bool { return b.playing }

func (b *SimulatedBackend) SetPlaybackSpeed(speed float64) { b.speed = speed }

func (b *SimulatedBackend) PlaybackSpeed() float64 { return b.speed }

func (b *SimulatedBackend) SetLooping(loop bool) { b.looping = loop }

func (b *SimulatedBackend) IsLooping() bool { return b.looping }

func (b *SimulatedBackend) SetVolume(v float64) { b.volume = v }

func (b *SimulatedBackend) Volume() float64 { return b.volume }

func (b *SimulatedBackend) SetPanStereo(pan float64) { b.pan = pan }

func (b *SimulatedBackend) PanStereo() float64 { return b.pan }

// Advance moves the simulation forward by dt. It finishes pending prepares,
// advances the playhead, raises loop points and renders one frame.
func (b *SimulatedBackend) Advance(dt time.Duration) {
	if b.preparing.active {
		b.remaining -= dt
		if b.remaining <= 0 {
			b.finishPrepare()
		}
		return
	}
	if !b.playing {
		return
	}

	if b.startNext {
		b.startNext = false
		if b.events.Started != nil {
			b.events.Started()
		}
	} else {
		b.time += dt.Seconds() * b.speed
	}

	if d := b.durations[b.url]; d > 0 && b.time >= d {
		if b.looping {
			b.time = math.Mod(b.time, d)
		} else {
			b.time = d
			b.playing = false
		}
		if b.events.LoopPointReached != nil {
			b.events.LoopPointReached()
		}
		if !b.playing {
			return
		}
	}

	b.frame++
	if b.events.FrameReady != nil {
		b.events.FrameReady(b.frame)
	}
}
