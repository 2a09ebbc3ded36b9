// Package media wraps an opaque video decoder behind a clock the playback
// controller can steer.
package media

// Events are raised by a Backend. Every callback runs on the host tick.
type Events struct {
	FrameReady       func(frame int64)
	PrepareCompleted func()
	Started          func()
	LoopPointReached func()
	ErrorReceived    func(message string)
}

// Backend is the decoding and rendering engine. Times are in seconds.
type Backend interface {
	SetURL(url string)
	URL() string

	// Prepare loads URL asynchronously and raises PrepareCompleted or
	// ErrorReceived. Play on an unprepared backend prepares first.
	Prepare()
	Play()
	Pause()
	Stop()

	Time() float64
	SetTime(t float64)
	// Duration is zero until prepared.
	Duration() float64

	IsPrepared() bool
	IsPlaying() bool

	SetPlaybackSpeed(speed float64)
	PlaybackSpeed() float64
	SetLooping(loop bool)
	IsLooping() bool

	SetVolume(v float64)
	SetPanStereo(pan float64)

	Bind(events Events)
}
