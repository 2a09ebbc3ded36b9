// Package refclock derives the position the video should be at from the
// audio transport position.
package refclock

import "math"

// Timing is the offset and speed pair of one playback session. Changing
// either value means building a new Timing.
type Timing struct {
	offsetMs int
	speed    float64
}

func NewTiming(offsetMs int, speed float64) Timing {
	return Timing{offsetMs: offsetMs, speed: speed}
}

func (t Timing) OffsetMs() int { return t.offsetMs }

func (t Timing) Speed() float64 { return t.speed }

// OffsetSeconds returns the offset in seconds.
func (t Timing) OffsetSeconds() float64 { return float64(t.offsetMs) / 1000 }

// ComputeReferenceTime returns sample*speed + offset. A zero sample is
// ambiguous (not started or reset) and is replaced by lastKnown.
func ComputeReferenceTime(sample, lastKnown float64, offsetMs int, speed float64) float64 {
	if sample == 0 {
		sample = lastKnown
	}
	return sample*speed + float64(offsetMs)/1000
}

// Wrap reduces ref modulo duration. Negative references and unknown
// durations are returned unchanged.
func Wrap(ref, duration float64) float64 {
	if duration <= 0 || ref < 0 {
		return ref
	}
	return math.Mod(ref, duration)
}

// Clock remembers the last positive audio sample.
type Clock struct {
	lastKnown float64
}

// Observe records sample if it is strictly positive.
func (c *Clock) Observe(sample float64) {
	if sample > 0 {
		c.lastKnown = sample
	}
}

// Reset forgets the last sample. Used when a new level or preview starts.
func (c *Clock) Reset() {
	c.lastKnown = 0
}

func (c *Clock) LastKnown() float64 { return c.lastKnown }

// Reference computes the unwrapped reference time for sample.
func (c *Clock) Reference(sample float64, t Timing) float64 {
	return ComputeReferenceTime(sample, c.lastKnown, t.offsetMs, t.speed)
}

// Jumped reports whether sample moved further than threshold seconds from
// the last recorded sample.
func (c *Clock) Jumped(sample, threshold float64) bool {
	return math.Abs(sample-c.lastKnown) > threshold
}
