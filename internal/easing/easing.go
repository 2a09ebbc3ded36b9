// Package easing drives a single 0..1 value toward one of its bounds over
// time. It backs the video brightness and volume fades.
package easing

import (
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

const (
	// DefaultDuration is the ramp length used by callers that have no
	// configured duration.
	DefaultDuration = time.Second

	minDuration  = 0.0001 // seconds
	oneTolerance = 0.00001
)

const defaultDelta = time.Second / 60

type subscriber struct {
	id int
	fn func(value float64)
}

// Controller is not safe for concurrent use; it is stepped from the host tick.
type Controller struct {
	value  float64
	target float64
	speed  float64 // value units per second, signed
	tween  *gween.Tween
	fading bool

	lastDelta time.Duration

	subs   []subscriber
	nextID int
}

func New(initial float64) *Controller {
	return &Controller{
		value:     lo.Clamp(initial, 0, 1),
		lastDelta: defaultDelta,
	}
}

// OnUpdate registers fn to receive every value change. The returned func
// removes the registration.
func (c *Controller) OnUpdate(fn func(value float64)) func() {
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subs = lo.Reject(c.subs, func(s subscriber, _ int) bool { return s.id == id })
	}
}

func (c *Controller) EaseIn(d time.Duration) {
	c.start(1, d)
}

func (c *Controller) EaseOut(d time.Duration) {
	c.start(0, d)
}

// Stop abandons the active ramp, leaving the value where it is.
func (c *Controller) Stop() {
	c.tween = nil
	c.fading = false
}

func (c *Controller) start(target float64, d time.Duration) {
	seconds := math.Max(minDuration, d.Seconds())
	c.target = target
	c.speed = (target*2 - 1) / seconds
	c.fading = true
	c.rebase()

	// A ramp takes its first step immediately, so zero-length fades
	// complete within the call.
	c.step(c.lastDelta)
}

// rebase rebuilds the tween from the current value so it reaches the target
// at the configured speed.
func (c *Controller) rebase() {
	remaining := math.Abs(c.target-c.value) / math.Abs(c.speed)
	c.tween = gween.New(float32(c.value), float32(c.target), float32(remaining), ease.Linear)
}

// Update advances the active ramp by dt. It is a no-op without a ramp.
func (c *Controller) Update(dt time.Duration) {
	if dt > 0 {
		c.lastDelta = dt
	}
	if c.tween == nil {
		return
	}
	c.step(dt)
}

func (c *Controller) step(dt time.Duration) {
	current, finished := c.tween.Update(float32(dt.Seconds()))
	c.value = lo.Clamp(float64(current), 0, 1)
	if finished {
		c.value = c.target
		c.tween = nil
		c.fading = false
	}
	c.notify()
}

// SetValue jumps to v and notifies subscribers. An active ramp continues
// from v.
func (c *Controller) SetValue(v float64) {
	c.value = lo.Clamp(v, 0, 1)
	if c.tween != nil {
		c.rebase()
	}
	c.notify()
}

func (c *Controller) notify() {
	for _, s := range c.subs {
		s.fn(c.value)
	}
}

func (c *Controller) Value() float64 { return c.value }

func (c *Controller) IsFading() bool { return c.fading }

func (c *Controller) IsOne() bool { return math.Abs(c.value-1) < oneTolerance }

func (c *Controller) IsZero() bool { return c.value == 0 }

// Target returns the bound of the active or last ramp.
func (c *Controller) Target() float64 { return c.target }
