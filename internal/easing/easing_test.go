package easing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An eighth of a second is exact in float32, so ramp lengths come out even.
const frame = 125 * time.Millisecond

func TestEaseInReachesOne(t *testing.T) {
	c := New(0)
	c.Update(frame)
	var updates []float64
	c.OnUpdate(func(v float64) { updates = append(updates, v) })

	c.EaseIn(time.Second)
	assert.True(t, c.IsFading())
	assert.Equal(t, 0.125, c.Value(), "first step runs at start")

	for i := 0; i < 6; i++ {
		c.Update(frame)
	}
	assert.True(t, c.IsFading())
	assert.Equal(t, 0.875, c.Value())

	c.Update(frame)
	assert.False(t, c.IsFading())
	assert.True(t, c.IsOne())
	assert.Equal(t, 1.0, c.Value())
	assert.Len(t, updates, 8)

	for i := 1; i < len(updates); i++ {
		assert.Greater(t, updates[i], updates[i-1])
	}
}

func TestEaseOutFromPartialValue(t *testing.T) {
	c := New(0.5)
	c.Update(frame)
	c.EaseOut(time.Second)

	c.Update(frame)
	c.Update(frame)
	assert.True(t, c.IsFading())
	assert.Equal(t, 0.125, c.Value())

	c.Update(frame)
	assert.True(t, c.IsZero())
	assert.False(t, c.IsFading())
}

func TestDefaultFirstStepIsOneFrame(t *testing.T) {
	c := New(0)
	c.EaseIn(DefaultDuration)
	assert.InDelta(t, 1.0/60, c.Value(), 1e-4)
}

func TestZeroDurationCompletesImmediately(t *testing.T) {
	c := New(0)
	calls := 0
	c.OnUpdate(func(float64) { calls++ })

	c.EaseIn(0)
	assert.Equal(t, 1.0, c.Value())
	assert.False(t, c.IsFading())
	assert.Equal(t, 1, calls)

	c.EaseOut(0)
	assert.Equal(t, 0.0, c.Value())
	assert.Equal(t, 2, calls)
}

func TestNegativeDurationFloored(t *testing.T) {
	c := New(1)
	assert.NotPanics(t, func() { c.EaseOut(-time.Second) })
	assert.True(t, c.IsZero())
}

func TestNewRampCancelsPrevious(t *testing.T) {
	c := New(0)
	c.EaseIn(time.Second)
	for i := 0; i < 10; i++ {
		c.Update(frame)
	}
	mid := c.Value()

	c.EaseOut(time.Second)
	c.Update(frame)
	assert.Less(t, c.Value(), mid)
	assert.Equal(t, 0.0, c.Target())
}

func TestSetValueNotifiesAndJumps(t *testing.T) {
	c := New(1)
	var got []float64
	c.OnUpdate(func(v float64) { got = append(got, v) })

	c.SetValue(0.5)
	require.Equal(t, []float64{0.5}, got)
	assert.Equal(t, 0.5, c.Value())
	assert.False(t, c.IsFading())

	c.SetValue(3)
	assert.Equal(t, 1.0, c.Value())
	c.SetValue(-1)
	assert.True(t, c.IsZero())
}

func TestSetValueDuringRampContinuesFromNewValue(t *testing.T) {
	c := New(0)
	c.EaseIn(time.Second)
	c.SetValue(0.9)
	assert.True(t, c.IsFading())

	c.Update(frame)
	assert.True(t, c.IsOne())
	assert.False(t, c.IsFading())
}

func TestUnsubscribe(t *testing.T) {
	c := New(0)
	calls := 0
	unsubscribe := c.OnUpdate(func(float64) { calls++ })
	c.SetValue(0.2)
	unsubscribe()
	c.SetValue(0.3)
	assert.Equal(t, 1, calls)
}

func TestStopFreezesValue(t *testing.T) {
	c := New(0)
	c.EaseIn(time.Second)
	c.Update(frame)
	v := c.Value()
	c.Stop()
	c.Update(frame)
	assert.Equal(t, v, c.Value())
	assert.False(t, c.IsFading())
}

func TestUpdateUsesLastDeltaForFirstStep(t *testing.T) {
	c := New(0)
	c.Update(100 * time.Millisecond)
	c.EaseIn(time.Second)
	assert.InDelta(t, 0.1, c.Value(), 1e-4)
}
