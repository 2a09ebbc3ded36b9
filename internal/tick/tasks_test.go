package tick

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitUntilCondition(t *testing.T) {
	s := newScheduler()
	ready := false
	var result *bool
	s.Start("wait", WaitUntil(func() bool { return ready }, time.Second, func(timedOut bool) { result = &timedOut }))

	s.Step(frame)
	assert.Nil(t, result)

	ready = true
	s.Step(frame)
	if assert.NotNil(t, result) {
		assert.False(t, *result)
	}
}

func TestWaitUntilTimesOutOpen(t *testing.T) {
	s := newScheduler()
	var result *bool
	s.Start("wait", WaitUntil(func() bool { return false }, 250*time.Millisecond, func(timedOut bool) { result = &timedOut }))

	s.Step(frame)
	s.Step(frame)
	assert.Nil(t, result)
	s.Step(frame)
	if assert.NotNil(t, result) {
		assert.True(t, *result)
	}
}

func TestWaitUntilWithoutTimeout(t *testing.T) {
	s := newScheduler()
	done := false
	s.Start("wait", WaitUntil(func() bool { return false }, 0, func(bool) { done = true }))
	for i := 0; i < 1000; i++ {
		s.Step(frame)
	}
	assert.False(t, done)
	assert.True(t, s.Running("wait"))
}

func TestSequence(t *testing.T) {
	var order []string
	found := false
	task := Sequence(
		WaitUntil(func() bool { return found }, 0, func(bool) { order = append(order, "found") }),
		Do(func() { order = append(order, "configured") }),
		Delay(200*time.Millisecond, func() { order = append(order, "played") }),
	)

	ctx := context.Background()
	assert.False(t, task(ctx, frame))
	found = true
	assert.False(t, task(ctx, frame))
	assert.Equal(t, []string{"found", "configured"}, order)
	assert.False(t, task(ctx, frame))
	assert.True(t, task(ctx, frame))
	assert.Equal(t, []string{"found", "configured", "played"}, order)
}
