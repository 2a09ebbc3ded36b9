package tick

import (
	"context"
	"time"
)

// Delay runs then once d of tick time has elapsed.
func Delay(d time.Duration, then func()) Task {
	var elapsed time.Duration
	return func(_ context.Context, dt time.Duration) bool {
		elapsed += dt
		if elapsed < d {
			return false
		}
		then()
		return true
	}
}

// WaitUntil polls cond once per tick. It calls then(false) as soon as cond
// holds, or then(true) after timeout. A non-positive timeout waits forever.
// Timeouts fail open: callers proceed as if the condition held.
func WaitUntil(cond func() bool, timeout time.Duration, then func(timedOut bool)) Task {
	var elapsed time.Duration
	return func(_ context.Context, dt time.Duration) bool {
		elapsed += dt
		if cond() {
			then(false)
			return true
		}
		if timeout > 0 && elapsed >= timeout {
			then(true)
			return true
		}
		return false
	}
}

// Sequence runs steps one after the other, each until it reports done.
func Sequence(steps ...Task) Task {
	i := 0
	return func(ctx context.Context, dt time.Duration) bool {
		for i < len(steps) {
			if !steps[i](ctx, dt) {
				return false
			}
			i++
			// The next step begins on this tick without consuming dt twice.
			dt = 0
		}
		return true
	}
}

// Do wraps fn as a step that finishes immediately.
func Do(fn func()) Task {
	return func(context.Context, time.Duration) bool {
		fn()
		return true
	}
}
