package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

// TickChecker reports whether the playback tick loop is still running.
// The loop calls Beat once per tick.
type TickChecker struct {
	last     atomic.Int64
	ticks    atomic.Int64
	maxDelay time.Duration
	now      func() time.Time
}

// NewTickChecker degrades when no tick arrived within maxDelay and goes down
// after four times that.
func NewTickChecker(maxDelay time.Duration) *TickChecker {
	return &TickChecker{maxDelay: maxDelay, now: time.Now}
}

func (c *TickChecker) Name() string { return "tick_loop" }

// Beat records a tick.
func (c *TickChecker) Beat() {
	c.last.Store(c.now().UnixNano())
	c.ticks.Add(1)
}

func (c *TickChecker) Check(ctx context.Context) error {
	last := c.last.Load()
	if last == 0 {
		return fmt.Errorf("tick loop has not started")
	}
	since := c.now().Sub(time.Unix(0, last))
	switch {
	case since > 4*c.maxDelay:
		return fmt.Errorf("no tick for %s", since.Round(time.Millisecond))
	case since > c.maxDelay:
		return Degraded(fmt.Sprintf("tick late by %s", (since - c.maxDelay).Round(time.Millisecond)))
	}
	return nil
}

func (c *TickChecker) Details() map[string]interface{} {
	return map[string]interface{}{"ticks": c.ticks.Load()}
}

// VideoDirChecker verifies the video directory exists and can be listed.
type VideoDirChecker struct {
	fs      afero.Fs
	dir     string
	entries atomic.Int64
}

func NewVideoDirChecker(fs afero.Fs, dir string) *VideoDirChecker {
	return &VideoDirChecker{fs: fs, dir: dir}
}

func (c *VideoDirChecker) Name() string { return "video_dir" }

func (c *VideoDirChecker) Check(ctx context.Context) error {
	if c.dir == "" {
		return Degraded("video directory not configured")
	}
	info, err := c.fs.Stat(c.dir)
	if err != nil {
		return fmt.Errorf("video directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("video directory %s is not a directory", c.dir)
	}
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return fmt.Errorf("list video directory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.entries.Store(int64(len(entries)))
	return nil
}

func (c *VideoDirChecker) Details() map[string]interface{} {
	return map[string]interface{}{"path": c.dir, "entries": c.entries.Load()}
}
