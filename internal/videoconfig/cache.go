package videoconfig

import (
	"sync"

	"github.com/samber/lo"
)

// Cache holds configs created at runtime, e.g. while a download is in
// progress, and the set of levels known to have a video. It is owned by
// the application context; the watcher goroutine and the status server
// read it concurrently.
type Cache struct {
	mu        sync.RWMutex
	configs   map[string]*VideoConfig
	withVideo map[string]struct{}
}

func NewCache() *Cache {
	return &Cache{
		configs:   make(map[string]*VideoConfig),
		withVideo: make(map[string]struct{}),
	}
}

// Add keeps the first config added for levelID.
func (c *Cache) Add(levelID string, vc *VideoConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withVideo[levelID] = struct{}{}
	if _, ok := c.configs[levelID]; ok {
		return false
	}
	c.configs[levelID] = vc
	return true
}

func (c *Cache) Get(levelID string) (*VideoConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vc, ok := c.configs[levelID]
	return vc, ok
}

func (c *Cache) Remove(levelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.configs[levelID]
	delete(c.configs, levelID)
	return ok
}

func (c *Cache) MarkHasVideo(levelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withVideo[levelID] = struct{}{}
}

func (c *Cache) ForgetVideo(levelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.withVideo, levelID)
}

func (c *Cache) HasVideo(levelID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.withVideo[levelID]
	return ok
}

// LevelsWithVideo returns the known level ids.
func (c *Cache) LevelsWithVideo() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Keys(c.withVideo)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.configs)
}
