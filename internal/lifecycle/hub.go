package lifecycle

import (
	"sync"

	"github.com/samber/lo"
)

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Topic is a typed list of callbacks.
type Topic[T any] struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber[T]
}

// Subscribe registers fn and returns the func that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := t.next
	t.subs = append(t.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.subs = lo.Reject(t.subs, func(s subscriber[T], _ int) bool { return s.id == id })
	}
}

// Publish calls every subscriber in registration order. Subscribers may
// subscribe or unsubscribe while being called.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	subs := append([]subscriber[T](nil), t.subs...)
	t.mu.Unlock()
	for _, s := range subs {
		s.fn(v)
	}
}

func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Hub is the set of hook points the host raises.
type Hub struct {
	Scene      Topic[Event]
	Audio      Topic[AudioSample]
	Difficulty Topic[DifficultySelection]
	Preview    Topic[PreviewUpdate]
	Offset     Topic[int] // user offset change in milliseconds
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribers returns the total number of registered callbacks.
func (h *Hub) Subscribers() int {
	return h.Scene.Len() + h.Audio.Len() + h.Difficulty.Len() + h.Preview.Len() + h.Offset.Len()
}
