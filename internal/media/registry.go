package media

import "github.com/samber/lo"

type handler[F any] struct {
	id int
	fn F
}

// registry holds callbacks that can be removed through the func returned
// by add.
type registry[F any] struct {
	next  int
	items []handler[F]
}

func (r *registry[F]) add(fn F) func() {
	r.next++
	id := r.next
	r.items = append(r.items, handler[F]{id: id, fn: fn})
	return func() {
		r.items = lo.Reject(r.items, func(h handler[F], _ int) bool { return h.id == id })
	}
}

// snapshot returns the callbacks so they can be invoked while handlers
// register or remove others.
func (r *registry[F]) snapshot() []F {
	return lo.Map(r.items, func(h handler[F], _ int) F { return h.fn })
}

// drain returns the callbacks and forgets them.
func (r *registry[F]) drain() []F {
	fns := r.snapshot()
	r.items = nil
	return fns
}

func (r *registry[F]) len() int {
	return len(r.items)
}

func (r *registry[F]) clear() {
	r.items = nil
}
