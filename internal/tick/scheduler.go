// Package tick runs cooperative, frame-stepped tasks. Every task is polled
// once per host tick and never blocks.
package tick

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/metrics"
)

// Kind names a class of task. At most one task of each kind runs at a time.
type Kind string

// Task is stepped once per tick with the time since the previous tick. It
// returns true once finished. ctx is cancelled when the task is replaced,
// stopped, or the scheduler is closed.
type Task func(ctx context.Context, dt time.Duration) (done bool)

type entry struct {
	id     uint64
	kind   Kind
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler is driven from a single goroutine: the owner calls Step once
// per tick.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger

	tasks  []*entry
	nextID uint64
}

func NewScheduler(ctx context.Context, l logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.WithComponent(l, "scheduler"),
	}
}

// Start cancels any running task of the same kind, then runs the first step
// of t immediately with a zero delta.
func (s *Scheduler) Start(kind Kind, t Task) {
	s.Stop(kind)
	if s.ctx.Err() != nil {
		return
	}

	s.nextID++
	ctx, cancel := context.WithCancel(s.ctx)
	e := &entry{id: s.nextID, kind: kind, task: t, ctx: ctx, cancel: cancel}
	s.tasks = append(s.tasks, e)
	metrics.AddScheduledTasks(1)

	if s.run(e, 0) {
		s.remove(e.id)
	}
}

// Step advances every task by dt. Tasks started during the step first run
// inside Start and are not stepped again until the next tick.
func (s *Scheduler) Step(dt time.Duration) {
	snapshot := append([]*entry(nil), s.tasks...)
	for _, e := range snapshot {
		if e.ctx.Err() != nil {
			s.remove(e.id)
			continue
		}
		if s.run(e, dt) {
			s.remove(e.id)
		}
	}
}

// run steps one task. A panicking task is logged and retried next tick.
func (s *Scheduler) run(e *entry, dt time.Duration) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrementTickFailure("scheduler")
			s.logger.WithFields(map[string]interface{}{
				"task":  string(e.kind),
				"panic": fmt.Sprint(r),
			}).Error("Task step panicked, retrying next tick")
			done = false
		}
	}()
	return e.task(e.ctx, dt)
}

func (s *Scheduler) remove(id uint64) {
	e, ok := lo.Find(s.tasks, func(e *entry) bool { return e.id == id })
	if !ok {
		return
	}
	e.cancel()
	s.tasks = lo.Reject(s.tasks, func(e *entry, _ int) bool { return e.id == id })
	metrics.AddScheduledTasks(-1)
}

// Stop cancels the running task of kind, if any.
func (s *Scheduler) Stop(kind Kind) {
	for _, e := range s.tasks {
		if e.kind == kind {
			s.remove(e.id)
			return
		}
	}
}

// StopAll cancels every running task.
func (s *Scheduler) StopAll() {
	for _, e := range append([]*entry(nil), s.tasks...) {
		s.remove(e.id)
	}
}

func (s *Scheduler) Running(kind Kind) bool {
	return lo.ContainsBy(s.tasks, func(e *entry) bool { return e.kind == kind })
}

func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Kinds lists the running task kinds in start order.
func (s *Scheduler) Kinds() []Kind {
	return lo.Map(s.tasks, func(e *entry, _ int) Kind { return e.kind })
}

// Close cancels every task and refuses new ones.
func (s *Scheduler) Close() {
	s.StopAll()
	s.cancel()
}
