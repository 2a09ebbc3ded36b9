package logger

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FrameSampler logs at most once every N frames per category. Per-frame
// diagnostics would otherwise flood the output at 60+ Hz.
type FrameSampler struct {
	base  Logger
	every int

	mu         sync.Mutex
	categories map[string]*rate.Sometimes
}

func NewFrameSampler(base Logger, every int) *FrameSampler {
	if every < 1 {
		every = 1
	}
	return &FrameSampler{
		base:       base,
		every:      every,
		categories: make(map[string]*rate.Sometimes),
	}
}

func (s *FrameSampler) sometimes(category string) *rate.Sometimes {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.categories[category]
	if !ok {
		st = &rate.Sometimes{Every: s.every}
		s.categories[category] = st
	}
	return st
}

// Log emits msg for the first frame of every window of N frames.
func (s *FrameSampler) Log(level logrus.Level, category, msg string, fields Fields) {
	s.sometimes(category).Do(func() {
		l := s.base.WithField("category", category)
		if len(fields) > 0 {
			l = l.WithFields(fields)
		}
		l.Log(level, msg)
	})
}

func (s *FrameSampler) Debug(category, msg string, fields Fields) {
	s.Log(logrus.DebugLevel, category, msg, fields)
}

const (
	CategoryDrift   = "drift"
	CategoryFrame   = "frame"
	CategoryPreview = "preview"
)
