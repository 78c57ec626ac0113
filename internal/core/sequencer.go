package core

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Sequencer runs sends to the same conversation one at a time. Sends to
// different conversations proceed in parallel.
type Sequencer struct {
	enabled bool
	mu      sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewSequencer returns a Sequencer; when enabled is false Acquire never
// blocks.
func NewSequencer(enabled bool) *Sequencer {
	return &Sequencer{enabled: enabled, locks: make(map[string]*keyLock)}
}

// Acquire blocks until key is free or ctx is done. The returned release
// func is safe to call more than once.
func (s *Sequencer) Acquire(ctx context.Context, key string) (func(), error) {
	if !s.enabled {
		return func() {}, nil
	}

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{sem: semaphore.NewWeighted(1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		s.unref(key, l)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			s.unref(key, l)
		})
	}, nil
}

func (s *Sequencer) unref(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}
