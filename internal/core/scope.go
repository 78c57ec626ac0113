package core

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scope ties goroutines and in-flight calls to the lifetime of a screen.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.Mutex
	closed bool
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go runs fn in the scope and reports whether it was started; nothing starts
// once Close has been called. fn must return once its context is done.
func (s *Scope) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.group.Go(func() error {
		fn(s.ctx)
		return nil
	})
	return true
}

// Bind derives a context from ctx that is also cancelled when the scope
// closes.
func (s *Scope) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if s.ctx.Err() != nil {
		cancel()
	}
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Close cancels everything started in the scope and waits for it.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.group.Wait()
}
