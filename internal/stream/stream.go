// Package stream carries live query results as a sequence of
// result.Result values: Loading, then one Success per snapshot, and at most
// one terminal Error before the channel closes.
package stream

import (
	"context"
	"sync"

	"gwi.com/chat-sync/internal/result"
)

// Producer pushes snapshots through emit until ctx is done or it fails.
// emit returns false once the stream has been closed.
type Producer[T any] func(ctx context.Context, emit func(T) bool) error

type Stream[T any] struct {
	events chan result.Result[T]
	stop   func()
	done   chan struct{}
	once   sync.Once
}

// New starts p in its own goroutine. A non-nil error returned by p while
// ctx is still live becomes the terminal Error event.
func New[T any](ctx context.Context, p Producer[T]) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		events: make(chan result.Result[T]),
		stop:   cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.events)
		defer cancel()

		if !s.send(ctx, result.Loading[T]()) {
			return
		}
		err := p(ctx, func(v T) bool {
			return s.send(ctx, result.Success(v))
		})
		if err != nil && ctx.Err() == nil {
			s.send(ctx, result.FromError[T](err))
		}
	}()
	return s
}

// Failed returns a stream that emits only the terminal error for err.
func Failed[T any](err error) *Stream[T] {
	return New(context.Background(), func(context.Context, func(T) bool) error {
		return err
	})
}

func (s *Stream[T]) send(ctx context.Context, ev result.Result[T]) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// C returns the event channel. It is closed after the terminal event or
// after Close.
func (s *Stream[T]) C() <-chan result.Result[T] {
	return s.events
}

// Done is closed once the producer goroutine has exited.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Close cancels the producer and waits for it to exit.
func (s *Stream[T]) Close() {
	s.once.Do(s.stop)
	<-s.done
}

func relay[T, U any](src *Stream[T], conv func(result.Result[T]) result.Result[U]) *Stream[U] {
	ctx, cancel := context.WithCancel(context.Background())
	out := &Stream[U]{
		events: make(chan result.Result[U]),
		stop: func() {
			cancel()
			src.Close()
		},
		done: make(chan struct{}),
	}

	go func() {
		defer close(out.done)
		defer close(out.events)
		for ev := range src.C() {
			if !out.send(ctx, conv(ev)) {
				return
			}
		}
	}()
	return out
}
