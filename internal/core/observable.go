package core

import (
	"sync"
)

// State is the shape every screen exposes.
type State[T any] struct {
	IsLoading bool
	Data      T
	Error     string
}

// Observable holds a value and pushes it to subscribers. A slow subscriber
// only ever sees the latest value; intermediate ones are dropped.
type Observable[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[chan T]struct{}
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial, subs: make(map[chan T]struct{})}
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

func (o *Observable[T]) Set(v T) {
	o.Update(func(T) T { return v })
}

// Update applies fn to the current value under the lock and publishes the
// result. fn must not call back into o.
func (o *Observable[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = fn(o.value)
	for ch := range o.subs {
		replace(ch, o.value)
	}
	return o.value
}

// Subscribe returns a channel primed with the current value and a cancel
// func that closes it.
func (o *Observable[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.value
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			close(ch)
			o.mu.Unlock()
		})
	}
}

// replace swaps any pending value in ch for v. Only the publisher sends on
// ch, and it holds the lock, so the second send never blocks.
func replace[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
