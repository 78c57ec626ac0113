package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"gwi.com/chat-sync/internal/stream"
)

var errStoreClosed = errors.New("store closed")

// hub fans out change notifications per topic. Each subscriber holds at
// most one pending notification, so bursts of writes coalesce into a
// single re-query.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	h     *hub
	topic string
	ch    chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscription]struct{})}
}

func (h *hub) subscribe(topic string) *subscription {
	sub := &subscription{h: h, topic: topic, ch: make(chan struct{}, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	return sub
}

func (h *hub) publish(topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		for sub := range h.subs[topic] {
			select {
			case sub.ch <- struct{}{}:
			default:
			}
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			close(sub.ch)
		}
	}
	h.subs = nil
}

func (s *subscription) close() {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if subs, ok := s.h.subs[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.h.subs, s.topic)
		}
	}
}

// observe re-runs query after every notification on topic. The
// subscription is taken before the first query so no commit is missed.
func observe[T any](ctx context.Context, h *hub, topic string, query func(context.Context) (T, error)) *stream.Stream[T] {
	return stream.New(ctx, func(ctx context.Context, emit func(T) bool) error {
		sub := h.subscribe(topic)
		defer sub.close()

		for {
			v, err := query(ctx)
			if err != nil {
				return err
			}
			if !emit(v) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-sub.ch:
				if !ok {
					return errStoreClosed
				}
			}
		}
	})
}

func conversationsTopic(userID string) string {
	return "conversations:" + userID
}

func messagesTopic(conversationID string) string {
	return "messages:" + conversationID
}
