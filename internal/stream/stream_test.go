package stream

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/chat-sync/internal/result"
)

func collect[T any](t *testing.T, s *Stream[T]) []result.Result[T] {
	t.Helper()
	var out []result.Result[T]
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.C():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestStreamEmitsLoadingThenSnapshots(t *testing.T) {
	s := New(context.Background(), func(ctx context.Context, emit func([]int) bool) error {
		emit([]int{1})
		emit([]int{1, 2})
		return nil
	})
	events := collect(t, s)

	require.Len(t, events, 3)
	assert.True(t, events[0].IsLoading())
	assert.Equal(t, []int{1}, events[1].Data)
	assert.Equal(t, []int{1, 2}, events[2].Data)
}

func TestStreamTerminalError(t *testing.T) {
	s := New(context.Background(), func(ctx context.Context, emit func([]int) bool) error {
		emit([]int{7})
		return result.Network("listener dropped", 0)
	})
	events := collect(t, s)

	require.Len(t, events, 3)
	last := events[2]
	assert.True(t, last.IsError())
	assert.Equal(t, "listener dropped", last.Message)
	assert.Equal(t, result.KindNetwork, last.Kind)
}

func TestFailOpenReplacesError(t *testing.T) {
	var swallowed string
	src := Failed[[]string](errors.New("permission denied"))
	s := FailOpen(src, []string{}, func(ev result.Result[[]string]) {
		swallowed = ev.Message
	})
	events := collect(t, s)

	require.Len(t, events, 2)
	assert.True(t, events[0].IsLoading())
	assert.True(t, events[1].IsSuccess())
	assert.Empty(t, events[1].Data)
	assert.NotNil(t, events[1].Data)
	assert.Equal(t, "permission denied", swallowed)
}

func TestApplyFailClosedKeepsError(t *testing.T) {
	s := Apply(Failed[[]string](errors.New("gone")), FailClosedPolicy, nil, nil)
	events := collect(t, s)
	require.Len(t, events, 2)
	assert.True(t, events[1].IsError())
}

func TestCloseStopsProducer(t *testing.T) {
	exited := make(chan struct{})
	s := New(context.Background(), func(ctx context.Context, emit func(int) bool) error {
		defer close(exited)
		for i := 0; emit(i); i++ {
		}
		return nil
	})
	<-s.C()
	<-s.C()
	s.Close()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("producer still running after Close")
	}
}

func TestCloseWrappedStreamClosesSource(t *testing.T) {
	src := New(context.Background(), func(ctx context.Context, emit func(int) bool) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s := FailOpen(src, 0, nil)
	<-s.C()
	s.Close()

	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("source not closed")
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("fail-closed")
	require.NoError(t, err)
	assert.Equal(t, FailClosedPolicy, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailOpenPolicy, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
