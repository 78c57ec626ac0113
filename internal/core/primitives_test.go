package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello", "Hello"},
		{"  padded  ", "padded"},
		{"exactly twenty chars", "exactly twenty chars"},
		{"Tell me about distributed systems design", "Tell me about distri..."},
		{"ñññññññññññññññññññññ", "ññññññññññññññññññññ..."},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveTitle(tt.in), tt.in)
	}
}

func TestObservableSubscribe(t *testing.T) {
	o := NewObservable(1)
	ch, cancel := o.Subscribe()

	assert.Equal(t, 1, <-ch)
	o.Set(2)
	o.Set(3)
	assert.Equal(t, 3, <-ch)
	assert.Equal(t, 4, o.Update(func(v int) int { return v + 1 }))
	assert.Equal(t, 4, <-ch)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	o.Set(5)
	assert.Equal(t, 5, o.Get())
}

func TestScopeCloseCancelsWork(t *testing.T) {
	sc := NewScope(context.Background())
	stopped := make(chan struct{})
	sc.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	bound, cancel := sc.Bind(context.Background())
	defer cancel()

	sc.Close()
	<-stopped
	assert.Error(t, bound.Err())
	sc.Close()
}

func TestScopeGoAfterCloseDoesNotRun(t *testing.T) {
	sc := NewScope(context.Background())
	sc.Close()

	ran := make(chan struct{}, 1)
	started := sc.Go(func(context.Context) { ran <- struct{}{} })
	assert.False(t, started)
	sc.Close()
	select {
	case <-ran:
		t.Fatal("work started after Close")
	default:
	}
}

func TestScopeGoRacingClose(t *testing.T) {
	sc := NewScope(context.Background())
	var wg sync.WaitGroup
	var mu sync.Mutex
	running := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc.Go(func(ctx context.Context) {
				mu.Lock()
				running++
				mu.Unlock()
				<-ctx.Done()
				mu.Lock()
				running--
				mu.Unlock()
			})
		}()
	}
	sc.Close()
	mu.Lock()
	assert.Zero(t, running)
	mu.Unlock()
	wg.Wait()
}

func TestSequencer(t *testing.T) {
	seq := NewSequencer(true)

	release, err := seq.Acquire(context.Background(), "a")
	require.NoError(t, err)

	other, err := seq.Acquire(context.Background(), "b")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = seq.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	again, err := seq.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
	assert.Empty(t, seq.locks)
}

func TestSequencerDisabled(t *testing.T) {
	seq := NewSequencer(false)
	r1, err := seq.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r2, err := seq.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r1()
	r2()
}
