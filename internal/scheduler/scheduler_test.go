package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(opts ...Option) *Scheduler {
	return New(append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
}

func start(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	for _, name := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(job{name: name}))
	}

	var got []string
	for {
		j, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, j.name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestJobQueue_ClosedRejects(t *testing.T) {
	q := newJobQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(job{name: "late"}))
}

func TestRunPending_ExecutesInOrder(t *testing.T) {
	s := newTestScheduler()
	var got []int
	for i := range 3 {
		s.Submit("job", func() { got = append(got, i) })
	}

	n := s.RunPending()

	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestDo_WaitsForCompletion(t *testing.T) {
	s := newTestScheduler()
	start(t, s)

	ran := false
	err := s.Do(context.Background(), "do", func() { ran = true })

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDo_AfterStop(t *testing.T) {
	s := newTestScheduler()
	s.Stop()

	err := s.Do(context.Background(), "late", func() {})

	assert.ErrorIs(t, err, ErrStopped)
}

func TestRun_RecoversPanics(t *testing.T) {
	var mu sync.Mutex
	var observed []string
	s := newTestScheduler(WithObserver(func(name string, _ time.Duration, panicked bool) {
		mu.Lock()
		defer mu.Unlock()
		if panicked {
			observed = append(observed, name)
		}
	}))
	start(t, s)

	s.Submit("boom", func() { panic("kaboom") })
	err := s.Do(context.Background(), "after", func() {})

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"boom"}, observed)
}

func TestEvery_TicksUntilCancelled(t *testing.T) {
	s := newTestScheduler()
	start(t, s)

	ticks := make(chan struct{}, 16)
	cancel := s.Every("tick", 5*time.Millisecond, func() { ticks <- struct{}{} })

	for range 3 {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("ticker did not fire")
		}
	}
	cancel()
	cancel()
	time.Sleep(10 * time.Millisecond)

	// Drain anything already queued, then expect silence.
	_ = s.Do(context.Background(), "barrier", func() {})
	for len(ticks) > 0 {
		<-ticks
	}
	select {
	case <-ticks:
		t.Fatal("ticker fired after cancel")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestAfter_RunsOnce(t *testing.T) {
	s := newTestScheduler()
	start(t, s)

	fired := make(chan struct{}, 2)
	s.After("once", 5*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	select {
	case <-fired:
		t.Fatal("timer fired twice")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestStop_CancelsTimers(t *testing.T) {
	s := newTestScheduler()
	fired := make(chan struct{}, 1)
	s.After("never", 10*time.Millisecond, func() { fired <- struct{}{} })
	s.Every("never-tick", 10*time.Millisecond, func() { fired <- struct{}{} })

	s.Stop()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, s.RunPending())
	assert.Empty(t, fired)
	assert.False(t, s.Submit("late", func() {}))
}

func TestEvery_RejectsNonPositiveInterval(t *testing.T) {
	s := newTestScheduler()
	assert.Panics(t, func() { s.Every("bad", 0, func() {}) })
}
