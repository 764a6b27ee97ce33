package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Do once the scheduler has stopped.
var ErrStopped = errors.New("scheduler stopped")

// Observer is told about every executed job.
type Observer func(name string, elapsed time.Duration, panicked bool)

// Scheduler is the single cooperative executor for game callbacks.
type Scheduler struct {
	queue    *jobQueue
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	timers  map[int]*time.Timer
	tickers map[int]chan struct{}
	nextID  int
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithObserver registers a callback invoked after each job.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// New creates a scheduler. Nothing runs until Run is called.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:   newJobQueue(),
		timers:  make(map[int]*time.Timer),
		tickers: make(map[int]chan struct{}),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Submit queues fn for execution. Returns false once stopped.
func (s *Scheduler) Submit(name string, fn func()) bool {
	return s.queue.Enqueue(job{name: name, fn: fn})
}

// Do queues fn and waits for it to finish running.
func (s *Scheduler) Do(ctx context.Context, name string, fn func()) error {
	done := make(chan struct{})
	if !s.queue.Enqueue(job{name: name, fn: fn, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-s.quit:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every queues fn every interval until cancel is called or the scheduler
// stops. A tick is skipped while the previous one is still queued, so a
// slow loop never builds a backlog of the same job.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) (cancel func()) {
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: non-positive interval %s for %q", interval, name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	quit := make(chan struct{})
	s.tickers[id] = quit

	var pending atomic.Bool
	run := func() {
		defer pending.Store(false)
		fn()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				if pending.CompareAndSwap(false, true) && !s.Submit(name, run) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if q, ok := s.tickers[id]; ok {
				close(q)
				delete(s.tickers, id)
			}
		})
	}
}

// After queues fn once d has elapsed. The timer is only cancelled by Stop.
func (s *Scheduler) After(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.Submit(name, fn)
	})
}

// Run executes queued jobs until ctx is cancelled or Stop is called.
// After Stop, jobs already queued still run before Run returns; after
// cancellation they are discarded.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Debug("scheduler starting")
	for {
		if j, ok := s.queue.TryDequeue(); ok {
			s.execute(j)
			continue
		}
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopping: context cancelled")
			s.Stop()
			return ctx.Err()
		case <-s.queue.Wait():
			if s.isStopped() && s.queue.Len() == 0 {
				s.logger.Debug("scheduler stopping: queue closed")
				return nil
			}
		}
	}
}

// RunPending executes every job queued right now on the calling goroutine
// and returns how many ran. It is meant for callers that drive the
// scheduler by hand instead of calling Run.
func (s *Scheduler) RunPending() int {
	n := 0
	for _, j := range s.queue.Drain() {
		s.execute(j)
		n++
	}
	return n
}

func (s *Scheduler) execute(j job) {
	start := time.Now()
	panicked := s.call(j)
	if j.done != nil {
		close(j.done)
	}
	if s.observer != nil {
		s.observer(j.name, time.Since(start), panicked)
	}
}

func (s *Scheduler) call(j job) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.logger.Error("job panicked", "job", j.name, "panic", r)
		}
	}()
	j.fn()
	return false
}

// Stop cancels every ticker and timer and closes the queue. It waits for
// ticker goroutines to exit but not for a running job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.quit)
	for id, q := range s.tickers {
		close(q)
		delete(s.tickers, id)
	}
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.queue.Close()
	s.wg.Wait()
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
