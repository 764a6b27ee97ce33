package notify

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Throttled limits the rate of info and success notifications reaching the
// wrapped sink. Warnings and errors always pass. Dropped notifications are
// counted, not queued.
type Throttled struct {
	next    Sink
	limiter *rate.Limiter
	dropped atomic.Int64
}

// NewThrottled allows perSecond notifications with the given burst.
func NewThrottled(next Sink, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Notify forwards n unless the limiter is exhausted.
func (t *Throttled) Notify(n Notification) {
	if n.Level == LevelWarning || n.Level == LevelError || t.limiter.Allow() {
		t.next.Notify(n)
		return
	}
	t.dropped.Add(1)
}

// Dropped returns how many notifications have been discarded.
func (t *Throttled) Dropped() int64 {
	return t.dropped.Load()
}
