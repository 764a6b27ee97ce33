package event

import "sync"

// DefaultLogCapacity bounds the activity feed.
const DefaultLogCapacity = 100

// Log is a fixed-capacity ring buffer of events. Entries are returned
// newest-first; the oldest entry is dropped silently on overflow.
//
// Thread-safety: all methods are safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	buf  []Event
	next int // slot for the next write
	size int
}

// NewLog creates a log holding at most capacity events.
// A non-positive capacity falls back to DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{buf: make([]Event, capacity)}
}

// Push records e as the newest entry.
func (l *Log) Push(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
}

// Entries returns a newest-first copy of the log.
func (l *Log) Entries() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, l.size)
	for i := 1; i <= l.size; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of retained events.
func (l *Log) Capacity() int { return len(l.buf) }

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.buf)
	l.next = 0
	l.size = 0
}
