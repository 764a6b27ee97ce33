// Package clock abstracts wall time so that combo windows, cooldowns and
// timestamps can be driven deterministically in tests.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the operating system clock in UTC.
type System struct{}

// Now returns time.Now in UTC with the monotonic reading stripped, so that
// values round-trip through JSON unchanged.
func (System) Now() time.Time {
	return time.Now().UTC().Round(0)
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }
