package testutil

import "sync"

// ScriptedRand replays a fixed sequence of values in [0,1), cycling when it
// runs out. An empty script always returns 0.5.
type ScriptedRand struct {
	mu     sync.Mutex
	values []float64
	i      int
}

// NewScriptedRand creates a source that yields values in order.
func NewScriptedRand(values ...float64) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// Float64 returns the next scripted value.
func (r *ScriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0.5
	}
	v := r.values[r.i%len(r.values)]
	r.i++
	return v
}
