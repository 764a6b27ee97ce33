// Package rule evaluates declarative requirements against a game state.
//
// Requirements gate achievements, auto-clicker and facility unlocks, and
// phase advancement. They are pure: evaluation never mutates the state.
package rule

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/matchstick/internal/state"
)

// Kind selects how a requirement reads the state.
type Kind string

const (
	// KindAlways is satisfied unconditionally.
	KindAlways Kind = "always"
	// KindResource compares a ledger field against Value.
	KindResource Kind = "resource"
	// KindStat compares a named statistic against Value.
	KindStat Kind = "stat"
	// KindPhase is satisfied once the game has reached Phase.
	KindPhase Kind = "phase"
)

// Requirement is a threshold predicate over the game state.
type Requirement struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	Resource string  `yaml:"resource,omitempty" json:"resource,omitempty"`
	Stat     string  `yaml:"stat,omitempty" json:"stat,omitempty"`
	Phase    int     `yaml:"phase,omitempty" json:"phase,omitempty"`
	Value    float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Always is the requirement that every state satisfies.
var Always = Requirement{Kind: KindAlways}

// Validate checks that r is well formed.
func (r Requirement) Validate() error {
	probe := state.NewGame(time.Time{}, state.DefaultDefaults())
	switch r.Kind {
	case KindAlways, "":
		return nil
	case KindResource:
		if _, ok := probe.Resource(r.Resource); !ok {
			return fmt.Errorf("unknown resource %q", r.Resource)
		}
	case KindStat:
		if _, ok := probe.Stat(r.Stat); !ok {
			return fmt.Errorf("unknown stat %q", r.Stat)
		}
	case KindPhase:
		if r.Phase < state.PhaseManual || r.Phase > state.PhaseIndustry {
			return fmt.Errorf("phase %d out of range", r.Phase)
		}
		return nil
	default:
		return fmt.Errorf("unknown requirement kind %q", r.Kind)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) || r.Value < 0 {
		return fmt.Errorf("threshold %v must be a finite non-negative number", r.Value)
	}
	return nil
}

// current returns the observed value and the target for r.
func (r Requirement) current(g *state.GameState) (have, want float64, ok bool) {
	switch r.Kind {
	case KindAlways, "":
		return 1, 1, true
	case KindResource:
		have, ok = g.Resource(r.Resource)
		return have, r.Value, ok
	case KindStat:
		have, ok = g.Stat(r.Stat)
		return have, r.Value, ok
	case KindPhase:
		return float64(g.Phase), float64(r.Phase), true
	}
	return 0, 0, false
}

// Satisfied reports whether g meets r. Unknown resources, stats and kinds
// are never satisfied.
func Satisfied(r Requirement, g *state.GameState) bool {
	have, want, ok := r.current(g)
	return ok && have >= want
}

// Progress returns how close g is to meeting r, in [0,1].
func Progress(r Requirement, g *state.GameState) float64 {
	have, want, ok := r.current(g)
	switch {
	case !ok:
		return 0
	case have >= want:
		return 1
	case want <= 0:
		return 1
	}
	return math.Max(0, math.Min(1, have/want))
}

// Describe renders r for display.
func Describe(r Requirement) string {
	switch r.Kind {
	case KindAlways, "":
		return "always available"
	case KindResource:
		return fmt.Sprintf("%s >= %g", r.Resource, r.Value)
	case KindStat:
		return fmt.Sprintf("%s >= %g", r.Stat, r.Value)
	case KindPhase:
		return fmt.Sprintf("phase >= %d", r.Phase)
	}
	return string(r.Kind)
}
