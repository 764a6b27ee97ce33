package harness

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/matchstick/internal/state"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			switch ev.Kind {
			case KindStep:
				fmt.Fprintf(&buf, "  [%d] %s %v\n", ev.Seq, ev.Action, ev.Args)
			case KindOutcome:
				fmt.Fprintf(&buf, "  [%d]   -> %s\n", ev.Seq, ev.Outcome)
			case KindEvent:
				fmt.Fprintf(&buf, "  [%d]   %s (%s)\n", ev.Seq, ev.Type, ev.Source)
			}
		}
	}
	return buf.String()
}

// assertValue compares a named resource or statistic. String expectations
// compare the exact decimal form, which is how big counts are checked.
func assertValue(g *state.GameState, a Assertion) error {
	var (
		actual float64
		text   string
		ok     bool
	)
	if a.Type == AssertResource {
		actual, ok = g.Resource(a.Name)
		if ok && a.Name == state.ResourceMatchsticks {
			text = g.Resources.Matchsticks.String()
		}
	} else {
		actual, ok = g.Stat(a.Name)
		switch a.Name {
		case "total_produced":
			text = g.Production.TotalProduced.String()
		case "total_sold":
			text = g.Market.TotalSold.String()
		}
	}
	if !ok {
		return fmt.Errorf("%s assertion: unknown name %q", a.Type, a.Name)
	}
	if text == "" {
		text = strconv.FormatFloat(actual, 'f', -1, 64)
	}

	if s, isString := a.Equals.(string); isString {
		if s == text {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %s", a.Name, s),
			Actual:   fmt.Sprintf("%s = %s", a.Name, text),
		}
	}
	want, isNum := toFloat(a.Equals)
	if !isNum {
		return fmt.Errorf("%s assertion: equals must be a number or string, got %T", a.Type, a.Equals)
	}
	if math.Abs(actual-want) <= a.Tolerance {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s = %v (±%v)", a.Name, want, a.Tolerance),
		Actual:   fmt.Sprintf("%s = %v", a.Name, actual),
	}
}

func assertPhase(g *state.GameState, a Assertion) error {
	want, ok := toFloat(a.Equals)
	if !ok {
		return fmt.Errorf("phase assertion: equals must be a number, got %T", a.Equals)
	}
	if float64(g.Phase) == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertPhase,
		Expected: fmt.Sprintf("phase %v", want),
		Actual:   fmt.Sprintf("phase %d", g.Phase),
	}
}

// assertUnlocked checks the unlocked set; order is ignored.
func assertUnlocked(g *state.GameState, a Assertion) error {
	want := slices.Clone(a.IDs)
	got := slices.Clone(g.Achievements.Unlocked)
	slices.Sort(want)
	slices.Sort(got)
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertUnlocked,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertOwned checks an auto-clicker level or a facility count.
func assertOwned(g *state.GameState, a Assertion) error {
	want, ok := toFloat(a.Equals)
	if !ok {
		return fmt.Errorf("owned assertion: equals must be a number, got %T", a.Equals)
	}
	actual := 0
	if c, found := g.Automation.AutoClickers[a.ID]; found {
		actual = c.Level
	} else if f, found := g.Automation.Facilities[a.ID]; found {
		actual = f.Owned
	}
	if float64(actual) == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertOwned,
		Expected: fmt.Sprintf("%s owned %v", a.ID, want),
		Actual:   fmt.Sprintf("%s owned %d", a.ID, actual),
	}
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == KindEvent && ev.Type == a.Event {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
		Actual:   fmt.Sprintf("%d occurrences", count),
		Trace:    trace,
	}
}

// assertEventOrder checks that the listed event types appear in this
// relative order. Intervening events are allowed and a type may repeat.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(a.Events) {
			break
		}
		if ev.Kind == KindEvent && ev.Type == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("%s not found after %v", a.Events[next], a.Events[:next]),
		Trace:    trace,
	}
}

func assertNotification(notes []string, a Assertion) error {
	if slices.Contains(notes, a.Title) {
		return nil
	}
	return &AssertionError{
		Type:     AssertNotification,
		Expected: fmt.Sprintf("notification %q", a.Title),
		Actual:   fmt.Sprintf("%q", notes),
	}
}

// EvaluateAssertions evaluates all assertions against the final state and
// the recorded trace. Returns a slice of error messages for failed
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, g state.GameState) []string {
	var failures []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertResource, AssertStat:
			err = assertValue(&g, a)
		case AssertPhase:
			err = assertPhase(&g, a)
		case AssertUnlocked:
			err = assertUnlocked(&g, a)
		case AssertOwned:
			err = assertOwned(&g, a)
		case AssertEventCount:
			err = assertEventCount(result.Trace, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, a)
		case AssertNotification:
			err = assertNotification(result.Notifications, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// matchArgs checks if actual contains all expected keys with equal values
// (subset match). Extra keys in actual are ignored.
func matchArgs(actual map[string]any, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two decoded values. Numbers compare by value so a
// YAML integer matches an int or float64 result.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if a, ok := toFloat(actual); ok {
		e, ok := toFloat(expected)
		return ok && a == e
	}
	switch exp := expected.(type) {
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !valuesEqual(act[i], exp[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		return matchArgs(act, exp)
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
