package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/state"
)

func sampleState(t *testing.T) state.GameState {
	t.Helper()
	big, err := bignum.Parse("123456789012345678901234567890")
	require.NoError(t, err)

	g := state.NewGame(time.Time{}, state.DefaultDefaults())
	g.Resources.Matchsticks = big
	g.Resources.Money = 12.5
	g.Production.TotalProduced = big
	g.Stats.TradeCount = 3
	g.Phase = state.PhaseMarket
	g.Achievements.Unlocked = []string{"first_sale", "first_match"}
	g.Automation.AutoClickers["basic"] = state.AutoClicker{ID: "basic", Level: 2, IsActive: true, Efficiency: 1}
	g.Automation.Facilities["workshop"] = state.Facility{ID: "workshop", Owned: 3, Efficiency: 1}
	return g
}

func traceOf(types ...string) *Result {
	r := NewResult()
	r.AddStepTrace(ActionProduce, nil)
	for _, typ := range types {
		r.AddEventTrace(typ, "production")
	}
	r.AddOutcomeTrace(ActionProduce, OutcomeOK, nil)
	return r
}

func TestEvaluateAssertions_StatePass(t *testing.T) {
	g := sampleState(t)
	assertions := []Assertion{
		{Type: AssertResource, Name: "matchsticks", Equals: "123456789012345678901234567890"},
		{Type: AssertResource, Name: "money", Equals: 12.5},
		{Type: AssertResource, Name: "money", Equals: 12, Tolerance: 0.5},
		{Type: AssertStat, Name: "trade_count", Equals: 3},
		{Type: AssertStat, Name: "total_produced", Equals: "123456789012345678901234567890"},
		{Type: AssertStat, Name: "facilities_owned", Equals: 3},
		{Type: AssertPhase, Equals: 2},
		{Type: AssertUnlocked, IDs: []string{"first_match", "first_sale"}},
		{Type: AssertOwned, ID: "basic", Equals: 2},
		{Type: AssertOwned, ID: "workshop", Equals: 3},
		{Type: AssertOwned, ID: "factory", Equals: 0},
	}

	assert.Empty(t, EvaluateAssertions(NewResult(), assertions, g))
}

func TestEvaluateAssertions_StateFail(t *testing.T) {
	g := sampleState(t)
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"big count text", Assertion{Type: AssertResource, Name: "matchsticks", Equals: "1"}, "matchsticks = 123456789012345678901234567890"},
		{"outside tolerance", Assertion{Type: AssertResource, Name: "money", Equals: 12, Tolerance: 0.1}, "money = 12.5"},
		{"unknown resource", Assertion{Type: AssertResource, Name: "gold", Equals: 1}, `unknown name "gold"`},
		{"unknown stat", Assertion{Type: AssertStat, Name: "luck", Equals: 1}, `unknown name "luck"`},
		{"non-numeric equals", Assertion{Type: AssertStat, Name: "trade_count", Equals: true}, "must be a number or string"},
		{"phase", Assertion{Type: AssertPhase, Equals: 3}, "phase 2"},
		{"unlocked subset", Assertion{Type: AssertUnlocked, IDs: []string{"first_match"}}, "[first_match first_sale]"},
		{"owned", Assertion{Type: AssertOwned, ID: "basic", Equals: 1}, "basic owned 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(NewResult(), []Assertion{tt.assertion}, g)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertEventCount(t *testing.T) {
	r := traceOf("resources_produced", "achievement_unlocked", "resources_produced")

	assert.NoError(t, assertEventCount(r.Trace, Assertion{Event: "resources_produced", Count: 2}))
	assert.NoError(t, assertEventCount(r.Trace, Assertion{Event: "matchsticks_sold", Count: 0}))

	err := assertEventCount(r.Trace, Assertion{Event: "resources_produced", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertEventOrder(t *testing.T) {
	r := traceOf("resources_produced", "achievement_unlocked", "phase_advanced", "resources_produced")

	tests := []struct {
		name   string
		events []string
		ok     bool
	}{
		{"in order", []string{"resources_produced", "phase_advanced"}, true},
		{"intervening events allowed", []string{"resources_produced", "resources_produced"}, true},
		{"repeated type needs two occurrences", []string{"phase_advanced", "phase_advanced"}, false},
		{"wrong order", []string{"phase_advanced", "achievement_unlocked"}, false},
		{"missing type", []string{"matchsticks_sold"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEventOrder(r.Trace, Assertion{Type: AssertEventOrder, Events: tt.events})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertNotification(t *testing.T) {
	notes := []string{"New game", "Auto-clicker purchased"}

	assert.NoError(t, assertNotification(notes, Assertion{Title: "New game"}))
	err := assertNotification(notes, Assertion{Type: AssertNotification, Title: "Facility built"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Facility built"`)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "vibes"}}, sampleState(t))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "vibes"`)
}

func TestMatchArgs_SubsetSemantics(t *testing.T) {
	actual := map[string]any{
		"id":       "basic",
		"count":    2,
		"cost":     57.0,
		"unlocked": []any{"first_clicker"},
	}

	tests := []struct {
		name     string
		expected map[string]any
		want     bool
	}{
		{"nil expectation", nil, true},
		{"exact subset", map[string]any{"id": "basic"}, true},
		{"yaml int matches int", map[string]any{"count": 2}, true},
		{"yaml int matches float", map[string]any{"cost": 57}, true},
		{"yaml float matches int", map[string]any{"count": 2.0}, true},
		{"list", map[string]any{"unlocked": []any{"first_clicker"}}, true},
		{"list length differs", map[string]any{"unlocked": []any{}}, false},
		{"value differs", map[string]any{"count": 3}, false},
		{"string vs number", map[string]any{"count": "2"}, false},
		{"missing key", map[string]any{"level": 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchArgs(actual, tt.expected))
		})
	}
}

func TestMatchArgs_NilActual(t *testing.T) {
	assert.True(t, matchArgs(nil, nil))
	assert.False(t, matchArgs(nil, map[string]any{"id": "basic"}))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, 0))
	assert.True(t, valuesEqual(int64(5), 5))
	assert.True(t, valuesEqual(map[string]any{"a": 1.0}, map[string]any{"a": 1}))
	assert.False(t, valuesEqual(map[string]any{"a": 1, "b": 2}, map[string]any{"a": 1}))
	assert.True(t, valuesEqual(true, true))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	r := traceOf("resources_produced")
	err := &AssertionError{
		Type:     AssertEventCount,
		Expected: "2 occurrences of resources_produced",
		Actual:   "1 occurrences",
		Trace:    r.Trace,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: event_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of resources_produced")
	assert.Contains(t, msg, "Actual: 1 occurrences")
	assert.Contains(t, msg, "[1] produce")
	assert.Contains(t, msg, "[2]   resources_produced (production)")
	assert.Contains(t, msg, "[3]   -> ok")
}
