package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
rand: [0.25, 0.75]
setup:
  state:
    resources: { money: 50 }
steps:
  - action: produce
    args: { clicks: 2 }
    advance: 1500ms
    expect:
      result: { produced: "2" }
assertions:
  - type: resource
    name: matchsticks
    equals: "2"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, []float64{0.25, 0.75}, scenario.Rand)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, ActionProduce, scenario.Steps[0].Action)
	assert.Equal(t, 2, scenario.Steps[0].Args["clicks"])
	assert.Equal(t, 1500*time.Millisecond, scenario.Steps[0].Advance)
	require.NotNil(t, scenario.Steps[0].Expect)
	assert.Equal(t, "2", scenario.Steps[0].Expect.Result["produced"])
	assert.Equal(t, map[string]any{"money": 50}, scenario.Setup.State["resources"])
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
steps: [{action: produce}]
assertions: [{type: phase, equals: 1}]`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
steps: [{action: produce}]
assertions: [{type: phase, equals: 1}]`,
			wantErr: "description is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: d
steps: []
assertions: [{type: phase, equals: 1}]`,
			wantErr: "steps list is required",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
steps: [{action: produce}]`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown action",
			content: `
name: n
description: d
steps: [{action: juggle}]
assertions: [{type: phase, equals: 1}]`,
			wantErr: `unknown action "juggle"`,
		},
		{
			name: "negative advance",
			content: `
name: n
description: d
steps: [{action: wait, advance: -1s}]
assertions: [{type: phase, equals: 1}]`,
			wantErr: "advance must not be negative",
		},
		{
			name: "rand out of range",
			content: `
name: n
description: d
rand: [1.0]
steps: [{action: produce}]
assertions: [{type: phase, equals: 1}]`,
			wantErr: "outside [0,1)",
		},
		{
			name: "unknown field",
			content: `
name: n
description: d
steps: [{action: produce}]
assertion: [{type: phase, equals: 1}]`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "malformed yaml",
			content: `
name: [unclosed
`,
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"resource ok", Assertion{Type: AssertResource, Name: "money", Equals: 1}, ""},
		{"resource without name", Assertion{Type: AssertResource, Equals: 1}, "name is required"},
		{"stat without equals", Assertion{Type: AssertStat, Name: "trade_count"}, "equals is required"},
		{"phase without equals", Assertion{Type: AssertPhase}, "equals is required"},
		{"unlocked empty set", Assertion{Type: AssertUnlocked, IDs: []string{}}, ""},
		{"unlocked nil set", Assertion{Type: AssertUnlocked}, "ids is required"},
		{"owned without id", Assertion{Type: AssertOwned, Equals: 1}, "id and equals"},
		{"event_count zero", Assertion{Type: AssertEventCount, Event: "matchsticks_sold"}, ""},
		{"event_count negative", Assertion{Type: AssertEventCount, Event: "matchsticks_sold", Count: -1}, "non-negative"},
		{"event_order empty", Assertion{Type: AssertEventOrder}, "events list is required"},
		{"notification without title", Assertion{Type: AssertNotification}, "title is required"},
		{"missing type", Assertion{}, "type is required"},
		{"unknown type", Assertion{Type: "vibes"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.assertion
			err := validateAssertion(0, &a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, filepath.Base(path), scenario.Name+".yaml")
		})
	}
}
