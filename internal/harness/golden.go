package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/matchstick/internal/canon"
)

// TraceSnapshot is the golden-file view of a scenario run: the step outcomes
// and the event types in emission order, plus delivered notifications.
// Step arguments and result values are left out; expect clauses and
// assertions cover those.
type TraceSnapshot struct {
	ScenarioName  string       `json:"scenario_name"`
	Trace         []TraceEvent `json:"trace"`
	Notifications []string     `json:"notifications"`
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, 0, len(s.Trace))
	for _, ev := range s.Trace {
		if ev.Kind == KindStep {
			continue
		}
		entry := map[string]any{
			"seq":  ev.Seq,
			"kind": ev.Kind,
		}
		switch ev.Kind {
		case KindOutcome:
			entry["action"] = ev.Action
			entry["outcome"] = ev.Outcome
		case KindEvent:
			entry["type"] = ev.Type
			entry["source"] = ev.Source
		}
		traceList = append(traceList, entry)
	}

	notes := make([]any, len(s.Notifications))
	for i, n := range s.Notifications {
		notes[i] = n
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"notifications": notes,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// SnapshotJSON renders the canonical golden form of a result.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	notes := result.Notifications
	if notes == nil {
		notes = []string{}
	}
	snapshot := TraceSnapshot{
		ScenarioName:  scenarioName,
		Trace:         result.Trace,
		Notifications: notes,
	}
	return canon.MarshalGo(snapshot.toCanonicalMap())
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
