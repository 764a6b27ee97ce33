package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted game session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Balance optionally points at a balance YAML file. Empty means the
	// embedded default.
	Balance string `yaml:"balance,omitempty"`

	// Rand is the scripted sequence returned by the market's random source.
	// It cycles; empty means every draw is 0.5.
	Rand []float64 `yaml:"rand,omitempty"`

	// Setup seeds the state before any step runs.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps are performed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup seeds a scenario.
type Setup struct {
	// State is a partial state document deep-merged into a new game.
	State map[string]any `yaml:"state,omitempty"`
}

// Step is one player action or tick.
type Step struct {
	// Action names the operation; see the package documentation.
	Action string `yaml:"action"`

	// Args holds the action arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Advance moves the manual clock forward before the action runs.
	Advance time.Duration `yaml:"advance,omitempty"`

	// Expect optionally validates the action's outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected validation code. Empty expects success.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's result fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Name is the resource or statistic name.
	Name string `yaml:"name,omitempty"`

	// ID is the auto-clicker or facility id (owned).
	ID string `yaml:"id,omitempty"`

	// Equals is the expected value. Strings compare textually, numbers
	// numerically within Tolerance.
	Equals any `yaml:"equals,omitempty"`

	// Tolerance is the allowed absolute difference for numbers.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// IDs is the expected unlocked set (unlocked).
	IDs []string `yaml:"ids,omitempty"`

	// Event is the event type (event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected relative order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (event_count).
	Count int `yaml:"count,omitempty"`

	// Title is the notification title (notification).
	Title string `yaml:"title,omitempty"`
}

// Step actions.
const (
	ActionProduce        = "produce"
	ActionSell           = "sell"
	ActionBuyAutoClicker = "buy_auto_clicker"
	ActionBuyFacility    = "buy_facility"
	ActionSetAutoSell    = "set_auto_sell"
	ActionTick           = "tick"
	ActionCheck          = "check_achievements"
	ActionSave           = "save"
	ActionLoadLatest     = "load_latest"
	ActionNewGame        = "new_game"
	ActionWait           = "wait"
)

// Assertion type constants.
const (
	AssertResource     = "resource"
	AssertStat         = "stat"
	AssertPhase        = "phase"
	AssertUnlocked     = "unlocked"
	AssertOwned        = "owned"
	AssertEventCount   = "event_count"
	AssertEventOrder   = "event_order"
	AssertNotification = "notification"
)

var knownActions = map[string]bool{
	ActionProduce: true, ActionSell: true, ActionBuyAutoClicker: true,
	ActionBuyFacility: true, ActionSetAutoSell: true, ActionTick: true,
	ActionCheck: true, ActionSave: true, ActionLoadLatest: true,
	ActionNewGame: true, ActionWait: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, r := range s.Rand {
		if r < 0 || r >= 1 {
			return fmt.Errorf("rand[%d]: %v is outside [0,1)", i, r)
		}
	}

	for i, step := range s.Steps {
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
		if !knownActions[step.Action] {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must not be negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertResource, AssertStat:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for %s", index, a.Type)
		}
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for %s", index, a.Type)
		}
	case AssertPhase:
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for phase", index)
		}
	case AssertUnlocked:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for unlocked (use [] for none)", index)
		}
	case AssertOwned:
		if a.ID == "" || a.Equals == nil {
			return fmt.Errorf("assertions[%d]: id and equals are required for owned", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertNotification:
		if a.Title == "" {
			return fmt.Errorf("assertions[%d]: title is required for notification", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
