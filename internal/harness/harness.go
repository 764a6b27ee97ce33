package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/game"
	"github.com/roach88/matchstick/internal/notify"
	"github.com/roach88/matchstick/internal/persistence"
	"github.com/roach88/matchstick/internal/testutil"
)

// Harness executes one scenario against a freshly assembled game.
type Harness struct {
	game   *game.Game
	clock  *testutil.ManualClock
	notes  *notify.Recorder
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory save store and a new game
// with deterministic clock, ids and randomness.
//
// Execution flow:
// 1. Build the game and apply setup.state
// 2. Subscribe the trace to emitted events
// 3. Perform each step, validating expect clauses
// 4. Evaluate assertions against the final state and trace
func Run(scenario *Scenario) (*Result, error) {
	balance, err := config.LoadFile(scenario.Balance)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	clk := testutil.NewManualClock(testutil.Epoch)
	logger := testutil.DiscardLogger()
	saves, err := persistence.Open(":memory:",
		persistence.WithClock(clk),
		persistence.WithIDGenerator(testutil.NewSequentialIDs("save")),
		persistence.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer saves.Close()

	notes := &notify.Recorder{}
	g := game.New(game.Options{
		Balance:  balance,
		Saves:    saves,
		Clock:    clk,
		IDs:      testutil.NewSequentialIDs("evt"),
		Rand:     testutil.NewScriptedRand(scenario.Rand...),
		Logger:   logger,
		Notifier: notes,
	})
	defer g.Close()

	if len(scenario.Setup.State) > 0 {
		data, err := json.Marshal(scenario.Setup.State)
		if err != nil {
			return nil, fmt.Errorf("failed to encode setup state: %w", err)
		}
		if err := g.Load(data); err != nil {
			return nil, fmt.Errorf("failed to apply setup state: %w", err)
		}
	}

	// Notifications from applying the setup are not part of the run.
	skip := len(notes.All())

	h := &Harness{game: g, clock: clk, notes: notes, result: NewResult()}
	unsubscribe := g.Store().Subscribe(func(e event.Event) {
		h.result.AddEventTrace(string(e.Type), e.Source)
	})
	defer unsubscribe()

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}
	h.result.Notifications = notes.Titles()[skip:]

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, g.Store().Snapshot()) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// executeStep performs one step. Game-level failures are recorded as the
// step outcome; only malformed steps abort the run.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	if step.Advance > 0 {
		h.clock.Advance(step.Advance)
	}

	h.result.AddStepTrace(step.Action, step.Args)
	out, err := Perform(ctx, h.game, step.Action, step.Args)
	if IsArgError(err) {
		return err
	}

	outcome := OutcomeOK
	if err != nil {
		outcome = string(errs.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	h.result.AddOutcomeTrace(step.Action, outcome, out)

	if step.Expect == nil {
		return nil
	}
	switch {
	case step.Expect.Error == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected success, got %v", index, step.Action, err))
	case step.Expect.Error != "" && outcome != step.Expect.Error:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got %q", index, step.Action, step.Expect.Error, outcome))
	}
	if !matchArgs(out, step.Expect.Result) {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: result %v does not match %v", index, step.Action, out, step.Expect.Result))
	}
	return nil
}
