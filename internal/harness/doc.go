// Package harness runs scripted game scenarios and checks their outcome.
//
// A scenario seeds the state, performs a sequence of player actions and
// ticks against a fully assembled game.Game, and then asserts on the final
// state and on the trace of steps and emitted events.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rand: [0.5, 0.9]              # optional scripted random values
//	setup:
//	  state:                      # partial state document, deep-merged
//	    resources: { matchsticks: 1000 }
//	steps:
//	  - action: produce
//	    args: { clicks: 3 }
//	    advance: 500ms            # move the clock before the action
//	    expect:
//	      result: { produced: "3" }
//	  - action: sell
//	    args: { amount: 5000 }
//	    expect:
//	      error: insufficient_resources
//	assertions:
//	  - type: resource
//	    name: matchsticks
//	    equals: "997"
//	  - type: event_order
//	    events: [resources_produced, achievement_unlocked]
//
// # Actions
//
//   - produce {clicks}
//   - sell {amount}
//   - buy_auto_clicker {id}, buy_facility {id}
//   - set_auto_sell {enabled, threshold, percentage, min_price, max_per_second}
//   - tick {name}: runs one periodic tick by its scheduler name
//   - check_achievements
//   - save {name}, load_latest, new_game
//   - wait: only advances the clock
//
// # Assertion Types
//
//   - resource, stat: compare a ledger field or named statistic
//   - phase: compare the current phase
//   - unlocked: the exact set of unlocked achievement ids
//   - owned: auto-clicker level or facility count by id
//   - event_count: how often an event type was emitted
//   - event_order: event types appear in this relative order
//   - notification: a notification with this title was delivered
//
// # Deterministic Testing
//
// Every scenario runs with a manual clock starting at testutil.Epoch,
// sequential event and save ids, scripted randomness and an in-memory
// SQLite save store, so traces are byte-identical across runs and can be
// compared against golden files.
package harness
