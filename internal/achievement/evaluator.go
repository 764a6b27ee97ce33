// Package achievement unlocks achievements and advances game phases.
//
// Unlocks are monotonic: an id is appended to the persisted unlocked list
// at most once and its reward is credited in the same store transaction.
// The evaluator keeps its own unlocked flags to skip settled rules; they
// must be re-synchronized with SyncWithGameState whenever the store is
// replaced wholesale.
package achievement

import (
	"log/slog"
	"sync"

	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/rule"
	"github.com/roach88/matchstick/internal/state"
)

// Unlock describes an achievement unlocked by one CheckAll call.
type Unlock struct {
	ID       string
	Name     string
	Category string
	Points   int
	Reward   float64
}

// Status is an achievement with its current standing.
type Status struct {
	config.Achievement
	Unlocked bool
	Progress float64
}

// Evaluator matches achievement rules against the store.
type Evaluator struct {
	store  *state.Store
	rules  []config.Achievement
	phases []config.Phase
	logger *slog.Logger

	mu       sync.Mutex
	unlocked map[string]bool
}

// New creates an evaluator for the balance's achievements and phases and
// synchronizes it with the store.
func New(store *state.Store, balance *config.Balance, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		store:    store,
		rules:    balance.Achievements,
		phases:   balance.Phases,
		logger:   logger.With("component", "achievement"),
		unlocked: make(map[string]bool, len(balance.Achievements)),
	}
	e.SyncWithGameState()
	return e
}

// CheckAll advances the game phase as far as it can, then unlocks every
// locked achievement whose requirement holds. It returns only the
// achievements unlocked by this call.
func (e *Evaluator) CheckAll() []Unlock {
	e.mu.Lock()
	defer e.mu.Unlock()

	var unlocked []Unlock
	err := e.store.Transact(func(tx *state.Tx) error {
		unlocked = unlocked[:0]
		g := tx.State()
		for _, p := range e.phases {
			if p.Phase <= g.Phase {
				continue
			}
			if !rule.Satisfied(p.Requirement, g) {
				break
			}
			tx.AdvancePhase(p.Phase)
		}
		for _, a := range e.rules {
			if e.unlocked[a.ID] || g.Achievements.IsUnlocked(a.ID) {
				continue
			}
			if !rule.Satisfied(a.Requirement, g) {
				continue
			}
			g.Achievements.Unlocked = append(g.Achievements.Unlocked, a.ID)
			g.Achievements.Points += int64(a.Points)
			if a.Reward.Money > 0 {
				tx.AddResources(state.Resources{Money: a.Reward.Money})
			}
			tx.Emit(event.SourceAchievement, event.AchievementUnlocked{
				ID:          a.ID,
				Name:        a.Name,
				Category:    a.Category,
				Points:      a.Points,
				RewardMoney: a.Reward.Money,
			})
			unlocked = append(unlocked, Unlock{
				ID:       a.ID,
				Name:     a.Name,
				Category: a.Category,
				Points:   a.Points,
				Reward:   a.Reward.Money,
			})
		}
		return nil
	})
	if err != nil {
		e.logger.Error("achievement check failed", "error", err)
		return nil
	}
	for _, u := range unlocked {
		e.unlocked[u.ID] = true
		e.logger.Info("achievement unlocked", "id", u.ID, "points", u.Points, "reward", u.Reward)
	}
	return unlocked
}

// Progress returns the completion ratio of id in [0,1]. Unlocked
// achievements report 1.
func (e *Evaluator) Progress(id string) (float64, error) {
	a, ok := e.lookup(id)
	if !ok {
		return 0, errs.Validation(errs.CodeNotFound, "unknown achievement", "id", id)
	}
	g := e.store.Snapshot()
	if e.isUnlocked(id) || g.Achievements.IsUnlocked(id) {
		return 1, nil
	}
	return rule.Progress(a.Requirement, &g), nil
}

// List returns every achievement in catalog order with its standing.
func (e *Evaluator) List() []Status {
	g := e.store.Snapshot()
	out := make([]Status, 0, len(e.rules))
	for _, a := range e.rules {
		s := Status{Achievement: a}
		if e.isUnlocked(a.ID) || g.Achievements.IsUnlocked(a.ID) {
			s.Unlocked = true
			s.Progress = 1
		} else {
			s.Progress = rule.Progress(a.Requirement, &g)
		}
		out = append(out, s)
	}
	return out
}

// SyncWithGameState replaces the evaluator's unlocked flags with the
// store's persisted unlocked list.
func (e *Evaluator) SyncWithGameState() {
	g := e.store.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.unlocked)
	for _, id := range g.Achievements.Unlocked {
		e.unlocked[id] = true
	}
}

func (e *Evaluator) isUnlocked(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlocked[id]
}

func (e *Evaluator) lookup(id string) (config.Achievement, bool) {
	for _, a := range e.rules {
		if a.ID == id {
			return a, true
		}
	}
	return config.Achievement{}, false
}
