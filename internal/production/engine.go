// Package production turns clicks into matchsticks.
//
// Manual production carries a combo bonus that grows with rapid consecutive
// clicks and decays after an idle gap. The combo multiplier stacks with the
// multipliers held in the store's production section.
package production

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roach88/matchstick/internal/achievement"
	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/state"
)

// Checker re-evaluates achievements after a mutation.
type Checker interface {
	CheckAll() []achievement.Unlock
}

// Timer arms one-shot callbacks.
type Timer interface {
	After(name string, d time.Duration, fn func())
}

// afterFunc runs callbacks on the runtime timer goroutine.
type afterFunc struct{}

func (afterFunc) After(_ string, d time.Duration, fn func()) { time.AfterFunc(d, fn) }

// Result is the outcome of one Produce call.
type Result struct {
	Produced        bignum.Int
	ComboMultiplier float64
	TotalMultiplier float64
	ComboCount      int
}

// Combo is the transient click streak. It is not persisted.
type Combo struct {
	Count         int
	LastClickTime time.Time
	Multiplier    float64
}

// SessionStats are counters for the current process lifetime.
type SessionStats struct {
	Clicks          int64
	ManualClicks    int64
	Produced        bignum.Int
	ClickRate       float64
	MaxComboSession int
	MaxComboEver    int
}

type clickSample struct {
	at time.Time
	n  int
}

// Engine implements manual production.
type Engine struct {
	store   *state.Store
	cfg     config.Production
	checker Checker
	timer   Timer
	ids     state.IDGenerator
	logger  *slog.Logger

	mu      sync.Mutex
	combo   Combo
	session SessionStats
	samples []clickSample
}

// Option configures an Engine.
type Option func(*Engine)

// WithChecker sets the achievement checker run after each production.
func WithChecker(c Checker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithTimer sets the timer used to expire temporary multipliers.
// Default: runtime timers.
func WithTimer(t Timer) Option {
	return func(e *Engine) { e.timer = t }
}

// WithKeyGenerator sets the source of temporary multiplier keys.
func WithKeyGenerator(g state.IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a production engine.
func New(store *state.Store, cfg config.Production, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		timer: afterFunc{},
		ids:   state.UUIDv7Generator{},
		combo: Combo{Multiplier: 1},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "production")
	return e
}

// Produce converts clicks manual clicks into matchsticks.
func (e *Engine) Produce(clicks int) (Result, error) {
	return e.produce(clicks, false)
}

// ProduceAutomated is Produce on behalf of an auto-clicker. The combo
// applies; the event is marked automated.
func (e *Engine) ProduceAutomated(clicks int) (Result, error) {
	return e.produce(clicks, true)
}

func (e *Engine) produce(clicks int, automated bool) (Result, error) {
	if clicks <= 0 {
		return Result{}, errs.Validation(errs.CodeInvalidAmount, "click count must be positive", "clicks", fmt.Sprint(clicks))
	}

	e.mu.Lock()
	now := e.store.Now()
	combo := e.advanceCombo(now)
	var res Result
	err := e.store.Transact(func(tx *state.Tx) error {
		pruneExpired(tx)
		g := tx.State()
		total := combo.Multiplier * g.Production.ActiveMultiplier()
		base := g.Production.ManualRate * float64(clicks)
		amount := bignum.FromFloat64(math.Floor(base * total))
		if floor := bignum.FromInt64(int64(clicks)); amount.Less(floor) {
			amount = floor
		}

		tx.AddProduced(amount)
		g.Stats.TotalClicks += int64(clicks)
		g.Stats.MaxCombo = max(g.Stats.MaxCombo, combo.Count)
		tx.Emit(event.SourceProduction, event.Produced{
			Amount:          amount,
			Clicks:          clicks,
			ComboCount:      combo.Count,
			ComboMultiplier: combo.Multiplier,
			TotalMultiplier: total,
			Automated:       automated,
		})
		res = Result{
			Produced:        amount,
			ComboMultiplier: combo.Multiplier,
			TotalMultiplier: total,
			ComboCount:      combo.Count,
		}
		return nil
	})
	if err == nil {
		e.record(now, clicks, automated, res)
	}
	e.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	if e.checker != nil {
		e.checker.CheckAll()
	}
	return res, nil
}

// advanceCombo applies one click to the combo. Caller holds e.mu.
func (e *Engine) advanceCombo(now time.Time) Combo {
	gap := now.Sub(e.combo.LastClickTime)
	if e.combo.Count == 0 || gap > e.cfg.ComboWindow || gap < 0 {
		e.combo.Count = 1
	} else {
		e.combo.Count = min(e.combo.Count+1, e.cfg.MaxCombo)
	}
	e.combo.Multiplier = 1 + e.cfg.ComboStep*float64(e.combo.Count-1)
	e.combo.LastClickTime = now
	return e.combo
}

// record updates session statistics. Caller holds e.mu.
func (e *Engine) record(now time.Time, clicks int, automated bool, res Result) {
	e.session.Clicks += int64(clicks)
	if !automated {
		e.session.ManualClicks += int64(clicks)
	}
	e.session.Produced = e.session.Produced.Add(res.Produced)
	e.session.MaxComboSession = max(e.session.MaxComboSession, res.ComboCount)
	e.samples = append(e.samples, clickSample{at: now, n: clicks})
	e.pruneSamples(now)
}

func (e *Engine) pruneSamples(now time.Time) {
	cutoff := now.Add(-e.cfg.ClickRateWindow)
	i := 0
	for i < len(e.samples) && !e.samples[i].at.After(cutoff) {
		i++
	}
	e.samples = e.samples[i:]
}

// Combo returns the current combo, decayed if the window has passed.
func (e *Engine) Combo() Combo {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.combo
	if c.Count > 0 && e.store.Now().Sub(c.LastClickTime) > e.cfg.ComboWindow {
		c.Count = 0
		c.Multiplier = 1
	}
	return c
}

// ResetCombo clears the streak. Called after the store is replaced.
func (e *Engine) ResetCombo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.combo = Combo{Multiplier: 1}
}

// Stats returns session statistics with the click rate over the trailing
// window.
func (e *Engine) Stats() SessionStats {
	persisted := e.store.Snapshot().Stats.MaxCombo

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.store.Now()
	e.pruneSamples(now)
	s := e.session
	total := 0
	for _, c := range e.samples {
		total += c.n
	}
	if w := e.cfg.ClickRateWindow.Seconds(); w > 0 {
		s.ClickRate = float64(total) / w
	}
	s.MaxComboEver = max(persisted, s.MaxComboSession)
	return s
}
