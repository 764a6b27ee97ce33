// Package market prices matchsticks and executes trades.
//
// The price follows a mean-reverting random walk towards the base price
// scaled by the active market condition. Conditions are rolled from a fixed
// catalog, at most one at a time. Trades apply a volume impact to the unit
// price and knock the live price down afterwards.
package market

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/roach88/matchstick/internal/achievement"
	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/state"
)

// Scheduler job names.
const (
	TickNamePrice     = "market.price"
	TickNameCondition = "market.condition"
)

// Checker re-evaluates achievements after a mutation.
type Checker interface {
	CheckAll() []achievement.Unlock
}

// Rand is a source of uniform values in [0,1).
type Rand interface {
	Float64() float64
}

// Ticker registers periodic callbacks.
type Ticker interface {
	Every(name string, interval time.Duration, fn func()) (cancel func())
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Engine implements the market.
type Engine struct {
	store   *state.Store
	cfg     config.Market
	checker Checker
	rand    Rand
	logger  *slog.Logger

	mu         sync.Mutex
	trades     []Trade
	volume     float64
	analysis   Analysis
	analysisAt time.Time
	hasCache   bool
	cancels    []func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithChecker sets the achievement checker run after each trade.
func WithChecker(c Checker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithRand sets the random source. Default: math/rand/v2.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a market engine.
func New(store *state.Store, cfg config.Market, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		rand:  globalRand{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "market")
	return e
}

// Start registers the price and condition ticks.
func (e *Engine) Start(t Ticker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels = append(e.cancels,
		t.Every(TickNamePrice, e.cfg.PriceInterval, e.TickPrice),
		t.Every(TickNameCondition, e.cfg.ConditionInterval, e.TickCondition),
	)
}

// Stop cancels the ticks registered by Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Reset forgets trade history, pending volume and the cached analysis.
// Called after the store is replaced.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades = nil
	e.volume = 0
	e.hasCache = false
}

// TickPrice moves the price one step and records it in the history.
func (e *Engine) TickPrice() {
	e.mu.Lock()
	volume := e.volume
	e.volume = 0
	e.mu.Unlock()

	_ = e.store.Transact(func(tx *state.Tx) error {
		m := &tx.State().Market
		mult, label := 1.0, ""
		if m.Condition != nil {
			mult, label = m.Condition.PriceMultiplier, m.Condition.ID
		}
		vol := e.cfg.Volatility + e.cfg.ConditionVolatility*math.Abs(mult-1)
		target := m.BasePrice * mult
		u := 2*e.rand.Float64() - 1
		step := m.CurrentPrice*vol*u + e.cfg.Reversion*(target-m.CurrentPrice)
		next := m.CurrentPrice + step
		if math.IsNaN(next) || math.IsInf(next, 0) {
			next = target
		}
		m.CurrentPrice = max(state.MinMarketPrice, next)
		m.PriceHistory = appendHistory(m.PriceHistory, state.PricePoint{
			Timestamp: tx.Now(),
			Price:     m.CurrentPrice,
			Volume:    volume,
			Condition: label,
		})
		return nil
	})
}

func appendHistory(h []state.PricePoint, p state.PricePoint) []state.PricePoint {
	h = append(h, p)
	if over := len(h) - state.PriceHistoryCap; over > 0 {
		h = append(h[:0:0], h[over:]...)
	}
	return h
}

// TickCondition ends an expired condition or rolls for a new one. A tick
// that ends a condition never starts another.
func (e *Engine) TickCondition() {
	_ = e.store.Transact(func(tx *state.Tx) error {
		m := &tx.State().Market
		if c := m.Condition; c != nil {
			if e.expired(c, tx.Now()) {
				m.Condition = nil
				tx.Emit(event.SourceMarket, event.ConditionEnded{ID: c.ID})
				e.logger.Info("market condition ended", "condition", c.ID)
			}
			return nil
		}
		for _, def := range e.cfg.Conditions {
			if e.rand.Float64() >= def.Chance {
				continue
			}
			m.Condition = &state.Condition{
				ID:              def.ID,
				PriceMultiplier: def.PriceMultiplier,
				DemandLevel:     def.DemandLevel,
				Trend:           def.Trend,
				Duration:        def.Duration,
				Description:     def.Description,
				StartedAt:       tx.Now(),
			}
			tx.Emit(event.SourceMarket, event.ConditionStarted{
				ID:              def.ID,
				Description:     def.Description,
				PriceMultiplier: def.PriceMultiplier,
			})
			e.logger.Info("market condition started", "condition", def.ID, "multiplier", def.PriceMultiplier)
			break
		}
		return nil
	})
}

func (e *Engine) expired(c *state.Condition, now time.Time) bool {
	if e.cfg.Expiry == config.ExpiryChance {
		return e.rand.Float64() < e.cfg.ExpiryChance
	}
	return now.Sub(c.StartedAt) >= c.Duration
}

// Price returns the current market price.
func (e *Engine) Price() float64 {
	return e.store.Market().CurrentPrice
}
