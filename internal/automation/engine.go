// Package automation buys and runs unattended producers and sellers.
//
// Purchases validate everything before touching the ledger and apply in a
// single store transaction. Four independent ticks drive owned automation:
// auto-click, facility production, auto-sell and maintenance. Insolvency
// never halts automation; unpaid upkeep degrades facility efficiency
// instead.
package automation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/matchstick/internal/achievement"
	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/market"
	"github.com/roach88/matchstick/internal/production"
	"github.com/roach88/matchstick/internal/state"
)

// Tick names, also used as scheduler job names.
const (
	TickNameAutoClick   = "automation.auto_click"
	TickNameProduction  = "automation.production"
	TickNameAutoSell    = "automation.auto_sell"
	TickNameMaintenance = "automation.maintenance"
)

// Producer routes auto-clicks through manual production.
type Producer interface {
	ProduceAutomated(clicks int) (production.Result, error)
}

// Seller executes auto-sell trades.
type Seller interface {
	SellAutomated(amount bignum.Int) (market.Trade, error)
	Price() float64
}

// Checker re-evaluates achievements after a mutation.
type Checker interface {
	CheckAll() []achievement.Unlock
}

// Ticker registers periodic callbacks.
type Ticker interface {
	Every(name string, interval time.Duration, fn func()) (cancel func())
}

// Engine implements purchasing and the automation ticks.
type Engine struct {
	store    *state.Store
	cfg      config.Automation
	producer Producer
	seller   Seller
	checker  Checker
	logger   *slog.Logger

	mu      sync.Mutex
	carry   float64
	cancels []func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithChecker sets the achievement checker run after purchases and
// production.
func WithChecker(c Checker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an automation engine.
func New(store *state.Store, cfg config.Automation, producer Producer, seller Seller, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		cfg:      cfg,
		producer: producer,
		seller:   seller,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "automation")
	return e
}

// Start registers all four ticks.
func (e *Engine) Start(t Ticker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels = append(e.cancels,
		t.Every(TickNameAutoClick, e.cfg.AutoClickInterval, e.TickAutoClick),
		t.Every(TickNameProduction, e.cfg.ProductionInterval, e.TickProduction),
		t.Every(TickNameAutoSell, e.cfg.AutoSellInterval, e.TickAutoSell),
		t.Every(TickNameMaintenance, e.cfg.MaintenanceInterval, e.TickMaintenance),
	)
}

// Stop cancels every tick registered by Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// ResetCarry drops fractional facility output accumulated so far. Called
// after the store is replaced.
func (e *Engine) ResetCarry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.carry = 0
}

func (e *Engine) check() {
	if e.checker != nil {
		e.checker.CheckAll()
	}
}
