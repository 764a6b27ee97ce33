// Package game assembles the simulation components into one object graph
// and owns their lifecycle.
//
// Every component is constructed exactly once in New and handed its
// collaborators explicitly. Start wires the periodic ticks onto a single
// scheduler goroutine and starts the autosave loop on a separate goroutine
// so storage I/O never delays a tick.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/matchstick/internal/achievement"
	"github.com/roach88/matchstick/internal/automation"
	"github.com/roach88/matchstick/internal/clock"
	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/market"
	"github.com/roach88/matchstick/internal/notify"
	"github.com/roach88/matchstick/internal/persistence"
	"github.com/roach88/matchstick/internal/production"
	"github.com/roach88/matchstick/internal/scheduler"
	"github.com/roach88/matchstick/internal/state"
	"github.com/roach88/matchstick/internal/telemetry"
)

// ErrNoStorage is returned by save operations when no persistence store
// was configured.
var ErrNoStorage = errors.New("game: no save storage configured")

// ErrRunning is returned by Start when the game is already running.
var ErrRunning = errors.New("game: already running")

// gaugeInterval is how often market gauges are refreshed.
const gaugeInterval = time.Second

// Options configures New. Only Balance is required in practice; every
// other field has a working default.
type Options struct {
	Balance  *config.Balance
	Saves    *persistence.Store
	Clock    clock.Clock
	IDs      state.IDGenerator
	Rand     market.Rand
	Logger   *slog.Logger
	Notifier notify.Sink
	Metrics  *telemetry.Metrics

	// AutosaveInterval enables the autosave loop when positive and Saves
	// is set.
	AutosaveInterval time.Duration
}

// Game is the assembled simulation.
type Game struct {
	balance      *config.Balance
	store        *state.Store
	production   *production.Engine
	market       *market.Engine
	automation   *automation.Engine
	achievements *achievement.Evaluator
	scheduler    *scheduler.Scheduler

	saves    *persistence.Store
	clock    clock.Clock
	notifier notify.Sink
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	autosave time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	unsubs  []func()
	cancels []func()
}

// New builds the object graph. The store starts with a fresh game.
func New(opts Options) *Game {
	if opts.Balance == nil {
		opts.Balance = config.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.IDs == nil {
		opts.IDs = state.UUIDv7Generator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.SlogSink{Logger: opts.Logger}
	}

	g := &Game{
		balance:  opts.Balance,
		saves:    opts.Saves,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "game"),
		autosave: opts.AutosaveInterval,
	}

	schedOpts := []scheduler.Option{scheduler.WithLogger(opts.Logger)}
	if opts.Metrics != nil {
		schedOpts = append(schedOpts, scheduler.WithObserver(opts.Metrics.ObserveJob))
	}
	g.scheduler = scheduler.New(schedOpts...)

	g.store = state.New(
		state.WithClock(opts.Clock),
		state.WithIDGenerator(opts.IDs),
		state.WithLogger(opts.Logger),
		state.WithDefaults(opts.Balance.Defaults()),
	)
	g.achievements = achievement.New(g.store, opts.Balance, opts.Logger)
	g.production = production.New(g.store, opts.Balance.Production,
		production.WithChecker(g.achievements),
		production.WithTimer(g.scheduler),
		production.WithKeyGenerator(opts.IDs),
		production.WithLogger(opts.Logger),
	)
	marketOpts := []market.Option{
		market.WithChecker(g.achievements),
		market.WithLogger(opts.Logger),
	}
	if opts.Rand != nil {
		marketOpts = append(marketOpts, market.WithRand(opts.Rand))
	}
	g.market = market.New(g.store, opts.Balance.Market, marketOpts...)
	g.automation = automation.New(g.store, opts.Balance.Automation, g.production, g.market,
		automation.WithChecker(g.achievements),
		automation.WithLogger(opts.Logger),
	)

	g.unsubs = append(g.unsubs, g.store.Subscribe(notify.Forward(g.notifier)))
	if opts.Metrics != nil {
		g.unsubs = append(g.unsubs, g.store.Subscribe(opts.Metrics.ObserveEvent))
	}
	return g
}

// Store returns the shared state container.
func (g *Game) Store() *state.Store { return g.store }

// Production returns the production engine.
func (g *Game) Production() *production.Engine { return g.production }

// Market returns the market engine.
func (g *Game) Market() *market.Engine { return g.market }

// Automation returns the automation engine.
func (g *Game) Automation() *automation.Engine { return g.automation }

// Achievements returns the achievement evaluator.
func (g *Game) Achievements() *achievement.Evaluator { return g.achievements }

// Scheduler returns the tick scheduler.
func (g *Game) Scheduler() *scheduler.Scheduler { return g.scheduler }

// Balance returns the balance the game was built with.
func (g *Game) Balance() *config.Balance { return g.balance }

// Start runs the scheduler loop, registers every periodic tick and starts
// the autosave loop. It returns immediately.
func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return ErrRunning
	}
	if g.stopped {
		return scheduler.ErrStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running = true

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error("scheduler exited", "error", err)
		}
	}()

	g.market.Start(g.scheduler)
	g.automation.Start(g.scheduler)
	if g.metrics != nil {
		g.cancels = append(g.cancels, g.scheduler.Every("telemetry.gauges", gaugeInterval, g.refreshGauges))
	}

	if g.saves != nil && g.autosave > 0 {
		g.wg.Add(1)
		go g.autosaveLoop(ctx, g.autosave)
	}

	g.logger.Info("game started", "autosave", g.autosave)
	return nil
}

// Stop cancels every tick, stops the scheduler and waits for the autosave
// loop. A save already in progress runs to completion. A stopped game
// cannot be started again.
func (g *Game) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.stopped = true
	cancels := g.cancels
	g.cancels = nil
	g.mu.Unlock()

	g.market.Stop()
	g.automation.Stop()
	for _, c := range cancels {
		c()
	}
	g.scheduler.Stop()
	g.cancel()
	g.wg.Wait()
	g.logger.Info("game stopped")
}

// Close stops the game and detaches event subscribers.
func (g *Game) Close() {
	g.Stop()
	g.mu.Lock()
	unsubs := g.unsubs
	g.unsubs = nil
	g.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// NewGame resets the state and re-synchronizes every component that
// holds derived state.
func (g *Game) NewGame() {
	g.store.Reset()
	g.resync()
}

// Load applies a full or partial JSON state document and re-synchronizes
// derived state. A malformed document leaves everything untouched.
func (g *Game) Load(data []byte) error {
	if err := g.store.Load(data); err != nil {
		return err
	}
	g.resync()
	return nil
}

// Save stores a manual save.
func (g *Game) Save(ctx context.Context, name string) (persistence.Info, error) {
	return g.save(ctx, persistence.SaveOptions{Name: name})
}

// Autosave stores an autosave. Failures are reported to the notifier and
// returned; the in-memory state stays authoritative either way.
func (g *Game) Autosave(ctx context.Context) (persistence.Info, error) {
	return g.save(ctx, persistence.SaveOptions{AutoSave: true})
}

func (g *Game) save(ctx context.Context, opts persistence.SaveOptions) (persistence.Info, error) {
	if g.saves == nil {
		return persistence.Info{}, ErrNoStorage
	}
	info, err := g.saves.Save(ctx, g.store.Snapshot(), opts)
	g.metrics.ObserveSave(opts.AutoSave, err)
	if err != nil {
		op := "Save"
		if opts.AutoSave {
			op = "Autosave"
		}
		g.report(op, err)
		return persistence.Info{}, err
	}
	return info, nil
}

// LoadSave replaces the state with a stored save. A record that fails its
// integrity check is rejected and the current state is left untouched.
func (g *Game) LoadSave(ctx context.Context, id string) (persistence.Info, error) {
	if g.saves == nil {
		return persistence.Info{}, ErrNoStorage
	}
	snap, err := g.saves.Load(ctx, id)
	if err != nil {
		g.report("Load", err)
		return persistence.Info{}, err
	}
	g.apply(snap.State)
	return snap.Info, nil
}

// LoadLatest loads the most recent save if there is one. It reports false
// when the save set is empty.
func (g *Game) LoadLatest(ctx context.Context) (persistence.Info, bool, error) {
	if g.saves == nil {
		return persistence.Info{}, false, ErrNoStorage
	}
	list, err := g.saves.List(ctx)
	if err != nil {
		g.report("Load", err)
		return persistence.Info{}, false, err
	}
	if len(list) == 0 {
		return persistence.Info{}, false, nil
	}
	info, err := g.LoadSave(ctx, list[0].ID)
	if err != nil {
		return persistence.Info{}, false, err
	}
	return info, true, nil
}

// Export bundles every stored save.
func (g *Game) Export(ctx context.Context) (persistence.Bundle, error) {
	if g.saves == nil {
		return persistence.Bundle{}, ErrNoStorage
	}
	b, err := g.saves.Export(ctx)
	if err != nil {
		g.report("Export", err)
		return persistence.Bundle{}, err
	}
	return b, nil
}

// Import replaces the stored save set with b. The live state is not
// changed; load a save afterwards to switch to it.
func (g *Game) Import(ctx context.Context, b persistence.Bundle) (int, error) {
	if g.saves == nil {
		return 0, ErrNoStorage
	}
	n, err := g.saves.Import(ctx, b)
	if err != nil {
		g.report("Import", err)
		return 0, err
	}
	return n, nil
}

// apply installs a loaded state and re-synchronizes derived state.
func (g *Game) apply(s state.GameState) {
	g.store.Replace(s)
	g.resync()
}

func (g *Game) resync() {
	g.achievements.SyncWithGameState()
	g.production.ResetCombo()
	g.production.RestoreTemporary()
	g.automation.ResetCarry()
	g.market.Reset()
}

func (g *Game) autosaveLoop(ctx context.Context, every time.Duration) {
	defer g.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// Detached so that Stop lets an in-flight write finish.
			_, _ = g.Autosave(context.WithoutCancel(ctx))
		}
	}
}

func (g *Game) refreshGauges() {
	g.metrics.SetMarket(g.market.Price(), g.store.Resources().Money)
}

func (g *Game) report(op string, err error) {
	g.logger.Warn(fmt.Sprintf("%s failed", op), "error", err)
	g.notifier.Notify(notify.Failure(op, err, g.clock.Now()))
}
