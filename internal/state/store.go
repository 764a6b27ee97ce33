package state

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/clock"
	"github.com/roach88/matchstick/internal/event"
)

// IDGenerator produces unique event identifiers.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Subscriber receives committed events in emission order.
type Subscriber func(event.Event)

// Store is the single shared container for all subsystem state.
type Store struct {
	mu       sync.Mutex
	state    GameState
	defaults Defaults
	log      *event.Log
	clock    clock.Clock
	ids      IDGenerator
	logger   *slog.Logger

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source. Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator sets the event ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDefaults sets the new-game values used by New and Reset.
func WithDefaults(d Defaults) Option {
	return func(s *Store) { s.defaults = d }
}

// WithLogCapacity overrides the activity log capacity.
func WithLogCapacity(n int) Option {
	return func(s *Store) { s.log = event.NewLog(n) }
}

// New creates a Store holding a fresh game.
func New(opts ...Option) *Store {
	s := &Store{
		defaults: DefaultDefaults(),
		log:      event.NewLog(event.DefaultLogCapacity),
		clock:    clock.System{},
		ids:      UUIDv7Generator{},
		subs:     make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.state = NewGame(s.clock.Now(), s.defaults)
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.clock.Now() }

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Resources returns a copy of the ledger.
func (s *Store) Resources() Resources {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Resources
}

// Market returns a deep copy of the market section.
func (s *Store) Market() Market {
	return s.Snapshot().Market
}

// Automation returns a deep copy of the automation section.
func (s *Store) Automation() Automation {
	return s.Snapshot().Automation
}

// Events returns the activity log, newest first.
func (s *Store) Events() []event.Event {
	return s.log.Entries()
}

// Subscribe registers fn for committed events. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Tx is a transaction's view of the state. It is only valid inside the
// function passed to Transact.
type Tx struct {
	state   *GameState
	now     time.Time
	ids     IDGenerator
	logger  *slog.Logger
	pending []event.Event
}

// State returns the mutable working copy.
func (tx *Tx) State() *GameState { return tx.state }

// Now returns the transaction timestamp.
func (tx *Tx) Now() time.Time { return tx.now }

// Emit queues an event for publication on commit.
func (tx *Tx) Emit(source string, p event.Payload) {
	tx.pending = append(tx.pending, event.Event{
		ID:        tx.ids.Generate(),
		Type:      p.EventType(),
		Timestamp: tx.now,
		Source:    source,
		Payload:   p,
	})
}

// AddResources adds each field independently. Negative and non-finite
// float deltas are skipped and logged; deductions go through
// SubtractResources. Sums saturate at math.MaxFloat64.
func (tx *Tx) AddResources(d Resources) {
	r := &tx.state.Resources
	r.Matchsticks = r.Matchsticks.Add(d.Matchsticks)
	r.Money = tx.addFloat("money", r.Money, d.Money)
	r.Wood = tx.addFloat("wood", r.Wood, d.Wood)
	r.Reputation = tx.addFloat("reputation", r.Reputation, d.Reputation)
}

func (tx *Tx) addFloat(field string, cur, delta float64) float64 {
	if !isFinite(delta) || delta < 0 {
		tx.logger.Warn("ignoring invalid resource delta", "field", field, "delta", delta)
		return cur
	}
	return min(math.MaxFloat64, cur+delta)
}

// SubtractResources validates every field before mutating any of them.
// It returns false, leaving the ledger untouched, if any field is short or
// any delta is negative or non-finite.
func (tx *Tx) SubtractResources(d Resources) bool {
	if !CanAfford(tx.state.Resources, d) {
		return false
	}
	r := &tx.state.Resources
	r.Matchsticks = r.Matchsticks.Sub(d.Matchsticks)
	r.Money = max(0, r.Money-d.Money)
	r.Wood = max(0, r.Wood-d.Wood)
	r.Reputation = max(0, r.Reputation-d.Reputation)
	return true
}

// CanAfford reports whether have covers cost in every field.
func CanAfford(have, cost Resources) bool {
	for _, f := range []float64{cost.Money, cost.Wood, cost.Reputation} {
		if !isFinite(f) || f < 0 {
			return false
		}
	}
	return have.Matchsticks.Cmp(cost.Matchsticks) >= 0 &&
		have.Money >= cost.Money &&
		have.Wood >= cost.Wood &&
		have.Reputation >= cost.Reputation
}

// AddProduced credits matchsticks to the ledger and the lifetime total.
func (tx *Tx) AddProduced(n bignum.Int) {
	tx.state.Resources.Matchsticks = tx.state.Resources.Matchsticks.Add(n)
	tx.state.Production.TotalProduced = tx.state.Production.TotalProduced.Add(n)
}

// AdvancePhase moves the game to phase `to` if it is later than the current
// one, emitting a phase event.
func (tx *Tx) AdvancePhase(to int) {
	from := tx.state.Phase
	if to <= from {
		return
	}
	tx.state.Phase = to
	tx.Emit(event.SourceState, event.PhaseAdvanced{From: from, To: to})
}

// Transact runs fn against a working copy of the state. If fn returns nil
// the copy replaces the live state and queued events are published;
// otherwise everything fn did is discarded and its error returned.
func (s *Store) Transact(fn func(tx *Tx) error) error {
	events, err := s.transact(fn)
	if err != nil {
		return err
	}
	s.publish(events)
	return nil
}

func (s *Store) transact(fn func(tx *Tx) error) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.Clone()
	tx := &Tx{state: &work, now: s.clock.Now(), ids: s.ids, logger: s.logger}
	if err := fn(tx); err != nil {
		return nil, err
	}
	s.state = work
	for _, e := range tx.pending {
		s.log.Push(e)
	}
	return tx.pending, nil
}

func (s *Store) publish(events []event.Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.subMu.Unlock()

	for _, e := range events {
		for _, fn := range subs {
			fn(e)
		}
	}
}

// AddResources adds delta to the ledger.
func (s *Store) AddResources(delta Resources) {
	_ = s.Transact(func(tx *Tx) error {
		tx.AddResources(delta)
		return nil
	})
}

// SubtractResources deducts delta from the ledger all-or-nothing.
func (s *Store) SubtractResources(delta Resources) bool {
	err := s.Transact(func(tx *Tx) error {
		if !tx.SubtractResources(delta) {
			return errInsufficient
		}
		return nil
	})
	return err == nil
}

// Emit publishes a standalone event.
func (s *Store) Emit(source string, p event.Payload) {
	_ = s.Transact(func(tx *Tx) error {
		tx.Emit(source, p)
		return nil
	})
}

// Reset replaces the state with a fresh game and clears the activity log.
// Subscribers receive a state_reset event that is not retained in the log.
func (s *Store) Reset() {
	s.mu.Lock()
	now := s.clock.Now()
	s.state = NewGame(now, s.defaults)
	s.log.Clear()
	s.mu.Unlock()

	s.publish([]event.Event{{
		ID:        s.ids.Generate(),
		Type:      event.TypeStateReset,
		Timestamp: now,
		Source:    event.SourceState,
		Payload:   event.StateReset{},
	}})
}
