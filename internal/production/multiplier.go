package production

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/state"
)

// SetMultiplier stores a permanent production multiplier under key. Keys
// with the temporary prefix are reserved for ApplyTemporaryMultiplier.
func (e *Engine) SetMultiplier(key string, value float64) error {
	if err := validMultiplier(key, value); err != nil {
		return err
	}
	if strings.HasPrefix(key, state.TempMultiplierPrefix) {
		return errs.Validation(errs.CodeInvalidAmount, "multiplier key is reserved", "key", key)
	}
	return e.store.Transact(func(tx *state.Tx) error {
		multipliers(tx)[key] = value
		tx.Emit(event.SourceProduction, event.MultiplierApplied{Key: key, Value: value})
		return nil
	})
}

// ApplyTemporaryMultiplier adds a multiplier that is removed after d. The
// removal cannot be cancelled by the caller. The expiry is saved with the
// state so a reloaded game still drops it. It returns the generated key.
func (e *Engine) ApplyTemporaryMultiplier(value float64, d time.Duration) (string, error) {
	key := state.TempMultiplierPrefix + e.ids.Generate()
	if err := validMultiplier(key, value); err != nil {
		return "", err
	}
	if d <= 0 {
		return "", errs.Validation(errs.CodeInvalidAmount, "duration must be positive", "duration", d.String())
	}
	err := e.store.Transact(func(tx *state.Tx) error {
		multipliers(tx)[key] = value
		tempExpiry(tx)[key] = tx.Now().Add(d)
		tx.Emit(event.SourceProduction, event.MultiplierApplied{Key: key, Value: value, Duration: d})
		return nil
	})
	if err != nil {
		return "", err
	}
	e.armExpiry(key, d)
	e.logger.Debug("temporary multiplier applied", "key", key, "value", value, "duration", d)
	return key, nil
}

// RestoreTemporary drops temporary multipliers whose expiry has passed and
// re-arms a timer for the rest. Call it after the state is replaced.
func (e *Engine) RestoreTemporary() {
	remaining := map[string]time.Duration{}
	_ = e.store.Transact(func(tx *state.Tx) error {
		pruneExpired(tx)
		for key, at := range tx.State().Production.TempExpiry {
			remaining[key] = at.Sub(tx.Now())
		}
		return nil
	})
	for key, d := range remaining {
		e.armExpiry(key, d)
	}
	if len(remaining) > 0 {
		e.logger.Debug("temporary multipliers restored", "count", len(remaining))
	}
}

// RemoveMultiplier deletes a multiplier by key and reports whether it
// existed.
func (e *Engine) RemoveMultiplier(key string) bool {
	removed := false
	_ = e.store.Transact(func(tx *state.Tx) error {
		removed = removeMultiplier(tx, key)
		return nil
	})
	return removed
}

func (e *Engine) armExpiry(key string, d time.Duration) {
	e.timer.After("multiplier-expiry", d, func() { e.expire(key) })
}

// expire removes key once the store clock reaches its expiry. A timer that
// fires early re-arms for the time left.
func (e *Engine) expire(key string) {
	var left time.Duration
	_ = e.store.Transact(func(tx *state.Tx) error {
		at, ok := tx.State().Production.TempExpiry[key]
		if !ok {
			return nil
		}
		if left = at.Sub(tx.Now()); left <= 0 {
			removeMultiplier(tx, key)
		}
		return nil
	})
	if left > 0 {
		e.armExpiry(key, left)
	}
}

// pruneExpired removes every temporary multiplier whose expiry is not after
// the transaction time.
func pruneExpired(tx *state.Tx) {
	for key, at := range tx.State().Production.TempExpiry {
		if !at.After(tx.Now()) {
			removeMultiplier(tx, key)
		}
	}
}

func removeMultiplier(tx *state.Tx, key string) bool {
	p := &tx.State().Production
	delete(p.TempExpiry, key)
	if _, ok := p.Multipliers[key]; !ok {
		return false
	}
	delete(p.Multipliers, key)
	tx.Emit(event.SourceProduction, event.MultiplierRemoved{Key: key})
	return true
}

func validMultiplier(key string, value float64) error {
	if key == "" {
		return errs.Validation(errs.CodeInvalidAmount, "multiplier key is required")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return errs.Validation(errs.CodeInvalidAmount, "multiplier must be a finite positive number", "value", fmt.Sprint(value))
	}
	return nil
}

func multipliers(tx *state.Tx) map[string]float64 {
	p := &tx.State().Production
	if p.Multipliers == nil {
		p.Multipliers = make(map[string]float64)
	}
	return p.Multipliers
}

func tempExpiry(tx *state.Tx) map[string]time.Time {
	p := &tx.State().Production
	if p.TempExpiry == nil {
		p.TempExpiry = make(map[string]time.Time)
	}
	return p.TempExpiry
}
