package automation

import (
	"maps"
	"math"
	"slices"

	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/rule"
	"github.com/roach88/matchstick/internal/state"
)

// TickAutoClick runs every active auto-clicker once, routing its clicks
// through production so the combo applies.
func (e *Engine) TickAutoClick() {
	seconds := e.cfg.AutoClickInterval.Seconds()
	g := e.store.Snapshot()

	for _, id := range slices.Sorted(maps.Keys(g.Automation.AutoClickers)) {
		ac := g.Automation.AutoClickers[id]
		def, ok := e.autoClicker(id)
		if !ok || !ac.IsActive || ac.Level <= 0 || !rule.Satisfied(def.Unlock, &g) {
			continue
		}
		clicks := int(math.Floor(def.ClicksPerSecond * seconds * float64(ac.Level) * ac.Efficiency))
		if clicks <= 0 {
			continue
		}
		if _, err := e.producer.ProduceAutomated(clicks); err != nil {
			e.logger.Warn("auto-click failed", "id", id, "clicks", clicks, "error", err)
			continue
		}
		_ = e.store.Transact(func(tx *state.Tx) error {
			clickers := tx.State().Automation.AutoClickers
			if cur, ok := clickers[id]; ok {
				cur.TotalClicks += int64(clicks)
				clickers[id] = cur
			}
			return nil
		})
	}
}

// TickProduction adds facility output directly to the ledger, bypassing
// the combo. Fractional output carries over to the next tick.
func (e *Engine) TickProduction() {
	seconds := e.cfg.ProductionInterval.Seconds()
	produced := false

	e.mu.Lock()
	_ = e.store.Transact(func(tx *state.Tx) error {
		g := tx.State()
		rate := 0.0
		for id, f := range g.Automation.Facilities {
			def, ok := e.facility(id)
			if !ok {
				continue
			}
			rate += def.Production * float64(f.Owned) * f.Efficiency
		}
		g.Production.AutomatedRate = rate
		g.Production.LastUpdate = tx.Now()

		total := e.carry + rate*seconds
		whole := math.Floor(total)
		e.carry = total - whole
		if whole < 1 {
			return nil
		}
		amount := bignum.FromFloat64(whole)
		tx.AddProduced(amount)
		tx.Emit(event.SourceAutomation, event.Produced{
			Amount:          amount,
			ComboMultiplier: 1,
			TotalMultiplier: 1,
			Automated:       true,
		})
		produced = true
		return nil
	})
	e.mu.Unlock()

	if produced {
		e.check()
	}
}

// TickAutoSell sells a share of holdings when the settings allow it.
func (e *Engine) TickAutoSell() {
	g := e.store.Snapshot()
	s := g.Automation.AutoSell
	if !s.Enabled {
		return
	}
	holdings := g.Resources.Matchsticks.Float64()
	if holdings < s.Threshold || e.seller.Price() < s.MinPrice {
		return
	}
	qty := math.Floor(min(holdings*s.Percentage/100, s.MaxPerSecond))
	if qty < 1 {
		return
	}
	if _, err := e.seller.SellAutomated(bignum.FromFloat64(qty)); err != nil {
		e.logger.Warn("auto-sell failed", "amount", qty, "error", err)
	}
}

// TickMaintenance charges facility upkeep for one interval. Paid upkeep
// restores one efficiency step; unpaid upkeep costs one.
func (e *Engine) TickMaintenance() {
	seconds := e.cfg.MaintenanceInterval.Seconds()
	step := e.cfg.DegradationStep

	_ = e.store.Transact(func(tx *state.Tx) error {
		g := tx.State()
		upkeep := 0.0
		for id, f := range g.Automation.Facilities {
			if def, ok := e.facility(id); ok {
				upkeep += def.Maintenance * float64(f.Owned) * seconds
			}
		}
		if upkeep <= 0 {
			return nil
		}

		available := g.Resources.Money
		if tx.SubtractResources(state.Resources{Money: upkeep}) {
			e.adjustEfficiency(g, step)
			tx.Emit(event.SourceAutomation, event.MaintenancePaid{Amount: upkeep})
			return nil
		}

		minEff := e.adjustEfficiency(g, -step)
		g.Stats.MaintenanceMissed++
		tx.Emit(event.SourceAutomation, event.MaintenanceWarning{
			Required:      upkeep,
			Available:     available,
			MinEfficiency: minEff,
		})
		e.logger.Warn("maintenance unpaid, facilities degraded", "required", upkeep, "available", available, "min_efficiency", minEff)
		return nil
	})
}

// adjustEfficiency moves every facility's efficiency by delta within the
// allowed bounds and returns the lowest resulting efficiency.
func (e *Engine) adjustEfficiency(g *state.GameState, delta float64) float64 {
	lowest := state.MaxEfficiency
	for id, f := range g.Automation.Facilities {
		f.Efficiency = math.Round(min(state.MaxEfficiency, max(state.MinEfficiency, f.Efficiency+delta))*1e9) / 1e9
		g.Automation.Facilities[id] = f
		lowest = min(lowest, f.Efficiency)
	}
	return lowest
}
