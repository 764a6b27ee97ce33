package automation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/rule"
	"github.com/roach88/matchstick/internal/state"
)

// Purchase is a successful auto-clicker or facility purchase.
type Purchase struct {
	ID    string
	Count int
	Cost  float64
}

// Offer kinds.
const (
	KindAutoClicker = "auto_clicker"
	KindFacility    = "facility"
)

// Offer is one catalog entry with the player's standing.
type Offer struct {
	Kind     string
	ID       string
	Name     string
	Count    int
	Max      int
	Cost     float64
	Unlocked bool
}

// CostOfAutoClicker is the price of raising def from level.
func CostOfAutoClicker(def config.AutoClickerDef, level int) float64 {
	return math.Floor(def.BaseCost * math.Pow(def.CostMultiplier, float64(level)))
}

// CostOfFacility is the price of the next facility after owned.
func CostOfFacility(def config.FacilityDef, owned int) float64 {
	return math.Floor(def.BaseCost * math.Pow(def.CostMultiplier, float64(owned)))
}

// BuyAutoClicker buys a new auto-clicker or raises its level. Checks run in
// order: not_found, max_level_reached, requirements_not_met,
// insufficient_funds. A failed purchase changes nothing.
func (e *Engine) BuyAutoClicker(id string) (Purchase, error) {
	def, ok := e.autoClicker(id)
	if !ok {
		return Purchase{}, errs.Validation(errs.CodeNotFound, "unknown auto-clicker", "id", id)
	}

	var p Purchase
	err := e.store.Transact(func(tx *state.Tx) error {
		g := tx.State()
		ac, owned := g.Automation.AutoClickers[id]
		if ac.Level >= def.MaxLevel {
			return errs.Validation(errs.CodeMaxLevelReached, "auto-clicker is at max level",
				"id", id, "max_level", strconv.Itoa(def.MaxLevel))
		}
		if !rule.Satisfied(def.Unlock, g) {
			return errs.Validation(errs.CodeRequirementsNotMet, "auto-clicker is locked",
				"id", id, "requires", rule.Describe(def.Unlock))
		}
		cost := CostOfAutoClicker(def, ac.Level)
		if !tx.SubtractResources(state.Resources{Money: cost}) {
			return errs.Validation(errs.CodeInsufficientFunds, "not enough money",
				"id", id, "cost", fmt.Sprint(cost), "money", fmt.Sprint(g.Resources.Money))
		}
		if !owned {
			ac = state.AutoClicker{ID: id, IsActive: true, Efficiency: state.MaxEfficiency}
		}
		ac.Level++
		g.Automation.AutoClickers[id] = ac
		g.Automation.TotalMoneySpent += cost
		g.Stats.AutoClickerPurchases++
		tx.Emit(event.SourceAutomation, event.AutoClickerPurchased{ID: id, Level: ac.Level, Cost: cost})
		p = Purchase{ID: id, Count: ac.Level, Cost: cost}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	e.logger.Info("auto-clicker purchased", "id", id, "level", p.Count, "cost", p.Cost)
	e.check()
	return p, nil
}

// BuyFacility buys one more facility. Checks run in the same order as
// BuyAutoClicker, with the ownership cap reported as max_level_reached.
func (e *Engine) BuyFacility(id string) (Purchase, error) {
	def, ok := e.facility(id)
	if !ok {
		return Purchase{}, errs.Validation(errs.CodeNotFound, "unknown facility", "id", id)
	}

	var p Purchase
	err := e.store.Transact(func(tx *state.Tx) error {
		g := tx.State()
		f, owned := g.Automation.Facilities[id]
		if f.Owned >= def.MaxOwned {
			return errs.Validation(errs.CodeMaxLevelReached, "facility limit reached",
				"id", id, "max_owned", strconv.Itoa(def.MaxOwned))
		}
		if !rule.Satisfied(def.Unlock, g) {
			return errs.Validation(errs.CodeRequirementsNotMet, "facility is locked",
				"id", id, "requires", rule.Describe(def.Unlock))
		}
		cost := CostOfFacility(def, f.Owned)
		if !tx.SubtractResources(state.Resources{Money: cost}) {
			return errs.Validation(errs.CodeInsufficientFunds, "not enough money",
				"id", id, "cost", fmt.Sprint(cost), "money", fmt.Sprint(g.Resources.Money))
		}
		if !owned {
			f = state.Facility{ID: id, Efficiency: state.MaxEfficiency}
		}
		f.Owned++
		g.Automation.Facilities[id] = f
		g.Automation.TotalMoneySpent += cost
		g.Stats.FacilityPurchases++
		tx.Emit(event.SourceAutomation, event.FacilityPurchased{ID: id, Owned: f.Owned, Cost: cost})
		p = Purchase{ID: id, Count: f.Owned, Cost: cost}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	e.logger.Info("facility purchased", "id", id, "owned", p.Count, "cost", p.Cost)
	e.check()
	return p, nil
}

// Catalog lists every auto-clicker and facility with its next cost.
func (e *Engine) Catalog() []Offer {
	g := e.store.Snapshot()
	out := make([]Offer, 0, len(e.cfg.AutoClickers)+len(e.cfg.Facilities))
	for _, d := range e.cfg.AutoClickers {
		level := g.Automation.AutoClickers[d.ID].Level
		out = append(out, Offer{
			Kind: KindAutoClicker, ID: d.ID, Name: d.Name,
			Count: level, Max: d.MaxLevel,
			Cost:     CostOfAutoClicker(d, level),
			Unlocked: rule.Satisfied(d.Unlock, &g),
		})
	}
	for _, d := range e.cfg.Facilities {
		owned := g.Automation.Facilities[d.ID].Owned
		out = append(out, Offer{
			Kind: KindFacility, ID: d.ID, Name: d.Name,
			Count: owned, Max: d.MaxOwned,
			Cost:     CostOfFacility(d, owned),
			Unlocked: rule.Satisfied(d.Unlock, &g),
		})
	}
	return out
}

// SetAutoSell replaces the auto-sell settings.
func (e *Engine) SetAutoSell(s state.AutoSellSettings) error {
	if !s.Valid() {
		return errs.Validation(errs.CodeInvalidAmount, "invalid auto-sell settings")
	}
	e.store.UpdateAutomation(state.AutomationPatch{AutoSell: &s})
	return nil
}

// SetAutoClickerActive pauses or resumes an owned auto-clicker.
func (e *Engine) SetAutoClickerActive(id string, active bool) error {
	return e.store.Transact(func(tx *state.Tx) error {
		clickers := tx.State().Automation.AutoClickers
		ac, ok := clickers[id]
		if !ok {
			return errs.Validation(errs.CodeNotFound, "auto-clicker not owned", "id", id)
		}
		ac.IsActive = active
		clickers[id] = ac
		return nil
	})
}

func (e *Engine) autoClicker(id string) (config.AutoClickerDef, bool) {
	for _, d := range e.cfg.AutoClickers {
		if d.ID == id {
			return d, true
		}
	}
	return config.AutoClickerDef{}, false
}

func (e *Engine) facility(id string) (config.FacilityDef, bool) {
	for _, d := range e.cfg.Facilities {
		if d.ID == id {
			return d, true
		}
	}
	return config.FacilityDef{}, false
}
