package state

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/roach88/matchstick/internal/bignum"
)

var errInsufficient = errors.New("insufficient resources")

// ProductionPatch is a shallow merge into Production. Nil fields are left
// unchanged; a non-nil Multipliers replaces the whole map.
type ProductionPatch struct {
	ManualRate    *float64
	AutomatedRate *float64
	Multipliers   map[string]float64
	TotalProduced *bignum.Int
}

// MarketPatch is a shallow merge into Market. Condition sets a condition;
// ClearCondition removes it.
type MarketPatch struct {
	CurrentPrice   *float64
	BasePrice      *float64
	PriceHistory   []PricePoint
	Condition      *Condition
	ClearCondition bool
	TotalSold      *bignum.Int
	TotalRevenue   *float64
}

// AutomationPatch is a shallow merge into Automation. Non-nil maps replace
// the existing maps.
type AutomationPatch struct {
	AutoClickers    map[string]AutoClicker
	Facilities      map[string]Facility
	AutoSell        *AutoSellSettings
	TotalMoneySpent *float64
}

// AchievementsPatch is a shallow merge into Achievements.
type AchievementsPatch struct {
	Unlocked []string
	Points   *int64
}

// UpdateProduction merges p into the production section and stamps
// LastUpdate.
func (s *Store) UpdateProduction(p ProductionPatch) {
	_ = s.Transact(func(tx *Tx) error {
		prod := &tx.state.Production
		if v, ok := s.validFloat("production.manual_rate", p.ManualRate); ok {
			prod.ManualRate = v
		}
		if v, ok := s.validFloat("production.automated_rate", p.AutomatedRate); ok {
			prod.AutomatedRate = v
		}
		if p.Multipliers != nil {
			prod.Multipliers = sanitizeMultipliers(p.Multipliers)
			syncTempExpiry(prod)
		}
		if p.TotalProduced != nil {
			prod.TotalProduced = *p.TotalProduced
		}
		prod.LastUpdate = tx.now
		return nil
	})
}

// UpdateMarket merges p into the market section.
func (s *Store) UpdateMarket(p MarketPatch) {
	_ = s.Transact(func(tx *Tx) error {
		m := &tx.state.Market
		if v, ok := s.validFloat("market.current_price", p.CurrentPrice); ok {
			m.CurrentPrice = max(MinMarketPrice, v)
		}
		if v, ok := s.validFloat("market.base_price", p.BasePrice); ok && v > 0 {
			m.BasePrice = v
		}
		if p.PriceHistory != nil {
			m.PriceHistory = trimHistory(p.PriceHistory)
		}
		switch {
		case p.ClearCondition:
			m.Condition = nil
		case p.Condition != nil:
			c := *p.Condition
			m.Condition = &c
		}
		if p.TotalSold != nil {
			m.TotalSold = *p.TotalSold
		}
		if v, ok := s.validFloat("market.total_revenue", p.TotalRevenue); ok {
			m.TotalRevenue = v
		}
		return nil
	})
}

// UpdateAutomation merges p into the automation section.
func (s *Store) UpdateAutomation(p AutomationPatch) {
	_ = s.Transact(func(tx *Tx) error {
		a := &tx.state.Automation
		if p.AutoClickers != nil {
			a.AutoClickers = maps.Clone(p.AutoClickers)
			sanitizeAutoClickers(a.AutoClickers)
		}
		if p.Facilities != nil {
			a.Facilities = maps.Clone(p.Facilities)
			sanitizeFacilities(a.Facilities)
		}
		if p.AutoSell != nil {
			if p.AutoSell.Valid() {
				a.AutoSell = *p.AutoSell
			} else {
				s.logger.Warn("ignoring invalid auto-sell settings", "settings", *p.AutoSell)
			}
		}
		if v, ok := s.validFloat("automation.total_money_spent", p.TotalMoneySpent); ok {
			a.TotalMoneySpent = v
		}
		return nil
	})
}

// UpdateAchievements merges p into the achievements section. The unlocked
// list is merged as a union so that it can only grow.
func (s *Store) UpdateAchievements(p AchievementsPatch) {
	_ = s.Transact(func(tx *Tx) error {
		a := &tx.state.Achievements
		for _, id := range p.Unlocked {
			if id != "" && !a.IsUnlocked(id) {
				a.Unlocked = append(a.Unlocked, id)
			}
		}
		if p.Points != nil {
			if *p.Points >= 0 {
				a.Points = *p.Points
			} else {
				s.logger.Warn("ignoring negative achievement points", "points", *p.Points)
			}
		}
		return nil
	})
}

// validFloat dereferences v and checks it is finite and non-negative.
func (s *Store) validFloat(field string, v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if !isFinite(*v) || *v < 0 {
		s.logger.Warn("ignoring invalid numeric field", "field", field, "value", *v)
		return 0, false
	}
	return *v, true
}

func sanitizeMultipliers(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if isFinite(v) && v > 0 {
			out[k] = v
		}
	}
	return out
}

// syncTempExpiry drops expiries whose multiplier is gone and temporary
// multipliers that carry no expiry. It returns how many entries it removed.
func syncTempExpiry(p *Production) int {
	if p.TempExpiry == nil {
		p.TempExpiry = map[string]time.Time{}
	}
	n := 0
	for k := range p.TempExpiry {
		if _, ok := p.Multipliers[k]; !ok {
			delete(p.TempExpiry, k)
			n++
		}
	}
	for k := range p.Multipliers {
		if _, ok := p.TempExpiry[k]; !ok && strings.HasPrefix(k, TempMultiplierPrefix) {
			delete(p.Multipliers, k)
			n++
		}
	}
	return n
}

func sanitizeAutoClickers(m map[string]AutoClicker) {
	for id, ac := range m {
		ac.ID = id
		ac.Level = max(0, ac.Level)
		ac.TotalClicks = max(0, ac.TotalClicks)
		ac.Efficiency = clampEfficiency(ac.Efficiency)
		m[id] = ac
	}
}

func sanitizeFacilities(m map[string]Facility) {
	for id, f := range m {
		f.ID = id
		f.Owned = max(0, f.Owned)
		f.Efficiency = clampEfficiency(f.Efficiency)
		m[id] = f
	}
}

func clampEfficiency(e float64) float64 {
	if !isFinite(e) {
		return MaxEfficiency
	}
	return min(MaxEfficiency, max(MinEfficiency, e))
}

// trimHistory keeps the newest PriceHistoryCap points of an oldest-first
// history.
func trimHistory(h []PricePoint) []PricePoint {
	if len(h) > PriceHistoryCap {
		h = h[len(h)-PriceHistoryCap:]
	}
	out := make([]PricePoint, len(h))
	copy(out, h)
	return out
}
