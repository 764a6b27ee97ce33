package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/matchstick/internal/event"
)

// fullStateKeys are the sections whose joint presence marks a document as a
// complete state rather than a partial update.
var fullStateKeys = []string{"resources", "production", "market", "automation", "achievements"}

// mergeableKeys are the top-level keys a partial load may touch.
var mergeableKeys = map[string]bool{
	"resources":    true,
	"production":   true,
	"market":       true,
	"automation":   true,
	"achievements": true,
	"stats":        true,
	"phase":        true,
}

// Load applies a JSON document to the store. A document carrying every
// section is a full state: it is sanitized and replaces the current state
// with the session start reset to now. Anything else is a partial update
// deep-merged into the current state for the known sections only; the
// merge runs in one transaction so concurrent mutations are never lost.
//
// Load returns an error only when data cannot be decoded; the live state is
// untouched in that case. A state_loaded event is emitted on success.
func (s *Store) Load(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if isFullState(top) {
		var g GameState
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("decode full state: %w", err)
		}
		s.replace(g)
		return nil
	}
	return s.loadPartial(top)
}

// Replace installs g as the live state after sanitizing it. It is the typed
// counterpart of a full Load.
func (s *Store) Replace(g GameState) {
	s.replace(g.Clone())
}

func (s *Store) replace(g GameState) {
	_ = s.Transact(func(tx *Tx) error {
		g.SessionStart = tx.now
		s.install(tx, g, false)
		return nil
	})
}

// install sanitizes g and makes it the transaction's working state.
func (s *Store) install(tx *Tx, g GameState, partial bool) {
	for _, fix := range sanitize(&g) {
		s.logger.Warn("sanitized loaded state", "fix", fix)
	}
	*tx.state = g
	tx.Emit(event.SourceState, event.StateLoaded{Partial: partial})
}

func isFullState(top map[string]json.RawMessage) bool {
	for _, k := range fullStateKeys {
		if _, ok := top[k]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) loadPartial(top map[string]json.RawMessage) error {
	patch := make(map[string]any, len(top))
	for k, raw := range top {
		if !mergeableKeys[k] {
			s.logger.Warn("ignoring unknown section in partial load", "key", k)
			continue
		}
		v, err := decodeGeneric(raw)
		if err != nil {
			return fmt.Errorf("decode section %q: %w", k, err)
		}
		patch[k] = v
	}

	return s.Transact(func(tx *Tx) error {
		base, err := toGeneric(*tx.state)
		if err != nil {
			return fmt.Errorf("encode current state: %w", err)
		}
		raw, err := json.Marshal(deepMerge(base, patch))
		if err != nil {
			return fmt.Errorf("encode merged state: %w", err)
		}
		var g GameState
		if err := json.Unmarshal(raw, &g); err != nil {
			return fmt.Errorf("decode merged state: %w", err)
		}
		s.install(tx, g, true)
		return nil
	})
}

func toGeneric(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := decodeGeneric(raw)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", out)
	}
	return m, nil
}

// decodeGeneric decodes with UseNumber so integers beyond float64 precision
// survive the merge.
func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// deepMerge merges src into dst. Objects merge key by key; every other
// value in src replaces the one in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	out := maps.Clone(dst)
	if out == nil {
		out = make(map[string]any, len(src))
	}
	for k, sv := range src {
		sm, srcIsObj := sv.(map[string]any)
		dm, dstIsObj := out[k].(map[string]any)
		if srcIsObj && dstIsObj && !isTaggedBigInt(sm) {
			out[k] = deepMerge(dm, sm)
			continue
		}
		out[k] = sv
	}
	return out
}

func isTaggedBigInt(m map[string]any) bool {
	_, ok := m["$bigint"]
	return ok && len(m) == 1
}

// sanitize repairs g in place and describes every repair it made.
func sanitize(g *GameState) []string {
	var fixes []string
	fix := func(format string, args ...any) {
		fixes = append(fixes, fmt.Sprintf(format, args...))
	}

	if g.Version == 0 {
		g.Version = SchemaVersion
	}
	if g.Phase < PhaseManual {
		fix("phase %d raised to %d", g.Phase, PhaseManual)
		g.Phase = PhaseManual
	}

	r := &g.Resources
	for name, f := range map[string]*float64{"money": &r.Money, "wood": &r.Wood, "reputation": &r.Reputation} {
		if !isFinite(*f) || *f < 0 {
			fix("resource %s %v reset to 0", name, *f)
			*f = 0
		}
	}

	p := &g.Production
	for name, f := range map[string]*float64{"manual_rate": &p.ManualRate, "automated_rate": &p.AutomatedRate} {
		if !isFinite(*f) || *f < 0 {
			fix("production %s %v reset to 0", name, *f)
			*f = 0
		}
	}
	if p.Multipliers == nil {
		p.Multipliers = map[string]float64{}
	} else if clean := sanitizeMultipliers(p.Multipliers); len(clean) != len(p.Multipliers) {
		fix("dropped %d invalid multipliers", len(p.Multipliers)-len(clean))
		p.Multipliers = clean
	}
	if n := syncTempExpiry(p); n > 0 {
		fix("dropped %d temporary multipliers without a matching expiry", n)
	}

	m := &g.Market
	if !isFinite(m.BasePrice) || m.BasePrice <= 0 {
		fix("market base_price %v reset to 1", m.BasePrice)
		m.BasePrice = 1
	}
	if !isFinite(m.CurrentPrice) || m.CurrentPrice < MinMarketPrice {
		fix("market current_price %v raised to %v", m.CurrentPrice, MinMarketPrice)
		m.CurrentPrice = max(MinMarketPrice, m.BasePrice)
		if !isFinite(m.CurrentPrice) {
			m.CurrentPrice = MinMarketPrice
		}
	}
	if m.PriceHistory == nil {
		m.PriceHistory = []PricePoint{}
	} else if len(m.PriceHistory) > PriceHistoryCap {
		fix("price history trimmed from %d to %d", len(m.PriceHistory), PriceHistoryCap)
		m.PriceHistory = trimHistory(m.PriceHistory)
	}
	if !isFinite(m.TotalRevenue) || m.TotalRevenue < 0 {
		fix("market total_revenue %v reset to 0", m.TotalRevenue)
		m.TotalRevenue = 0
	}
	if c := m.Condition; c != nil && (!isFinite(c.PriceMultiplier) || c.PriceMultiplier <= 0) {
		fix("dropped condition %q with multiplier %v", c.ID, c.PriceMultiplier)
		m.Condition = nil
	}

	a := &g.Automation
	if a.AutoClickers == nil {
		a.AutoClickers = map[string]AutoClicker{}
	}
	if a.Facilities == nil {
		a.Facilities = map[string]Facility{}
	}
	sanitizeAutoClickers(a.AutoClickers)
	sanitizeFacilities(a.Facilities)
	if !a.AutoSell.Valid() {
		fix("auto-sell settings reset to defaults")
		enabled := a.AutoSell.Enabled
		a.AutoSell = DefaultDefaults().AutoSell
		a.AutoSell.Enabled = enabled
	}
	if !isFinite(a.TotalMoneySpent) || a.TotalMoneySpent < 0 {
		fix("automation total_money_spent %v reset to 0", a.TotalMoneySpent)
		a.TotalMoneySpent = 0
	}

	ach := &g.Achievements
	if ach.Unlocked == nil {
		ach.Unlocked = []string{}
	} else {
		seen := make(map[string]bool, len(ach.Unlocked))
		deduped := ach.Unlocked[:0:0]
		for _, id := range ach.Unlocked {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			deduped = append(deduped, id)
		}
		if len(deduped) != len(ach.Unlocked) {
			fix("dropped %d duplicate unlock entries", len(ach.Unlocked)-len(deduped))
		}
		ach.Unlocked = deduped
	}
	if ach.Points < 0 {
		fix("achievement points %d reset to 0", ach.Points)
		ach.Points = 0
	}

	st := &g.Stats
	for _, n := range []*int64{&st.TotalClicks, &st.TradeCount, &st.AutoClickerPurchases, &st.FacilityPurchases, &st.MaintenanceMissed} {
		if *n < 0 {
			*n = 0
		}
	}
	st.MaxCombo = max(0, st.MaxCombo)

	slices.Sort(fixes)
	return fixes
}

// Validate reports invariant violations in the live state. An empty result
// means the state is consistent.
func (s *Store) Validate() []string {
	g := s.Snapshot()
	return sanitize(&g)
}
