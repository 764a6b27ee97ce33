package state

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/roach88/matchstick/internal/bignum"
)

// SchemaVersion is stamped on every state written by this package.
const SchemaVersion = 1

// Market bounds shared by the store and the market engine.
const (
	MinMarketPrice  = 0.1
	PriceHistoryCap = 100
)

// Efficiency bounds for facilities and auto-clickers.
const (
	MinEfficiency = 0.1
	MaxEfficiency = 1.0
)

// Game phases. Later phases imply the earlier ones were reached.
const (
	PhaseManual     = 1
	PhaseMarket     = 2
	PhaseAutomation = 3
	PhaseIndustry   = 4
)

// Resource names used by requirements and partial loads.
const (
	ResourceMatchsticks = "matchsticks"
	ResourceMoney       = "money"
	ResourceWood        = "wood"
	ResourceReputation  = "reputation"
)

// GameState is the complete simulation state. It is owned by Store; callers
// only ever see deep copies.
type GameState struct {
	Version      int          `json:"version"`
	Resources    Resources    `json:"resources"`
	Production   Production   `json:"production"`
	Market       Market       `json:"market"`
	Automation   Automation   `json:"automation"`
	Achievements Achievements `json:"achievements"`
	Stats        Stats        `json:"stats"`
	Phase        int          `json:"phase"`
	CreatedAt    time.Time    `json:"created_at"`
	SessionStart time.Time    `json:"session_start"`
}

// Resources is the ledger of player-held quantities.
// It doubles as the delta type for add and subtract operations.
type Resources struct {
	Matchsticks bignum.Int `json:"matchsticks"`
	Money       float64    `json:"money"`
	Wood        float64    `json:"wood"`
	Reputation  float64    `json:"reputation"`
}

// TempMultiplierPrefix starts the key of every temporary multiplier.
const TempMultiplierPrefix = "temp-"

// Production holds production rates and stacked multipliers. TempExpiry
// records when each temporary multiplier must be removed.
type Production struct {
	ManualRate    float64              `json:"manual_rate"`
	AutomatedRate float64              `json:"automated_rate"`
	Multipliers   map[string]float64   `json:"multipliers"`
	TempExpiry    map[string]time.Time `json:"temp_expiry"`
	TotalProduced bignum.Int           `json:"total_produced"`
	LastUpdate    time.Time            `json:"last_update"`
}

// ActiveMultiplier returns the product of every finite positive multiplier.
func (p Production) ActiveMultiplier() float64 {
	total := 1.0
	for _, m := range p.Multipliers {
		if isFinite(m) && m > 0 {
			total *= m
		}
	}
	return total
}

// PricePoint is one sample of the market price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Condition string    `json:"condition"`
}

// Condition is a temporary global market modifier.
type Condition struct {
	ID              string        `json:"id"`
	PriceMultiplier float64       `json:"price_multiplier"`
	DemandLevel     float64       `json:"demand_level"`
	Trend           string        `json:"trend"`
	Duration        time.Duration `json:"duration"`
	Description     string        `json:"description"`
	StartedAt       time.Time     `json:"started_at"`
}

// Market holds price and trade totals. PriceHistory is oldest-first.
type Market struct {
	CurrentPrice float64      `json:"current_price"`
	BasePrice    float64      `json:"base_price"`
	PriceHistory []PricePoint `json:"price_history"`
	Condition    *Condition   `json:"condition"`
	TotalSold    bignum.Int   `json:"total_sold"`
	TotalRevenue float64      `json:"total_revenue"`
}

// AutoClicker is an owned automated clicker.
type AutoClicker struct {
	ID          string  `json:"id"`
	Level       int     `json:"level"`
	TotalClicks int64   `json:"total_clicks"`
	IsActive    bool    `json:"is_active"`
	Efficiency  float64 `json:"efficiency"`
}

// Facility is an owned automated producer.
type Facility struct {
	ID         string  `json:"id"`
	Owned      int     `json:"owned"`
	Efficiency float64 `json:"efficiency"`
}

// AutoSellSettings configures unattended selling.
type AutoSellSettings struct {
	Enabled      bool    `json:"enabled"`
	Threshold    float64 `json:"threshold"`
	Percentage   float64 `json:"percentage"`
	MinPrice     float64 `json:"min_price"`
	MaxPerSecond float64 `json:"max_per_second"`
}

// Valid reports whether the settings satisfy their documented ranges.
func (a AutoSellSettings) Valid() bool {
	return isFinite(a.Threshold) && a.Threshold >= 0 &&
		isFinite(a.Percentage) && a.Percentage > 0 && a.Percentage <= 100 &&
		isFinite(a.MinPrice) && a.MinPrice >= 0 &&
		isFinite(a.MaxPerSecond) && a.MaxPerSecond > 0
}

// Automation holds everything bought by the automation layer.
type Automation struct {
	AutoClickers    map[string]AutoClicker `json:"auto_clickers"`
	Facilities      map[string]Facility    `json:"facilities"`
	AutoSell        AutoSellSettings       `json:"auto_sell"`
	TotalMoneySpent float64                `json:"total_money_spent"`
}

// Achievements holds the persisted unlock list. The list only grows.
type Achievements struct {
	Unlocked []string `json:"unlocked"`
	Points   int64    `json:"points"`
}

// IsUnlocked reports whether id is in the unlocked list.
func (a Achievements) IsUnlocked(id string) bool {
	return slices.Contains(a.Unlocked, id)
}

// Stats holds lifetime counters used by achievement requirements.
type Stats struct {
	TotalClicks          int64 `json:"total_clicks"`
	MaxCombo             int   `json:"max_combo"`
	TradeCount           int64 `json:"trade_count"`
	AutoClickerPurchases int64 `json:"auto_clicker_purchases"`
	FacilityPurchases    int64 `json:"facility_purchases"`
	MaintenanceMissed    int64 `json:"maintenance_missed"`
}

// Resource returns a named ledger field as float64.
func (g *GameState) Resource(name string) (float64, bool) {
	switch name {
	case ResourceMatchsticks:
		return g.Resources.Matchsticks.Float64(), true
	case ResourceMoney:
		return g.Resources.Money, true
	case ResourceWood:
		return g.Resources.Wood, true
	case ResourceReputation:
		return g.Resources.Reputation, true
	}
	return 0, false
}

// Stat returns a named statistic. Besides the Stats counters it exposes the
// lifetime totals held by the other sections.
func (g *GameState) Stat(name string) (float64, bool) {
	switch name {
	case "total_clicks":
		return float64(g.Stats.TotalClicks), true
	case "max_combo":
		return float64(g.Stats.MaxCombo), true
	case "trade_count":
		return float64(g.Stats.TradeCount), true
	case "auto_clicker_purchases":
		return float64(g.Stats.AutoClickerPurchases), true
	case "facility_purchases":
		return float64(g.Stats.FacilityPurchases), true
	case "maintenance_missed":
		return float64(g.Stats.MaintenanceMissed), true
	case "total_produced":
		return g.Production.TotalProduced.Float64(), true
	case "total_sold":
		return g.Market.TotalSold.Float64(), true
	case "total_revenue":
		return g.Market.TotalRevenue, true
	case "total_money_spent":
		return g.Automation.TotalMoneySpent, true
	case "achievement_points":
		return float64(g.Achievements.Points), true
	case "facilities_owned":
		total := 0
		for _, f := range g.Automation.Facilities {
			total += f.Owned
		}
		return float64(total), true
	}
	return 0, false
}

// Clone returns a deep copy.
func (g GameState) Clone() GameState {
	out := g
	out.Production.Multipliers = maps.Clone(g.Production.Multipliers)
	out.Production.TempExpiry = maps.Clone(g.Production.TempExpiry)
	out.Market.PriceHistory = slices.Clone(g.Market.PriceHistory)
	if g.Market.Condition != nil {
		c := *g.Market.Condition
		out.Market.Condition = &c
	}
	out.Automation.AutoClickers = maps.Clone(g.Automation.AutoClickers)
	out.Automation.Facilities = maps.Clone(g.Automation.Facilities)
	out.Achievements.Unlocked = slices.Clone(g.Achievements.Unlocked)
	return out
}

// Defaults seeds a new game.
type Defaults struct {
	ManualRate    float64
	BasePrice     float64
	StartingMoney float64
	AutoSell      AutoSellSettings
}

// DefaultDefaults returns the built-in new-game values.
func DefaultDefaults() Defaults {
	return Defaults{
		ManualRate: 1,
		BasePrice:  1,
		AutoSell: AutoSellSettings{
			Threshold:    100,
			Percentage:   50,
			MinPrice:     0.5,
			MaxPerSecond: 100,
		},
	}
}

// NewGame returns a fresh state stamped with now.
func NewGame(now time.Time, d Defaults) GameState {
	return GameState{
		Version:   SchemaVersion,
		Resources: Resources{Money: d.StartingMoney},
		Production: Production{
			ManualRate:  d.ManualRate,
			Multipliers: map[string]float64{},
			TempExpiry:  map[string]time.Time{},
			LastUpdate:  now,
		},
		Market: Market{
			CurrentPrice: d.BasePrice,
			BasePrice:    d.BasePrice,
			PriceHistory: []PricePoint{},
		},
		Automation: Automation{
			AutoClickers: map[string]AutoClicker{},
			Facilities:   map[string]Facility{},
			AutoSell:     d.AutoSell,
		},
		Achievements: Achievements{Unlocked: []string{}},
		Phase:        PhaseManual,
		CreatedAt:    now,
		SessionStart: now,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
