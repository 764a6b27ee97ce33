// Package config loads game balance and runtime settings.
//
// Balance (catalogs, rates, cadences) comes from YAML. The default balance is
// embedded; a file path can override it. Every balance document is validated
// against an embedded CUE schema and then checked for cross-references the
// schema cannot express.
//
// Runtime settings (database path, autosave cadence, log level) come from the
// environment.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/matchstick/internal/rule"
	"github.com/roach88/matchstick/internal/state"
)

//go:embed balance.yaml
var defaultBalance []byte

// Condition expiry modes.
const (
	ExpiryDuration = "duration"
	ExpiryChance   = "chance"
)

// Balance is the complete tuning of one game.
type Balance struct {
	NewGame      NewGame       `yaml:"new_game" json:"new_game"`
	Production   Production    `yaml:"production" json:"production"`
	Market       Market        `yaml:"market" json:"market"`
	Automation   Automation    `yaml:"automation" json:"automation"`
	Phases       []Phase       `yaml:"phases" json:"phases"`
	Achievements []Achievement `yaml:"achievements" json:"achievements"`
}

// NewGame seeds a fresh state.
type NewGame struct {
	ManualRate    float64  `yaml:"manual_rate" json:"manual_rate"`
	BasePrice     float64  `yaml:"base_price" json:"base_price"`
	StartingMoney float64  `yaml:"starting_money" json:"starting_money"`
	AutoSell      AutoSell `yaml:"auto_sell" json:"auto_sell"`
}

// AutoSell mirrors state.AutoSellSettings for YAML.
type AutoSell struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	Percentage   float64 `yaml:"percentage" json:"percentage"`
	MinPrice     float64 `yaml:"min_price" json:"min_price"`
	MaxPerSecond float64 `yaml:"max_per_second" json:"max_per_second"`
}

// Settings converts to the state representation.
func (a AutoSell) Settings() state.AutoSellSettings {
	return state.AutoSellSettings(a)
}

// Production tunes manual clicking.
type Production struct {
	ComboWindow     time.Duration `yaml:"combo_window" json:"combo_window"`
	MaxCombo        int           `yaml:"max_combo" json:"max_combo"`
	ComboStep       float64       `yaml:"combo_step" json:"combo_step"`
	ClickRateWindow time.Duration `yaml:"click_rate_window" json:"click_rate_window"`
}

// Market tunes the price model and trading.
type Market struct {
	Volatility          float64       `yaml:"volatility" json:"volatility"`
	ConditionVolatility float64       `yaml:"condition_volatility" json:"condition_volatility"`
	Reversion           float64       `yaml:"reversion" json:"reversion"`
	PriceInterval       time.Duration `yaml:"price_interval" json:"price_interval"`
	ConditionInterval   time.Duration `yaml:"condition_interval" json:"condition_interval"`
	AnalysisTTL         time.Duration `yaml:"analysis_ttl" json:"analysis_ttl"`
	TradeHistoryCap     int           `yaml:"trade_history_cap" json:"trade_history_cap"`
	ImpactThreshold     float64       `yaml:"impact_threshold" json:"impact_threshold"`
	ImpactScale         float64       `yaml:"impact_scale" json:"impact_scale"`
	MaxImpact           float64       `yaml:"max_impact" json:"max_impact"`
	HaircutScale        float64       `yaml:"haircut_scale" json:"haircut_scale"`
	HaircutRate         float64       `yaml:"haircut_rate" json:"haircut_rate"`
	MaxHaircut          float64       `yaml:"max_haircut" json:"max_haircut"`
	Expiry              string        `yaml:"expiry" json:"expiry"`
	ExpiryChance        float64       `yaml:"expiry_chance" json:"expiry_chance"`
	Conditions          []Condition   `yaml:"conditions" json:"conditions"`
}

// Condition is one entry of the market condition catalog. Catalog order is
// the order conditions are rolled in.
type Condition struct {
	ID              string        `yaml:"id" json:"id"`
	Description     string        `yaml:"description" json:"description"`
	PriceMultiplier float64       `yaml:"price_multiplier" json:"price_multiplier"`
	DemandLevel     float64       `yaml:"demand_level" json:"demand_level"`
	Trend           string        `yaml:"trend" json:"trend"`
	Duration        time.Duration `yaml:"duration" json:"duration"`
	Chance          float64       `yaml:"chance" json:"chance"`
}

// Automation tunes purchasable automation and its tick cadences.
type Automation struct {
	AutoClickInterval   time.Duration    `yaml:"auto_click_interval" json:"auto_click_interval"`
	ProductionInterval  time.Duration    `yaml:"production_interval" json:"production_interval"`
	AutoSellInterval    time.Duration    `yaml:"auto_sell_interval" json:"auto_sell_interval"`
	MaintenanceInterval time.Duration    `yaml:"maintenance_interval" json:"maintenance_interval"`
	DegradationStep     float64          `yaml:"degradation_step" json:"degradation_step"`
	AutoClickers        []AutoClickerDef `yaml:"auto_clickers" json:"auto_clickers"`
	Facilities          []FacilityDef    `yaml:"facilities" json:"facilities"`
}

// AutoClickerDef is a purchasable auto-clicker. Buying one again raises its
// level.
type AutoClickerDef struct {
	ID              string           `yaml:"id" json:"id"`
	Name            string           `yaml:"name" json:"name"`
	BaseCost        float64          `yaml:"base_cost" json:"base_cost"`
	CostMultiplier  float64          `yaml:"cost_multiplier" json:"cost_multiplier"`
	MaxLevel        int              `yaml:"max_level" json:"max_level"`
	ClicksPerSecond float64          `yaml:"clicks_per_second" json:"clicks_per_second"`
	Unlock          rule.Requirement `yaml:"unlock" json:"unlock"`
}

// FacilityDef is a purchasable facility.
type FacilityDef struct {
	ID             string           `yaml:"id" json:"id"`
	Name           string           `yaml:"name" json:"name"`
	BaseCost       float64          `yaml:"base_cost" json:"base_cost"`
	CostMultiplier float64          `yaml:"cost_multiplier" json:"cost_multiplier"`
	MaxOwned       int              `yaml:"max_owned" json:"max_owned"`
	Production     float64          `yaml:"production" json:"production"`
	Maintenance    float64          `yaml:"maintenance" json:"maintenance"`
	Unlock         rule.Requirement `yaml:"unlock" json:"unlock"`
}

// Phase gates progression to a later game phase.
type Phase struct {
	Phase       int              `yaml:"phase" json:"phase"`
	Name        string           `yaml:"name" json:"name"`
	Requirement rule.Requirement `yaml:"requirement" json:"requirement"`
}

// Achievement is one achievement rule.
type Achievement struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Category    string           `yaml:"category" json:"category"`
	Difficulty  string           `yaml:"difficulty" json:"difficulty"`
	Points      int              `yaml:"points" json:"points"`
	Requirement rule.Requirement `yaml:"requirement" json:"requirement"`
	Reward      Reward           `yaml:"reward" json:"reward"`
}

// Reward is credited once when an achievement unlocks.
type Reward struct {
	Money float64 `yaml:"money" json:"money"`
}

// Defaults converts the new-game section for the state store.
func (b *Balance) Defaults() state.Defaults {
	return state.Defaults{
		ManualRate:    b.NewGame.ManualRate,
		BasePrice:     b.NewGame.BasePrice,
		StartingMoney: b.NewGame.StartingMoney,
		AutoSell:      b.NewGame.AutoSell.Settings(),
	}
}

// AutoClicker looks up an auto-clicker definition.
func (b *Balance) AutoClicker(id string) (AutoClickerDef, bool) {
	for _, d := range b.Automation.AutoClickers {
		if d.ID == id {
			return d, true
		}
	}
	return AutoClickerDef{}, false
}

// Facility looks up a facility definition.
func (b *Balance) Facility(id string) (FacilityDef, bool) {
	for _, d := range b.Automation.Facilities {
		if d.ID == id {
			return d, true
		}
	}
	return FacilityDef{}, false
}

// Default returns the embedded balance. It panics if the embedded document
// is invalid, which is a build defect.
func Default() *Balance {
	b, err := Parse(defaultBalance)
	if err != nil {
		panic(fmt.Sprintf("embedded balance: %v", err))
	}
	return b
}

// DefaultYAML returns the embedded balance document.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultBalance))
	copy(out, defaultBalance)
	return out
}

// LoadFile reads and validates a balance file. An empty path returns the
// embedded default.
func LoadFile(path string) (*Balance, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a balance document. Unknown keys are
// rejected.
func Parse(data []byte) (*Balance, error) {
	var b Balance
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
