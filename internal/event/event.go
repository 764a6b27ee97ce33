// Package event defines the typed event stream emitted by the simulation.
//
// Each event kind has its own payload struct. Payload is sealed so that
// dispatch sites can switch exhaustively over the known kinds.
package event

import (
	"time"

	"github.com/roach88/matchstick/internal/bignum"
)

// Type identifies an event kind on the wire and in the activity feed.
type Type string

const (
	TypeProduced             Type = "resources_produced"
	TypeSold                 Type = "matchsticks_sold"
	TypeAutoClickerPurchased Type = "auto_clicker_purchased"
	TypeFacilityPurchased    Type = "facility_purchased"
	TypeAchievementUnlocked  Type = "achievement_unlocked"
	TypeMaintenancePaid      Type = "maintenance_paid"
	TypeMaintenanceWarning   Type = "maintenance_warning"
	TypeConditionStarted     Type = "market_condition_started"
	TypeConditionEnded       Type = "market_condition_ended"
	TypeMultiplierApplied    Type = "multiplier_applied"
	TypeMultiplierRemoved    Type = "multiplier_removed"
	TypePhaseAdvanced        Type = "phase_advanced"
	TypeStateLoaded          Type = "state_loaded"
	TypeStateReset           Type = "state_reset"
)

// Source names the subsystem that emitted an event.
const (
	SourceProduction  = "production"
	SourceMarket      = "market"
	SourceAutomation  = "automation"
	SourceAchievement = "achievement"
	SourceState       = "state"
)

// Payload is implemented only by the payload structs in this package.
type Payload interface {
	EventType() Type
	sealed()
}

// Event is one entry of the activity feed.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Payload   Payload   `json:"payload"`
}

// Produced reports matchsticks created by clicks or facilities.
type Produced struct {
	Amount          bignum.Int `json:"amount"`
	Clicks          int        `json:"clicks"`
	ComboCount      int        `json:"combo_count"`
	ComboMultiplier float64    `json:"combo_multiplier"`
	TotalMultiplier float64    `json:"total_multiplier"`
	Automated       bool       `json:"automated"`
}

// Sold reports a completed market trade.
type Sold struct {
	Amount       bignum.Int `json:"amount"`
	PricePerUnit float64    `json:"price_per_unit"`
	Revenue      float64    `json:"revenue"`
	PriceAfter   float64    `json:"price_after"`
}

// AutoClickerPurchased reports a new or upgraded auto-clicker.
type AutoClickerPurchased struct {
	ID    string  `json:"id"`
	Level int     `json:"level"`
	Cost  float64 `json:"cost"`
}

// FacilityPurchased reports a newly built facility.
type FacilityPurchased struct {
	ID    string  `json:"id"`
	Owned int     `json:"owned"`
	Cost  float64 `json:"cost"`
}

// AchievementUnlocked reports a first-time unlock and its reward.
type AchievementUnlocked struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Points      int     `json:"points"`
	RewardMoney float64 `json:"reward_money"`
}

// MaintenancePaid reports upkeep deducted from money.
type MaintenancePaid struct {
	Amount float64 `json:"amount"`
}

// MaintenanceWarning reports unpaid upkeep and the resulting degradation.
type MaintenanceWarning struct {
	Required      float64 `json:"required"`
	Available     float64 `json:"available"`
	MinEfficiency float64 `json:"min_efficiency"`
}

// ConditionStarted reports a new market condition.
type ConditionStarted struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	PriceMultiplier float64 `json:"price_multiplier"`
}

// ConditionEnded reports the end of a market condition.
type ConditionEnded struct {
	ID string `json:"id"`
}

// MultiplierApplied reports a production multiplier being set.
type MultiplierApplied struct {
	Key      string        `json:"key"`
	Value    float64       `json:"value"`
	Duration time.Duration `json:"duration"`
}

// MultiplierRemoved reports a production multiplier being deleted.
type MultiplierRemoved struct {
	Key string `json:"key"`
}

// PhaseAdvanced reports progression to a later game phase.
type PhaseAdvanced struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// StateLoaded reports a wholesale or partial state load.
type StateLoaded struct {
	Partial bool `json:"partial"`
}

// StateReset reports a new game.
type StateReset struct{}

func (Produced) EventType() Type             { return TypeProduced }
func (Sold) EventType() Type                 { return TypeSold }
func (AutoClickerPurchased) EventType() Type { return TypeAutoClickerPurchased }
func (FacilityPurchased) EventType() Type    { return TypeFacilityPurchased }
func (AchievementUnlocked) EventType() Type  { return TypeAchievementUnlocked }
func (MaintenancePaid) EventType() Type      { return TypeMaintenancePaid }
func (MaintenanceWarning) EventType() Type   { return TypeMaintenanceWarning }
func (ConditionStarted) EventType() Type     { return TypeConditionStarted }
func (ConditionEnded) EventType() Type       { return TypeConditionEnded }
func (MultiplierApplied) EventType() Type    { return TypeMultiplierApplied }
func (MultiplierRemoved) EventType() Type    { return TypeMultiplierRemoved }
func (PhaseAdvanced) EventType() Type        { return TypePhaseAdvanced }
func (StateLoaded) EventType() Type          { return TypeStateLoaded }
func (StateReset) EventType() Type           { return TypeStateReset }

func (Produced) sealed()             {}
func (Sold) sealed()                 {}
func (AutoClickerPurchased) sealed() {}
func (FacilityPurchased) sealed()    {}
func (AchievementUnlocked) sealed()  {}
func (MaintenancePaid) sealed()      {}
func (MaintenanceWarning) sealed()   {}
func (ConditionStarted) sealed()     {}
func (ConditionEnded) sealed()       {}
func (MultiplierApplied) sealed()    {}
func (MultiplierRemoved) sealed()    {}
func (PhaseAdvanced) sealed()        {}
func (StateLoaded) sealed()          {}
func (StateReset) sealed()           {}
