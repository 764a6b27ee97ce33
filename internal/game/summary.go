package game

import (
	"github.com/roach88/matchstick/internal/market"
)

// Summary is a display-oriented digest of the current state.
type Summary struct {
	Phase         int             `json:"phase"`
	Matchsticks   string          `json:"matchsticks"`
	Money         float64         `json:"money"`
	Price         float64         `json:"price"`
	Condition     string          `json:"condition,omitempty"`
	Combo         int             `json:"combo"`
	AutoClickers  int             `json:"auto_clickers"`
	Facilities    int             `json:"facilities"`
	Points        int64           `json:"points"`
	Achievements  int             `json:"achievements"`
	TotalProduced string          `json:"total_produced"`
	TotalSold     string          `json:"total_sold"`
	Analysis      market.Analysis `json:"analysis"`
}

// Summary reads the state once and derives the display values.
func (g *Game) Summary() Summary {
	s := g.store.Snapshot()
	out := Summary{
		Phase:         s.Phase,
		Matchsticks:   s.Resources.Matchsticks.String(),
		Money:         s.Resources.Money,
		Price:         s.Market.CurrentPrice,
		Combo:         g.production.Combo().Count,
		Points:        s.Achievements.Points,
		Achievements:  len(s.Achievements.Unlocked),
		TotalProduced: s.Production.TotalProduced.String(),
		TotalSold:     s.Market.TotalSold.String(),
		Analysis:      g.market.Analysis(),
	}
	if s.Market.Condition != nil {
		out.Condition = s.Market.Condition.ID
	}
	for _, ac := range s.Automation.AutoClickers {
		out.AutoClickers += ac.Level
	}
	for _, f := range s.Automation.Facilities {
		out.Facilities += f.Owned
	}
	return out
}
