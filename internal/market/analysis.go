package market

import (
	"math"
	"time"

	"github.com/roach88/matchstick/internal/state"
)

// Trend directions.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// Recommendations.
const (
	RecommendBuy  = "buy"
	RecommendSell = "sell"
	RecommendHold = "hold"
)

const (
	trendWindow      = 5
	volatilityWindow = 20
	levelsWindow     = 50
	trendThreshold   = 0.02
	volatileAbove    = 0.1
)

// Analysis is derived from the price history.
type Analysis struct {
	CurrentPrice   float64   `json:"current_price"`
	Trend          string    `json:"trend"`
	Volatility     float64   `json:"volatility"`
	Support        float64   `json:"support"`
	Resistance     float64   `json:"resistance"`
	Recommendation string    `json:"recommendation"`
	Reason         string    `json:"reason"`
	ComputedAt     time.Time `json:"computed_at"`
}

// Analysis returns the market analysis, recomputed at most once per
// analysis TTL.
func (e *Engine) Analysis() Analysis {
	now := e.store.Now()
	e.mu.Lock()
	if e.hasCache && now.Sub(e.analysisAt) < e.cfg.AnalysisTTL {
		a := e.analysis
		e.mu.Unlock()
		return a
	}
	e.mu.Unlock()

	a := Analyze(e.store.Market(), now)

	e.mu.Lock()
	e.analysis, e.analysisAt, e.hasCache = a, now, true
	e.mu.Unlock()
	return a
}

// Analyze computes an analysis of m at now.
func Analyze(m state.Market, now time.Time) Analysis {
	prices := make([]float64, len(m.PriceHistory))
	for i, p := range m.PriceHistory {
		prices[i] = p.Price
	}

	a := Analysis{
		CurrentPrice: m.CurrentPrice,
		Trend:        trend(tail(prices, trendWindow)),
		Volatility:   volatility(tail(prices, volatilityWindow)),
		ComputedAt:   now,
	}
	a.Support, a.Resistance = levels(tail(prices, levelsWindow), m.CurrentPrice)

	switch {
	case a.Trend == TrendRising && a.CurrentPrice < 0.9*a.Resistance:
		a.Recommendation, a.Reason = RecommendBuy, "price rising with room below resistance"
	case a.Trend == TrendFalling && a.CurrentPrice > 1.1*a.Support:
		a.Recommendation, a.Reason = RecommendSell, "price falling while still above support"
	case a.Volatility > volatileAbove:
		a.Recommendation, a.Reason = RecommendHold, "market too volatile"
	default:
		a.Recommendation, a.Reason = RecommendHold, "no clear signal"
	}
	return a
}

func tail(xs []float64, n int) []float64 {
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

func trend(prices []float64) string {
	if len(prices) < 2 || prices[0] <= 0 {
		return TrendStable
	}
	change := (prices[len(prices)-1] - prices[0]) / prices[0]
	switch {
	case change > trendThreshold:
		return TrendRising
	case change < -trendThreshold:
		return TrendFalling
	}
	return TrendStable
}

// volatility is the coefficient of variation (population stdev over mean).
func volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	if mean <= 0 {
		return 0
	}
	var sq float64
	for _, p := range prices {
		sq += (p - mean) * (p - mean)
	}
	return math.Sqrt(sq/float64(len(prices))) / mean
}

func levels(prices []float64, current float64) (support, resistance float64) {
	if len(prices) == 0 {
		return current, current
	}
	support, resistance = prices[0], prices[0]
	for _, p := range prices[1:] {
		support = min(support, p)
		resistance = max(resistance, p)
	}
	return support, resistance
}
