package market

import (
	"math"
	"slices"
	"time"

	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/state"
)

// Trade is one completed sale.
type Trade struct {
	Timestamp    time.Time
	Amount       bignum.Int
	PricePerUnit float64
	Revenue      float64
	PriceBefore  float64
	PriceAfter   float64
	Automated    bool
}

// Sell sells amount matchsticks at the current price.
func (e *Engine) Sell(amount bignum.Int) (Trade, error) {
	return e.sell(amount, false)
}

// SellAutomated is Sell on behalf of auto-sell.
func (e *Engine) SellAutomated(amount bignum.Int) (Trade, error) {
	return e.sell(amount, true)
}

func (e *Engine) sell(amount bignum.Int, automated bool) (Trade, error) {
	if amount.IsZero() {
		return Trade{}, errs.Validation(errs.CodeInvalidAmount, "sell amount must be positive")
	}

	var trade Trade
	err := e.store.Transact(func(tx *state.Tx) error {
		g := tx.State()
		if g.Resources.Matchsticks.Less(amount) {
			return errs.Validation(errs.CodeInsufficientResources, "not enough matchsticks",
				"requested", amount.String(), "held", g.Resources.Matchsticks.String())
		}
		m := &g.Market
		qty := amount.Float64()
		ppu := m.CurrentPrice * e.impact(qty)
		revenue := min(qty*ppu, math.MaxFloat64)

		if !tx.SubtractResources(state.Resources{Matchsticks: amount}) {
			return errs.Validation(errs.CodeInsufficientResources, "not enough matchsticks")
		}
		tx.AddResources(state.Resources{Money: revenue})
		m.TotalSold = m.TotalSold.Add(amount)
		m.TotalRevenue = min(m.TotalRevenue+revenue, math.MaxFloat64)
		g.Stats.TradeCount++

		before := m.CurrentPrice
		m.CurrentPrice = max(state.MinMarketPrice, m.CurrentPrice*(1-e.haircut(qty)))

		tx.Emit(event.SourceMarket, event.Sold{
			Amount:       amount,
			PricePerUnit: ppu,
			Revenue:      revenue,
			PriceAfter:   m.CurrentPrice,
		})
		trade = Trade{
			Timestamp:    tx.Now(),
			Amount:       amount,
			PricePerUnit: ppu,
			Revenue:      revenue,
			PriceBefore:  before,
			PriceAfter:   m.CurrentPrice,
			Automated:    automated,
		}
		return nil
	})
	if err != nil {
		return Trade{}, err
	}

	e.mu.Lock()
	e.trades = slices.Insert(e.trades, 0, trade)
	if len(e.trades) > e.cfg.TradeHistoryCap {
		e.trades = e.trades[:e.cfg.TradeHistoryCap]
	}
	e.volume += trade.Amount.Float64()
	e.mu.Unlock()

	e.logger.Debug("trade executed", "amount", amount.String(), "price_per_unit", trade.PricePerUnit, "revenue", trade.Revenue, "automated", automated)
	if e.checker != nil {
		e.checker.CheckAll()
	}
	return trade, nil
}

// impact is the unit-price factor for selling qty at once.
func (e *Engine) impact(qty float64) float64 {
	if qty <= e.cfg.ImpactThreshold {
		return 1
	}
	return 1 - min(e.cfg.MaxImpact, (qty-e.cfg.ImpactThreshold)/e.cfg.ImpactScale)
}

// haircut is the fractional price drop after selling qty.
func (e *Engine) haircut(qty float64) float64 {
	return min(e.cfg.MaxHaircut, qty/e.cfg.HaircutScale*e.cfg.HaircutRate)
}

// Quote returns the unit price and revenue Sell would give for amount right
// now, without trading.
func (e *Engine) Quote(amount bignum.Int) (pricePerUnit, revenue float64) {
	qty := amount.Float64()
	ppu := e.Price() * e.impact(qty)
	return ppu, min(qty*ppu, math.MaxFloat64)
}

// TradeHistory returns recent trades, newest first.
func (e *Engine) TradeHistory() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.trades)
}
