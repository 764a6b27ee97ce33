package market

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/matchstick/internal/achievement"
	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/event"
	"github.com/roach88/matchstick/internal/state"
	"github.com/roach88/matchstick/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingChecker struct{ calls int }

func (c *countingChecker) CheckAll() []achievement.Unlock {
	c.calls++
	return nil
}

type fixture struct {
	store   *state.Store
	clock   *testutil.ManualClock
	engine  *Engine
	checker *countingChecker
}

func setup(t *testing.T, cfg config.Market, rnd Rand) fixture {
	t.Helper()
	clk := testutil.NewManualClock(time.Time{})
	s := state.New(
		state.WithClock(clk),
		state.WithIDGenerator(testutil.NewSequentialIDs("evt")),
		state.WithLogger(discard),
	)
	c := &countingChecker{}
	return fixture{
		store:   s,
		clock:   clk,
		checker: c,
		engine:  New(s, cfg, WithChecker(c), WithRand(rnd), WithLogger(discard)),
	}
}

func defaultMarket() config.Market { return config.Default().Market }

func TestSell_SmallTradeAtBasePrice(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(1000)})

	trade, err := f.engine.Sell(bignum.FromInt64(10))

	require.NoError(t, err)
	assert.InDelta(t, 1.0, trade.PricePerUnit, 1e-9)
	assert.InDelta(t, 10.0, trade.Revenue, 1e-9)
	r := f.store.Resources()
	assert.Equal(t, "990", r.Matchsticks.String())
	assert.InDelta(t, 10.0, r.Money, 1e-9)

	m := f.store.Market()
	assert.Equal(t, "10", m.TotalSold.String())
	assert.InDelta(t, 10.0, m.TotalRevenue, 1e-9)
	assert.InDelta(t, 1.0*(1-10.0/5000*0.01), m.CurrentPrice, 1e-12)
	assert.Equal(t, int64(1), f.store.Snapshot().Stats.TradeCount)
	assert.Equal(t, 1, f.checker.calls)
}

func TestSell_MoreThanHeldChangesNothing(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(5), Money: 2})
	before := f.store.Snapshot()

	_, err := f.engine.Sell(bignum.FromInt64(6))

	assert.Equal(t, errs.CodeInsufficientResources, errs.CodeOf(err))
	after := f.store.Snapshot()
	assert.Equal(t, before.Resources, after.Resources)
	assert.Equal(t, before.Market, after.Market)
	assert.Empty(t, f.engine.TradeHistory())
	assert.Zero(t, f.checker.calls)
}

func TestSell_RejectsZero(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())

	_, err := f.engine.Sell(bignum.Zero())

	assert.Equal(t, errs.CodeInvalidAmount, errs.CodeOf(err))
}

func TestSell_LargeTradeImpact(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(50000)})

	mid, err := f.engine.Sell(bignum.FromInt64(2000))
	require.NoError(t, err)
	assert.InDelta(t, mid.PriceBefore*0.9, mid.PricePerUnit, 1e-9)

	big, err := f.engine.Sell(bignum.FromInt64(30000))
	require.NoError(t, err)
	assert.InDelta(t, big.PriceBefore*0.8, big.PricePerUnit, 1e-9)
	assert.InDelta(t, big.PriceBefore*0.95, big.PriceAfter, 1e-9)
}

func TestSell_HistoryNewestFirstAndCapped(t *testing.T) {
	cfg := defaultMarket()
	cfg.TradeHistoryCap = 3
	f := setup(t, cfg, testutil.NewScriptedRand())
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(100)})

	for i := 1; i <= 5; i++ {
		_, err := f.engine.Sell(bignum.FromInt64(int64(i)))
		require.NoError(t, err)
	}

	h := f.engine.TradeHistory()
	require.Len(t, h, 3)
	assert.Equal(t, "5", h[0].Amount.String())
	assert.Equal(t, "3", h[2].Amount.String())
}

func TestReset_ForgetsTrades(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(100)})
	_, err := f.engine.Sell(bignum.FromInt64(10))
	require.NoError(t, err)

	f.engine.Reset()

	assert.Empty(t, f.engine.TradeHistory())
}

func TestSell_EmitsEvent(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(10)})

	_, err := f.engine.SellAutomated(bignum.FromInt64(4))
	require.NoError(t, err)

	ev := f.store.Events()[0]
	assert.Equal(t, event.TypeSold, ev.Type)
	sold := ev.Payload.(event.Sold)
	assert.Equal(t, "4", sold.Amount.String())
	assert.True(t, f.engine.TradeHistory()[0].Automated)
}

func TestTickPrice_RevertsTowardTarget(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand(0.5))

	f.engine.TickPrice()
	m := f.store.Market()
	assert.InDelta(t, 1.0, m.CurrentPrice, 1e-12)
	require.Len(t, m.PriceHistory, 1)
	assert.Equal(t, "", m.PriceHistory[0].Condition)

	f.store.UpdateMarket(state.MarketPatch{Condition: &state.Condition{ID: "boom", PriceMultiplier: 1.5}})
	f.engine.TickPrice()
	m = f.store.Market()
	assert.InDelta(t, 1.05, m.CurrentPrice, 1e-12)
	assert.Equal(t, "boom", m.PriceHistory[1].Condition)
}

func TestTickPrice_FloorAndVolume(t *testing.T) {
	cfg := defaultMarket()
	cfg.Volatility = 0.99
	cfg.Reversion = 0
	f := setup(t, cfg, testutil.NewScriptedRand(0))
	f.store.AddResources(state.Resources{Matchsticks: bignum.FromInt64(100)})
	_, err := f.engine.Sell(bignum.FromInt64(40))
	require.NoError(t, err)

	f.engine.TickPrice()
	f.engine.TickPrice()

	m := f.store.Market()
	assert.Equal(t, state.MinMarketPrice, m.CurrentPrice)
	assert.Equal(t, 40.0, m.PriceHistory[0].Volume)
	assert.Equal(t, 0.0, m.PriceHistory[1].Volume)
}

func TestTickPrice_HistoryCapped(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand(0.5))

	for range state.PriceHistoryCap + 7 {
		f.clock.Advance(time.Second)
		f.engine.TickPrice()
	}

	h := f.store.Market().PriceHistory
	require.Len(t, h, state.PriceHistoryCap)
	assert.Equal(t, testutil.Epoch.Add(8*time.Second), h[0].Timestamp)
}

func TestTickCondition_DurationExpiry(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand(0.01))

	f.engine.TickCondition()
	c := f.store.Market().Condition
	require.NotNil(t, c)
	assert.Equal(t, "boom", c.ID)
	assert.Equal(t, testutil.Epoch, c.StartedAt)

	f.clock.Advance(time.Minute)
	f.engine.TickCondition()
	require.NotNil(t, f.store.Market().Condition, "still within duration")

	f.clock.Advance(time.Minute)
	f.engine.TickCondition()
	assert.Nil(t, f.store.Market().Condition)
	assert.Equal(t, event.ConditionEnded{ID: "boom"}, f.store.Events()[0].Payload)
}

func TestTickCondition_RollsInCatalogOrder(t *testing.T) {
	// boom misses (0.9), shortage hits (0.04 < 0.05).
	f := setup(t, defaultMarket(), testutil.NewScriptedRand(0.9, 0.04))

	f.engine.TickCondition()

	c := f.store.Market().Condition
	require.NotNil(t, c)
	assert.Equal(t, "shortage", c.ID)
}

func TestTickCondition_NoneWhenAllMiss(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand(0.99))

	f.engine.TickCondition()

	assert.Nil(t, f.store.Market().Condition)
	assert.Empty(t, f.store.Events())
}

func TestTickCondition_ChanceExpiry(t *testing.T) {
	cfg := defaultMarket()
	cfg.Expiry = config.ExpiryChance
	// start boom, survive one check (0.5 >= 0.1), then expire (0.05 < 0.1)
	f := setup(t, cfg, testutil.NewScriptedRand(0.01, 0.5, 0.05))

	f.engine.TickCondition()
	require.NotNil(t, f.store.Market().Condition)
	f.engine.TickCondition()
	require.NotNil(t, f.store.Market().Condition)
	f.engine.TickCondition()
	assert.Nil(t, f.store.Market().Condition)
}

type fakeTicker struct {
	names     []string
	cancelled int
}

func (f *fakeTicker) Every(name string, _ time.Duration, _ func()) func() {
	f.names = append(f.names, name)
	return func() { f.cancelled++ }
}

func TestStartStop(t *testing.T) {
	f := setup(t, defaultMarket(), testutil.NewScriptedRand())
	tk := &fakeTicker{}

	f.engine.Start(tk)
	f.engine.Stop()

	assert.Equal(t, []string{"market.price", "market.condition"}, tk.names)
	assert.Equal(t, 2, tk.cancelled)
}
