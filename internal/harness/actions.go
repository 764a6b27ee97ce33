package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/matchstick/internal/automation"
	"github.com/roach88/matchstick/internal/bignum"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/game"
	"github.com/roach88/matchstick/internal/market"
	"github.com/roach88/matchstick/internal/state"
)

// Perform applies one named action to g and returns its result fields.
// Game failures are returned as-is; a malformed action or argument returns
// an error for which IsArgError is true.
func Perform(ctx context.Context, g *game.Game, action string, params map[string]any) (map[string]any, error) {
	a := args(params)

	switch action {
	case ActionProduce:
		clicks, err := a.int("clicks", 1)
		if err != nil {
			return nil, err
		}
		r, err := g.Production().Produce(clicks)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"produced": r.Produced.String(),
			"combo":    r.ComboCount,
		}, nil

	case ActionSell:
		amount, err := a.bigint("amount")
		if err != nil {
			return nil, err
		}
		t, err := g.Market().Sell(amount)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"amount":         t.Amount.String(),
			"price_per_unit": t.PricePerUnit,
			"revenue":        t.Revenue,
			"price_after":    t.PriceAfter,
		}, nil

	case ActionBuyAutoClicker, ActionBuyFacility:
		id, err := a.string("id")
		if err != nil {
			return nil, err
		}
		buy := g.Automation().BuyAutoClicker
		if action == ActionBuyFacility {
			buy = g.Automation().BuyFacility
		}
		p, err := buy(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID, "count": p.Count, "cost": p.Cost}, nil

	case ActionSetAutoSell:
		current := g.Store().Automation().AutoSell
		s := state.AutoSellSettings{
			Enabled:      a.boolOr("enabled", current.Enabled),
			Threshold:    a.floatOr("threshold", current.Threshold),
			Percentage:   a.floatOr("percentage", current.Percentage),
			MinPrice:     a.floatOr("min_price", current.MinPrice),
			MaxPerSecond: a.floatOr("max_per_second", current.MaxPerSecond),
		}
		return nil, g.Automation().SetAutoSell(s)

	case ActionTick:
		name, err := a.string("name")
		if err != nil {
			return nil, err
		}
		tick, ok := Ticks(g)[name]
		if !ok {
			return nil, &argError{fmt.Sprintf("unknown tick %q", name)}
		}
		tick()
		return nil, nil

	case ActionCheck:
		unlocks := g.Achievements().CheckAll()
		ids := make([]any, len(unlocks))
		for i, u := range unlocks {
			ids[i] = u.ID
		}
		return map[string]any{"unlocked": ids}, nil

	case ActionSave:
		name, _ := a.string("name")
		info, err := g.Save(ctx, name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": info.ID}, nil

	case ActionLoadLatest:
		info, ok, err := g.LoadLatest(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Validation(errs.CodeNotFound, "no saves")
		}
		return map[string]any{"id": info.ID}, nil

	case ActionNewGame:
		g.NewGame()
		return nil, nil

	case ActionWait:
		return nil, nil
	}
	return nil, &argError{fmt.Sprintf("unknown action %q", action)}
}

// Ticks maps scheduler job names to the tick functions they run.
func Ticks(g *game.Game) map[string]func() {
	m, a := g.Market(), g.Automation()
	return map[string]func(){
		market.TickNamePrice:           m.TickPrice,
		market.TickNameCondition:       m.TickCondition,
		automation.TickNameAutoClick:   a.TickAutoClick,
		automation.TickNameProduction:  a.TickProduction,
		automation.TickNameAutoSell:    a.TickAutoSell,
		automation.TickNameMaintenance: a.TickMaintenance,
	}
}

// argError reports a malformed step. It aborts the run rather than being
// recorded as a game outcome.
type argError struct{ msg string }

func (e *argError) Error() string { return e.msg }

// IsArgError reports whether err came from a malformed action.
func IsArgError(err error) bool {
	var bad *argError
	return errors.As(err, &bad)
}

type args map[string]any

func (a args) string(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", &argError{fmt.Sprintf("missing arg %q", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{fmt.Sprintf("arg %q: want string, got %T", key, v)}
	}
	return s, nil
}

func (a args) int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n == math.Trunc(n) && n > -(1<<53) && n < 1<<53 {
			return int(n), nil
		}
		return 0, &argError{fmt.Sprintf("arg %q: %v is not an integer in range", key, n)}
	}
	return 0, &argError{fmt.Sprintf("arg %q: want integer, got %T", key, v)}
}

// bigint accepts YAML integers and decimal strings.
func (a args) bigint(key string) (bignum.Int, error) {
	v, ok := a[key]
	if !ok {
		return bignum.Int{}, &argError{fmt.Sprintf("missing arg %q", key)}
	}
	switch n := v.(type) {
	case int:
		return bignum.FromInt64(int64(n)), nil
	case float64:
		if n == math.Trunc(n) && n >= 0 && n < 1<<53 {
			return bignum.FromInt64(int64(n)), nil
		}
	case string:
		b, err := bignum.Parse(n)
		if err != nil {
			return bignum.Int{}, &argError{fmt.Sprintf("arg %q: %v", key, err)}
		}
		return b, nil
	}
	return bignum.Int{}, &argError{fmt.Sprintf("arg %q: want integer, got %v", key, v)}
}

func (a args) floatOr(key string, def float64) float64 {
	switch n := a[key].(type) {
	case int:
		return float64(n)
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

func (a args) boolOr(key string, def bool) bool {
	if b, ok := a[key].(bool); ok {
		return b
	}
	return def
}
