// Package backtest replays a z-score series through a mean-reversion rule.
package backtest

import (
	"github.com/yourorg/pairs-analytics/internal/model"
)

// Params are the entry and exit thresholds in z units
type Params struct {
	Entry float64
	Exit  float64
}

// DefaultParams returns entry 2.0 and exit 0.0
func DefaultParams() Params {
	return Params{Entry: 2.0, Exit: 0.0}
}

// Simulate walks z in order. From FLAT it goes SHORT above Entry and LONG
// below -Entry; SHORT closes below Exit and LONG closes above -Exit. Closing
// realises the z-score move since entry. Missing points are skipped; every
// other point adds one equity snapshot.
func Simulate(z model.Series, params Params) model.BacktestResult {
	result := model.BacktestResult{
		Trades: []model.BacktestTrade{},
		Equity: model.Series{},
	}

	position := model.PositionFlat
	var entryZ, equity float64

	for _, p := range z {
		v := p.Value
		if model.IsMissing(v) {
			continue
		}

		switch position {
		case model.PositionFlat:
			switch {
			case v > params.Entry:
				position, entryZ = model.PositionShort, v
				result.Trades = append(result.Trades, model.BacktestTrade{Time: p.Time, Side: position, ZScore: v, Equity: equity})
			case v < -params.Entry:
				position, entryZ = model.PositionLong, v
				result.Trades = append(result.Trades, model.BacktestTrade{Time: p.Time, Side: position, ZScore: v, Equity: equity})
			}
		case model.PositionShort:
			if v < params.Exit {
				result.Trades = append(result.Trades, closeTrade(p, entryZ-v, &equity))
				position = model.PositionFlat
			}
		case model.PositionLong:
			if v > -params.Exit {
				result.Trades = append(result.Trades, closeTrade(p, v-entryZ, &equity))
				position = model.PositionFlat
			}
		}

		result.Equity = append(result.Equity, model.Point{Time: p.Time, Value: equity})
	}

	return result
}

func closeTrade(p model.Point, pnl float64, equity *float64) model.BacktestTrade {
	*equity += pnl
	return model.BacktestTrade{
		Time:   p.Time,
		Side:   model.PositionFlat,
		ZScore: p.Value,
		PnL:    &pnl,
		Equity: *equity,
	}
}
