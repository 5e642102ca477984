package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func zscores(values ...float64) model.Series {
	out := make(model.Series, len(values))
	for i, v := range values {
		out[i] = model.Point{Time: start.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return out
}

func TestSimulateShortRoundTrip(t *testing.T) {
	res := Simulate(zscores(0, 2.5, 2.5, -0.1, 0.3), DefaultParams())

	require.Len(t, res.Trades, 2)
	assert.Equal(t, model.PositionShort, res.Trades[0].Side)
	assert.Equal(t, 2.5, res.Trades[0].ZScore)
	assert.Equal(t, start.Add(time.Minute), res.Trades[0].Time)
	assert.Nil(t, res.Trades[0].PnL)

	exit := res.Trades[1]
	assert.Equal(t, model.PositionFlat, exit.Side)
	require.NotNil(t, exit.PnL)
	assert.InDelta(t, 2.6, *exit.PnL, 1e-12)
	assert.InDelta(t, 2.6, exit.Equity, 1e-12)

	require.Len(t, res.Equity, 5)
	assert.Equal(t, []float64{0, 0, 0, 2.6, 2.6}, roundAll(res.Equity.Values()))
}

func TestSimulateLongRoundTrip(t *testing.T) {
	res := Simulate(zscores(-2.2, -1.0, 0.5), DefaultParams())

	require.Len(t, res.Trades, 2)
	assert.Equal(t, model.PositionLong, res.Trades[0].Side)
	require.NotNil(t, res.Trades[1].PnL)
	assert.InDelta(t, -1.0-(-2.2), *res.Trades[1].PnL, 1e-12)
}

func TestSimulateAccumulatesEquity(t *testing.T) {
	res := Simulate(zscores(3, -1, -3, 1), DefaultParams())

	require.Len(t, res.Trades, 4)
	assert.InDelta(t, 4.0, res.Trades[1].Equity, 1e-12)
	assert.InDelta(t, 8.0, res.Trades[3].Equity, 1e-12)
	assert.InDelta(t, 8.0, res.Equity[3].Value, 1e-12)
}

func TestSimulateSkipsMissing(t *testing.T) {
	res := Simulate(zscores(math.NaN(), 2.5, math.NaN(), -0.5), DefaultParams())
	assert.Len(t, res.Equity, 2)
	assert.Len(t, res.Trades, 2)
}

func TestSimulateCustomThresholds(t *testing.T) {
	res := Simulate(zscores(1.5, 0.8, 0.4), Params{Entry: 1, Exit: 0.5})

	require.Len(t, res.Trades, 2)
	assert.Equal(t, start.Add(2*time.Minute), res.Trades[1].Time, "0.8 is still above the exit threshold")
}

func TestSimulateEmpty(t *testing.T) {
	res := Simulate(nil, DefaultParams())
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.Equity)
	assert.NotNil(t, res.Trades)
}

func roundAll(values []float64) []float64 {
	for i, v := range values {
		values[i] = math.Round(v*1e9) / 1e9
	}
	return values
}
