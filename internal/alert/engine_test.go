package alert

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rule(metric, op string, threshold float64) model.AlertRule {
	return model.AlertRule{SymbolX: "a", SymbolY: "b", Metric: metric, Op: op, Threshold: threshold}
}

func TestEvaluateScenario(t *testing.T) {
	e := NewEngine(zap.NewNop())
	added, err := e.AddRule(rule(model.MetricZScore, ">", 2.0))
	require.NoError(t, err)
	require.Equal(t, 1, added.ID)

	ctx := model.AlertContext{"x": "a", "y": "b"}

	hits := e.Evaluate("zscore", 2.1, ctx)
	require.Len(t, hits, 1)
	assert.Equal(t, added.ID, hits[0].Rule.ID)
	assert.Equal(t, "Rule 1: a/b zscore > 2.0 -> value=2.1000", hits[0].Message)
	assert.Equal(t, 2.1, hits[0].Value)
	assert.Equal(t, ctx, hits[0].Context)

	assert.Empty(t, e.Evaluate("zscore", 1.9, ctx))
	assert.Empty(t, e.Evaluate("spread", 3.0, ctx), "metric must match")
}

func TestEvaluateIsStateless(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.AddRule(rule(model.MetricSpread, "<", -1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Len(t, e.Evaluate("spread", -2, nil), 1, "no cooldown between evaluations")
	}
	assert.Empty(t, e.Evaluate("spread", math.NaN(), nil))
}

func TestRuleIDsNeverReused(t *testing.T) {
	e := NewEngine(nil)
	for i := 0; i < 3; i++ {
		_, err := e.AddRule(rule(model.MetricZScore, ">", float64(i)))
		require.NoError(t, err)
	}

	removed, ok := e.RemoveRule(2)
	require.True(t, ok)
	assert.Equal(t, 2, removed.ID)

	fourth, err := e.AddRule(rule(model.MetricZScore, ">", 9))
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.ID)

	var ids []int
	for _, r := range e.ListRules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 3, 4}, ids)
}

func TestRemoveUnknownRule(t *testing.T) {
	e := NewEngine(nil)
	_, ok := e.RemoveRule(42)
	assert.False(t, ok)

	_, err := e.AddRule(rule(model.MetricZScore, ">", 1))
	require.NoError(t, err)
	_, ok = e.RemoveRule(1)
	assert.True(t, ok)
	_, ok = e.RemoveRule(1)
	assert.False(t, ok, "second removal finds nothing")
}

func TestAddRuleValidation(t *testing.T) {
	e := NewEngine(nil)

	cases := []model.AlertRule{
		rule("volume", ">", 1),
		rule(model.MetricZScore, ">=", 1),
		{SymbolY: "b", Metric: model.MetricZScore, Op: ">"},
		rule(model.MetricZScore, ">", math.NaN()),
	}
	for _, c := range cases {
		_, err := e.AddRule(c)
		assert.True(t, errors.Is(err, ErrInvalidRule), "rule %+v", c)
	}
	assert.Empty(t, e.ListRules())

	ok, err := e.AddRule(rule(model.MetricZScore, ">", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, ok.ID, "rejected rules do not consume ids")
}

func TestAddRuleNormalizesSymbols(t *testing.T) {
	e := NewEngine(nil)
	r, err := e.AddRule(model.AlertRule{SymbolX: " BTCUSDT", SymbolY: "EthUsdt", Metric: "zscore", Op: "<", Threshold: -2})
	require.NoError(t, err)
	assert.Equal(t, "btcusdt", r.SymbolX)
	assert.Equal(t, "ethusdt", r.SymbolY)
}

func TestEvaluatePair(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.AddRule(rule(model.MetricZScore, ">", 1))
	require.NoError(t, err)
	_, err = e.AddRule(model.AlertRule{SymbolX: "c", SymbolY: "d", Metric: "zscore", Op: ">", Threshold: 1})
	require.NoError(t, err)

	hits := e.EvaluatePair("A", "B", "zscore", 5, nil)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Rule.ID)

	assert.Len(t, e.Evaluate("zscore", 5, nil), 2)
}

func TestEngineConcurrentAccess(t *testing.T) {
	e := NewEngine(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r, err := e.AddRule(rule(model.MetricZScore, ">", 0))
				if err != nil {
					t.Error(err)
					return
				}
				e.Evaluate("zscore", 1, nil)
				e.RemoveRule(r.ID)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, e.ListRules())
	r, err := e.AddRule(rule(model.MetricZScore, ">", 0))
	require.NoError(t, err)
	assert.Equal(t, 401, r.ID)
}

func TestFormatThreshold(t *testing.T) {
	cases := map[float64]string{
		2:       "2.0",
		-1000:   "-1000.0",
		0:       "0.0",
		2.5:     "2.5",
		0.00001: "0.00001",
		1e21:    "1000000000000000000000.0",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatThreshold(in))
	}
}
