package analytics

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func seriesOf(values ...float64) model.Series {
	out := make(model.Series, len(values))
	for i, v := range values {
		out[i] = model.Point{Time: start.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return out
}

func randomWalk(rng *rand.Rand, n int) model.Series {
	values := make([]float64, n)
	v := 100.0
	for i := range values {
		v += rng.NormFloat64()
		values[i] = v
	}
	return seriesOf(values...)
}

func TestAlignInnerJoin(t *testing.T) {
	a := seriesOf(1, 2, 3, 4)
	b := model.Series{
		{Time: start.Add(time.Minute), Value: 20},
		{Time: start.Add(2 * time.Minute), Value: math.NaN()},
		{Time: start.Add(3 * time.Minute), Value: 40},
		{Time: start.Add(time.Hour), Value: 99},
	}

	al := align(a, b)
	require.Equal(t, 2, al.len())
	assert.Equal(t, []float64{2, 4}, al.a)
	assert.Equal(t, []float64{20, 40}, al.b)
}

func TestHedgeRatioOLSIdentity(t *testing.T) {
	s := randomWalk(rand.New(rand.NewSource(1)), 200)

	est, err := HedgeRatioOLS(s, s)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, est.Beta, 1e-9)
	assert.InDelta(t, 0.0, est.Intercept, 1e-6)
	assert.InDelta(t, 1.0, est.FitQuality, 1e-9)
	assert.Equal(t, 200, est.Observations)
	assert.Equal(t, "ols", est.Method)
}

func TestHedgeRatioOLSLinear(t *testing.T) {
	x := randomWalk(rand.New(rand.NewSource(2)), 100)
	y := make(model.Series, len(x))
	for i, p := range x {
		y[i] = model.Point{Time: p.Time, Value: 3*p.Value - 7}
	}

	est, err := HedgeRatioOLS(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, est.Beta, 1e-9)
	assert.InDelta(t, -7.0, est.Intercept, 1e-6)
}

func TestHedgeRatioInsufficientData(t *testing.T) {
	_, err := HedgeRatioOLS(seriesOf(1), seriesOf(1))
	assert.True(t, errors.Is(err, ErrInsufficientData))


	_, err = HedgeRatioKalman(seriesOf(), seriesOf(), DefaultKalmanParams())
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestHedgeRatioOLSFlatX(t *testing.T) {
	y, x := seriesOf(1, 2, 3), seriesOf(5, 5, 5)

	est, err := HedgeRatioOLS(y, x)
	require.NoError(t, err)
	assert.True(t, model.IsMissing(est.Beta))
	assert.True(t, model.IsMissing(est.Intercept))
	assert.True(t, model.IsMissing(est.FitQuality))
	assert.Equal(t, 3, est.Observations)

	spread := ComputeSpread(y, x, est.Beta, est.Intercept)
	require.Len(t, spread, 3)
	assert.Empty(t, spread.DropMissing())
}

func TestHedgeRatioKalmanConverges(t *testing.T) {
	n := 1000
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = 50 + 10*math.Sin(float64(i)/5)
		ys[i] = 2*xs[i] + 1
	}

	est, err := HedgeRatioKalman(seriesOf(ys...), seriesOf(xs...), DefaultKalmanParams())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, est.Beta, 0.01)
	assert.InDelta(t, 1.0, est.Intercept, 0.5)
	assert.Greater(t, est.FitQuality, 0.8)
	assert.Equal(t, "kalman", est.Method)
}

func TestHedgeRatioKalmanFlatY(t *testing.T) {
	est, err := HedgeRatioKalman(seriesOf(5, 5, 5, 5), seriesOf(1, 2, 3, 4), KalmanParams{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.FitQuality)
}

func TestEstimateHedgeRatioDispatch(t *testing.T) {
	s := randomWalk(rand.New(rand.NewSource(3)), 50)

	ols, err := EstimateHedgeRatio(HedgeOLS, s, s, KalmanParams{})
	require.NoError(t, err)
	assert.Equal(t, "ols", ols.Method)

	kf, err := EstimateHedgeRatio(HedgeKalman, s, s, KalmanParams{})
	require.NoError(t, err)
	assert.Equal(t, "kalman", kf.Method)

	_, err = EstimateHedgeRatio("lasso", s, s, KalmanParams{})
	assert.Error(t, err)
}

func TestParseHedgeMethod(t *testing.T) {
	m, err := ParseHedgeMethod("")
	require.NoError(t, err)
	assert.Equal(t, HedgeOLS, m)

	m, err = ParseHedgeMethod(" Kalman ")
	require.NoError(t, err)
	assert.Equal(t, HedgeKalman, m)

	_, err = ParseHedgeMethod("ridge")
	assert.Error(t, err)
}

func TestComputeSpreadAgainstItself(t *testing.T) {
	s := randomWalk(rand.New(rand.NewSource(4)), 30)

	spread := ComputeSpread(s, s, 1, 0)
	require.Len(t, spread, 30)
	for _, p := range spread {
		assert.Equal(t, 0.0, p.Value)
	}

	assert.Empty(t, ComputeSpread(nil, s, 1, 0))
}

func TestRollingZScorePrefixMissing(t *testing.T) {
	s := randomWalk(rand.New(rand.NewSource(5)), 40)
	window := 10

	z := RollingZScore(s, window)
	require.Len(t, z, 40)
	for i, p := range z {
		if i < window-1 {
			assert.True(t, model.IsMissing(p.Value), "point %d must be missing", i)
		} else {
			assert.False(t, model.IsMissing(p.Value), "point %d must be defined", i)
		}
	}
}

func TestRollingZScoreValues(t *testing.T) {
	z := RollingZScore(seriesOf(1, 2, 3, 4), 3)

	// window [2,3,4]: mean 3, sample std 1
	assert.InDelta(t, 1.0, z[3].Value, 1e-12)
	assert.InDelta(t, 1.0, z[2].Value, 1e-12)
}

func TestRollingZScoreZeroStd(t *testing.T) {
	z := RollingZScore(seriesOf(5, 5, 5, 6), 3)
	assert.True(t, model.IsMissing(z[2].Value), "flat window has no z-score")
	assert.False(t, model.IsMissing(z[3].Value))
}

func TestRollingZScoreMissingInWindow(t *testing.T) {
	z := RollingZScore(seriesOf(1, math.NaN(), 3, 4, 5, 6), 3)
	assert.True(t, model.IsMissing(z[2].Value))
	assert.True(t, model.IsMissing(z[3].Value))
	assert.False(t, model.IsMissing(z[4].Value))
}

func TestRollingCorrelation(t *testing.T) {
	a := seriesOf(1, 2, 3, 4, 5, 6)
	b := seriesOf(2, 4, 6, 8, 10, 12)
	c := seriesOf(6, 5, 4, 3, 2, 1)

	pos := RollingCorrelation(a, b, 3)
	require.Len(t, pos, 6)
	assert.True(t, model.IsMissing(pos[0].Value))
	assert.True(t, model.IsMissing(pos[1].Value))
	assert.InDelta(t, 1.0, pos[5].Value, 1e-12)

	neg := RollingCorrelation(a, c, 3)
	assert.InDelta(t, -1.0, neg[5].Value, 1e-12)

	flat := RollingCorrelation(a, seriesOf(1, 1, 1, 1, 1, 1), 3)
	assert.True(t, model.IsMissing(flat[5].Value))
}

func TestADFInsufficientData(t *testing.T) {
	res := ADFTest(seriesOf(1, 2, 3, 4, 5, 6, 7, 8, 9))
	assert.False(t, res.Available())
	assert.Nil(t, res.Statistic)
	assert.Nil(t, res.PValue)
	assert.Equal(t, 0, res.NObs)
}

func TestADFWhiteNoiseIsStationary(t *testing.T) {
	stationary := 0
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		values := make([]float64, 200)
		for i := range values {
			values[i] = rng.NormFloat64()
		}
		res := ADFTest(seriesOf(values...))
		require.True(t, res.Available())
		if *res.PValue < 0.05 {
			stationary++
		}
	}
	assert.Greater(t, stationary, 10)
}

func TestADFRandomWalkIsNotStationary(t *testing.T) {
	res := ADFTest(randomWalk(rand.New(rand.NewSource(11)), 500))
	require.True(t, res.Available())
	assert.Greater(t, *res.PValue, 0.01)
	assert.Greater(t, res.NObs, 400)
	assert.GreaterOrEqual(t, res.UsedLag, 0)
}

func TestMackinnonPBounds(t *testing.T) {
	assert.Equal(t, 1.0, mackinnonP(3))
	assert.Equal(t, 0.0, mackinnonP(-20))

	// the two response surfaces meet at tau*
	assert.InDelta(t, mackinnonP(adfTauStar), mackinnonP(adfTauStar+1e-9), 1e-3)
	assert.InDelta(t, 0.05, mackinnonP(-2.86), 0.01)
}

func TestCorrelationMatrix(t *testing.T) {
	m := CorrelationMatrix(map[string]model.Series{
		"eth": seriesOf(2, 4, 6, 8, math.NaN()),
		"btc": seriesOf(1, 2, 3, 4, 5),
		"sol": seriesOf(4, 3, 2, 1, 0),
	})

	require.Equal(t, []string{"btc", "eth", "sol"}, m.Symbols)
	assert.Equal(t, 4, m.Observations, "the row with a missing eth value is dropped for every symbol")
	assert.InDelta(t, 1.0, m.Values[0][0], 1e-12)
	assert.InDelta(t, 1.0, m.Values[0][1], 1e-12)
	assert.InDelta(t, -1.0, m.Values[0][2], 1e-12)
	assert.Equal(t, m.Values[1][2], m.Values[2][1])
}

func TestCorrelationMatrixNoOverlap(t *testing.T) {
	late := model.Series{{Time: start.Add(24 * time.Hour), Value: 1}}
	m := CorrelationMatrix(map[string]model.Series{
		"btc": seriesOf(1, 2, 3),
		"eth": late,
	})
	assert.True(t, m.Empty())

	assert.True(t, CorrelationMatrix(nil).Empty())
}
