package analytics

import (
	"math"

	"github.com/yourorg/pairs-analytics/internal/model"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minADFObservations is the smallest series ADFTest will run on
const minADFObservations = 10

// MacKinnon (1994, 2010) response surface for one series with a constant
var (
	adfTauMax    = 2.74
	adfTauMin    = -18.83
	adfTauStar   = -1.61
	adfSmallP    = []float64{2.1659, 1.4412, 0.038269}
	adfLargeP    = []float64{1.7339, 0.93202, -0.12745, -0.010368}
	standardNorm = distuv.UnitNormal
)

// ADFTest runs the augmented Dickey-Fuller test with a constant term. The lag
// order is chosen by AIC up to 12*(n/100)^¼. Series shorter than ten defined
// points, or with a degenerate regression, yield a result with nil statistic.
func ADFTest(s model.Series) model.ADFResult {
	x := s.DropMissing().Values()
	n := len(x)
	if n < minADFObservations {
		return model.ADFResult{}
	}

	dx := make([]float64, n-1)
	for i := 1; i < n; i++ {
		dx[i-1] = x[i] - x[i-1]
	}

	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 2; limit < maxLag {
		maxLag = limit
	}
	if maxLag < 0 {
		return model.ADFResult{}
	}

	// choose the lag on a common sample so the criteria are comparable
	bestLag, bestAIC := -1, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		fit, ok := adfRegression(x, dx, lag, maxLag)
		if !ok {
			continue
		}
		if fit.aic < bestAIC {
			bestLag, bestAIC = lag, fit.aic
		}
	}
	if bestLag < 0 {
		return model.ADFResult{}
	}

	fit, ok := adfRegression(x, dx, bestLag, bestLag)
	if !ok {
		return model.ADFResult{}
	}

	stat := fit.tstat
	pvalue := mackinnonP(stat)
	return model.ADFResult{
		Statistic: &stat,
		PValue:    &pvalue,
		NObs:      fit.nobs,
		UsedLag:   bestLag,
	}
}

type olsFit struct {
	tstat float64
	aic   float64
	nobs  int
}

// adfRegression regresses dx[t] on [1, x[t], dx[t-1] .. dx[t-lag]] for
// t = start .. len(dx)-1 and returns the t-statistic of the level term.
func adfRegression(x, dx []float64, lag, start int) (olsFit, bool) {
	rows := len(dx) - start
	cols := 2 + lag
	if rows <= cols {
		return olsFit{}, false
	}

	design := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		y.SetVec(r, dx[t])
		design.Set(r, 0, 1)
		design.Set(r, 1, x[t])
		for k := 1; k <= lag; k++ {
			design.Set(r, 1+k, dx[t-k])
		}
	}

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return olsFit{}, false
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), y)
	var coef mat.VecDense
	coef.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(design, &coef)
	var ssr float64
	for r := 0; r < rows; r++ {
		e := y.AtVec(r) - fitted.AtVec(r)
		ssr += e * e
	}
	if ssr <= 0 || model.IsMissing(ssr) {
		return olsFit{}, false
	}

	nobs := float64(rows)
	sigma2 := ssr / float64(rows-cols)
	se := math.Sqrt(sigma2 * inv.At(1, 1))
	if se == 0 || model.IsMissing(se) {
		return olsFit{}, false
	}

	llf := -nobs / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nobs) + 1)
	return olsFit{
		tstat: coef.AtVec(1) / se,
		aic:   -2*llf + 2*float64(cols),
		nobs:  rows,
	}, true
}

// mackinnonP approximates the p-value of an ADF statistic
func mackinnonP(tau float64) float64 {
	switch {
	case tau > adfTauMax:
		return 1
	case tau < adfTauMin:
		return 0
	case tau <= adfTauStar:
		return standardNorm.CDF(polyval(adfSmallP, tau))
	default:
		return standardNorm.CDF(polyval(adfLargeP, tau))
	}
}

// polyval evaluates c[0] + c[1]*t + c[2]*t² + ...
func polyval(c []float64, t float64) float64 {
	var out float64
	for i := len(c) - 1; i >= 0; i-- {
		out = out*t + c[i]
	}
	return out
}
