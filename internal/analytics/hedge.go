package analytics

import (
	"fmt"
	"strings"

	"github.com/yourorg/pairs-analytics/internal/model"

	"gonum.org/v1/gonum/stat"
)

// HedgeMethod selects the hedge-ratio estimator
type HedgeMethod string

const (
	HedgeOLS    HedgeMethod = "ols"
	HedgeKalman HedgeMethod = "kalman"
)

// ParseHedgeMethod maps a request value to a method, defaulting to ols
func ParseHedgeMethod(s string) (HedgeMethod, error) {
	switch HedgeMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", HedgeOLS:
		return HedgeOLS, nil
	case HedgeKalman:
		return HedgeKalman, nil
	default:
		return "", fmt.Errorf("unknown hedge method %q", s)
	}
}

// KalmanParams are the filter's noise variances
type KalmanParams struct {
	ProcessVariance     float64
	ObservationVariance float64
}

// DefaultKalmanParams returns the variances used when none are supplied
func DefaultKalmanParams() KalmanParams {
	return KalmanParams{ProcessVariance: 1e-5, ObservationVariance: 1e-3}
}

// EstimateHedgeRatio runs the estimator selected by method
func EstimateHedgeRatio(method HedgeMethod, y, x model.Series, params KalmanParams) (model.HedgeEstimate, error) {
	switch method {
	case HedgeKalman:
		return HedgeRatioKalman(y, x, params)
	case HedgeOLS, "":
		return HedgeRatioOLS(y, x)
	default:
		return model.HedgeEstimate{}, fmt.Errorf("unknown hedge method %q", method)
	}
}

// HedgeRatioOLS fits y = beta*x + intercept by least squares over the aligned
// rows. FitQuality is the coefficient of determination. A flat x is a
// singular regression: the estimate comes back with missing coefficients.
func HedgeRatioOLS(y, x model.Series) (model.HedgeEstimate, error) {
	al := align(y, x)
	if al.len() < 2 {
		return model.HedgeEstimate{}, ErrInsufficientData
	}
	if stat.Variance(al.b, nil) == 0 {
		return model.HedgeEstimate{
			Method:       string(HedgeOLS),
			Beta:         model.Missing(),
			Intercept:    model.Missing(),
			FitQuality:   model.Missing(),
			Observations: al.len(),
		}, nil
	}

	intercept, beta := stat.LinearRegression(al.b, al.a, nil, false)
	rsq := stat.RSquared(al.b, al.a, nil, intercept, beta)
	if model.IsMissing(rsq) {
		rsq = 0
	}

	return model.HedgeEstimate{
		Method:       string(HedgeOLS),
		Beta:         beta,
		Intercept:    intercept,
		FitQuality:   rsq,
		Observations: al.len(),
	}, nil
}

// HedgeRatioKalman tracks [intercept, beta] with a random-walk state and the
// observation y_t = intercept + beta*x_t. It returns the final state.
// FitQuality is 1 - Σ(one-step residual²) / Σ(y - ȳ)², or 0 when y is flat.
// Non-positive variances fall back to DefaultKalmanParams.
func HedgeRatioKalman(y, x model.Series, params KalmanParams) (model.HedgeEstimate, error) {
	al := align(y, x)
	if al.len() < 2 {
		return model.HedgeEstimate{}, ErrInsufficientData
	}

	defaults := DefaultKalmanParams()
	q := params.ProcessVariance
	if q <= 0 || model.IsMissing(q) {
		q = defaults.ProcessVariance
	}
	r := params.ObservationVariance
	if r <= 0 || model.IsMissing(r) {
		r = defaults.ObservationVariance
	}

	// state and symmetric covariance
	var intercept, beta float64
	p00, p01, p11 := 1.0, 0.0, 1.0

	var sse float64
	for i, xt := range al.b {
		p00 += q
		p11 += q

		e := al.a[i] - (intercept + beta*xt)
		sse += e * e

		// P·Hᵀ with H = [1, x]
		ph0 := p00 + p01*xt
		ph1 := p01 + p11*xt
		s := ph0 + ph1*xt + r
		if s <= 0 || model.IsMissing(s) {
			continue
		}
		k0, k1 := ph0/s, ph1/s

		intercept += k0 * e
		beta += k1 * e

		p00 -= k0 * ph0
		p01 -= k0 * ph1
		p11 -= k1 * ph1
	}

	var fit float64
	mean := stat.Mean(al.a, nil)
	var sst float64
	for _, v := range al.a {
		sst += (v - mean) * (v - mean)
	}
	if sst > 0 {
		fit = 1 - sse/sst
	}

	return model.HedgeEstimate{
		Method:       string(HedgeKalman),
		Beta:         beta,
		Intercept:    intercept,
		FitQuality:   fit,
		Observations: al.len(),
	}, nil
}

// ComputeSpread returns y - (beta*x + intercept) over the aligned rows
func ComputeSpread(y, x model.Series, beta, intercept float64) model.Series {
	al := align(y, x)
	out := make(model.Series, al.len())
	for i := range al.times {
		out[i] = model.Point{Time: al.times[i], Value: al.a[i] - (beta*al.b[i] + intercept)}
	}
	return out
}
