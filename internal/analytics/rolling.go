package analytics

import (
	"github.com/yourorg/pairs-analytics/internal/model"

	"gonum.org/v1/gonum/stat"
)

// RollingZScore standardises each point against the trailing window ending at
// it. The first window-1 points, windows containing a missing value and
// windows with zero standard deviation are missing.
func RollingZScore(s model.Series, window int) model.Series {
	out := make(model.Series, len(s))
	values := s.Values()
	for i, p := range s {
		out[i] = model.Point{Time: p.Time, Value: model.Missing()}
		win, ok := trailing(values, i, window)
		if !ok {
			continue
		}
		mean, std := stat.MeanStdDev(win, nil)
		if std == 0 || model.IsMissing(std) {
			continue
		}
		out[i].Value = (p.Value - mean) / std
	}
	return out
}

// RollingCorrelation is the trailing-window Pearson correlation of a and b
// over their aligned rows, indexed by a's timestamps.
func RollingCorrelation(a, b model.Series, window int) model.Series {
	al := align(a, b)
	out := make(model.Series, al.len())
	for i, ts := range al.times {
		out[i] = model.Point{Time: ts, Value: model.Missing()}
		wa, ok := trailing(al.a, i, window)
		if !ok {
			continue
		}
		wb, _ := trailing(al.b, i, window)
		out[i].Value = correlation(wa, wb)
	}
	return out
}

// trailing returns values[i-window+1 : i+1] when the window is full and defined
func trailing(values []float64, i, window int) ([]float64, bool) {
	if window < 2 || i+1 < window {
		return nil, false
	}
	win := values[i+1-window : i+1]
	for _, v := range win {
		if model.IsMissing(v) {
			return nil, false
		}
	}
	return win, true
}

// correlation is Pearson's r, missing when either side is constant
func correlation(a, b []float64) float64 {
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return model.Missing()
	}
	r := stat.Correlation(a, b, nil)
	if model.IsMissing(r) {
		return model.Missing()
	}
	return r
}
