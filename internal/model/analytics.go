package model

import (
	json "github.com/goccy/go-json"
)

// HedgeEstimate describes y ≈ beta*x + intercept between two close series.
// FitQuality is R² for the ols method and a one-step prediction
// approximation for kalman; the two are not comparable across methods.
type HedgeEstimate struct {
	Method       string  `json:"method"`
	Beta         float64 `json:"beta"`
	Intercept    float64 `json:"intercept"`
	FitQuality   float64 `json:"rsq"`
	Observations int     `json:"nobs"`
}

// MarshalJSON renders missing coefficients as null
func (h HedgeEstimate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Method       string   `json:"method"`
		Beta         *float64 `json:"beta"`
		Intercept    *float64 `json:"intercept"`
		FitQuality   *float64 `json:"rsq"`
		Observations int      `json:"nobs"`
	}{
		Method:       h.Method,
		Beta:         nullable(h.Beta),
		Intercept:    nullable(h.Intercept),
		FitQuality:   nullable(h.FitQuality),
		Observations: h.Observations,
	})
}

// ADFResult is the outcome of an augmented Dickey-Fuller test.
// Statistic and PValue are nil when there was not enough data.
type ADFResult struct {
	Statistic *float64 `json:"stat"`
	PValue    *float64 `json:"pvalue"`
	NObs      int      `json:"nobs"`
	UsedLag   int      `json:"used_lag"`
}

// Available reports whether the test produced a statistic
func (r ADFResult) Available() bool {
	return r.Statistic != nil && r.PValue != nil
}

// CorrelationMatrix holds pairwise correlations over the symbols' common timestamps
type CorrelationMatrix struct {
	Symbols      []string    `json:"symbols"`
	Values       [][]float64 `json:"matrix"`
	Observations int         `json:"nobs"`
}

// MarshalJSON renders undefined correlations as null
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = nullable(v)
		}
	}
	symbols := m.Symbols
	if symbols == nil {
		symbols = []string{}
	}
	return json.Marshal(struct {
		Symbols      []string     `json:"symbols"`
		Values       [][]*float64 `json:"matrix"`
		Observations int          `json:"nobs"`
	}{Symbols: symbols, Values: values, Observations: m.Observations})
}

// Empty reports whether no common timestamps survived alignment
func (m CorrelationMatrix) Empty() bool {
	return len(m.Symbols) == 0
}

// PairAnalyticsQuery represents a request for pair analytics
type PairAnalyticsQuery struct {
	SymbolX             string   `form:"x" binding:"required"`
	SymbolY             string   `form:"y" binding:"required"`
	Timeframe           string   `form:"timeframe"`
	Window              int      `form:"roll_window" binding:"omitempty,gte=2,lte=10000"`
	Regression          string   `form:"regression" binding:"omitempty,oneof=ols kalman"`
	MinVolume           float64  `form:"min_volume" binding:"gte=0"`
	Entry               *float64 `form:"entry" binding:"omitempty,gte=0"`
	Exit                *float64 `form:"exit"`
	ProcessVariance     float64  `form:"process_var" binding:"gte=0"`
	ObservationVariance float64  `form:"obs_var" binding:"gte=0"`
	Tail                int      `form:"tail" binding:"gte=0"`
}

// CorrelationMatrixQuery represents a request for a correlation matrix.
// Symbols is comma separated; empty means every known symbol.
type CorrelationMatrixQuery struct {
	Symbols   string  `form:"symbols"`
	Timeframe string  `form:"timeframe"`
	MinVolume float64 `form:"min_volume" binding:"gte=0"`
}

// PairAnalytics is the full analytics payload for one symbol pair
type PairAnalytics struct {
	SymbolX     string           `json:"x"`
	SymbolY     string           `json:"y"`
	Timeframe   string           `json:"timeframe"`
	Window      int              `json:"roll_window"`
	Hedge       HedgeEstimate    `json:"hedge"`
	ADF         ADFResult        `json:"adf"`
	Spread      Series           `json:"spread"`
	ZScore      Series           `json:"zscore"`
	Correlation Series           `json:"corr"`
	Backtest    BacktestResult   `json:"backtest"`
	Alerts      []TriggeredAlert `json:"alerts"`
}
