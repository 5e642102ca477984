package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yourorg/pairs-analytics/internal/alert"
	"github.com/yourorg/pairs-analytics/internal/analytics"
	"github.com/yourorg/pairs-analytics/internal/backtest"
	"github.com/yourorg/pairs-analytics/internal/config"
	"github.com/yourorg/pairs-analytics/internal/metrics"
	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/notify"
	"github.com/yourorg/pairs-analytics/internal/store"

	"go.uber.org/zap"
)

// AnalyticsService computes pair statistics over the store's bars and feeds
// the latest values to the alert engine
type AnalyticsService struct {
	store    *store.Store
	alerts   *alert.Engine
	notifier notify.Notifier
	defaults config.AnalyticsConfig
	logger   *zap.Logger
}

// NewAnalyticsService creates a new analytics service. notifier may be nil.
func NewAnalyticsService(
	st *store.Store,
	alerts *alert.Engine,
	notifier notify.Notifier,
	defaults config.AnalyticsConfig,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		store:    st,
		alerts:   alerts,
		notifier: notifier,
		defaults: defaults,
		logger:   logger,
	}
}

// pairRun carries the resolved request and the untrimmed series
type pairRun struct {
	x, y      string
	timeframe model.Timeframe
	window    int
	hedge     model.HedgeEstimate
	spread    model.Series
	zscore    model.Series
	corr      model.Series
}

// PairAnalytics runs the full pair pipeline: hedge ratio, spread, rolling
// z-score, ADF on the spread, rolling correlation and the backtest. The
// latest z-score and spread are matched against the pair's alert rules.
func (s *AnalyticsService) PairAnalytics(ctx context.Context, q *model.PairAnalyticsQuery) (*model.PairAnalytics, error) {
	defer observe("pair")()

	run, err := s.runPair(q)
	if err != nil {
		return nil, err
	}

	params := backtest.Params{Entry: s.defaults.Entry, Exit: s.defaults.Exit}
	if q.Entry != nil {
		params.Entry = *q.Entry
	}
	if q.Exit != nil {
		params.Exit = *q.Exit
	}

	tail := q.Tail
	if tail <= 0 {
		tail = s.defaults.Tail
	}

	result := &model.PairAnalytics{
		SymbolX:     run.x,
		SymbolY:     run.y,
		Timeframe:   run.timeframe.String(),
		Window:      run.window,
		Hedge:       run.hedge,
		ADF:         analytics.ADFTest(run.spread),
		Spread:      run.spread.DropMissing().Tail(tail),
		ZScore:      run.zscore.DropMissing().Tail(tail),
		Correlation: run.corr.DropMissing().Tail(tail),
		Backtest:    backtest.Simulate(run.zscore, params),
	}
	result.Alerts = s.evaluateAlerts(ctx, run)

	return result, nil
}

// ExportPairCSV writes the full spread, z-score and correlation series for
// the pair as CSV. Undefined values are empty cells.
func (s *AnalyticsService) ExportPairCSV(w io.Writer, q *model.PairAnalyticsQuery) error {
	defer observe("pair_export")()

	run, err := s.runPair(q)
	if err != nil {
		return err
	}

	corr := make(map[int64]float64, len(run.corr))
	for _, p := range run.corr {
		corr[p.Time.UnixNano()] = p.Value
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "spread", "zscore", "corr"}); err != nil {
		return err
	}
	for i, p := range run.spread {
		c, ok := corr[p.Time.UnixNano()]
		if !ok {
			c = model.Missing()
		}
		record := []string{
			p.Time.UTC().Format(time.RFC3339Nano),
			formatFloat(p.Value),
			formatFloat(run.zscore[i].Value),
			formatFloat(c),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CorrelationMatrix correlates the close series of the requested symbols,
// or of every known symbol when none are given
func (s *AnalyticsService) CorrelationMatrix(q *model.CorrelationMatrixQuery) (model.CorrelationMatrix, error) {
	defer observe("corr_matrix")()

	tf, err := parseTimeframe(q.Timeframe, s.defaults.Timeframe)
	if err != nil {
		return model.CorrelationMatrix{}, err
	}

	symbols := splitSymbols(q.Symbols)
	if len(symbols) == 0 {
		symbols = s.store.KnownSymbols()
	}

	closes := make(map[string]model.Series, len(symbols))
	for _, symbol := range symbols {
		bars, ok := s.store.ExportResampled(symbol, tf)
		if !ok || len(bars) == 0 {
			continue
		}
		closes[symbol] = model.Closes(model.FilterMinVolume(bars, q.MinVolume))
	}
	if len(closes) < 2 {
		return model.CorrelationMatrix{}, fmt.Errorf("%w: need at least two symbols with bars", ErrNoData)
	}

	return analytics.CorrelationMatrix(closes), nil
}

func (s *AnalyticsService) runPair(q *model.PairAnalyticsQuery) (*pairRun, error) {
	run := &pairRun{
		x:      model.NormalizeSymbol(q.SymbolX),
		y:      model.NormalizeSymbol(q.SymbolY),
		window: q.Window,
	}
	if run.window <= 0 {
		run.window = s.defaults.Window
	}

	var err error
	if run.timeframe, err = parseTimeframe(q.Timeframe, s.defaults.Timeframe); err != nil {
		return nil, err
	}

	method, err := analytics.ParseHedgeMethod(q.Regression)
	if err != nil {
		return nil, err
	}

	xs, err := s.closes(run.x, run.timeframe, q.MinVolume)
	if err != nil {
		return nil, err
	}
	ys, err := s.closes(run.y, run.timeframe, q.MinVolume)
	if err != nil {
		return nil, err
	}

	params := analytics.KalmanParams{
		ProcessVariance:     firstPositive(q.ProcessVariance, s.defaults.ProcessVariance),
		ObservationVariance: firstPositive(q.ObservationVariance, s.defaults.ObservationVariance),
	}
	if run.hedge, err = analytics.EstimateHedgeRatio(method, ys, xs, params); err != nil {
		return nil, err
	}

	run.spread = analytics.ComputeSpread(ys, xs, run.hedge.Beta, run.hedge.Intercept)
	run.zscore = analytics.RollingZScore(run.spread, run.window)
	run.corr = analytics.RollingCorrelation(xs, ys, run.window)

	return run, nil
}

func (s *AnalyticsService) closes(symbol string, tf model.Timeframe, minVolume float64) (model.Series, error) {
	bars, ok := s.store.ExportResampled(symbol, tf)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	return model.Closes(model.FilterMinVolume(bars, minVolume)), nil
}

// evaluateAlerts matches the newest defined z-score and spread. Delivery to
// the notifier is best effort.
func (s *AnalyticsService) evaluateAlerts(ctx context.Context, run *pairRun) []model.TriggeredAlert {
	alertCtx := model.AlertContext{
		"x":         run.x,
		"y":         run.y,
		"timeframe": run.timeframe.String(),
	}

	triggered := []model.TriggeredAlert{}
	if p, ok := run.zscore.DropMissing().Last(); ok {
		triggered = append(triggered, s.alerts.EvaluatePair(run.x, run.y, model.MetricZScore, p.Value, alertCtx)...)
	}
	if p, ok := run.spread.DropMissing().Last(); ok {
		triggered = append(triggered, s.alerts.EvaluatePair(run.x, run.y, model.MetricSpread, p.Value, alertCtx)...)
	}

	if len(triggered) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, triggered); err != nil {
			s.logger.Warn("Failed to deliver triggered alerts",
				zap.Error(err),
				zap.String("x", run.x),
				zap.String("y", run.y),
				zap.Int("alerts", len(triggered)))
		}
	}

	return triggered
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.AnalyticsDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func splitSymbols(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		symbol := model.NormalizeSymbol(part)
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

func firstPositive(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
