// Package store keeps custody of raw ticks and loaded bars. Every tick is
// written to a durable log before the in-memory window sees it; the window is
// bounded by a retention span measured back from the newest tick.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/pairs-analytics/internal/metrics"
	"github.com/yourorg/pairs-analytics/internal/model"

	"go.uber.org/zap"
)

// DefaultRetention is the in-memory window kept per symbol
const DefaultRetention = 7 * 24 * time.Hour

// ErrInvalidTick is returned for ticks with an empty symbol or non-finite fields
var ErrInvalidTick = errors.New("invalid tick")

// TickLog is the append-only durable tick table
type TickLog interface {
	AppendTick(ctx context.Context, tick model.Tick) error
	TicksSince(ctx context.Context, since time.Time) ([]model.Tick, error)
	LatestTickTimes(ctx context.Context) (map[string]time.Time, error)
}

// BarLog persists explicitly loaded bar sets
type BarLog interface {
	SaveBars(ctx context.Context, symbol string, timeframe model.Timeframe, bars []model.Bar) error
	BarSets(ctx context.Context) ([]model.BarSet, error)
}

type barKey struct {
	symbol    string
	timeframe model.Timeframe
}

// series is the guarded handle for one symbol. writeMu serialises the
// durable write together with the memory update; mu guards the slice swap.
// Published slices are never written below their length, so a snapshot
// stays valid after the lock is released.
type series struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	ticks []model.Tick
}

func (s *series) snapshot() []model.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks
}

func (s *series) merge(t model.Tick, retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.ticks
	n := len(cur)

	var next []model.Tick
	if n == 0 || !t.Time.Before(cur[n-1].Time) {
		next = append(cur, t)
	} else {
		i := sort.Search(n, func(i int) bool { return cur[i].Time.After(t.Time) })
		next = make([]model.Tick, 0, n+1)
		next = append(next, cur[:i]...)
		next = append(next, t)
		next = append(next, cur[i:]...)
	}

	s.ticks = trim(next, retention)
}

// trim keeps ticks strictly newer than latest-retention
func trim(ticks []model.Tick, retention time.Duration) []model.Tick {
	if len(ticks) == 0 || retention <= 0 {
		return ticks
	}
	cutoff := ticks[len(ticks)-1].Time.Add(-retention)
	idx := sort.Search(len(ticks), func(i int) bool { return ticks[i].Time.After(cutoff) })
	if idx == 0 {
		return ticks
	}
	if idx > len(ticks)/2 {
		kept := make([]model.Tick, len(ticks)-idx)
		copy(kept, ticks[idx:])
		return kept
	}
	return ticks[idx:]
}

// Store is the tick store. It is safe for concurrent use.
type Store struct {
	ticks     TickLog
	bars      BarLog
	retention time.Duration
	logger    *zap.Logger

	mu      sync.RWMutex
	series  map[string]*series
	barSets map[barKey][]model.Bar
}

// NewStore creates a new tick store over the given durable logs
func NewStore(ticks TickLog, bars BarLog, retention time.Duration, logger *zap.Logger) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		ticks:     ticks,
		bars:      bars,
		retention: retention,
		logger:    logger,
		series:    make(map[string]*series),
		barSets:   make(map[barKey][]model.Bar),
	}
}

// Append writes one tick to the durable log and then merges it into the
// symbol's in-memory window. If the log write fails memory is left untouched.
func (s *Store) Append(ctx context.Context, symbol string, ts time.Time, price, size float64) error {
	tick := model.Tick{
		Symbol: model.NormalizeSymbol(symbol),
		Time:   ts.UTC(),
		Price:  price,
		Size:   size,
	}
	if err := validateTick(tick); err != nil {
		return err
	}

	ser := s.seriesFor(tick.Symbol)

	ser.writeMu.Lock()
	defer ser.writeMu.Unlock()

	if err := s.ticks.AppendTick(ctx, tick); err != nil {
		s.logger.Error("Failed to write tick to durable log",
			zap.Error(err),
			zap.String("symbol", tick.Symbol))
		return fmt.Errorf("append tick to log: %w", err)
	}

	ser.merge(tick, s.retention)
	metrics.TicksAppended.WithLabelValues(tick.Symbol).Inc()

	return nil
}

func validateTick(t model.Tick) error {
	if t.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	}
	if t.Time.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTick)
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || math.IsNaN(t.Size) || math.IsInf(t.Size, 0) {
		return fmt.Errorf("%w: non-finite price or size", ErrInvalidTick)
	}
	return nil
}

func (s *Store) seriesFor(symbol string) *series {
	s.mu.RLock()
	ser, ok := s.series[symbol]
	s.mu.RUnlock()
	if ok {
		return ser
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok = s.series[symbol]; !ok {
		ser = &series{}
		s.series[symbol] = ser
	}
	return ser
}

func (s *Store) lookup(symbol string) []model.Tick {
	s.mu.RLock()
	ser, ok := s.series[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return ser.snapshot()
}

// RawSeries returns a copy of the in-memory window, empty for unknown symbols
func (s *Store) RawSeries(symbol string) []model.Tick {
	snap := s.lookup(model.NormalizeSymbol(symbol))
	out := make([]model.Tick, len(snap))
	copy(out, snap)
	return out
}

// ExportResampled returns the loaded bar set for the exact (symbol,
// timeframe) pair, or resamples the raw window. ok is false only when the
// symbol is unknown; a symbol with bars at other timeframes and no raw
// ticks yields an empty slice.
func (s *Store) ExportResampled(symbol string, timeframe model.Timeframe) ([]model.Bar, bool) {
	symbol = model.NormalizeSymbol(symbol)

	s.mu.RLock()
	loaded, ok := s.barSets[barKey{symbol: symbol, timeframe: timeframe}]
	s.mu.RUnlock()
	if ok {
		out := make([]model.Bar, len(loaded))
		copy(out, loaded)
		return out, true
	}

	snap := s.lookup(symbol)
	if len(snap) == 0 {
		if s.hasBarSets(symbol) {
			return []model.Bar{}, true
		}
		return nil, false
	}

	return Resample(snap, timeframe.Duration()), true
}

func (s *Store) hasBarSets(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key := range s.barSets {
		if key.symbol == symbol {
			return true
		}
	}
	return false
}

// KnownSymbols returns every symbol with raw ticks or loaded bars, sorted
func (s *Store) KnownSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.series))
	for symbol, ser := range s.series {
		if len(ser.snapshot()) > 0 {
			seen[symbol] = struct{}{}
		}
	}
	for key := range s.barSets {
		seen[key.symbol] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// LatestPrices returns the newest tick price per symbol
func (s *Store) LatestPrices() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.series))
	for symbol, ser := range s.series {
		if snap := ser.snapshot(); len(snap) > 0 {
			out[symbol] = snap[len(snap)-1].Price
		}
	}
	return out
}

// Restore reloads each symbol's retention window, measured back from that
// symbol's newest logged tick, and the loaded bar sets from the durable
// logs. It is meant to run once before the store is shared.
func (s *Store) Restore(ctx context.Context) error {
	latest, err := s.ticks.LatestTickTimes(ctx)
	if err != nil {
		return fmt.Errorf("restore latest ticks: %w", err)
	}

	var ticks []model.Tick
	if since, ok := earliestCutoff(latest, s.retention); ok {
		ticks, err = s.ticks.TicksSince(ctx, since)
		if err != nil {
			return fmt.Errorf("restore ticks: %w", err)
		}
	}
	for _, t := range ticks {
		t.Symbol = model.NormalizeSymbol(t.Symbol)
		if validateTick(t) != nil {
			continue
		}
		s.seriesFor(t.Symbol).merge(t, s.retention)
	}

	sets, err := s.bars.BarSets(ctx)
	if err != nil {
		return fmt.Errorf("restore bar sets: %w", err)
	}
	s.mu.Lock()
	for _, set := range sets {
		s.barSets[barKey{symbol: model.NormalizeSymbol(set.Symbol), timeframe: set.Timeframe}] = normalizeBars(set.Bars)
	}
	s.mu.Unlock()

	s.logger.Info("Restored tick store",
		zap.Int("ticks", len(ticks)),
		zap.Int("bar_sets", len(sets)))

	return nil
}

// earliestCutoff is the oldest per-symbol window start
func earliestCutoff(latest map[string]time.Time, retention time.Duration) (time.Time, bool) {
	var since time.Time
	found := false
	for _, ts := range latest {
		cutoff := ts.Add(-retention)
		if !found || cutoff.Before(since) {
			since, found = cutoff, true
		}
	}
	return since, found
}

func (s *Store) installBars(symbol string, timeframe model.Timeframe, bars []model.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barSets[barKey{symbol: symbol, timeframe: timeframe}] = bars
}

// normalizeBars sorts bars by time and keeps the last bar for each timestamp
func normalizeBars(bars []model.Bar) []model.Bar {
	sorted := make([]model.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := make([]model.Bar, 0, len(sorted))
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
