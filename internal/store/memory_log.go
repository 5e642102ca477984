package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"
)

// MemoryLog is a process-local TickLog and BarLog. It backs the store when
// no database is configured and in tests.
type MemoryLog struct {
	mu      sync.Mutex
	ticks   []model.Tick
	barSets map[barKey][]model.Bar
}

// NewMemoryLog creates an empty in-process log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{barSets: make(map[barKey][]model.Bar)}
}

// AppendTick records a tick
func (l *MemoryLog) AppendTick(_ context.Context, tick model.Tick) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks = append(l.ticks, tick)
	return nil
}

// TicksSince returns ticks newer than since, ordered by symbol and time
func (l *MemoryLog) TicksSince(_ context.Context, since time.Time) ([]model.Tick, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Tick, 0, len(l.ticks))
	for _, t := range l.ticks {
		if t.Time.After(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

// LatestTickTimes returns the newest tick time per symbol
func (l *MemoryLog) LatestTickTimes(_ context.Context) (map[string]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]time.Time)
	for _, t := range l.ticks {
		if cur, ok := out[t.Symbol]; !ok || t.Time.After(cur) {
			out[t.Symbol] = t.Time
		}
	}
	return out, nil
}

// Len returns the number of ticks recorded
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ticks)
}

// SaveBars replaces the bar set for symbol and timeframe
func (l *MemoryLog) SaveBars(_ context.Context, symbol string, timeframe model.Timeframe, bars []model.Bar) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := make([]model.Bar, len(bars))
	copy(stored, bars)
	l.barSets[barKey{symbol: symbol, timeframe: timeframe}] = stored
	return nil
}

// BarSets returns every saved bar set
func (l *MemoryLog) BarSets(_ context.Context) ([]model.BarSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.BarSet, 0, len(l.barSets))
	for key, bars := range l.barSets {
		stored := make([]model.Bar, len(bars))
		copy(stored, bars)
		out = append(out, model.BarSet{Symbol: key.symbol, Timeframe: key.timeframe, Bars: stored})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out, nil
}
