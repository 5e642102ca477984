package store

import (
	"math"
	"sort"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"
)

// Resample groups ticks into left-closed buckets of the given width, aligned
// to the Unix epoch and labelled by their left edge. Empty buckets produce no
// bar. Ticks need not be sorted.
func Resample(ticks []model.Tick, width time.Duration) []model.Bar {
	if len(ticks) == 0 || width <= 0 {
		return nil
	}

	if !sort.SliceIsSorted(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) }) {
		sorted := make([]model.Tick, len(ticks))
		copy(sorted, ticks)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
		ticks = sorted
	}

	bars := make([]model.Bar, 0)
	var current *model.Bar
	for _, t := range ticks {
		start := bucketStart(t.Time, width)
		if current == nil || !start.Equal(current.Time) {
			bars = append(bars, model.Bar{
				Time:   start,
				Open:   t.Price,
				High:   t.Price,
				Low:    t.Price,
				Close:  t.Price,
				Volume: 0,
			})
			current = &bars[len(bars)-1]
		}
		current.High = math.Max(current.High, t.Price)
		current.Low = math.Min(current.Low, t.Price)
		current.Close = t.Price
		current.Volume += t.Size
	}

	return bars
}

func bucketStart(t time.Time, width time.Duration) time.Time {
	ns := t.UnixNano()
	w := int64(width)
	start := ns - ns%w
	if ns%w < 0 {
		start -= w
	}
	return time.Unix(0, start).UTC()
}
