// Package analytics holds the pair-trading transforms. Every function is pure
// and total over its input: missing or degenerate numerics come back as NaN,
// and estimators report ErrInsufficientData instead of failing the caller.
package analytics

import (
	"errors"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"
)

// ErrInsufficientData is returned when there are too few aligned observations
var ErrInsufficientData = errors.New("insufficient data")

// aligned is the inner join of two series on timestamp, missing rows dropped
type aligned struct {
	times []time.Time
	a     []float64
	b     []float64
}

func (al aligned) len() int {
	return len(al.times)
}

// align joins a and b on timestamp in a's order. Rows missing in either series
// are dropped; for a duplicated timestamp in b the last value wins.
func align(a, b model.Series) aligned {
	index := make(map[int64]float64, len(b))
	for _, p := range b {
		if model.IsMissing(p.Value) {
			delete(index, p.Time.UnixNano())
			continue
		}
		index[p.Time.UnixNano()] = p.Value
	}

	out := aligned{
		times: make([]time.Time, 0, len(a)),
		a:     make([]float64, 0, len(a)),
		b:     make([]float64, 0, len(a)),
	}
	for _, p := range a {
		if model.IsMissing(p.Value) {
			continue
		}
		v, ok := index[p.Time.UnixNano()]
		if !ok {
			continue
		}
		out.times = append(out.times, p.Time)
		out.a = append(out.a, p.Value)
		out.b = append(out.b, v)
	}
	return out
}
