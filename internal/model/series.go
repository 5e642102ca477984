package model

import (
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// Point is one observation of a derived series. A NaN value is missing.
type Point struct {
	Time  time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// MarshalJSON renders missing values as null
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time  time.Time `json:"ts"`
		Value *float64  `json:"value"`
	}{Time: p.Time, Value: nullable(p.Value)})
}

// Series is a time-ordered sequence of points
type Series []Point

// Missing returns the marker used for undefined values
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is undefined
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// DropMissing returns the defined points only
func (s Series) DropMissing() Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if !IsMissing(p.Value) {
			out = append(out, p)
		}
	}
	return out
}

// Tail returns the last n points
func (s Series) Tail(n int) Series {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Values returns the raw values
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the final defined point
func (s Series) Last() (Point, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if !IsMissing(s[i].Value) {
			return s[i], true
		}
	}
	return Point{}, false
}

func nullable(v float64) *float64 {
	if IsMissing(v) {
		return nil
	}
	return &v
}
