package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when a timestamp cannot be parsed
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Tick represents a single trade event for one symbol
type Tick struct {
	Symbol string    `json:"symbol" db:"symbol"`
	Time   time.Time `json:"ts" db:"ts"`
	Price  float64   `json:"price" db:"price"`
	Size   float64   `json:"size" db:"size"`
}

// TickInput represents a tick pushed by an external collaborator
type TickInput struct {
	Symbol string    `json:"symbol" binding:"required"`
	Time   time.Time `json:"ts" binding:"required"`
	Price  float64   `json:"price" binding:"required,gt=0"`
	Size   float64   `json:"size" binding:"gte=0"`
}

// NormalizeSymbol lower-cases and trims a symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses ISO-8601 style timestamps and numeric epochs.
// Timestamps without a zone are taken as UTC. Numeric values above 1e12 are
// epoch milliseconds, anything smaller is epoch seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return EpochToTime(f)
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// epoch values outside this range are rejected; milliseconds top out
// around the year 33658
const (
	minEpoch = -1e12
	maxEpoch = 1e15
)

// EpochToTime converts epoch seconds or milliseconds to UTC time
func EpochToTime(v float64) (time.Time, error) {
	if math.IsNaN(v) || v < minEpoch || v > maxEpoch {
		return time.Time{}, fmt.Errorf("%w: epoch %v", ErrInvalidTimestamp, v)
	}
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), nil
}
