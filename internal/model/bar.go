package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeframe is returned for unparseable or non-positive intervals
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Bar represents an OHLCV aggregate over one interval
type Bar struct {
	Time   time.Time `json:"ts" db:"ts"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// BarSet represents the bars loaded for one symbol and timeframe
type BarSet struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []Bar
}

// Timeframe is a bar interval. Two timeframes are equal when their lengths are.
type Timeframe time.Duration

var timeframePattern = regexp.MustCompile(`^(\d+)?\s*([a-z]+)$`)

// ParseTimeframe accepts Go durations ("5m", "1h30m") and the common pandas
// style aliases ("1s", "1min", "5T", "1H", "1D").
func ParseTimeframe(s string) (Timeframe, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimeframe)
	}

	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
		}
		return Timeframe(d), nil
	}

	m := timeframePattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}

	n := 1
	if m[1] != "" {
		v, err := strconv.Atoi(m[1])
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
		}
		n = v
	}

	var unit time.Duration
	switch m[2] {
	case "ms", "l", "milli", "millis":
		unit = time.Millisecond
	case "s", "sec", "secs", "second", "seconds":
		unit = time.Second
	case "m", "t", "min", "mins", "minute", "minutes":
		unit = time.Minute
	case "h", "hr", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}

	return Timeframe(time.Duration(n) * unit), nil
}

// Duration returns the interval length
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf)
}

// String returns the shortest canonical name, e.g. "1s", "5m", "1d"
func (tf Timeframe) String() string {
	d := time.Duration(tf)
	switch {
	case d <= 0:
		return "0s"
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	default:
		return d.String()
	}
}

// Closes returns the close prices of bars as a series
func Closes(bars []Bar) Series {
	out := make(Series, len(bars))
	for i, b := range bars {
		out[i] = Point{Time: b.Time, Value: b.Close}
	}
	return out
}

// FilterMinVolume drops bars traded below minVolume
func FilterMinVolume(bars []Bar, minVolume float64) []Bar {
	if minVolume <= 0 {
		return bars
	}
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Volume >= minVolume {
			out = append(out, b)
		}
	}
	return out
}
