package store

import (
	"math/rand"
	"testing"
	"time"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tick(symbol string, offset time.Duration, price, size float64) model.Tick {
	return model.Tick{Symbol: symbol, Time: base.Add(offset), Price: price, Size: size}
}

func TestResampleOHLCV(t *testing.T) {
	ticks := []model.Tick{
		tick("btc", 100*time.Millisecond, 10, 1),
		tick("btc", 400*time.Millisecond, 12, 2),
		tick("btc", 700*time.Millisecond, 9, 1),
		tick("btc", 900*time.Millisecond, 11, 3),
		tick("btc", 2100*time.Millisecond, 20, 5),
	}

	bars := Resample(ticks, time.Second)
	require.Len(t, bars, 2, "the empty bucket at +1s must be dropped")

	assert.Equal(t, base, bars[0].Time)
	assert.Equal(t, 10.0, bars[0].Open)
	assert.Equal(t, 12.0, bars[0].High)
	assert.Equal(t, 9.0, bars[0].Low)
	assert.Equal(t, 11.0, bars[0].Close)
	assert.Equal(t, 7.0, bars[0].Volume)

	assert.Equal(t, base.Add(2*time.Second), bars[1].Time)
	assert.Equal(t, 20.0, bars[1].Open)
	assert.Equal(t, 20.0, bars[1].Close)
	assert.Equal(t, 5.0, bars[1].Volume)
}

func TestResampleLeftClosedBuckets(t *testing.T) {
	ticks := []model.Tick{
		tick("btc", 0, 1, 1),
		tick("btc", time.Minute, 2, 1),
	}

	bars := Resample(ticks, time.Minute)
	require.Len(t, bars, 2)
	assert.Equal(t, base, bars[0].Time)
	assert.Equal(t, base.Add(time.Minute), bars[1].Time)
}

func TestResampleSortsUnorderedInput(t *testing.T) {
	ticks := []model.Tick{
		tick("btc", 800*time.Millisecond, 3, 1),
		tick("btc", 100*time.Millisecond, 1, 1),
		tick("btc", 500*time.Millisecond, 2, 1),
	}

	bars := Resample(ticks, time.Second)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 3.0, bars[0].Close)
	assert.Equal(t, 800*time.Millisecond, ticks[0].Time.Sub(base), "input must not be reordered")
}

func TestResampleEmpty(t *testing.T) {
	assert.Empty(t, Resample(nil, time.Second))
	assert.Empty(t, Resample([]model.Tick{tick("btc", 0, 1, 1)}, 0))
}

func TestResampleBarInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ticks := make([]model.Tick, 0, 2000)
	price := 100.0
	occupied := make(map[int64]struct{})
	for i := 0; i < 2000; i++ {
		offset := time.Duration(rng.Int63n(int64(10 * time.Minute)))
		price += rng.NormFloat64()
		ticks = append(ticks, tick("eth", offset, price, rng.Float64()))
		occupied[int64(offset/(5*time.Second))] = struct{}{}
	}

	bars := Resample(ticks, 5*time.Second)
	assert.LessOrEqual(t, len(bars), len(occupied))

	for i, b := range bars {
		assert.GreaterOrEqual(t, b.High, b.Open)
		assert.GreaterOrEqual(t, b.High, b.Close)
		assert.LessOrEqual(t, b.Low, b.Open)
		assert.LessOrEqual(t, b.Low, b.Close)
		if i > 0 {
			assert.True(t, b.Time.After(bars[i-1].Time), "bars must be strictly ordered")
		}
	}
}
