package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-03-01T12:00:00Z",
		"2024-03-01T14:00:00+02:00",
		"1709294400",
		"1709294400000",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "yesterday", "NaN", "nan", "Inf", "-Inf", "Infinity", "1e300", "-1e20"} {
		_, err := ParseTimestamp(in)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, in)
	}
}

func TestEpochToTime(t *testing.T) {
	got, err := EpochToTime(1709294400.5)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC), got)

	got, err = EpochToTime(1709294400123)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 123_000_000, time.UTC), got)
}
