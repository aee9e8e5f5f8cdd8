package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDurationAllUnits(t *testing.T) {
	d, err := ParseDuration("2y5m1w7d3h")
	require.NoError(t, err)
	require.Equal(t, Duration{Years: 2, Months: 5, Weeks: 1, Days: 7, Hours: 3}, d)
}

func TestParseDurationSingleUnit(t *testing.T) {
	d, err := ParseDuration("10d")
	require.NoError(t, err)
	require.Equal(t, Duration{Days: 10}, d)
}

func TestParseDurationEmptyIsZero(t *testing.T) {
	d, err := ParseDuration("")
	require.NoError(t, err)
	require.True(t, d.IsZero())
}

func TestParseDurationRejectsDuplicateUnit(t *testing.T) {
	_, err := ParseDuration("1d2d")
	require.ErrorIs(t, err, ErrDurationParse)
}

func TestParseDurationRejectsMissingNumber(t *testing.T) {
	_, err := ParseDuration("d")
	require.ErrorIs(t, err, ErrDurationParse)
}

func TestParseDurationRejectsTrailingNumber(t *testing.T) {
	_, err := ParseDuration("1d5")
	require.ErrorIs(t, err, ErrDurationParse)
}

func TestParseDurationRejectsUnknownUnit(t *testing.T) {
	_, err := ParseDuration("1x")
	require.ErrorIs(t, err, ErrDurationParse)
}

func TestDurationBefore(t *testing.T) {
	d := Duration{Weeks: 1, Days: 2, Hours: 3}
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := d.Before(now)
	want := now.AddDate(0, 0, -9).Add(-3 * time.Hour)
	require.True(t, got.Equal(want))
}
