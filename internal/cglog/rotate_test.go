package cglog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextMidnightIsNextCalendarDayStart(t *testing.T) {
	from := time.Date(2026, time.July, 31, 14, 22, 9, 0, time.UTC)

	got := nextMidnight(from)

	require.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), got)
	require.True(t, got.After(from))
}

func TestNextMidnightRollsOverYearBoundary(t *testing.T) {
	from := time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC)

	got := nextMidnight(from)

	require.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), got)
}
