package cronexpr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	ok, desc := Validate("*/15 2-6 * * 1-5")
	require.True(t, ok)
	require.Contains(t, desc, "minute")
}

func TestValidateRejectsMalformed(t *testing.T) {
	ok, _ := Validate("*/15 2-6 * *")
	require.False(t, ok)

	ok, _ = Validate("60 * * * *")
	require.False(t, ok)
}

func TestNextFireStrictlyAfterNow(t *testing.T) {
	loc := time.UTC
	e := NewEvaluator(loc)

	now := time.Date(2026, 3, 10, 2, 30, 0, 0, loc)
	next, err := e.NextFire("0 3 * * *", now)
	require.NoError(t, err)
	require.True(t, next.After(now))
	require.Equal(t, 3, next.Hour())
	require.Equal(t, 0, next.Minute())
}

func TestNextFireMonotonicAdvance(t *testing.T) {
	loc := time.UTC
	e := NewEvaluator(loc)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	expr := "*/5 * * * *"

	first, err := e.NextFire(expr, now)
	require.NoError(t, err)
	require.True(t, first.After(now))

	second, err := e.NextFire(expr, first)
	require.NoError(t, err)
	require.True(t, second.After(first))
}

func TestNextFireEverySuffix(t *testing.T) {
	loc := time.UTC
	e := NewEvaluator(loc)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	next, err := e.NextFire("*/5 * * * *", now)
	require.NoError(t, err)
	require.Equal(t, 5, next.Minute())
}

func TestDowZeroIsSunday(t *testing.T) {
	parsed, err := Parse("0 0 * * 0")
	require.NoError(t, err)
	require.True(t, parsed.dow.has(int(time.Sunday)))
}

func TestListPresetsNonEmpty(t *testing.T) {
	presets := ListPresets()
	require.NotEmpty(t, presets)

	for _, p := range presets {
		ok, _ := Validate(p.Expr)
		require.True(t, ok, "preset %s has invalid expr %q", p.Name, p.Expr)
	}
}

func TestRandomFromPatternProducesValidExpr(t *testing.T) {
	for _, pattern := range []string{"hourly", "daily", "night"} {
		expr, err := RandomFromPattern(pattern)
		require.NoError(t, err)

		ok, _ := Validate(expr)
		require.True(t, ok)
	}
}

func TestRandomFromPatternRejectsUnknown(t *testing.T) {
	_, err := RandomFromPattern("weekly-ish")
	require.Error(t, err)
}
