package cronexpr

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Evaluator binds cron parsing/evaluation to a fixed timezone, matching
// spec section 4.2: "Evaluation uses the configured timezone."
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator creates an Evaluator bound to loc. If loc is nil, time.Local
// is used.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}

	return &Evaluator{loc: loc}
}

// Validate parses expr and returns whether it's valid plus a description.
func (e *Evaluator) Validate(expr string) (ok bool, description string) {
	return Validate(expr)
}

// NextFire returns the next instant strictly after from satisfying expr.
// Returns an error if expr does not parse.
func (e *Evaluator) NextFire(expr string, from time.Time) (time.Time, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}

	return parsed.NextFire(from, e.loc), nil
}

// Preset is one named, ready-to-use cron expression.
type Preset struct {
	Name        string
	Expr        string
	Description string
}

// ListPresets returns the catalog of canned schedules listed by
// `cloudgather cron presets`.
func ListPresets() []Preset {
	return []Preset{
		{Name: "hourly", Expr: "0 * * * *", Description: "At the top of every hour"},
		{Name: "daily", Expr: "0 3 * * *", Description: "Once a day at 03:00"},
		{Name: "night", Expr: "30 2 * * *", Description: "Once a day at 02:30"},
		{Name: "every-5-minutes", Expr: "*/5 * * * *", Description: "Every 5 minutes"},
		{Name: "every-15-minutes", Expr: "*/15 * * * *", Description: "Every 15 minutes"},
		{Name: "weekly", Expr: "0 3 * * 0", Description: "Once a week, Sunday at 03:00"},
	}
}

// RandomFromPattern returns a randomly jittered cron expression for one of
// the coarse-grained patterns named in spec section 4.2. Jitter spreads
// load across tasks sharing a pattern instead of having every task fire on
// the exact same minute.
func RandomFromPattern(pattern string) (string, error) {
	switch pattern {
	case "hourly":
		return fmt.Sprintf("%d * * * *", rand.IntN(60)), nil
	case "daily":
		return fmt.Sprintf("%d %d * * *", rand.IntN(60), rand.IntN(24)), nil
	case "night":
		// Between 01:00 and 05:59, the conventional low-traffic window.
		return fmt.Sprintf("%d %d * * *", rand.IntN(60), 1+rand.IntN(5)), nil
	default:
		return "", fmt.Errorf("unknown cron pattern %q", pattern)
	}
}
