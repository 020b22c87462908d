// Package cronexpr implements the Cron Evaluator (spec section 4.2):
// classic 5-field expressions (minute hour day-of-month month day-of-week)
// with *, ",", "-", "/", evaluated in civil time against a configured
// timezone. The search walks forward one absolute minute at a time, so
// across DST transitions: civil minutes inside a spring-forward gap are
// never matched (an expression that matches only inside the gap does not
// fire that day), and a civil minute repeated by a one-hour fall-back
// matches only on its first occurrence.
package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
)

// field bounds per spec section 6: minute hour day-of-month month
// day-of-week, weekdays 0-6 with Sunday = 0.
const (
	minuteMin, minuteMax = 0, 59
	hourMin, hourMax     = 0, 23
	domMin, domMax       = 1, 31
	monMin, monMax       = 1, 12
	dowMin, dowMax       = 0, 6
)

// Expr is a parsed 5-field cron expression ready for evaluation.
type Expr struct {
	raw     string
	minute  fieldSet
	hour    fieldSet
	dom     fieldSet
	month   fieldSet
	dow     fieldSet
	domWild bool // "*" in day-of-month: vacuous-true for the DOM-or-DOW union rule
	dowWild bool
}

// fieldSet is a bitmask of matching values for one cron field (0-63 covers
// every field's range, including minute's 0-59).
type fieldSet uint64

func (fs fieldSet) has(v int) bool {
	return fs&(1<<uint(v)) != 0
}

// Parse validates and compiles a 5-field cron expression.
func Parse(expr string) (*Expr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", cgerrors.ErrInvalidCron, len(fields))
	}

	minute, err := parseField(fields[0], minuteMin, minuteMax)
	if err != nil {
		return nil, fmt.Errorf("%w: minute field: %s", cgerrors.ErrInvalidCron, err)
	}

	hour, err := parseField(fields[1], hourMin, hourMax)
	if err != nil {
		return nil, fmt.Errorf("%w: hour field: %s", cgerrors.ErrInvalidCron, err)
	}

	dom, err := parseField(fields[2], domMin, domMax)
	if err != nil {
		return nil, fmt.Errorf("%w: day-of-month field: %s", cgerrors.ErrInvalidCron, err)
	}

	month, err := parseField(fields[3], monMin, monMax)
	if err != nil {
		return nil, fmt.Errorf("%w: month field: %s", cgerrors.ErrInvalidCron, err)
	}

	dow, err := parseField(fields[4], dowMin, dowMax)
	if err != nil {
		return nil, fmt.Errorf("%w: day-of-week field: %s", cgerrors.ErrInvalidCron, err)
	}

	return &Expr{
		raw:     expr,
		minute:  minute,
		hour:    hour,
		dom:     dom,
		month:   month,
		dow:     dow,
		domWild: strings.TrimSpace(fields[2]) == "*",
		dowWild: strings.TrimSpace(fields[4]) == "*",
	}, nil
}

// Validate reports whether expr parses and, if so, a human-readable
// description.
func Validate(expr string) (ok bool, description string) {
	parsed, err := Parse(expr)
	if err != nil {
		return false, err.Error()
	}

	return true, parsed.Describe()
}

// matches reports whether t (already in the evaluator's configured
// timezone) satisfies this expression. The classic cron DOM/DOW union
// rule applies: if both fields are restricted (non-"*"), a match on
// either is sufficient; if exactly one is "*", only the other is checked.
func (e *Expr) matches(t time.Time) bool {
	if !e.minute.has(t.Minute()) {
		return false
	}

	if !e.hour.has(t.Hour()) {
		return false
	}

	if !e.month.has(int(t.Month())) {
		return false
	}

	domMatch := e.dom.has(t.Day())
	dowMatch := e.dow.has(int(t.Weekday()))

	switch {
	case e.domWild && e.dowWild:
		return true
	case e.domWild:
		return dowMatch
	case e.dowWild:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// NextFire returns the next instant strictly after from that satisfies
// expr, evaluated in loc. It walks forward one absolute minute at a time
// (cron's granularity): civil minutes skipped by a DST spring-forward gap
// are never visited, so they never match, and the second pass through a
// civil minute repeated by a one-hour fall-back is not matched again.
func (e *Expr) NextFire(from time.Time, loc *time.Location) time.Time {
	// Start at the next whole minute strictly after `from`. Truncating the
	// absolute instant avoids rebuilding an ambiguous fall-back civil time.
	t := from.Truncate(time.Minute).Add(time.Minute).In(loc)

	// Bound the search so a pathological expression (e.g. Feb 30) can't
	// loop forever; four years safely covers every leap-year day-of-month
	// combination.
	limit := from.AddDate(4, 0, 0)

	for t.Before(limit) {
		// The same civil minute one hour earlier marks a fall-back repeat.
		prev := t.Add(-time.Hour)
		repeated := prev.Hour() == t.Hour() && prev.Minute() == t.Minute()

		if e.matches(t) && !repeated {
			return t
		}

		t = t.Add(time.Minute)
	}

	return time.Time{}
}

// Describe renders a short human-readable summary of the expression.
func (e *Expr) Describe() string {
	var b strings.Builder

	b.WriteString(describeField("minute", e.minute, minuteMin, minuteMax))
	b.WriteString(", ")
	b.WriteString(describeField("hour", e.hour, hourMin, hourMax))
	b.WriteString(", day ")
	b.WriteString(describeField("of-month", e.dom, domMin, domMax))
	b.WriteString(", month ")
	b.WriteString(describeField("", e.month, monMin, monMax))
	b.WriteString(", weekday ")
	b.WriteString(describeField("", e.dow, dowMin, dowMax))

	return b.String()
}

func describeField(label string, fs fieldSet, lo, hi int) string {
	all := true
	for v := lo; v <= hi; v++ {
		if !fs.has(v) {
			all = false
			break
		}
	}

	if all {
		if label == "" {
			return "every value"
		}

		return "every " + label
	}

	var vals []string
	for v := lo; v <= hi; v++ {
		if fs.has(v) {
			vals = append(vals, strconv.Itoa(v))
		}
	}

	if label == "" {
		return strings.Join(vals, ",")
	}

	return label + " " + strings.Join(vals, ",")
}

func parseField(spec string, lo, hi int) (fieldSet, error) {
	var fs fieldSet

	for _, part := range strings.Split(spec, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty list element")
		}

		rangeSpec, step, err := splitStep(part)
		if err != nil {
			return 0, err
		}

		start, end, err := parseRange(rangeSpec, lo, hi)
		if err != nil {
			return 0, err
		}

		if step < 1 {
			return 0, fmt.Errorf("step must be positive, got %d", step)
		}

		for v := start; v <= end; v += step {
			fs |= 1 << uint(v)
		}
	}

	return fs, nil
}

func splitStep(part string) (rangeSpec string, step int, err error) {
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		rangeSpec = part[:idx]

		step, err = strconv.Atoi(part[idx+1:])
		if err != nil {
			return "", 0, fmt.Errorf("invalid step in %q: %w", part, err)
		}

		if rangeSpec == "" {
			rangeSpec = "*"
		}

		return rangeSpec, step, nil
	}

	return part, 1, nil
}

func parseRange(spec string, lo, hi int) (start, end int, err error) {
	if spec == "*" {
		return lo, hi, nil
	}

	if idx := strings.IndexByte(spec, '-'); idx >= 0 {
		start, err = strconv.Atoi(spec[:idx])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range start in %q: %w", spec, err)
		}

		end, err = strconv.Atoi(spec[idx+1:])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end in %q: %w", spec, err)
		}

		if start > end {
			return 0, 0, fmt.Errorf("range start %d greater than end %d", start, end)
		}
	} else {
		v, convErr := strconv.Atoi(spec)
		if convErr != nil {
			return 0, 0, fmt.Errorf("invalid value %q: %w", spec, convErr)
		}

		start, end = v, v
	}

	if start < lo || end > hi {
		return 0, 0, fmt.Errorf("value out of range [%d,%d]: %q", lo, hi, spec)
	}

	return start, end, nil
}
