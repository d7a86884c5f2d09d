package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression is returned by Validate for malformed expressions.
var ErrInvalidExpression = errors.New("invalid cron expression")

// fieldBounds holds the inclusive value range of each cron field, in field
// order: minute, hour, day-of-month, month, weekday (0 = Sunday).
var fieldBounds = [5]struct{ min, max int }{
	{0, 59},
	{0, 23},
	{1, 31},
	{1, 12},
	{0, 6},
}

// Matches reports whether the five-field cron expression matches the given
// timestamp at minute granularity. Fields are minute, hour, day-of-month,
// month and weekday, separated by single spaces. Each field supports:
//
//   - `*`           any value
//   - `1,15,30`     comma list; elements may be literals or ranges
//   - `9-17`        inclusive range
//   - `*/15`        step over the full range (value % 15 == 0)
//   - `5`           literal value
//
// A step suffix on a non-`*` range (`1-10/2`) is not supported: such a field
// matches nothing, and Validate rejects it at registration time.
//
// All five fields must match for the expression to match.
func Matches(expression string, t time.Time) bool {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return false
	}

	values := [5]int{
		t.Minute(),
		t.Hour(),
		t.Day(),
		int(t.Month()),
		int(t.Weekday()),
	}

	for i, field := range fields {
		if !matchField(field, values[i]) {
			return false
		}
	}

	return true
}

// Validate checks an expression without evaluating it against a timestamp.
// Returns an error wrapping ErrInvalidExpression describing the first
// malformed field. Used at schedule registration so a bad expression is
// rejected up front instead of silently never firing.
func Validate(expression string) error {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidExpression, len(fields))
	}

	names := [5]string{"minute", "hour", "day-of-month", "month", "weekday"}
	for i, field := range fields {
		if err := validateField(field, fieldBounds[i].min, fieldBounds[i].max); err != nil {
			return fmt.Errorf("%w: %s field %q: %v", ErrInvalidExpression, names[i], field, err)
		}
	}

	return nil
}

// matchField evaluates one field against a value. Comma lists are handled
// here; each element is delegated to matchPart.
func matchField(field string, value int) bool {
	if field == "*" {
		return true
	}

	if strings.Contains(field, ",") {
		for _, part := range strings.Split(field, ",") {
			if matchPart(part, value) {
				return true
			}
		}
		return false
	}

	return matchPart(field, value)
}

// matchPart evaluates a single list element: `*`, `*/step`, `a-b`, or a
// literal. Anything else, including range+step, matches nothing.
func matchPart(part string, value int) bool {
	if part == "*" {
		return true
	}

	if step, ok := strings.CutPrefix(part, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return false
		}
		return value%n == 0
	}

	if lo, hi, ok := strings.Cut(part, "-"); ok {
		// Range+step (`1-10/2`) is unsupported and must not mis-evaluate.
		if strings.Contains(hi, "/") {
			return false
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return false
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return false
		}
		return value >= from && value <= to
	}

	n, err := strconv.Atoi(part)
	if err != nil {
		return false
	}
	return value == n
}

// validateField mirrors matchField/matchPart, reporting why a field is
// malformed instead of silently matching nothing.
func validateField(field string, min, max int) error {
	if field == "*" {
		return nil
	}

	for _, part := range strings.Split(field, ",") {
		if part == "*" {
			continue
		}

		if step, ok := strings.CutPrefix(part, "*/"); ok {
			n, err := strconv.Atoi(step)
			if err != nil || n <= 0 {
				return fmt.Errorf("step %q must be a positive integer", step)
			}
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			if strings.Contains(hi, "/") {
				return errors.New("step on a range is not supported")
			}
			from, err := strconv.Atoi(lo)
			if err != nil {
				return fmt.Errorf("range start %q is not an integer", lo)
			}
			to, err := strconv.Atoi(hi)
			if err != nil {
				return fmt.Errorf("range end %q is not an integer", hi)
			}
			if from > to {
				return fmt.Errorf("range %d-%d is inverted", from, to)
			}
			if from < min || to > max {
				return fmt.Errorf("range %d-%d outside %d-%d", from, to, min, max)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("%q is not an integer", part)
		}
		if n < min || n > max {
			return fmt.Errorf("value %d outside %d-%d", n, min, max)
		}
	}

	return nil
}
