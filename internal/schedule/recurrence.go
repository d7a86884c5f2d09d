package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sableword/presswork/internal/cron"
)

// ErrInvalidRecurrence is returned when a recurrence spec is malformed.
// Registration rejects the schedule and leaves it unarmed rather than
// arming a trigger that can never fire correctly.
var ErrInvalidRecurrence = errors.New("invalid recurrence spec")

// clockTime is a wall-clock instant within a day.
type clockTime struct {
	hour   int
	minute int
}

// Recurrence describes when a named trigger fires: at a fixed interval, at
// one or more wall-clock times per day, or per a cron expression. Exactly
// one of the three forms is set.
type Recurrence struct {
	interval time.Duration
	times    []clockTime
	cronExpr string
}

// Every returns a recurrence firing each time the given interval elapses
// since the previous run.
func Every(interval time.Duration) Recurrence {
	return Recurrence{interval: interval}
}

// EveryMinute is the cadence driving the queue dispatcher.
func EveryMinute() Recurrence { return Every(time.Minute) }

// EveryFifteenMinutes is the cadence driving frequent maintenance work.
func EveryFifteenMinutes() Recurrence { return Every(15 * time.Minute) }

// TwiceDaily fires every twelve hours.
func TwiceDaily() Recurrence { return Every(12 * time.Hour) }

// DailyAt returns a recurrence firing once a day at the given "HH:MM" time.
func DailyAt(hhmm string) (Recurrence, error) {
	return AtTimes(hhmm)
}

// AtTimes returns a recurrence firing at each of the given "HH:MM" times
// every day.
func AtTimes(hhmm ...string) (Recurrence, error) {
	if len(hhmm) == 0 {
		return Recurrence{}, fmt.Errorf("%w: no times given", ErrInvalidRecurrence)
	}

	times := make([]clockTime, 0, len(hhmm))
	for _, s := range hhmm {
		ct, err := parseClockTime(s)
		if err != nil {
			return Recurrence{}, err
		}
		times = append(times, ct)
	}

	sort.Slice(times, func(i, j int) bool {
		if times[i].hour != times[j].hour {
			return times[i].hour < times[j].hour
		}
		return times[i].minute < times[j].minute
	})

	return Recurrence{times: times}, nil
}

// Cron returns a recurrence firing whenever the given five-field cron
// expression matches the current minute. The expression is validated here;
// see cron.Matches for supported syntax.
func Cron(expression string) (Recurrence, error) {
	if err := cron.Validate(expression); err != nil {
		return Recurrence{}, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	return Recurrence{cronExpr: expression}, nil
}

// Validate reports whether the recurrence is usable. A zero Recurrence is not.
func (r Recurrence) Validate() error {
	set := 0
	if r.interval > 0 {
		set++
	}
	if len(r.times) > 0 {
		set++
	}
	if r.cronExpr != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of interval, times or cron must be set", ErrInvalidRecurrence)
	}
	return nil
}

// IsInterval reports whether this is an elapsed-interval recurrence, which
// is evaluated against the last run rather than a scheduled wall-clock
// instant.
func (r Recurrence) IsInterval() bool {
	return r.interval > 0
}

// Interval returns the interval for elapsed-interval recurrences and zero
// otherwise.
func (r Recurrence) Interval() time.Duration {
	return r.interval
}

// Next computes the next occurrence strictly after the given instant.
//
// For wall-clock recurrences, if the naive same-day time has already passed
// the occurrence rolls over to the next day. Cron recurrences scan forward
// minute by minute over a one-year horizon: a syntactically valid expression
// that never matches a real date (such as day 30 of month 2), or whose next
// occurrence lies beyond the horizon, yields the zero time. Registration
// treats a zero result as an invalid recurrence.
func (r Recurrence) Next(now time.Time) time.Time {
	switch {
	case r.interval > 0:
		return now.Add(r.interval)

	case len(r.times) > 0:
		for _, ct := range r.times {
			candidate := time.Date(now.Year(), now.Month(), now.Day(),
				ct.hour, ct.minute, 0, 0, now.Location())
			if candidate.After(now) {
				return candidate
			}
		}
		first := r.times[0]
		tomorrow := now.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
			first.hour, first.minute, 0, 0, now.Location())

	case r.cronExpr != "":
		candidate := now.Truncate(time.Minute).Add(time.Minute)
		horizon := now.AddDate(1, 0, 0)
		for candidate.Before(horizon) {
			if cron.Matches(r.cronExpr, candidate) {
				return candidate
			}
			candidate = candidate.Add(time.Minute)
		}
	}

	return time.Time{}
}

// parseClockTime parses "HH:MM" in 24-hour form.
func parseClockTime(s string) (clockTime, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return clockTime{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidRecurrence, s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return clockTime{}, fmt.Errorf("%w: hour %q out of range", ErrInvalidRecurrence, hh)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return clockTime{}, fmt.Errorf("%w: minute %q out of range", ErrInvalidRecurrence, mm)
	}

	return clockTime{hour: hour, minute: minute}, nil
}
