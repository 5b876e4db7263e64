// Package timeplan computes the next execution instant for a recurrence
// descriptor. All functions are pure: they take the descriptor and a
// reference "now" and never touch storage.
package timeplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chronoflow/chronoflow/pkg/models"
)

var (
	// ErrScheduleExhausted is returned when the timeplan's end date is
	// already in the past. Terminal for the definition until reconfigured.
	ErrScheduleExhausted = errors.New("timeplan end date has passed")

	// ErrNoValidCombination is returned when the calendar rules admit no
	// execution date within the search horizon.
	ErrNoValidCombination = errors.New("timeplan has no valid day and month combination")
)

// monthHorizon bounds the month-by-month candidate searches. Five years of
// months is beyond any sane weekday/month filter combination.
const monthHorizon = 60

// iterationHorizon bounds the theoretical-next-start forward fill.
const iterationHorizon = 100000

// NextExecution computes the next instant at which a workflow governed by tp
// must run, relative to now. executedOnce disables the run-immediately
// first-run fast path.
func NextExecution(tp *models.Timeplan, executedOnce bool, now time.Time) (time.Time, error) {
	if err := tp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("timeplan %d: %w", tp.ID, err)
	}

	if tp.RunImmediately && !executedOnce {
		return now, nil
	}

	switch tp.Kind {
	case models.TimeplanManual:
		return nextManual(tp, now)
	case models.TimeplanCron:
		return nextCron(tp, now)
	default:
		return nextFixedCadence(tp, now)
	}
}

// nextCron delegates to the cron parser: the next activation strictly after
// now, floored at the timeplan start.
func nextCron(tp *models.Timeplan, now time.Time) (time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	schedule, err := parser.Parse(tp.Expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeplan %d: %w", tp.ID, err)
	}

	reference := now
	if tp.Start.After(reference) {
		reference = tp.Start
	}

	return schedule.Next(reference), nil
}

// nextFixedCadence forward-fills start + k*unit until the result reaches now.
// No calendar filtering applies to the fixed kinds.
func nextFixedCadence(tp *models.Timeplan, now time.Time) (time.Time, error) {
	if !tp.Start.Before(now) {
		return tp.Start, nil
	}

	switch tp.Kind {
	case models.TimeplanMonthly:
		next := tp.Start
		for next.Before(now) {
			next = next.AddDate(0, 1, 0)
		}

		return next, nil
	case models.TimeplanYearly:
		next := tp.Start
		for next.Before(now) {
			next = next.AddDate(1, 0, 0)
		}

		return next, nil
	default:
		unit, err := cadenceUnit(tp.Kind)
		if err != nil {
			return time.Time{}, err
		}

		steps := now.Sub(tp.Start) / unit

		next := tp.Start.Add(steps * unit)
		if next.Before(now) {
			next = next.Add(unit)
		}

		return next, nil
	}
}

func cadenceUnit(kind models.TimeplanKind) (time.Duration, error) {
	switch kind {
	case models.TimeplanMinute:
		return time.Minute, nil
	case models.TimeplanThreeMinute:
		return 3 * time.Minute, nil
	case models.TimeplanQuarterHour:
		return 15 * time.Minute, nil
	case models.TimeplanHour:
		return time.Hour, nil
	case models.TimeplanDaily:
		return 24 * time.Hour, nil
	case models.TimeplanWeekly:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: no fixed cadence for kind %q", models.ErrInvalidTimeplan, kind)
	}
}

// nextManual resolves the calendar-rule path: the earliest of the
// last-day-of-month and week-of-month candidates when those rules are set,
// the theoretical-next-start otherwise. The theoretical candidate also
// serves as the fallback when the flagged searches exhaust their horizon.
func nextManual(tp *models.Timeplan, now time.Time) (time.Time, error) {
	if tp.End != nil && tp.End.Before(now) {
		return time.Time{}, fmt.Errorf("timeplan %d: %w", tp.ID, ErrScheduleExhausted)
	}

	var candidates []time.Time

	if tp.LastDayOfMonth {
		if candidate, ok := lastDayCandidate(tp, now); ok {
			candidates = append(candidates, candidate)
		}
	}

	if tp.WeekOfMonth > 0 {
		if candidate, ok := weekOfMonthCandidate(tp, now); ok {
			candidates = append(candidates, candidate)
		}
	}

	if len(candidates) == 0 {
		return theoreticalNextStart(tp, now)
	}

	earliest := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Before(earliest) {
			earliest = candidate
		}
	}

	return earliest, nil
}

// lastDayCandidate advances month by month from now until a month's last
// calendar day passes both the month and weekday filters, combined with the
// timeplan's time-of-day.
func lastDayCandidate(tp *models.Timeplan, now time.Time) (time.Time, bool) {
	year, month := now.Year(), now.Month()

	for range monthHorizon {
		last := lastDayOfMonth(year, month, now.Location())

		if tp.MonthEnabled(month) && tp.WeekdayEnabled(last.Weekday()) {
			candidate := atTimeOfDay(last, tp.Start)
			if !candidate.Before(now) {
				return candidate, true
			}
		}

		year, month = nextMonth(year, month)
	}

	return time.Time{}, false
}

// weekOfMonthCandidate walks candidate (year, month) pairs starting from the
// earliest allowed month and returns the first date of the requested
// Monday-aligned week that reaches now and passes the weekday filter. Dates
// spilling into the following month are rejected.
func weekOfMonthCandidate(tp *models.Timeplan, now time.Time) (time.Time, bool) {
	year, month := now.Year(), now.Month()

	for range monthHorizon {
		if !tp.MonthEnabled(month) {
			year, month = nextMonth(year, month)

			continue
		}

		weekStart := mondayOnOrBefore(time.Date(year, month, 1, 0, 0, 0, 0, now.Location()))
		weekStart = weekStart.AddDate(0, 0, 7*(tp.WeekOfMonth-1))

		for offset := range 7 {
			day := weekStart.AddDate(0, 0, offset)

			// Week boundaries may reach back into the previous month but
			// never forward past the target month.
			if day.Year() > year || (day.Year() == year && day.Month() > month) {
				break
			}

			if !tp.WeekdayEnabled(day.Weekday()) {
				continue
			}

			candidate := atTimeOfDay(day, tp.Start)
			if !candidate.Before(now) {
				return candidate, true
			}
		}

		year, month = nextMonth(year, month)
	}

	return time.Time{}, false
}

// theoreticalNextStart is the default candidate: a trial instant in the
// nearest allowed month, advanced by the inter-execution interval until it
// reaches now and passes both calendar filters.
func theoreticalNextStart(tp *models.Timeplan, now time.Time) (time.Time, error) {
	year, month, found := nearestEnabledMonth(tp, now)
	if !found {
		return time.Time{}, fmt.Errorf("timeplan %d: %w", tp.ID, ErrNoValidCombination)
	}

	var trial time.Time
	if year == now.Year() && month == now.Month() {
		trial = atTimeOfDay(now, tp.Start)
	} else {
		trial = atTimeOfDay(time.Date(year, month, 1, 0, 0, 0, 0, now.Location()), tp.Start)
	}

	interval := interExecutionInterval(tp)

	if tp.WeekRepetitions > 0 {
		trial = snapToRepetitionDay(tp, trial, interval)
	}

	for range iterationHorizon {
		if !trial.Before(now) && tp.WeekdayEnabled(trial.Weekday()) && tp.MonthEnabled(trial.Month()) {
			return trial, nil
		}

		trial = trial.Add(interval)
	}

	return time.Time{}, fmt.Errorf("timeplan %d: %w", tp.ID, ErrNoValidCombination)
}

// interExecutionInterval derives the distance between two executions from
// the repetition counts: 24h/n for day repetitions, (allowedDays*24h)/n for
// week repetitions, 24h otherwise.
func interExecutionInterval(tp *models.Timeplan) time.Duration {
	const day = 24 * time.Hour

	if tp.DayRepetitions > 0 {
		return day / time.Duration(tp.DayRepetitions)
	}

	if tp.WeekRepetitions > 0 {
		daysPerWeek := len(tp.EnabledWeekdays())

		return time.Duration(daysPerWeek) * day / time.Duration(tp.WeekRepetitions)
	}

	return day
}

// repetition is one entry of the day-to-time repetition map: a weekday and
// the time-of-day (as an offset from midnight) of one weekly execution.
type repetition struct {
	day time.Weekday
	at  time.Duration
}

// repetitionMap emits WeekRepetitions entries cycling through the allowed
// weekday list, each entry's time-of-day advancing by the inter-execution
// interval. When the accumulated time wraps past 24h the day pointer
// advances into the weekday list accordingly.
func repetitionMap(tp *models.Timeplan, interval time.Duration) []repetition {
	const day = 24 * time.Hour

	days := tp.EnabledWeekdays()
	entries := make([]repetition, 0, tp.WeekRepetitions)

	dayIndex := 0
	at := timeOfDay(tp.Start)

	for range tp.WeekRepetitions {
		entries = append(entries, repetition{day: days[dayIndex], at: at})

		at += interval
		for at >= day {
			at -= day
			dayIndex = (dayIndex + 1) % len(days)
		}
	}

	return entries
}

// snapToRepetitionDay moves the trial instant forward to the nearest day
// whose weekday appears in the repetition map, taking that entry's
// time-of-day.
func snapToRepetitionDay(tp *models.Timeplan, trial time.Time, interval time.Duration) time.Time {
	entries := repetitionMap(tp, interval)

	for offset := range 7 {
		candidate := trial.AddDate(0, 0, offset)

		for _, entry := range entries {
			if candidate.Weekday() != entry.day {
				continue
			}

			snapped := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), 0, 0, 0, 0, candidate.Location()).Add(entry.at)

			if offset == 0 && snapped.Before(trial) {
				continue
			}

			return snapped
		}
	}

	return trial
}

// nearestEnabledMonth finds the first allowed month at or after now's month,
// wrapping into the following year when none remain in the current one.
func nearestEnabledMonth(tp *models.Timeplan, now time.Time) (int, time.Month, bool) {
	year, month := now.Year(), now.Month()

	for range 13 {
		if tp.MonthEnabled(month) {
			return year, month, true
		}

		year, month = nextMonth(year, month)
	}

	return 0, 0, false
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}

	return year, month + 1
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)

	return firstOfNext.AddDate(0, 0, -1)
}

// mondayOnOrBefore returns the Monday of the week containing t.
func mondayOnOrBefore(t time.Time) time.Time {
	return t.AddDate(0, 0, -models.WeekdayIndex(t.Weekday()))
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// atTimeOfDay combines the calendar date of day with the time-of-day of ref.
func atTimeOfDay(day time.Time, ref time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), ref.Hour(), ref.Minute(), ref.Second(), 0, day.Location())
}
