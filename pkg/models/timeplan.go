// Package models defines the core domain models for workflow scheduling and execution.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// TimeplanKind selects the recurrence rule family of a timeplan.
type TimeplanKind string

const (
	// TimeplanManual uses the calendar rule fields (weekdays, months,
	// last-day-of-month, week-of-month, repetition counts).
	TimeplanManual TimeplanKind = "manual"

	// Fixed-cadence kinds repeat at a constant distance from Start.
	TimeplanMinute      TimeplanKind = "minute"
	TimeplanThreeMinute TimeplanKind = "three_minutes"
	TimeplanQuarterHour TimeplanKind = "quarter_hour"
	TimeplanHour        TimeplanKind = "hour"
	TimeplanDaily       TimeplanKind = "daily"
	TimeplanWeekly      TimeplanKind = "weekly"
	TimeplanMonthly     TimeplanKind = "monthly"
	TimeplanYearly      TimeplanKind = "yearly"

	// TimeplanCron uses a standard 5-field cron expression.
	TimeplanCron TimeplanKind = "cron"
)

// Timeplan is the recurrence descriptor attached to a workflow definition.
// The calendar rule fields are only meaningful for the Manual kind and
// Expression only for the Cron kind.
type Timeplan struct {
	ID   int64        `json:"id"   validate:"required"`
	Kind TimeplanKind `json:"kind" validate:"required"`

	// Start carries both the first valid execution instant and, for the
	// Manual kind, the time-of-day applied to every computed candidate.
	Start time.Time `json:"start" validate:"required"`

	// RunImmediately bypasses all recurrence rules on the very first run
	// of a workflow that has never executed before.
	RunImmediately bool `json:"run_immediately"`

	// End bounds the schedule; nil means open-ended.
	End *time.Time `json:"end,omitempty"`

	// Weekdays enables execution per day of week, Monday-first. All false
	// means unconstrained.
	Weekdays [7]bool `json:"weekdays"`

	// Months enables execution per calendar month. All false means
	// unconstrained.
	Months [12]bool `json:"months"`

	// LastDayOfMonth requests execution on the last calendar day of a month.
	LastDayOfMonth bool `json:"last_day_of_month"`

	// WeekOfMonth requests execution within the Nth Monday-aligned week of
	// a month (1-5). Zero means unconstrained.
	WeekOfMonth int `json:"week_of_month" validate:"min=0,max=5"`

	// DayRepetitions and WeekRepetitions are mutually exclusive repetition
	// counts; both zero defaults to once per day.
	DayRepetitions  int `json:"day_repetitions"  validate:"min=0"`
	WeekRepetitions int `json:"week_repetitions" validate:"min=0"`

	// Expression is the cron expression for the Cron kind
	// (minute hour day month weekday).
	Expression string `json:"expression,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrInvalidTimeplan is returned when timeplan validation fails.
	ErrInvalidTimeplan = errors.New("invalid timeplan configuration")

	// ErrAmbiguousRepetition is returned when both repetition counts are set.
	ErrAmbiguousRepetition = errors.New("day and week repetitions are mutually exclusive")
)

var timeplanKinds = map[TimeplanKind]struct{}{
	TimeplanManual:      {},
	TimeplanMinute:      {},
	TimeplanThreeMinute: {},
	TimeplanQuarterHour: {},
	TimeplanHour:        {},
	TimeplanDaily:       {},
	TimeplanWeekly:      {},
	TimeplanMonthly:     {},
	TimeplanYearly:      {},
	TimeplanCron:        {},
}

// Validate performs structural validation of the timeplan fields.
func (tp *Timeplan) Validate() error {
	if _, ok := timeplanKinds[tp.Kind]; !ok {
		return ErrInvalidTimeplan
	}

	if err := structValidator.Struct(tp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeplan, err)
	}

	if tp.Kind == TimeplanManual && tp.DayRepetitions > 0 && tp.WeekRepetitions > 0 {
		return ErrAmbiguousRepetition
	}

	if tp.Kind == TimeplanCron {
		if tp.Expression == "" {
			return ErrInvalidTimeplan
		}

		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

		_, err := parser.Parse(tp.Expression)

		return err
	}

	return nil
}

// WeekdayEnabled reports whether the given weekday passes the weekday filter.
// An empty filter allows every day.
func (tp *Timeplan) WeekdayEnabled(day time.Weekday) bool {
	any := false

	for _, enabled := range tp.Weekdays {
		if enabled {
			any = true

			break
		}
	}

	if !any {
		return true
	}

	return tp.Weekdays[WeekdayIndex(day)]
}

// MonthEnabled reports whether the given month passes the month filter.
// An empty filter allows every month.
func (tp *Timeplan) MonthEnabled(month time.Month) bool {
	any := false

	for _, enabled := range tp.Months {
		if enabled {
			any = true

			break
		}
	}

	if !any {
		return true
	}

	return tp.Months[int(month)-1]
}

// EnabledWeekdays returns the allowed weekdays in Monday-first order.
// An empty filter yields all seven days.
func (tp *Timeplan) EnabledWeekdays() []time.Weekday {
	days := make([]time.Weekday, 0, 7)

	for i := range 7 {
		if tp.Weekdays[i] {
			days = append(days, WeekdayFromIndex(i))
		}
	}

	if len(days) == 0 {
		for i := range 7 {
			days = append(days, WeekdayFromIndex(i))
		}
	}

	return days
}

// WeekdayIndex maps a time.Weekday onto the Monday-first index used by the
// Weekdays field.
func WeekdayIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// WeekdayFromIndex is the inverse of WeekdayIndex.
func WeekdayFromIndex(index int) time.Weekday {
	return time.Weekday((index + 1) % 7)
}
