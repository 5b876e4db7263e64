package timeplan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoflow/chronoflow/pkg/models"
)

func date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func weekdays(days ...time.Weekday) [7]bool {
	var filter [7]bool
	for _, day := range days {
		filter[models.WeekdayIndex(day)] = true
	}

	return filter
}

func months(enabled ...time.Month) [12]bool {
	var filter [12]bool
	for _, month := range enabled {
		filter[int(month)-1] = true
	}

	return filter
}

func TestNextExecution_FixedCadence(t *testing.T) {
	testCases := []struct {
		name     string
		kind     models.TimeplanKind
		start    time.Time
		now      time.Time
		expected time.Time
	}{
		{
			name:     "daily advances to next day at start time",
			kind:     models.TimeplanDaily,
			start:    date(2024, time.January, 1, 8, 0),
			now:      date(2024, time.January, 5, 9, 0),
			expected: date(2024, time.January, 6, 8, 0),
		},
		{
			name:     "hourly rounds up to next boundary",
			kind:     models.TimeplanHour,
			start:    date(2024, time.March, 10, 0, 0),
			now:      date(2024, time.March, 10, 5, 30),
			expected: date(2024, time.March, 10, 6, 0),
		},
		{
			name:     "exact boundary is returned, not skipped",
			kind:     models.TimeplanHour,
			start:    date(2024, time.March, 10, 0, 0),
			now:      date(2024, time.March, 10, 5, 0),
			expected: date(2024, time.March, 10, 5, 0),
		},
		{
			name:     "future start returned as is",
			kind:     models.TimeplanMinute,
			start:    date(2024, time.July, 1, 0, 0),
			now:      date(2024, time.June, 1, 0, 0),
			expected: date(2024, time.July, 1, 0, 0),
		},
		{
			name:     "quarter hour steps in 15 minute units",
			kind:     models.TimeplanQuarterHour,
			start:    date(2024, time.January, 1, 0, 0),
			now:      date(2024, time.January, 1, 0, 7),
			expected: date(2024, time.January, 1, 0, 15),
		},
		{
			name:     "weekly keeps the weekday of the start",
			kind:     models.TimeplanWeekly,
			start:    date(2024, time.January, 1, 6, 0),
			now:      date(2024, time.January, 10, 0, 0),
			expected: date(2024, time.January, 15, 6, 0),
		},
		{
			name:     "monthly keeps the day of month",
			kind:     models.TimeplanMonthly,
			start:    date(2024, time.January, 15, 10, 0),
			now:      date(2024, time.March, 20, 0, 0),
			expected: date(2024, time.April, 15, 10, 0),
		},
		{
			name:     "yearly keeps the calendar date",
			kind:     models.TimeplanYearly,
			start:    date(2022, time.May, 1, 0, 0),
			now:      date(2024, time.June, 1, 0, 0),
			expected: date(2025, time.May, 1, 0, 0),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tp := &models.Timeplan{ID: 1, Kind: tc.kind, Start: tc.start}

			next, err := NextExecution(tp, true, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, next)
		})
	}
}

func TestNextExecution_RunImmediately(t *testing.T) {
	tp := &models.Timeplan{
		ID:             1,
		Kind:           models.TimeplanDaily,
		Start:          date(2024, time.January, 1, 8, 0),
		RunImmediately: true,
	}

	now := date(2024, time.January, 5, 9, 0)

	next, err := NextExecution(tp, false, now)
	require.NoError(t, err)
	assert.Equal(t, now, next, "first run bypasses the recurrence rules")

	next, err = NextExecution(tp, true, now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 6, 8, 0), next,
		"executed workflows follow the normal rules")
}

func TestNextExecution_ManualWeekdayFilter(t *testing.T) {
	tp := &models.Timeplan{
		ID:       1,
		Kind:     models.TimeplanManual,
		Start:    date(2024, time.January, 1, 8, 0),
		Weekdays: weekdays(time.Monday, time.Wednesday, time.Friday),
	}

	// Wednesday after 08:00: Wednesday's slot is gone, Friday is next.
	next, err := NextExecution(tp, true, date(2024, time.January, 3, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 5, 8, 0), next)

	// Wednesday before 08:00 still hits Wednesday.
	next, err = NextExecution(tp, true, date(2024, time.January, 3, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 3, 8, 0), next)
}

func TestNextExecution_ManualLastDayOfMonth(t *testing.T) {
	tp := &models.Timeplan{
		ID:             1,
		Kind:           models.TimeplanManual,
		Start:          date(2024, time.January, 1, 8, 0),
		Weekdays:       weekdays(time.Friday),
		LastDayOfMonth: true,
	}

	// The first month of 2024 whose last calendar day is a Friday is May.
	next, err := NextExecution(tp, true, date(2024, time.January, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.May, 31, 8, 0), next)
}

func TestNextExecution_ManualLastDayUnfiltered(t *testing.T) {
	tp := &models.Timeplan{
		ID:             1,
		Kind:           models.TimeplanManual,
		Start:          date(2024, time.January, 1, 23, 30),
		LastDayOfMonth: true,
	}

	next, err := NextExecution(tp, true, date(2024, time.February, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 29, 23, 30), next)
}

func TestNextExecution_ManualWeekOfMonth(t *testing.T) {
	// Week 1 of February 2024 is Monday-aligned: 2024-01-29 .. 2024-02-04.
	tp := &models.Timeplan{
		ID:          1,
		Kind:        models.TimeplanManual,
		Start:       date(2024, time.January, 1, 8, 0),
		Months:      months(time.February),
		WeekOfMonth: 1,
	}

	next, err := NextExecution(tp, true, date(2024, time.January, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 29, 8, 0), next,
		"the Monday-aligned first week of February 2024 starts in January")

	// Restricting the weekday filter picks a later day of the same week.
	tp.Weekdays = weekdays(time.Wednesday)

	next, err = NextExecution(tp, true, date(2024, time.January, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 31, 8, 0), next)
}

func TestNextExecution_ManualWeekOfMonthAdvancesMonths(t *testing.T) {
	tp := &models.Timeplan{
		ID:          1,
		Kind:        models.TimeplanManual,
		Start:       date(2024, time.January, 1, 8, 0),
		Months:      months(time.March),
		WeekOfMonth: 1,
	}

	// February is filtered out, so week 1 of March 2024 applies:
	// 2024-02-26 .. 2024-03-03.
	next, err := NextExecution(tp, true, date(2024, time.January, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 26, 8, 0), next)
}

func TestNextExecution_ManualDayRepetitions(t *testing.T) {
	tp := &models.Timeplan{
		ID:             1,
		Kind:           models.TimeplanManual,
		Start:          date(2024, time.January, 1, 6, 0),
		DayRepetitions: 2,
	}

	// Two runs per day means a 12 hour interval from the start's time-of-day.
	next, err := NextExecution(tp, true, date(2024, time.January, 2, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 2, 18, 0), next)
}

func TestNextExecution_ManualWeekRepetitions(t *testing.T) {
	tp := &models.Timeplan{
		ID:              1,
		Kind:            models.TimeplanManual,
		Start:           date(2024, time.January, 1, 8, 0),
		Weekdays:        weekdays(time.Monday, time.Thursday),
		WeekRepetitions: 2,
	}

	// Two repetitions across Monday and Thursday run both days at 08:00.
	// From a Tuesday the next slot is Thursday.
	next, err := NextExecution(tp, true, date(2024, time.January, 2, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 4, 8, 0), next)
}

func TestNextExecution_ScheduleExhausted(t *testing.T) {
	end := date(2023, time.December, 31, 0, 0)
	tp := &models.Timeplan{
		ID:    1,
		Kind:  models.TimeplanManual,
		Start: date(2023, time.January, 1, 8, 0),
		End:   &end,
	}

	_, err := NextExecution(tp, true, date(2024, time.January, 1, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScheduleExhausted)
}

func TestNextExecution_Cron(t *testing.T) {
	tp := &models.Timeplan{
		ID:         1,
		Kind:       models.TimeplanCron,
		Start:      date(2024, time.January, 1, 0, 0),
		Expression: "0 12 * * *",
	}

	next, err := NextExecution(tp, true, date(2024, time.June, 1, 13, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 2, 12, 0), next)

	// A start in the future floors the cron search.
	tp.Start = date(2024, time.July, 1, 0, 0)

	next, err = NextExecution(tp, true, date(2024, time.June, 1, 13, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.July, 1, 12, 0), next)
}

func TestNextExecution_InvalidConfiguration(t *testing.T) {
	tp := &models.Timeplan{
		ID:              1,
		Kind:            models.TimeplanManual,
		Start:           date(2024, time.January, 1, 8, 0),
		DayRepetitions:  2,
		WeekRepetitions: 3,
	}

	_, err := NextExecution(tp, true, date(2024, time.January, 1, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAmbiguousRepetition)

	tp = &models.Timeplan{ID: 2, Kind: "hourly-ish", Start: date(2024, time.January, 1, 0, 0)}

	_, err = NextExecution(tp, true, date(2024, time.January, 1, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidTimeplan)
}
