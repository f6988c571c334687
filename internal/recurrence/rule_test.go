package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starplanner/internal/timeutil"
)

func date(y int, m time.Month, d int) timeutil.Date {
	return timeutil.Date{Year: y, Month: m, Day: d}
}

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, Rule{Type: Daily, Interval: 1}.Validate())
	assert.NoError(t, Rule{Type: Weekly, Interval: 2}.Validate())
	assert.NoError(t, Rule{Type: Custom, Interval: 10, Unit: UnitDays}.Validate())

	assert.Error(t, Rule{Type: Daily, Interval: 0}.Validate())
	assert.Error(t, Rule{Type: Daily, Interval: 366}.Validate())
	assert.Error(t, Rule{Type: Custom, Interval: 3}.Validate())
	assert.Error(t, Rule{Type: "yearly", Interval: 1}.Validate())
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name   string
		anchor timeutil.Date
		rule   Rule
		want   timeutil.Date
	}{
		{"daily", date(2024, time.January, 1), Rule{Type: Daily, Interval: 1}, date(2024, time.January, 2)},
		{"every third day", date(2024, time.January, 1), Rule{Type: Daily, Interval: 3}, date(2024, time.January, 4)},
		{"weekly", date(2024, time.March, 1), Rule{Type: Weekly, Interval: 1}, date(2024, time.March, 8)},
		{"biweekly", date(2024, time.March, 1), Rule{Type: Weekly, Interval: 2}, date(2024, time.March, 15)},
		{"monthly", date(2024, time.April, 15), Rule{Type: Monthly, Interval: 1}, date(2024, time.May, 15)},
		{"monthly clamps to leap february", date(2024, time.January, 31), Rule{Type: Monthly, Interval: 1}, date(2024, time.February, 29)},
		{"custom weeks", date(2024, time.March, 1), Rule{Type: Custom, Interval: 2, Unit: UnitWeeks}, date(2024, time.March, 15)},
		{"custom months", date(2024, time.January, 10), Rule{Type: Custom, Interval: 3, Unit: UnitMonths}, date(2024, time.April, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.anchor, tt.rule)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := NextOccurrence(date(2024, time.January, 1), Rule{Type: "yearly", Interval: 1})
	assert.False(t, ok)
}

func TestIsOccurrenceDateDaily(t *testing.T) {
	anchor := date(2024, time.January, 1)
	rule := Rule{Type: Daily, Interval: 3}

	assert.True(t, IsOccurrenceDate(anchor, anchor, rule, nil))
	assert.True(t, IsOccurrenceDate(anchor, date(2024, time.January, 4), rule, nil))
	assert.True(t, IsOccurrenceDate(anchor, date(2024, time.January, 7), rule, nil))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.January, 2), rule, nil))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.January, 5), rule, nil))

	// Dates before the anchor are never occurrences.
	assert.False(t, IsOccurrenceDate(anchor, date(2023, time.December, 29), rule, nil))
}

func TestIsOccurrenceDateWeekly(t *testing.T) {
	anchor := date(2024, time.March, 1)
	rule := Rule{Type: Weekly, Interval: 1}

	for _, day := range []int{1, 8, 15, 22} {
		assert.True(t, IsOccurrenceDate(anchor, date(2024, time.March, day), rule, nil), "day %d", day)
	}
	for _, day := range []int{2, 7, 9, 14} {
		assert.False(t, IsOccurrenceDate(anchor, date(2024, time.March, day), rule, nil), "day %d", day)
	}
}

func TestIsOccurrenceDateMonthlyOn31st(t *testing.T) {
	// Anchored on the 31st, the occurrence check requires day-of-month
	// equality, so shorter months are silently skipped.
	anchor := date(2024, time.January, 31)
	rule := Rule{Type: Monthly, Interval: 1}

	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.February, 29), rule, nil))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.February, 28), rule, nil))
	assert.True(t, IsOccurrenceDate(anchor, date(2024, time.March, 31), rule, nil))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.April, 30), rule, nil))
	assert.True(t, IsOccurrenceDate(anchor, date(2024, time.May, 31), rule, nil))
}

func TestIsOccurrenceDateMonthlyInterval(t *testing.T) {
	anchor := date(2024, time.January, 15)
	rule := Rule{Type: Monthly, Interval: 2}

	assert.True(t, IsOccurrenceDate(anchor, date(2024, time.March, 15), rule, nil))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.February, 15), rule, nil))
	assert.True(t, IsOccurrenceDate(anchor, date(2025, time.January, 15), rule, nil))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.March, 16), rule, nil))
}

func TestIsOccurrenceDateEndDate(t *testing.T) {
	anchor := date(2024, time.March, 1)
	rule := Rule{Type: Daily, Interval: 1}
	end := date(2024, time.March, 10)

	assert.True(t, IsOccurrenceDate(anchor, date(2024, time.March, 10), rule, &end))
	assert.False(t, IsOccurrenceDate(anchor, date(2024, time.March, 11), rule, &end))
}

func TestIsOccurrenceDateCustomCollapses(t *testing.T) {
	anchor := date(2024, time.March, 1)
	custom := Rule{Type: Custom, Interval: 2, Unit: UnitWeeks}
	weekly := Rule{Type: Weekly, Interval: 2}

	for day := 1; day <= 31; day++ {
		target := date(2024, time.March, day)
		assert.Equal(t,
			IsOccurrenceDate(anchor, target, weekly, nil),
			IsOccurrenceDate(anchor, target, custom, nil),
			"day %d", day)
	}
}
