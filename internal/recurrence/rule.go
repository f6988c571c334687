package recurrence

import (
	"fmt"

	"starplanner/internal/timeutil"
)

// RepeatType selects how occurrence dates are derived from the anchor.
type RepeatType string

const (
	Daily   RepeatType = "daily"
	Weekly  RepeatType = "weekly"
	Monthly RepeatType = "monthly"
	Custom  RepeatType = "custom"
)

// Unit is the interval unit for custom rules.
type Unit string

const (
	UnitDays   Unit = "days"
	UnitWeeks  Unit = "weeks"
	UnitMonths Unit = "months"
)

// Rule describes a task's repeat schedule. Interval counts days, weeks or
// months depending on the type; Unit is meaningful only for Custom.
type Rule struct {
	Type     RepeatType
	Interval int
	Unit     Unit
}

// Validate checks the rule shape. Upstream validation should have rejected
// malformed rules already; the generator logs and skips templates that fail here.
func (r Rule) Validate() error {
	if r.Interval <= 0 || r.Interval > 365 {
		return fmt.Errorf("interval %d out of range", r.Interval)
	}
	switch r.Type {
	case Daily, Weekly, Monthly:
		return nil
	case Custom:
		switch r.Unit {
		case UnitDays, UnitWeeks, UnitMonths:
			return nil
		}
		return fmt.Errorf("custom rule requires unit, got %q", r.Unit)
	}
	return fmt.Errorf("unknown repeat type %q", r.Type)
}

// effective collapses a custom rule onto its day/week/month equivalent.
func (r Rule) effective() (RepeatType, bool) {
	switch r.Type {
	case Daily, Weekly, Monthly:
		return r.Type, true
	case Custom:
		switch r.Unit {
		case UnitDays:
			return Daily, true
		case UnitWeeks:
			return Weekly, true
		case UnitMonths:
			return Monthly, true
		}
	}
	return "", false
}

// NextOccurrence returns the first occurrence strictly after the anchor.
// Monthly steps keep the anchor's day of month, clamped to the last valid
// day when the target month is shorter. ok is false only for an
// unrecognized rule type.
func NextOccurrence(anchor timeutil.Date, r Rule) (timeutil.Date, bool) {
	typ, ok := r.effective()
	if !ok {
		return timeutil.Date{}, false
	}
	switch typ {
	case Daily:
		return anchor.AddDays(r.Interval), true
	case Weekly:
		return anchor.AddDays(r.Interval * 7), true
	default:
		return anchor.AddMonthsClamped(r.Interval), true
	}
}

// IsOccurrenceDate reports whether target is a valid occurrence of the rule
// anchored at anchor. Day-based rules match when the day distance divides
// evenly by the interval. Monthly rules require the same day of month and an
// even month distance, which means a rule anchored on the 31st never fires
// in shorter months.
func IsOccurrenceDate(anchor, target timeutil.Date, r Rule, end *timeutil.Date) bool {
	if target.Before(anchor) {
		return false
	}
	if end != nil && target.After(*end) {
		return false
	}
	if target == anchor {
		return true
	}

	typ, ok := r.effective()
	if !ok {
		return false
	}
	switch typ {
	case Daily:
		return timeutil.DaysBetween(anchor, target)%r.Interval == 0
	case Weekly:
		return timeutil.DaysBetween(anchor, target)%(r.Interval*7) == 0
	default:
		if target.Day != anchor.Day {
			return false
		}
		return timeutil.MonthsBetween(anchor, target)%r.Interval == 0
	}
}
