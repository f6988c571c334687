package service

import (
	"starplanner/internal/model"
	"starplanner/internal/timeutil"
)

// Status classifies a task against the owner's local calendar date.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusNoDate      Status = "no_date"
	StatusOverdue     Status = "overdue"
	StatusDueToday    Status = "due_today"
	StatusDueTomorrow Status = "due_tomorrow"
	StatusDueThisWeek Status = "due_this_week"
	StatusUpcoming    Status = "upcoming"
)

// Classify is pure: today must already be computed in the owner's timezone.
func Classify(task *model.Task, today timeutil.Date) Status {
	if task.Completed {
		return StatusCompleted
	}
	due, ok := task.DueDateValue()
	if !ok {
		return StatusNoDate
	}
	switch diff := timeutil.DaysBetween(today, due); {
	case diff < 0:
		return StatusOverdue
	case diff == 0:
		return StatusDueToday
	case diff == 1:
		return StatusDueTomorrow
	case diff <= 7:
		return StatusDueThisWeek
	default:
		return StatusUpcoming
	}
}

// NotificationOwed reports whether the task's current status warrants one
// more reminder. NotificationSent is the only state preventing duplicates;
// it is re-evaluated every tick.
func NotificationOwed(task *model.Task, today timeutil.Date) (Status, bool) {
	if task.Completed || task.NotificationSent {
		return "", false
	}
	status := Classify(task, today)
	switch status {
	case StatusOverdue, StatusDueToday, StatusDueTomorrow:
		return status, true
	}
	return status, false
}

// notificationType maps an owed status onto the audit-record type.
func notificationType(status Status) model.NotificationType {
	switch status {
	case StatusOverdue:
		return model.NotificationOverdue
	case StatusDueToday:
		return model.NotificationDueToday
	case StatusDueTomorrow:
		return model.NotificationDueTomorrow
	default:
		return model.NotificationReminder
	}
}
