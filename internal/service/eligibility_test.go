package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"starplanner/internal/model"
	"starplanner/internal/timeutil"
)

func taskDue(due *timeutil.Date, completed, notified bool) *model.Task {
	task := &model.Task{Completed: completed, NotificationSent: notified}
	if due != nil {
		dueAt := due.Time()
		task.DueDate = &dueAt
	}
	return task
}

func datePtr(y int, m time.Month, d int) *timeutil.Date {
	date := timeutil.Date{Year: y, Month: m, Day: d}
	return &date
}

func TestClassify(t *testing.T) {
	today := timeutil.Date{Year: 2024, Month: time.June, Day: 10}

	tests := []struct {
		name string
		task *model.Task
		want Status
	}{
		{"completed wins over everything", taskDue(datePtr(2024, time.June, 1), true, false), StatusCompleted},
		{"no due date", taskDue(nil, false, false), StatusNoDate},
		{"overdue yesterday", taskDue(datePtr(2024, time.June, 9), false, false), StatusOverdue},
		{"overdue long ago", taskDue(datePtr(2023, time.December, 31), false, false), StatusOverdue},
		{"due today", taskDue(datePtr(2024, time.June, 10), false, false), StatusDueToday},
		{"due tomorrow", taskDue(datePtr(2024, time.June, 11), false, false), StatusDueTomorrow},
		{"due this week", taskDue(datePtr(2024, time.June, 17), false, false), StatusDueThisWeek},
		{"upcoming", taskDue(datePtr(2024, time.June, 18), false, false), StatusUpcoming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.task, today))
		})
	}
}

func TestNotificationOwed(t *testing.T) {
	today := timeutil.Date{Year: 2024, Month: time.June, Day: 10}

	tests := []struct {
		name string
		task *model.Task
		owed bool
	}{
		{"overdue owed", taskDue(datePtr(2024, time.June, 9), false, false), true},
		{"due today owed", taskDue(datePtr(2024, time.June, 10), false, false), true},
		{"due tomorrow owed", taskDue(datePtr(2024, time.June, 11), false, false), true},
		{"due this week not owed", taskDue(datePtr(2024, time.June, 14), false, false), false},
		{"no date not owed", taskDue(nil, false, false), false},
		{"completed not owed", taskDue(datePtr(2024, time.June, 10), true, false), false},
		{"already notified not owed", taskDue(datePtr(2024, time.June, 10), false, true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, owed := NotificationOwed(tt.task, today)
			assert.Equal(t, tt.owed, owed)
		})
	}
}

func TestNotificationTypeMapping(t *testing.T) {
	assert.Equal(t, model.NotificationOverdue, notificationType(StatusOverdue))
	assert.Equal(t, model.NotificationDueToday, notificationType(StatusDueToday))
	assert.Equal(t, model.NotificationDueTomorrow, notificationType(StatusDueTomorrow))
	assert.Equal(t, model.NotificationReminder, notificationType(StatusUpcoming))
}
