package model

import (
	"time"

	"starplanner/internal/recurrence"
	"starplanner/internal/timeutil"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is either a recurring template (IsRecurring true, ParentTaskID nil)
// or a concrete dated instance (ParentTaskID set). Templates are never
// user-facing due items; only their instances are. The composite unique
// index on (parent_task_id, due_date) is the authoritative guard against
// duplicate instance creation under concurrent job runs.
type Task struct {
	ID               uint  `gorm:"primaryKey"`
	UserID           uint  `gorm:"index"`
	ParentTaskID     *uint `gorm:"index;uniqueIndex:idx_parent_due,priority:1"`
	Title            string
	Description      string
	DueDate          *time.Time `gorm:"uniqueIndex:idx_parent_due,priority:2"`
	DueTime          *string    // local clock time "HH:MM", meaningful only with DueDate
	Priority         Priority   `gorm:"default:medium"`
	Completed        bool       `gorm:"default:false"`
	CompletedAt      *time.Time
	IsRecurring      bool `gorm:"default:false"`
	RepeatType       recurrence.RepeatType
	RepeatInterval   int
	RepeatUnit       recurrence.Unit
	RepeatEndDate    *time.Time
	NotificationSent bool `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TemplateInput carries the fields needed to build a recurring template.
type TemplateInput struct {
	UserID      uint
	Title       string
	Description string
	DueDate     timeutil.Date
	DueTime     *string
	Priority    Priority
	Rule        recurrence.Rule
	EndDate     *timeutil.Date
}

// NewTemplate builds a recurring template. Only templates carry recurrence
// fields; the due date doubles as the anchor for occurrence math.
func NewTemplate(in TemplateInput) *Task {
	due := in.DueDate.Time()
	t := &Task{
		UserID:         in.UserID,
		Title:          in.Title,
		Description:    in.Description,
		DueDate:        &due,
		DueTime:        in.DueTime,
		Priority:       in.Priority,
		IsRecurring:    true,
		RepeatType:     in.Rule.Type,
		RepeatInterval: in.Rule.Interval,
		RepeatUnit:     in.Rule.Unit,
	}
	if in.EndDate != nil {
		end := in.EndDate.Time()
		t.RepeatEndDate = &end
	}
	return t
}

// NewInstance builds a dated instance of the template for the given
// occurrence date. Instances copy the display fields and never inherit the
// recurrence rule.
func NewInstance(template *Task, date timeutil.Date) *Task {
	due := date.Time()
	return &Task{
		UserID:       template.UserID,
		ParentTaskID: &template.ID,
		Title:        template.Title,
		Description:  template.Description,
		DueDate:      &due,
		DueTime:      template.DueTime,
		Priority:     template.Priority,
	}
}

// IsTemplate reports whether the task is a recurring template.
func (t *Task) IsTemplate() bool {
	return t.IsRecurring && t.ParentTaskID == nil
}

// IsInstance reports whether the task was generated from a template.
func (t *Task) IsInstance() bool {
	return t.ParentTaskID != nil
}

// Rule returns the template's recurrence rule.
func (t *Task) Rule() recurrence.Rule {
	return recurrence.Rule{
		Type:     t.RepeatType,
		Interval: t.RepeatInterval,
		Unit:     t.RepeatUnit,
	}
}

// DueDateValue returns the due date as a calendar date.
func (t *Task) DueDateValue() (timeutil.Date, bool) {
	if t.DueDate == nil {
		return timeutil.Date{}, false
	}
	return timeutil.FromTime(*t.DueDate), true
}

// EndDateValue returns the repeat end date as a calendar date.
func (t *Task) EndDateValue() (timeutil.Date, bool) {
	if t.RepeatEndDate == nil {
		return timeutil.Date{}, false
	}
	return timeutil.FromTime(*t.RepeatEndDate), true
}
