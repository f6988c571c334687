package model

import "time"

// NotificationType labels why a message went out.
type NotificationType string

const (
	NotificationDueToday     NotificationType = "due_today"
	NotificationDueTomorrow  NotificationType = "due_tomorrow"
	NotificationOverdue      NotificationType = "overdue"
	NotificationReminder     NotificationType = "reminder"
	NotificationDailySummary NotificationType = "daily_summary"
)

// DeliveryStatus tracks the outcome of a dispatch attempt.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Notification is the audit record for one dispatch attempt. Written once
// by the dispatcher; only the delivery status may transition afterwards.
type Notification struct {
	ID             uint  `gorm:"primaryKey"`
	UserID         uint  `gorm:"index"`
	TaskID         *uint `gorm:"index"` // nil for non-task notifications
	Type           NotificationType
	SentAt         time.Time
	DeliveryStatus DeliveryStatus
	DeliveryID     string
	Error          string
	CreatedAt      time.Time
}
