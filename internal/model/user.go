package model

import (
	"time"

	"starplanner/internal/timeutil"
)

// User stores Telegram user metadata and notification settings. The core
// only reads users; creation and updates come from the bot and the Mini App.
type User struct {
	ID                   uint  `gorm:"primaryKey"`
	TelegramID           int64 `gorm:"uniqueIndex"`
	FirstName            string
	LastName             string
	Username             string
	Timezone             string // IANA zone name, empty means UTC
	NotificationsEnabled bool   `gorm:"default:true"`
	ReminderTime         string `gorm:"default:09:00"` // local HH:MM for the daily summary
	DailySummary         bool   `gorm:"default:false"`
	LastSummaryDate      *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Location resolves the user's timezone, defaulting to UTC.
func (u *User) Location() *time.Location {
	return timeutil.Location(u.Timezone)
}

// SummarySentOn reports whether the daily summary already went out on the
// given local calendar date.
func (u *User) SummarySentOn(day timeutil.Date) bool {
	if u.LastSummaryDate == nil {
		return false
	}
	return timeutil.FromTime(*u.LastSummaryDate) == day
}
