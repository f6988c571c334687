package model

import "time"

// Donation records a completed Stars payment from a user.
type Donation struct {
	ID                      uint `gorm:"primaryKey"`
	UserID                  uint `gorm:"index"`
	Amount                  int  // Telegram Stars
	TelegramPaymentChargeID string `gorm:"uniqueIndex"`
	CreatedAt               time.Time
}
