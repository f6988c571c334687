package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// BotAPI is the slice of tgbotapi the sender needs; narrow so tests can
// substitute a fake.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RetryPolicy bounds transient-failure retries on a single send. The
// dispatcher's per-item isolation stays separate: once attempts are
// exhausted the error surfaces and the item waits for the next tick.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is used when the caller passes a zero policy.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: time.Second}

// Sender delivers formatted messages to Telegram chats.
type Sender struct {
	api    BotAPI
	policy RetryPolicy
}

func NewSender(api BotAPI, policy RetryPolicy) *Sender {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return &Sender{api: api, policy: policy}
}

// Send delivers an HTML-formatted message with an optional inline keyboard
// and returns a delivery id for the audit trail.
func (s *Sender) Send(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (string, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, lastErr = s.api.Send(msg); lastErr == nil {
			return uuid.NewString(), nil
		}
		if attempt < s.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.policy.Backoff * time.Duration(attempt)):
			}
		}
	}
	return "", fmt.Errorf("send to chat %d: %w", chatID, lastErr)
}
