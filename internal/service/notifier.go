package service

import (
	"context"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"starplanner/internal/model"
	"starplanner/internal/repository"
	"starplanner/internal/timeutil"
)

// Sender is the outbound message channel. Failures surface as errors the
// dispatcher catches per item.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (string, error)
}

// summaryWindow is how long after the configured reminder time the daily
// summary may still go out.
const summaryWindow = 15 * time.Minute

// Notifier is the dispatcher: each tick it finds owed task reminders and
// due daily summaries, sends at most one message per status episode, and
// records every attempt in the notification audit trail.
type Notifier struct {
	users         *repository.UserRepository
	tasks         *repository.TaskRepository
	notifications *repository.NotificationRepository
	sender        Sender
	sendDelay     time.Duration
}

func NewNotifier(
	users *repository.UserRepository,
	tasks *repository.TaskRepository,
	notifications *repository.NotificationRepository,
	sender Sender,
	sendDelay time.Duration,
) *Notifier {
	return &Notifier{
		users:         users,
		tasks:         tasks,
		notifications: notifications,
		sender:        sender,
		sendDelay:     sendDelay,
	}
}

// RunTick processes all notifiable users once. Safe to invoke more often
// than scheduled: eligibility gating makes extra ticks no-ops. Only a
// failure to even list users aborts the tick.
func (n *Notifier) RunTick(ctx context.Context, now time.Time) error {
	users, err := n.users.ListNotifiable(ctx)
	if err != nil {
		return fmt.Errorf("list notifiable users: %w", err)
	}

	for i := range users {
		n.processUser(ctx, &users[i], now)
	}
	return nil
}

func (n *Notifier) processUser(ctx context.Context, user *model.User, now time.Time) {
	loc := user.Location()
	today := timeutil.DateOf(now, loc)

	if user.DailySummary && n.inSummaryWindow(user, now) && !user.SummarySentOn(today) {
		n.sendSummary(ctx, user, now, today)
	}

	tasks, err := n.tasks.ListNotifiable(ctx, user.ID)
	if err != nil {
		log.Printf("[warn] list notifiable tasks for user %d: %v", user.ID, err)
		return
	}

	for i := range tasks {
		status, owed := NotificationOwed(&tasks[i], today)
		if !owed {
			continue
		}
		n.dispatchTask(ctx, user, &tasks[i], status, now)
		// Small pause between sends to respect channel rate limits.
		if n.sendDelay > 0 {
			time.Sleep(n.sendDelay)
		}
	}
}

// inSummaryWindow reports whether now falls within summaryWindow after the
// user's configured reminder time, in the user's own timezone.
func (n *Notifier) inSummaryWindow(user *model.User, now time.Time) bool {
	hour, minute, err := timeutil.ParseClock(user.ReminderTime)
	if err != nil {
		log.Printf("[warn] user %d has invalid reminder time %q", user.ID, user.ReminderTime)
		return false
	}
	local := now.In(user.Location())
	reminderAt := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	return !local.Before(reminderAt) && local.Sub(reminderAt) < summaryWindow
}

// dispatchTask sends one task reminder. The eligibility flag is claimed
// with an atomic compare-and-set before the send, so overlapping ticks that
// both listed the task cannot both dispatch the same episode; a failed send
// flips the flag back and the next tick retries.
func (n *Notifier) dispatchTask(ctx context.Context, user *model.User, task *model.Task, status Status, now time.Time) {
	claimed, err := n.tasks.ClaimNotification(ctx, task.ID)
	if err != nil {
		log.Printf("[warn] claim notification for task %d: %v", task.ID, err)
		return
	}
	if !claimed {
		// Another tick got here first.
		return
	}

	row := model.Notification{
		UserID: user.ID,
		TaskID: &task.ID,
		Type:   notificationType(status),
		SentAt: now,
	}

	deliveryID, err := n.sender.Send(ctx, user.TelegramID, taskNotificationText(task, status), nil)
	if err != nil {
		log.Printf("[warn] send task %d notification to user %d: %v", task.ID, user.ID, err)
		row.DeliveryStatus = model.DeliveryFailed
		row.Error = err.Error()
		if resetErr := n.tasks.SetNotificationSent(ctx, task.ID, false); resetErr != nil {
			log.Printf("[warn] reset notification_sent for task %d: %v", task.ID, resetErr)
		}
	} else {
		row.DeliveryStatus = model.DeliverySent
		row.DeliveryID = deliveryID
	}

	if err := n.notifications.Insert(ctx, &row); err != nil {
		log.Printf("[warn] record notification for task %d: %v", task.ID, err)
	}
}

// sendSummary builds and dispatches the daily summary. Nothing is sent when
// the user has neither overdue nor due-today tasks.
func (n *Notifier) sendSummary(ctx context.Context, user *model.User, now time.Time, today timeutil.Date) {
	pending, err := n.tasks.ListPending(ctx, user.ID)
	if err != nil {
		log.Printf("[warn] list pending tasks for summary, user %d: %v", user.ID, err)
		return
	}

	var overdue, dueToday []model.Task
	for _, task := range pending {
		switch Classify(&task, today) {
		case StatusOverdue:
			overdue = append(overdue, task)
		case StatusDueToday:
			dueToday = append(dueToday, task)
		}
	}
	if len(overdue) == 0 && len(dueToday) == 0 {
		return
	}

	row := model.Notification{
		UserID: user.ID,
		Type:   model.NotificationDailySummary,
		SentAt: now,
	}

	deliveryID, err := n.sender.Send(ctx, user.TelegramID, buildSummaryText(today, overdue, dueToday), nil)
	if err != nil {
		log.Printf("[warn] send daily summary to user %d: %v", user.ID, err)
		row.DeliveryStatus = model.DeliveryFailed
		row.Error = err.Error()
	} else {
		row.DeliveryStatus = model.DeliverySent
		row.DeliveryID = deliveryID
		if err := n.users.SetLastSummaryDate(ctx, user.ID, today.Time()); err != nil {
			log.Printf("[warn] set last summary date for user %d: %v", user.ID, err)
		}
	}

	if err := n.notifications.Insert(ctx, &row); err != nil {
		log.Printf("[warn] record summary notification for user %d: %v", user.ID, err)
	}
}
