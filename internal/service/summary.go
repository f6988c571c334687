package service

import (
	"fmt"
	"html"
	"strings"

	"starplanner/internal/model"
	"starplanner/internal/timeutil"
)

// buildSummaryText renders the daily summary message. HTML parse mode, so
// user-provided text is escaped.
func buildSummaryText(today timeutil.Date, overdue, dueToday []model.Task) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", today.Time().Format("02.01.2006")))

	if len(overdue) > 0 {
		builder.WriteString("\n⚠️ <b>Просроченные</b>\n")
		for _, task := range overdue {
			builder.WriteString(formatSummaryLine(task))
		}
	}

	if len(dueToday) > 0 {
		builder.WriteString("\n⏳ <b>На сегодня</b>\n")
		for _, task := range dueToday {
			builder.WriteString(formatSummaryLine(task))
		}
	}

	return strings.TrimSpace(builder.String())
}

func formatSummaryLine(task model.Task) string {
	var sb strings.Builder
	sb.WriteString("• ")
	sb.WriteString(html.EscapeString(strings.TrimSpace(task.Title)))
	if task.Priority == model.PriorityHigh {
		sb.WriteString(" ❗")
	}
	if task.DueTime != nil && *task.DueTime != "" {
		sb.WriteString(fmt.Sprintf(" · %s", *task.DueTime))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// taskNotificationText renders a single-task reminder for the given status.
func taskNotificationText(task *model.Task, status Status) string {
	var header string
	switch status {
	case StatusOverdue:
		header = "⚠️ <b>Задача просрочена</b>"
	case StatusDueToday:
		header = "⏳ <b>Задача на сегодня</b>"
	case StatusDueTomorrow:
		header = "📅 <b>Задача на завтра</b>"
	default:
		header = "🔔 <b>Напоминание</b>"
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")
	sb.WriteString(html.EscapeString(strings.TrimSpace(task.Title)))

	if due, ok := task.DueDateValue(); ok {
		sb.WriteString(fmt.Sprintf("\n⏰ до %s", due.Time().Format("02.01.2006")))
		if task.DueTime != nil && *task.DueTime != "" {
			sb.WriteString(" " + *task.DueTime)
		}
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}
	return sb.String()
}
