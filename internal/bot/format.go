package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/timeutil"
)

func formatTaskLine(task model.Task, today timeutil.Date) string {
	var b strings.Builder
	icon := iconDefault
	due, hasDue := task.DueDateValue()
	if hasDue {
		switch diff := timeutil.DaysBetween(today, due); {
		case diff < 0:
			icon = iconOverdue
		case diff <= 1:
			icon = iconDue
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, task.ID, escape(normalizeTitle(task.Title))))
	if hasDue {
		diff := timeutil.DaysBetween(today, due)
		switch {
		case diff < 0:
			b.WriteString(fmt.Sprintf("   ⏰ Срок: %s — <b>просрочено</b>\n", due))
		case diff == 0:
			b.WriteString("   ⏰ Срок: сегодня")
			if task.DueTime != nil {
				b.WriteString(" в " + *task.DueTime)
			}
			b.WriteByte('\n')
		default:
			b.WriteString(fmt.Sprintf("   ⏰ Срок: %s · осталось %d дн.\n", due, diff))
		}
	}
	if task.Priority == model.PriorityHigh {
		b.WriteString("   ❗ Высокий приоритет\n")
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatTemplateLine(task model.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", iconTemplate, task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("   🔄 %s", ruleLabel(task.Rule())))
	if end, ok := task.EndDateValue(); ok {
		b.WriteString(fmt.Sprintf(" · до %s", end))
	}
	b.WriteByte('\n')
	b.WriteByte('\n')
	return b.String()
}

func ruleLabel(rule recurrence.Rule) string {
	switch rule.Type {
	case recurrence.Daily:
		if rule.Interval <= 1 {
			return "каждый день"
		}
		return fmt.Sprintf("каждые %d дн.", rule.Interval)
	case recurrence.Weekly:
		if rule.Interval <= 1 {
			return "каждую неделю"
		}
		return fmt.Sprintf("каждые %d нед.", rule.Interval)
	case recurrence.Monthly:
		if rule.Interval <= 1 {
			return "каждый месяц"
		}
		return fmt.Sprintf("каждые %d мес.", rule.Interval)
	case recurrence.Custom:
		return fmt.Sprintf("каждые %d %s", rule.Interval, unitLabel(rule.Unit))
	default:
		return string(rule.Type)
	}
}

func unitLabel(unit recurrence.Unit) string {
	switch unit {
	case recurrence.UnitDays:
		return "дн."
	case recurrence.UnitWeeks:
		return "нед."
	case recurrence.UnitMonths:
		return "мес."
	default:
		return string(unit)
	}
}

func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityLow:
		return "низкий"
	case model.PriorityHigh:
		return "высокий"
	default:
		return "средний"
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "включено"
	}
	return "выключено"
}

func parsePriority(text string) (model.Priority, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "низкий", "low", "🔵 низкий":
		return model.PriorityLow, true
	case "средний", "medium", "🟡 средний":
		return model.PriorityMedium, true
	case "высокий", "high", "🔴 высокий":
		return model.PriorityHigh, true
	default:
		return "", false
	}
}

func parseRepeatType(text string) (recurrence.RepeatType, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "каждый день", "день", "daily":
		return recurrence.Daily, true
	case "каждую неделю", "неделя", "weekly":
		return recurrence.Weekly, true
	case "каждый месяц", "месяц", "monthly":
		return recurrence.Monthly, true
	case "свой интервал", "custom":
		return recurrence.Custom, true
	default:
		return "", false
	}
}

func parseUnit(text string) (recurrence.Unit, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "дни", "days":
		return recurrence.UnitDays, true
	case "недели", "weeks":
		return recurrence.UnitWeeks, true
	case "месяцы", "months":
		return recurrence.UnitMonths, true
	default:
		return "", false
	}
}

func parseIDArgument(msg *tgbotapi.Message, example string) (uint, string) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return 0, fmt.Sprintf("Укажи ID задачи: %s", example)
	}
	value, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return 0, "ID задачи должен быть числом."
	}
	return uint(value), ""
}

func parseOnOff(msg *tgbotapi.Message, example string) (bool, string) {
	switch strings.TrimSpace(strings.ToLower(msg.CommandArguments())) {
	case "on", "вкл":
		return true, ""
	case "off", "выкл":
		return false, ""
	default:
		return false, fmt.Sprintf("Укажи on или off, например: %s", example)
	}
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод" || value == "отмена"
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNew),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelDonate),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Низкий"),
			tgbotapi.NewKeyboardButton("Средний"),
			tgbotapi.NewKeyboardButton("Высокий"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func repeatTypeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Каждый день"),
			tgbotapi.NewKeyboardButton("Каждую неделю"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Каждый месяц"),
			tgbotapi.NewKeyboardButton("Свой интервал"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func unitKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Дни"),
			tgbotapi.NewKeyboardButton("Недели"),
			tgbotapi.NewKeyboardButton("Месяцы"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
