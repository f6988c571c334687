package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/repository"
	"starplanner/internal/service"
	"starplanner/internal/timeutil"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageDueDate
	stageDueTime
	stagePriority
	stageRecurring
	stageRepeatType
	stageRepeatInterval
	stageRepeatUnit
	stageRepeatEndDate
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

const (
	btnSkip         = "⏭️ Пропустить"
	btnYes          = "Да"
	btnNo           = "Нет"
	btnConfirm      = "✅ Подтвердить"
	btnCancel       = "↩️ Отмена"
	btnCancelDialog = "⏪ Отменить ввод"
	iconDefault     = "🟢"
	iconDue         = "⏳"
	iconOverdue     = "⚠️"
	iconTemplate    = "♻️"
	menuLabelNew    = "➕ Новая задача"
	menuLabelTasks  = "📋 Задачи"
	menuLabelDonate = "⭐ Поддержать"
	menuLabelHelp   = "ℹ️ Помощь"
)

const defaultDonationStars = 25

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Bot aggregates the Telegram API with the task services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	taskSvc       *service.TaskService
	donationSvc   *service.DonationService
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, donationSvc *service.DonationService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		taskSvc:       taskSvc,
		donationSvc:   donationSvc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// API exposes the underlying client for the outbound sender wiring.
func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.PreCheckoutQuery != nil:
			if err := b.handlePreCheckout(update.PreCheckoutQuery); err != nil {
				log.Printf("handle pre-checkout: %v", err)
			}
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.SuccessfulPayment != nil {
		return b.handleSuccessfulPayment(ctx, msg)
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог отменён. Я здесь, чтобы начать заново.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "uncomplete":
		return b.handleUncomplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "settings":
		return b.handleSettings(ctx, msg)
	case "timezone":
		return b.handleTimezone(ctx, msg)
	case "remindat":
		return b.handleRemindAt(ctx, msg)
	case "notifications":
		return b.handleNotificationsToggle(ctx, msg)
	case "summary":
		return b.handleSummaryToggle(ctx, msg)
	case "donate":
		return b.handleDonate(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог создания задачи отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я планировщик задач: напомню о дедлайнах и создам повторяющиеся задачи сам.</b>\n\nКоманды:\n"+
			"• /newtask — добавить новую задачу\n"+
			"• /tasks — показать текущие задачи\n"+
			"• /complete &lt;id&gt; — отметить задачу выполненной\n"+
			"• /settings — настройки напоминаний\n"+
			"• /donate — поддержать проект звёздами\n"+
			"• /help — подсказки\n"+
			"• /cancel — отменить текущий ввод",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /newtask — добавить задачу пошагово (дедлайн, приоритет, повторение)\n" +
		"• /tasks — показать активные задачи и шаблоны\n" +
		"• /complete &lt;id&gt; — отметить задачу по номеру (например, /complete 3)\n" +
		"• /uncomplete &lt;id&gt; — вернуть задачу в работу\n" +
		"• /delete &lt;id&gt; — удалить задачу полностью\n" +
		"• /timezone &lt;зона&gt; — часовой пояс, например Europe/Moscow\n" +
		"• /remindat &lt;ЧЧ:ММ&gt; — время ежедневного отчёта\n" +
		"• /notifications on|off — напоминания о задачах\n" +
		"• /summary on|off — ежедневный отчёт\n" +
		"• /donate [число] — отправить звёзды\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым. Попробуй ещё раз.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Укажи дату в формате <code>2025-11-30</code> (или «Пропустить»).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			parsed, err := timeutil.ParseDate(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			state.input.DueDate = &parsed
		}
		if state.input.DueDate == nil {
			state.stage = stagePriority
			return b.sendWithReplyMarkup(msg.Chat.ID, "🎯 Какой приоритет у задачи?", priorityKeyboard())
		}
		state.stage = stageDueTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "🕘 Во сколько? Формат <code>18:30</code> (или «Пропустить»).", skipKeyboard())
	case stageDueTime:
		if !isSkipInput(text) {
			if _, _, err := timeutil.ParseClock(text); err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Время должно быть в формате <code>18:30</code>.", skipKeyboard())
			}
			state.input.DueTime = &text
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "🎯 Какой приоритет у задачи?", priorityKeyboard())
	case stagePriority:
		priority, ok := parsePriority(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери приоритет кнопкой: низкий, средний или высокий.", priorityKeyboard())
		}
		state.input.Priority = priority
		if state.input.DueDate == nil {
			// Recurrence needs an anchor date, so dateless tasks stay one-off.
			err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
			b.clearConversation(msg.From.ID)
			return err
		}
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Сделать задачу повторяющейся?", yesNoKeyboard())
	case stageRecurring:
		lower := strings.ToLower(text)
		if lower == "да" || lower == "yes" || lower == "y" {
			state.input.IsRecurring = true
			state.stage = stageRepeatType
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Как часто повторять?", repeatTypeKeyboard())
		}
		if lower == "нет" || lower == "no" || lower == "n" || lower == "-" {
			state.input.IsRecurring = false
			err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
			b.clearConversation(msg.From.ID)
			return err
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "Нажми «Да» или «Нет».", yesNoKeyboard())
	case stageRepeatType:
		repeatType, ok := parseRepeatType(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери вариант кнопкой: каждый день, неделю, месяц или свой интервал.", repeatTypeKeyboard())
		}
		state.input.Rule.Type = repeatType
		if repeatType == recurrence.Custom {
			state.stage = stageRepeatInterval
			return b.sendWithReplyMarkup(msg.Chat.ID, "🔢 Через сколько повторять? Укажи число (например, 3).", tgbotapi.NewRemoveKeyboard(true))
		}
		state.input.Rule.Interval = 1
		state.stage = stageRepeatEndDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏁 До какой даты повторять? Формат <code>2026-06-01</code> (или «Пропустить» — без ограничения).", skipKeyboard())
	case stageRepeatInterval:
		interval, err := strconv.Atoi(text)
		if err != nil || interval < 1 || interval > 365 {
			return b.sendText(msg.Chat.ID, "Интервал должен быть числом от 1 до 365.")
		}
		state.input.Rule.Interval = interval
		state.stage = stageRepeatUnit
		return b.sendWithReplyMarkup(msg.Chat.ID, "📏 В каких единицах?", unitKeyboard())
	case stageRepeatUnit:
		unit, ok := parseUnit(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери единицу кнопкой: дни, недели или месяцы.", unitKeyboard())
		}
		state.input.Rule.Unit = unit
		state.stage = stageRepeatEndDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏁 До какой даты повторять? Формат <code>2026-06-01</code> (или «Пропустить» — без ограничения).", skipKeyboard())
	case stageRepeatEndDate:
		if !isSkipInput(text) {
			parsed, err := timeutil.ParseDate(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2026-06-01</code> или «Пропустить».", skipKeyboard())
			}
			state.input.EndDate = &parsed
		}
		err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%d user=%d recurring=%t", task.ID, user.ID, task.IsRecurring)

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", escape(task.Description)))
	}
	if due, ok := task.DueDateValue(); ok {
		line := fmt.Sprintf("• <b>Срок:</b> %s", due)
		if task.DueTime != nil {
			line += " " + *task.DueTime
		}
		summary.WriteString(line + "\n")
	}
	summary.WriteString(fmt.Sprintf("• <b>Приоритет:</b> %s\n", priorityLabel(task.Priority)))
	if task.IsRecurring {
		summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s\n", ruleLabel(task.Rule())))
		if end, ok := task.EndDateValue(); ok {
			summary.WriteString(fmt.Sprintf("• <b>До:</b> %s\n", end))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, errText := parseIDArgument(msg, "/complete 12")
	if errText != "" {
		return b.sendText(msg.Chat.ID, errText)
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.CompleteTask(ctx, user, taskID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Задача не найдена.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	if task.IsInstance() {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Задача «%s» выполнена. Следующее повторение уже создано.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Задача «%s» выполнена.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleUncomplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, errText := parseIDArgument(msg, "/uncomplete 12")
	if errText != "" {
		return b.sendText(msg.Chat.ID, errText)
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.UncompleteTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Задача не найдена.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("↩️ Задача «%s» снова в работе.", escape(normalizeTitle(task.Title))))
}

// handleDelete удаляет задачу полностью (включая шаблоны повторений).
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, errText := parseIDArgument(msg, "/delete 12")
	if errText != "" {
		return b.sendText(msg.Chat.ID, errText)
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Задача не найдена.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось удалить задачу: %s", escape(err.Error())))
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Задача \"%s\" удалена.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleSettings(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	zone := user.Timezone
	if zone == "" {
		zone = "UTC"
	}
	text := "⚙️ <b>Настройки</b>\n" +
		fmt.Sprintf("• Часовой пояс: <code>%s</code>\n", escape(zone)) +
		fmt.Sprintf("• Напоминания: %s\n", onOff(user.NotificationsEnabled)) +
		fmt.Sprintf("• Ежедневный отчёт: %s в %s\n", onOff(user.DailySummary), user.ReminderTime) +
		"\nИзменить: /timezone, /remindat, /notifications on|off, /summary on|off"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи зону из базы IANA, например: /timezone Europe/Moscow")
	}
	if _, err := time.LoadLocation(args); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не знаю зону «%s». Пример: Europe/Moscow", escape(args)))
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	user.Timezone = args
	if err := b.userRepo.UpdateSettings(ctx, user); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🌍 Часовой пояс обновлён: %s", escape(args)))
}

func (b *Bot) handleRemindAt(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи время в формате ЧЧ:ММ, например: /remindat 08:30")
	}
	if _, _, err := timeutil.ParseClock(args); err != nil {
		return b.sendText(msg.Chat.ID, "Время должно быть в формате ЧЧ:ММ, например 08:30.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	user.ReminderTime = args
	if err := b.userRepo.UpdateSettings(ctx, user); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏰ Ежедневный отчёт теперь в %s.", args))
}

func (b *Bot) handleNotificationsToggle(ctx context.Context, msg *tgbotapi.Message) error {
	enabled, errText := parseOnOff(msg, "/notifications on")
	if errText != "" {
		return b.sendText(msg.Chat.ID, errText)
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	user.NotificationsEnabled = enabled
	if err := b.userRepo.UpdateSettings(ctx, user); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 Напоминания: %s", onOff(enabled)))
}

func (b *Bot) handleSummaryToggle(ctx context.Context, msg *tgbotapi.Message) error {
	enabled, errText := parseOnOff(msg, "/summary on")
	if errText != "" {
		return b.sendText(msg.Chat.ID, errText)
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	user.DailySummary = enabled
	if err := b.userRepo.UpdateSettings(ctx, user); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📋 Ежедневный отчёт: %s", onOff(enabled)))
}

// handleDonate sends a Telegram Stars invoice. Stars use the XTR currency
// with an empty provider token.
func (b *Bot) handleDonate(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	amount := defaultDonationStars
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		parsed, err := strconv.Atoi(args)
		if err != nil || parsed < 1 || parsed > 10000 {
			return b.sendText(msg.Chat.ID, "Сумма должна быть числом звёзд от 1 до 10000, например /donate 50.")
		}
		amount = parsed
	}

	invoice := tgbotapi.NewInvoice(
		msg.Chat.ID,
		"Поддержать планировщик",
		"Добровольное пожертвование на развитие бота.",
		fmt.Sprintf("donate:%d", msg.From.ID),
		"", // Stars invoices carry no provider token
		"",
		"XTR",
		[]tgbotapi.LabeledPrice{{Label: "Звёзды", Amount: amount}},
	)
	invoice.SuggestedTipAmounts = []int{}
	if _, err := b.api.Request(invoice); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось создать счёт: %s", escape(err.Error())))
	}
	return nil
}

func (b *Bot) handlePreCheckout(query *tgbotapi.PreCheckoutQuery) error {
	// No reconciliation here; approve and let the payment webhook land.
	_, err := b.api.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	})
	return err
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	payment := msg.SuccessfulPayment
	if err := b.donationSvc.RecordPayment(ctx, user, payment.TotalAmount, payment.TelegramPaymentChargeID); err != nil {
		log.Printf("[warn] record donation from user %d: %v", user.ID, err)
	}

	total, err := b.donationSvc.Total(ctx, user)
	if err != nil {
		total = int64(payment.TotalAmount)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⭐ Спасибо за поддержку! Всего от тебя: %d звёзд.", total))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		var prompt string
		if req.action == actionDelete {
			prompt = "Подтверди или отмени удаление задачи."
		} else {
			prompt = "Подтверди или отмени выполнение задачи."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Главное меню")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListActive(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}

	today := timeutil.DateOf(time.Now(), user.Location())
	var pending, templates []model.Task
	for _, task := range tasks {
		if task.IsTemplate() {
			templates = append(templates, task)
			continue
		}
		if !task.Completed {
			pending = append(pending, task)
		}
	}

	if len(pending) == 0 && len(templates) == 0 {
		return b.sendText(chatID, "У тебя нет активных задач. Добавь новую через /newtask.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Текущие задачи</b>\n")
	builder.WriteString("Нажми на кнопку, чтобы отметить задачу выполненной или удалить.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range pending {
		builder.WriteString(formatTaskLine(task, today))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
		})
	}

	if len(templates) > 0 {
		builder.WriteString("♻️ <b>Повторяющиеся</b>\n")
		for _, task := range templates {
			builder.WriteString(formatTemplateLine(task))
			buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("\U0001F5D1 #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			})
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.askCompleteConfirmation(ctx, cb.Message.Chat.ID, cb.From, taskID)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, cb.Message.Chat.ID, cb.From, taskID)
	default:
		return nil
	}
}

func (b *Bot) askCompleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Задача не найдена.")
		}
		return err
	}

	if task.Completed {
		return b.sendText(chatID, "Задача уже выполнена.")
	}

	text := fmt.Sprintf("Отметить задачу «%s» (#%d) как выполненную?", escape(normalizeTitle(task.Title)), task.ID)
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: actionComplete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Задача не найдена.")
		}
		return err
	}

	var text string
	if task.IsTemplate() {
		text = fmt.Sprintf("Удалить повторяющуюся задачу «%s» (#%d)? Новые повторения создаваться не будут.", escape(normalizeTitle(task.Title)), task.ID)
	} else {
		text = fmt.Sprintf("Удалить задачу «%s» (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
	}
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: actionDelete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendTextWithRemove(chatID, "Задача не найдена или уже удалена.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	if task.Completed {
		return b.sendTextWithRemove(chatID, "Задача уже была выполнена.")
	}

	task, err = b.taskSvc.CompleteTask(ctx, user, taskID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendTextWithRemove(chatID, "Задача не найдена или уже удалена.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	var info string
	if task.IsInstance() {
		info = fmt.Sprintf("✅ Задача «%s» выполнена. Следующее повторение уже в списке.", escape(normalizeTitle(task.Title)))
	} else {
		info = fmt.Sprintf("✅ Задача «%s» выполнена.", escape(normalizeTitle(task.Title)))
	}
	log.Printf("[info] task completed id=%d user=%d instance=%t", task.ID, user.ID, task.IsInstance())
	if err := b.sendTextWithRemove(chatID, info); err != nil {
		return err
	}

	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendTextWithRemove(chatID, "Задача не найдена или уже удалена.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	log.Printf("[info] task deleted id=%d user=%d", task.ID, user.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("\U0001F5D1 Задача \"%s\" удалена.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}

	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNew):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelDonate):
		return true, b.handleDonate(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}
