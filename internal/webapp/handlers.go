package webapp

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/service"
	"starplanner/internal/timeutil"
)

type authRequest struct {
	InitData string `json:"init_data" validate:"required"`
}

type taskRequest struct {
	Title          string  `json:"title" validate:"required,max=256"`
	Description    string  `json:"description" validate:"max=2048"`
	DueDate        *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	DueTime        *string `json:"due_time" validate:"omitempty,datetime=15:04"`
	Priority       string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsRecurring    bool    `json:"is_recurring"`
	RepeatType     string  `json:"repeat_type" validate:"omitempty,oneof=daily weekly monthly custom"`
	RepeatInterval int     `json:"repeat_interval" validate:"omitempty,min=1,max=365"`
	RepeatUnit     string  `json:"repeat_unit" validate:"omitempty,oneof=days weeks months"`
	RepeatEndDate  *string `json:"repeat_end_date" validate:"omitempty,datetime=2006-01-02"`
}

type settingsRequest struct {
	Timezone             *string `json:"timezone"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	ReminderTime         *string `json:"reminder_time" validate:"omitempty,datetime=15:04"`
	DailySummary         *bool   `json:"daily_summary"`
}

type taskResponse struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	DueDate       *string `json:"due_date,omitempty"`
	DueTime       *string `json:"due_time,omitempty"`
	Priority      string  `json:"priority"`
	Completed     bool    `json:"completed"`
	IsRecurring   bool    `json:"is_recurring"`
	ParentTaskID  *uint   `json:"parent_task_id,omitempty"`
	RepeatType    string  `json:"repeat_type,omitempty"`
	RepeatEndDate *string `json:"repeat_end_date,omitempty"`
}

func (s *Server) handleAuth(c *fiber.Ctx) error {
	var req authRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	identity, err := VerifyInitData(req.InitData, s.botToken, time.Now())
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "init data verification failed"})
	}

	user, err := s.users.UpsertFromTelegram(c.Context(), identity.ID, identity.FirstName, identity.LastName, identity.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resolve user"})
	}

	token, err := s.issueToken(user, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "issue token"})
	}

	return c.JSON(fiber.Map{"token": token, "user_id": user.ID})
}

func (s *Server) handleListTasks(c *fiber.Ctx) error {
	user := currentUser(c)
	tasks, err := s.taskSvc.ListActive(c.Context(), user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list tasks"})
	}

	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return c.JSON(out)
}

func (s *Server) handleCreateTask(c *fiber.Ctx) error {
	user := currentUser(c)

	input, errResp := s.parseTaskRequest(c)
	if errResp != nil {
		return errResp
	}

	task, err := s.taskSvc.CreateTask(c.Context(), user, *input)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(toTaskResponse(task))
}

func (s *Server) handleUpdateTask(c *fiber.Ctx) error {
	user := currentUser(c)
	taskID, err := c.ParamsInt("id")
	if err != nil || taskID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid task id"})
	}

	input, errResp := s.parseTaskRequest(c)
	if errResp != nil {
		return errResp
	}

	task, err := s.taskSvc.UpdateTask(c.Context(), user, uint(taskID), *input)
	if err != nil {
		return taskError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (s *Server) handleCompleteTask(c *fiber.Ctx) error {
	user := currentUser(c)
	taskID, err := c.ParamsInt("id")
	if err != nil || taskID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid task id"})
	}

	task, err := s.taskSvc.CompleteTask(c.Context(), user, uint(taskID), time.Now())
	if err != nil {
		return taskError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (s *Server) handleUncompleteTask(c *fiber.Ctx) error {
	user := currentUser(c)
	taskID, err := c.ParamsInt("id")
	if err != nil || taskID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid task id"})
	}

	task, err := s.taskSvc.UncompleteTask(c.Context(), user, uint(taskID))
	if err != nil {
		return taskError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (s *Server) handleDeleteTask(c *fiber.Ctx) error {
	user := currentUser(c)
	taskID, err := c.ParamsInt("id")
	if err != nil || taskID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid task id"})
	}

	if err := s.taskSvc.DeleteTask(c.Context(), user, uint(taskID)); err != nil {
		return taskError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	user := currentUser(c)
	return c.JSON(fiber.Map{
		"timezone":              user.Timezone,
		"notifications_enabled": user.NotificationsEnabled,
		"reminder_time":         user.ReminderTime,
		"daily_summary":         user.DailySummary,
	})
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	user := currentUser(c)

	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown timezone"})
		}
		user.Timezone = *req.Timezone
	}
	if req.NotificationsEnabled != nil {
		user.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.ReminderTime != nil {
		user.ReminderTime = *req.ReminderTime
	}
	if req.DailySummary != nil {
		user.DailySummary = *req.DailySummary
	}

	if err := s.users.UpdateSettings(c.Context(), user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "save settings"})
	}
	return s.handleGetSettings(c)
}

// parseTaskRequest validates and converts a task payload into service input.
func (s *Server) parseTaskRequest(c *fiber.Ctx) (*service.TaskInput, error) {
	var req taskRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	input := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueTime:     req.DueTime,
		Priority:    model.Priority(req.Priority),
		IsRecurring: req.IsRecurring,
	}
	if req.DueDate != nil {
		date, err := timeutil.ParseDate(*req.DueDate)
		if err != nil {
			return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid due_date"})
		}
		input.DueDate = &date
	}
	if req.IsRecurring {
		input.Rule = recurrence.Rule{
			Type:     recurrence.RepeatType(req.RepeatType),
			Interval: req.RepeatInterval,
			Unit:     recurrence.Unit(req.RepeatUnit),
		}
		if input.Rule.Interval == 0 {
			input.Rule.Interval = 1
		}
		if req.RepeatEndDate != nil {
			end, err := timeutil.ParseDate(*req.RepeatEndDate)
			if err != nil {
				return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid repeat_end_date"})
			}
			input.EndDate = &end
		}
	}
	return &input, nil
}

func toTaskResponse(task *model.Task) taskResponse {
	resp := taskResponse{
		ID:           task.ID,
		Title:        task.Title,
		Description:  task.Description,
		DueTime:      task.DueTime,
		Priority:     string(task.Priority),
		Completed:    task.Completed,
		IsRecurring:  task.IsRecurring,
		ParentTaskID: task.ParentTaskID,
	}
	if due, ok := task.DueDateValue(); ok {
		formatted := due.String()
		resp.DueDate = &formatted
	}
	if task.IsRecurring {
		resp.RepeatType = string(task.RepeatType)
		if end, ok := task.EndDateValue(); ok {
			formatted := end.String()
			resp.RepeatEndDate = &formatted
		}
	}
	return resp
}

func taskError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
