package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/repository"
	"starplanner/internal/timeutil"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	DueDate     *timeutil.Date
	DueTime     *string
	Priority    model.Priority
	IsRecurring bool
	Rule        recurrence.Rule
	EndDate     *timeutil.Date
}

// TaskService wraps task-related business logic shared by the bot and the
// Mini App API. Edits that change completion state or the due date reset
// the notification guard so the task becomes eligible under its new status.
type TaskService struct {
	taskRepo  *repository.TaskRepository
	generator *Generator
}

func NewTaskService(taskRepo *repository.TaskRepository, generator *Generator) *TaskService {
	return &TaskService{taskRepo: taskRepo, generator: generator}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}

	if input.IsRecurring {
		if err := input.Rule.Validate(); err != nil {
			return nil, fmt.Errorf("recurrence rule: %w", err)
		}
		if input.DueDate == nil {
			return nil, fmt.Errorf("recurring task requires a start date")
		}
		task := model.NewTemplate(model.TemplateInput{
			UserID:      user.ID,
			Title:       input.Title,
			Description: input.Description,
			DueDate:     *input.DueDate,
			DueTime:     input.DueTime,
			Priority:    input.Priority,
			Rule:        input.Rule,
			EndDate:     input.EndDate,
		})
		if err := s.taskRepo.Create(ctx, task); err != nil {
			return nil, err
		}
		return task, nil
	}

	task := &model.Task{
		UserID:      user.ID,
		Title:       input.Title,
		Description: input.Description,
		DueTime:     input.DueTime,
		Priority:    input.Priority,
	}
	if input.DueDate != nil {
		due := input.DueDate.Time()
		task.DueDate = &due
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) ListActive(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListActiveOrTemplates(ctx, user.ID)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, user.ID, taskID)
}

// CompleteTask marks a task as done. Completing an instance is the lazy
// generation trigger: the template's next occurrence is created right away.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, err
	}

	if task.IsInstance() {
		if err := s.generator.OnInstanceCompleted(ctx, task); err != nil {
			// The scheduled batch will catch up on the next tick.
			log.Printf("[warn] lazy generation after completing task %d: %v", task.ID, err)
		}
	}
	return task, nil
}

// UncompleteTask reopens a task and makes it notifiable again.
func (s *TaskService) UncompleteTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.MarkUncompleted(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies edits. A due-date change starts a new status episode,
// so the notification guard resets.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, input TaskInput) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		task.Title = input.Title
	}
	task.Description = input.Description
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	task.DueTime = input.DueTime

	var newDue *time.Time
	if input.DueDate != nil {
		due := input.DueDate.Time()
		newDue = &due
	}
	if !equalTimePtr(task.DueDate, newDue) {
		task.DueDate = newDue
		task.NotificationSent = false
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task completely, template or instance.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	return s.taskRepo.Delete(ctx, user.ID, taskID)
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
