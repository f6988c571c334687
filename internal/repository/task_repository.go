package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"starplanner/internal/model"
)

// TaskRepository handles CRUD for tasks, templates and instances.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindTemplate loads a template by id regardless of owner, for the
// generator's lazy path.
func (r *TaskRepository) FindTemplate(ctx context.Context, templateID uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_recurring = ? AND parent_task_id IS NULL", templateID, true).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListActiveTemplates returns all templates eligible for instance
// generation: recurring, not completed, not themselves instances.
func (r *TaskRepository) ListActiveTemplates(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("is_recurring = ? AND completed = ? AND parent_task_id IS NULL", true, false).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// InstanceExists reports whether an instance of the template already exists
// for the given due date.
func (r *TaskRepository) InstanceExists(ctx context.Context, templateID uint, dueDate time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("parent_task_id = ? AND due_date = ?", templateID, dueDate).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertInstance creates an instance row. The unique index on
// (parent_task_id, due_date) is the authoritative race guard: a duplicate
// insert reports created=false with no error.
func (r *TaskRepository) InsertInstance(ctx context.Context, instance *model.Task) (created bool, err error) {
	if err := r.db.WithContext(ctx).Create(instance).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("insert instance: %w", err)
	}
	return true, nil
}

// ListNotifiable returns a user's dated, pending, not-yet-notified tasks.
// Templates never appear here; they are not user-facing due items.
func (r *TaskRepository) ListNotifiable(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND completed = ? AND notification_sent = ? AND due_date IS NOT NULL AND is_recurring = ?",
			userID, false, false, false).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListPending returns a user's incomplete non-template tasks, dated first.
func (r *TaskRepository) ListPending(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND completed = ? AND is_recurring = ?", userID, false, false).
		Order("due_date IS NULL, due_date ASC, created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListActiveOrTemplates returns what the bot shows in /tasks: pending items
// plus recurring templates.
func (r *TaskRepository) ListActiveOrTemplates(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND (completed = ? OR (is_recurring = ? AND parent_task_id IS NULL))", userID, false, true).
		Order("due_date IS NULL, due_date ASC, created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ClaimNotification atomically flips the duplicate-send guard from false to
// true. The WHERE clause makes the claim a storage-level compare-and-set:
// when two overlapping ticks race on one task, only one update matches and
// the loser reports claimed=false.
func (r *TaskRepository) ClaimNotification(ctx context.Context, taskID uint) (claimed bool, err error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND notification_sent = ?", taskID, false).
		Update("notification_sent", true)
	if res.Error != nil {
		return false, fmt.Errorf("claim notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetNotificationSent flips the duplicate-send guard for a task.
func (r *TaskRepository) SetNotificationSent(ctx context.Context, taskID uint, sent bool) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", taskID).
		Update("notification_sent", sent).Error
	if err != nil {
		return fmt.Errorf("set notification_sent: %w", err)
	}
	return nil
}

// MarkCompleted closes a task and resets the notification guard so a later
// uncomplete starts a fresh status episode.
func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.Completed = true
	task.CompletedAt = &completedAt
	task.NotificationSent = false
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// MarkUncompleted reopens a task.
func (r *TaskRepository) MarkUncompleted(ctx context.Context, task *model.Task) error {
	updates := map[string]interface{}{
		"completed":         false,
		"completed_at":      nil,
		"notification_sent": false,
	}
	if err := r.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return fmt.Errorf("uncomplete task: %w", err)
	}
	return nil
}

// Delete removes a task for the given user, template or not.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
