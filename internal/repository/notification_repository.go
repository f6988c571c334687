package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"starplanner/internal/model"
)

// NotificationRepository persists the dispatch audit trail.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// UpdateStatus transitions a record from sent to delivered or failed.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uint, status model.DeliveryStatus) error {
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Update("delivery_status", status).Error
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	return nil
}

// ListByTask returns the audit rows for one task, newest first.
func (r *NotificationRepository) ListByTask(ctx context.Context, taskID uint) ([]model.Notification, error) {
	var rows []model.Notification
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUser returns the audit rows for one user, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint) ([]model.Notification, error) {
	var rows []model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
