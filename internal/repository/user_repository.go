package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"starplanner/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates
// basic profile info. New users get notifications on with the default
// reminder time.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case err == gorm.ErrRecordNotFound:
		user = model.User{
			TelegramID:           telegramID,
			FirstName:            firstName,
			LastName:             lastName,
			Username:             username,
			NotificationsEnabled: true,
			ReminderTime:         "09:00",
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListNotifiable returns users that opted into notifications.
func (r *UserRepository) ListNotifiable(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("notifications_enabled = ?", true).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateSettings persists the user's notification preferences.
func (r *UserRepository) UpdateSettings(ctx context.Context, user *model.User) error {
	updates := map[string]interface{}{
		"timezone":              user.Timezone,
		"notifications_enabled": user.NotificationsEnabled,
		"reminder_time":         user.ReminderTime,
		"daily_summary":         user.DailySummary,
	}
	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// SetLastSummaryDate records that the daily summary went out, guarding
// against a second send within the same local day.
func (r *UserRepository) SetLastSummaryDate(ctx context.Context, userID uint, day time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_summary_date", day).Error
	if err != nil {
		return fmt.Errorf("set last summary date: %w", err)
	}
	return nil
}
