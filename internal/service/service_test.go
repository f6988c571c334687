package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/repository"
	"starplanner/internal/timeutil"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Named in-memory database so every connection in the pool sees the
	// same data, isolated per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Task{}, &model.Notification{}, &model.Donation{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, telegramID int64) *model.User {
	t.Helper()
	user := &model.User{
		TelegramID:           telegramID,
		FirstName:            "Test",
		NotificationsEnabled: true,
		ReminderTime:         "09:00",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTemplate(t *testing.T, db *gorm.DB, userID uint, anchor timeutil.Date, rule recurrence.Rule, end *timeutil.Date) *model.Task {
	t.Helper()
	tpl := model.NewTemplate(model.TemplateInput{
		UserID:   userID,
		Title:    "water the plants",
		DueDate:  anchor,
		Priority: model.PriorityMedium,
		Rule:     rule,
		EndDate:  end,
	})
	require.NoError(t, db.Create(tpl).Error)
	return tpl
}

func createDatedTask(t *testing.T, db *gorm.DB, userID uint, title string, due timeutil.Date) *model.Task {
	t.Helper()
	dueAt := due.Time()
	task := &model.Task{
		UserID:   userID,
		Title:    title,
		DueDate:  &dueAt,
		Priority: model.PriorityMedium,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func countInstances(t *testing.T, db *gorm.DB, templateID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.Task{}).
		Where("parent_task_id = ?", templateID).
		Count(&count).Error)
	return count
}

func newRepos(db *gorm.DB) (*repository.UserRepository, *repository.TaskRepository, *repository.NotificationRepository) {
	return repository.NewUserRepository(db),
		repository.NewTaskRepository(db),
		repository.NewNotificationRepository(db)
}

func utcNoon(d timeutil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}
