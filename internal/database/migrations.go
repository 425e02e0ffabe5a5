package database

import (
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PermCase{},
		&models.RFIEntry{},
		&models.RFEEntry{},
		&models.RecruitmentMethod{},
		&models.Notification{},
		&models.NotificationPreferences{},
		&models.PushSubscription{},
	)
}

// SeedData backfills a preferences row for any user missing one so that the
// engine reads explicit settings instead of resolving defaults on every run.
func SeedData(db *gorm.DB) error {
	var users []models.User
	if err := db.
		Joins("LEFT JOIN notification_preferences ON notification_preferences.user_id = users.id").
		Where("notification_preferences.id IS NULL").
		Find(&users).Error; err != nil {
		return err
	}

	for _, user := range users {
		prefs := models.NotificationPreferences{
			UserID:                 user.ID,
			EmailEnabled:           true,
			EmailDeadlineReminders: true,
			EmailStatusUpdates:     true,
			EmailRFEAlerts:         true,
			ReminderIntervals:      []int{1, 3, 7, 14, 30},
		}
		if err := db.Where(models.NotificationPreferences{UserID: user.ID}).
			Attrs(prefs).
			FirstOrCreate(&models.NotificationPreferences{}).Error; err != nil {
			return err
		}
	}

	return nil
}
