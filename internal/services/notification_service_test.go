package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/permtrackhq/permtrack/internal/database/testutil"
	"github.com/permtrackhq/permtrack/internal/models"
	apperrors "github.com/permtrackhq/permtrack/pkg/errors"
)

func reminderInput(caseID string, daysUntil int) CreateNotificationInput {
	return CreateNotificationInput{
		UserID:            "user-1",
		CaseID:            &caseID,
		Type:              models.NotificationTypeDeadlineReminder,
		Title:             "PWD Expiration: Acme Robotics",
		Message:           "due soon",
		Priority:          models.PriorityNormal,
		DeadlineDate:      isoIn(daysUntil),
		DeadlineType:      "pwd_expiration",
		DaysUntilDeadline: &daysUntil,
	}
}

func TestCreateReminderIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	first, created, err := svc.CreateReminder(context.Background(), reminderInput("case-1", 7))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.CreateReminder(context.Background(), reminderInput("case-1", 7))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateReminderDistinctOffsetsAreSeparate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	_, created, err := svc.CreateReminder(context.Background(), reminderInput("case-1", 7))
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = svc.CreateReminder(context.Background(), reminderInput("case-1", 3))
	require.NoError(t, err)
	require.True(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestLoadDedupIndexReflectsPersistedReminders(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	_, _, err = svc.CreateReminder(context.Background(), reminderInput("case-1", 7))
	require.NoError(t, err)

	index, err := svc.LoadDedupIndex(context.Background())
	require.NoError(t, err)
	require.True(t, index.Contains(DedupKey{CaseID: "case-1", DeadlineType: "pwd_expiration", DaysUntil: 7}))
	require.False(t, index.Contains(DedupKey{CaseID: "case-1", DeadlineType: "pwd_expiration", DaysUntil: 3}))
	require.False(t, index.Contains(DedupKey{CaseID: "case-2", DeadlineType: "pwd_expiration", DaysUntil: 7}))
}

func TestMarkReadUnknownNotification(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), "user-1", "missing-id")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	row, _, err := svc.CreateReminder(context.Background(), reminderInput("case-1", 7))
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkRead(context.Background(), "someone-else", row.ID), apperrors.ErrNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), "user-1", row.ID))

	var reloaded models.Notification
	require.NoError(t, db.First(&reloaded, "id = ?", row.ID).Error)
	require.True(t, reloaded.IsRead)
	require.NotNil(t, reloaded.ReadAt)
}

func TestCleanupReadHonoursRetentionAndBatch(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	old := time.Now().UTC().AddDate(0, 0, -120)

	makeRow := func(read bool, createdAt time.Time) string {
		row := models.Notification{
			UserID:  "user-1",
			Type:    models.NotificationTypeSystem,
			Title:   "t",
			Message: "m",
			IsRead:  read,
		}
		require.NoError(t, db.Create(&row).Error)
		require.NoError(t, db.Model(&models.Notification{}).
			Where("id = ?", row.ID).
			Update("created_at", createdAt).Error)
		return row.ID
	}

	oldRead1 := makeRow(true, old)
	oldRead2 := makeRow(true, old.Add(time.Hour))
	oldUnread := makeRow(false, old)
	recentRead := makeRow(true, time.Now().UTC())

	deleted, err := svc.CleanupRead(context.Background(), 90, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	// Oldest eligible row goes first.
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", oldRead1).Count(&count).Error)
	require.EqualValues(t, 0, count)

	deleted, err = svc.CleanupRead(context.Background(), 90, 100)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	for _, id := range []string{oldUnread, recentRead} {
		require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", id).Count(&count).Error)
		require.EqualValues(t, 1, count, "row %s should survive retention", id)
	}
	require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", oldRead2).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestListForUserClampsLimit(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		_, err := svc.Create(context.Background(), CreateNotificationInput{
			UserID:  "user-1",
			Type:    models.NotificationTypeSystem,
			Title:   "t",
			Message: "m",
		})
		require.NoError(t, err)
	}

	rows, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, rows, 25)

	rows, err = svc.ListForUser(context.Background(), ListNotificationsInput{UserID: "user-1", Limit: 1000})
	require.NoError(t, err)
	require.Len(t, rows, 25)
}

func TestReminderKeyUniqueConstraint(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	_, created, err := svc.CreateReminder(context.Background(), reminderInput("case-1", 7))
	require.NoError(t, err)
	require.True(t, created)

	// A writer that slips past the read side of FirstOrCreate still hits
	// the composite index on (case_id, deadline_type, days_until_deadline).
	row, err := svc.buildRow(reminderInput("case-1", 7))
	require.NoError(t, err)
	require.Error(t, db.Create(&row).Error)

	// Non-reminder rows leave the key columns NULL and are unconstrained.
	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&models.Notification{
			UserID:  "user-1",
			Type:    models.NotificationTypeSystem,
			Title:   "maintenance window",
			Message: "scheduled downtime",
		}).Error)
	}
}
