package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/database/testutil"
	"github.com/permtrackhq/permtrack/internal/models"
	apperrors "github.com/permtrackhq/permtrack/pkg/errors"
)

func reminderTestStack(t *testing.T, mailer *fakeMailer) (*ReminderService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cases, err := NewCaseService(db)
	require.NoError(t, err)
	prefs, err := NewPreferenceService(db)
	require.NoError(t, err)
	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(db, notifications, mailer, nil, WithDispatchNow(fixedNow))
	require.NoError(t, err)

	svc, err := NewReminderService(cases, prefs, notifications, dispatcher, WithNow(fixedNow))
	require.NoError(t, err)
	return svc, db
}

func countNotifications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&n).Error)
	return n
}

func TestRunFiresAtConfiguredInterval(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := reminderTestStack(t, mailer)

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(7) // default intervals include 7
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.CasesProcessed)
	require.Equal(t, 1, result.Generated)
	require.Equal(t, 1, result.EmailsSent)

	var row models.Notification
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, models.NotificationTypeDeadlineReminder, row.Type)
	require.Equal(t, "pwd_expiration", row.DeadlineType)
	require.NotNil(t, row.DaysUntilDeadline)
	require.Equal(t, 7, *row.DaysUntilDeadline)
	require.Len(t, mailer.messages(), 1)
}

func TestRunSkipsOffIntervalDeadlines(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(9) // not in {1,3,7,14,30}
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Generated)
	require.Equal(t, 1, result.SkippedNoMatch)
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := reminderTestStack(t, mailer)

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(7)
	})

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Generated)

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.Generated)
	require.Equal(t, 1, second.SkippedDedup)

	require.EqualValues(t, 1, countNotifications(t, db))
	require.Len(t, mailer.messages(), 1)
}

func TestRunOverdueFiresExactlyOnce(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(-1)
	})
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(-2) // past the overdue window, never fires
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)
	require.Equal(t, 1, result.SkippedNoMatch)

	var row models.Notification
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, -1, *row.DaysUntilDeadline)
}

func TestRunSkipsSupersededDeadlines(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(7)
		c.ETA9089FilingDate = isoIn(-10) // ETA-9089 already filed
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Generated)
	require.Equal(t, 1, result.SkippedInactive)
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestRunSkipsClosedCases(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.CaseStatus = models.CaseStatusClosed
		c.PWDExpirationDate = isoIn(7)
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.CasesProcessed)
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestRunRaisesRFIAlertForOpenEntry(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	c := seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.CaseStatus = models.CaseStatusRecruitment
	})
	require.NoError(t, db.Create(&models.RFIEntry{
		CaseID:          c.ID,
		ReceivedDate:    isoIn(-5),
		ResponseDueDate: isoIn(3),
	}).Error)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)

	var row models.Notification
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, models.NotificationTypeRFIAlert, row.Type)
	require.Equal(t, models.PriorityHigh, row.Priority)
	require.Equal(t, "rfi_due", row.DeadlineType)
}

func TestRunIgnoresSubmittedRFIEntries(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	c := seedCase(t, db, user.ID, nil)
	require.NoError(t, db.Create(&models.RFIEntry{
		CaseID:                c.ID,
		ReceivedDate:          isoIn(-10),
		ResponseDueDate:       isoIn(3),
		ResponseSubmittedDate: isoIn(-1),
	}).Error)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Generated)
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestRunSkipsCasesOfInactiveUsers(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(7)
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.CasesProcessed)
	require.EqualValues(t, 0, countNotifications(t, db))
}

func TestRunHonoursCustomIntervals(t *testing.T) {
	svc, db := reminderTestStack(t, &fakeMailer{})

	user := seedUser(t, db)
	require.NoError(t, db.Create(&models.NotificationPreferences{
		UserID:                 user.ID,
		EmailEnabled:           true,
		EmailDeadlineReminders: true,
		ReminderIntervals:      datatypes.JSONSlice[int]{9},
	}).Error)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(9)
	})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)
}

func TestRunAbortsWhenDedupIndexUnavailable(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := reminderTestStack(t, mailer)

	user := seedUser(t, db)
	seedCase(t, db, user.ID, func(c *models.PermCase) {
		c.PWDExpirationDate = isoIn(7)
	})

	// Without the dedup snapshot the run cannot tell which reminders were
	// already sent, so it must stop before generating anything.
	require.NoError(t, db.Migrator().DropTable(&models.Notification{}))

	result, err := svc.Run(context.Background())
	require.ErrorIs(t, err, apperrors.ErrDedupIndexUnavailable)
	require.Zero(t, result.Generated)
	require.Zero(t, result.CasesProcessed)
	require.Empty(t, mailer.messages())
}
