package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/permtrackhq/permtrack/internal/database/testutil"
	"github.com/permtrackhq/permtrack/internal/models"
)

func TestGetForUserDefaultsWhenRowMissing(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPreferenceService(db)
	require.NoError(t, err)

	prefs, err := svc.GetForUser(context.Background(), "no-such-user")
	require.NoError(t, err)
	require.True(t, prefs.EmailEnabled)
	require.False(t, prefs.PushEnabled)
	require.True(t, prefs.WeeklyDigest)
	require.Equal(t, DefaultReminderIntervals, prefs.ReminderIntervals)
	require.Equal(t, time.UTC, prefs.Location)
}

func TestGetForUserResolvesStoredRow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPreferenceService(db)
	require.NoError(t, err)

	user := seedUser(t, db)
	require.NoError(t, db.Create(&models.NotificationPreferences{
		UserID:            user.ID,
		EmailEnabled:      true,
		PushEnabled:       true,
		ReminderIntervals: datatypes.JSONSlice[int]{2, 5},
		Timezone:          "America/New_York",
	}).Error)

	prefs, err := svc.GetForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, prefs.PushEnabled)
	require.Equal(t, []int{2, 5}, prefs.ReminderIntervals)
	require.Equal(t, "America/New_York", prefs.Timezone)
	require.NotNil(t, prefs.Location)
	require.Equal(t, "America/New_York", prefs.Location.String())
}

func TestGetForUserDigestDefaultsOn(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPreferenceService(db)
	require.NoError(t, err)

	user := seedUser(t, db)
	require.NoError(t, db.Create(&models.NotificationPreferences{
		UserID:       user.ID,
		EmailEnabled: true,
		// WeeklyDigest left unset
	}).Error)

	prefs, err := svc.GetForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, prefs.WeeklyDigest)

	optedOut := false
	require.NoError(t, db.Model(&models.NotificationPreferences{}).
		Where("user_id = ?", user.ID).
		Update("weekly_digest", &optedOut).Error)

	prefs, err = svc.GetForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, prefs.WeeklyDigest)
}

func TestGetForUserEmptyIntervalsFallBackToDefaults(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPreferenceService(db)
	require.NoError(t, err)

	user := seedUser(t, db)
	require.NoError(t, db.Create(&models.NotificationPreferences{
		UserID:       user.ID,
		EmailEnabled: true,
	}).Error)

	prefs, err := svc.GetForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, DefaultReminderIntervals, prefs.ReminderIntervals)
}

func TestGetForUserInvalidTimezoneFallsBackToUTC(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPreferenceService(db)
	require.NoError(t, err)

	user := seedUser(t, db)
	require.NoError(t, db.Create(&models.NotificationPreferences{
		UserID:       user.ID,
		EmailEnabled: true,
		Timezone:     "Mars/Olympus_Mons",
	}).Error)

	prefs, err := svc.GetForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, time.UTC, prefs.Location)
}
