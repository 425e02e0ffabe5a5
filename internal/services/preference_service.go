package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/models"
	"github.com/permtrackhq/permtrack/pkg/logger"
)

// DefaultReminderIntervals are the days-before-deadline offsets used when a
// user has not configured their own.
var DefaultReminderIntervals = []int{1, 3, 7, 14, 30}

// ResolvedPreferences is the fully-defaulted view of a user's notification
// settings consumed by the reminder generator and dispatcher. Location is
// always usable; timezone resolution failures fall back to UTC.
type ResolvedPreferences struct {
	EmailEnabled bool
	PushEnabled  bool

	EmailDeadlineReminders bool
	EmailStatusUpdates     bool
	EmailRFEAlerts         bool

	ReminderIntervals []int

	QuietHoursEnabled bool
	QuietHoursStart   string
	QuietHoursEnd     string
	Timezone          string
	Location          *time.Location

	WeeklyDigest bool
}

// DefaultPreferences returns the settings applied when a user has no
// preferences row at all.
func DefaultPreferences() ResolvedPreferences {
	intervals := make([]int, len(DefaultReminderIntervals))
	copy(intervals, DefaultReminderIntervals)

	return ResolvedPreferences{
		EmailEnabled:           true,
		PushEnabled:            false,
		EmailDeadlineReminders: true,
		EmailStatusUpdates:     true,
		EmailRFEAlerts:         true,
		ReminderIntervals:      intervals,
		Timezone:               "UTC",
		Location:               time.UTC,
		WeeklyDigest:           true,
	}
}

// PreferenceService resolves per-user notification settings, applying
// documented defaults for anything missing.
type PreferenceService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(db *gorm.DB) (*PreferenceService, error) {
	if db == nil {
		return nil, errors.New("preference service: db is required")
	}
	return &PreferenceService{db: db, log: logger.WithModule("preferences")}, nil
}

// GetForUser loads and resolves the user's preferences. A missing row yields
// the defaults rather than an error.
func (s *PreferenceService) GetForUser(ctx context.Context, userID string) (ResolvedPreferences, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ResolvedPreferences{}, errors.New("preference service: user id is required")
	}

	var row models.NotificationPreferences
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return ResolvedPreferences{}, fmt.Errorf("preference service: load preferences: %w", err)
	}

	return s.resolve(row), nil
}

func (s *PreferenceService) resolve(row models.NotificationPreferences) ResolvedPreferences {
	resolved := ResolvedPreferences{
		EmailEnabled:           row.EmailEnabled,
		PushEnabled:            row.PushEnabled,
		EmailDeadlineReminders: row.EmailDeadlineReminders,
		EmailStatusUpdates:     row.EmailStatusUpdates,
		EmailRFEAlerts:         row.EmailRFEAlerts,
		QuietHoursEnabled:      row.QuietHoursEnabled,
		QuietHoursStart:        row.QuietHoursStart,
		QuietHoursEnd:          row.QuietHoursEnd,
		Timezone:               strings.TrimSpace(row.Timezone),
		// Digest defaults to on unless the user explicitly opted out.
		WeeklyDigest: row.WeeklyDigest == nil || *row.WeeklyDigest,
	}

	if len(row.ReminderIntervals) > 0 {
		resolved.ReminderIntervals = append([]int(nil), row.ReminderIntervals...)
	} else {
		resolved.ReminderIntervals = append([]int(nil), DefaultReminderIntervals...)
	}

	resolved.Location = s.resolveLocation(row.UserID, resolved.Timezone)
	if resolved.Timezone == "" {
		resolved.Timezone = "UTC"
	}

	return resolved
}

// resolveLocation maps an IANA timezone name to a Location, failing open to
// UTC so quiet-hours decisions are never blocked by a bad preference row.
func (s *PreferenceService) resolveLocation(userID, tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone in preferences, falling back to UTC",
			zap.String("user_id", userID),
			zap.String("timezone", tz),
			zap.Error(err))
		return time.UTC
	}
	return loc
}
