package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/models"
	apperrors "github.com/permtrackhq/permtrack/pkg/errors"
	"github.com/permtrackhq/permtrack/pkg/logger"
	"github.com/permtrackhq/permtrack/pkg/metrics"
)

// DedupKey identifies one reminder instance. A reminder for the same case,
// deadline type, and day offset must never be created twice, so the triple is
// carried as a value type rather than a delimited string.
type DedupKey struct {
	CaseID       string
	DeadlineType string
	DaysUntil    int
}

// DedupIndex is the set of reminder keys already persisted, snapshotted once
// at the start of a run.
type DedupIndex map[DedupKey]struct{}

// Contains reports whether the key has already been notified.
func (idx DedupIndex) Contains(key DedupKey) bool {
	_, ok := idx[key]
	return ok
}

// Add records a key, guarding against duplicates within the same run.
func (idx DedupIndex) Add(key DedupKey) {
	idx[key] = struct{}{}
}

// reminderTypes are the notification types that participate in deduplication.
var reminderTypes = []string{
	models.NotificationTypeDeadlineReminder,
	models.NotificationTypeRFIAlert,
	models.NotificationTypeRFEAlert,
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID            string
	CaseID            *string
	Type              string
	Title             string
	Message           string
	Priority          string
	DeadlineDate      string
	DeadlineType      string
	DaysUntilDeadline *int
	Metadata          map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Offset int
}

// NotificationService owns the persisted notification records: creation with
// reminder deduplication, read/email-sent state, and the retention sweep.
type NotificationService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, log: logger.WithModule("notifications")}, nil
}

// LoadDedupIndex snapshots the reminder keys already persisted. If the index
// cannot be read the run must abort, because proceeding could double-notify.
func (s *NotificationService) LoadDedupIndex(ctx context.Context) (DedupIndex, error) {
	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Select("case_id", "deadline_type", "days_until_deadline").
		Where("type IN ?", reminderTypes).
		Where("case_id IS NOT NULL AND days_until_deadline IS NOT NULL").
		Find(&rows).Error; err != nil {
		return nil, apperrors.ErrDedupIndexUnavailable.WithInternal(err)
	}

	index := make(DedupIndex, len(rows))
	for _, row := range rows {
		if row.CaseID == nil || row.DaysUntilDeadline == nil {
			continue
		}
		index.Add(DedupKey{
			CaseID:       *row.CaseID,
			DeadlineType: row.DeadlineType,
			DaysUntil:    *row.DaysUntilDeadline,
		})
	}
	return index, nil
}

// CreateReminder persists one reminder notification idempotently on its dedup
// key. The returned flag reports whether a new row was created; an existing
// row means another run already handled this reminder.
func (s *NotificationService) CreateReminder(ctx context.Context, input CreateNotificationInput) (*models.Notification, bool, error) {
	if input.CaseID == nil || strings.TrimSpace(*input.CaseID) == "" {
		return nil, false, errors.New("notification service: reminder requires a case id")
	}
	if input.DaysUntilDeadline == nil {
		return nil, false, errors.New("notification service: reminder requires days until deadline")
	}

	row, err := s.buildRow(input)
	if err != nil {
		return nil, false, err
	}

	var existing models.Notification
	result := s.db.WithContext(ctx).
		Where("case_id = ? AND deadline_type = ? AND days_until_deadline = ?",
			*input.CaseID, input.DeadlineType, *input.DaysUntilDeadline).
		Attrs(row).
		FirstOrCreate(&existing)
	if result.Error != nil {
		return nil, false, fmt.Errorf("notification service: create reminder: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if created {
		metrics.RemindersGenerated.WithLabelValues(input.DeadlineType).Inc()
	}
	return &existing, created, nil
}

// Create persists a non-reminder notification (status changes, system
// messages, digests confirmations). No dedup applies.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	row, err := s.buildRow(input)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}
	return &row, nil
}

func (s *NotificationService) buildRow(input CreateNotificationInput) (models.Notification, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return models.Notification{}, errors.New("notification service: user id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return models.Notification{}, errors.New("notification service: type is required")
	}

	row := models.Notification{
		UserID:            userID,
		CaseID:            input.CaseID,
		Type:              notificationType,
		Title:             strings.TrimSpace(input.Title),
		Message:           strings.TrimSpace(input.Message),
		Priority:          defaultIfEmpty(input.Priority, models.PriorityNormal),
		DeadlineDate:      input.DeadlineDate,
		DeadlineType:      input.DeadlineType,
		DaysUntilDeadline: input.DaysUntilDeadline,
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return models.Notification{}, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(data)
	}

	return row, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]models.Notification, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead sets the notification read flag for a user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkAllRead marks all notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}
	return nil
}

// MarkEmailSent records that the email channel delivered this notification.
func (s *NotificationService) MarkEmailSent(ctx context.Context, notificationID string) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Updates(map[string]any{
			"email_sent":    true,
			"email_sent_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark email sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CleanupRead removes read notifications older than the retention window, at
// most batchSize rows per invocation to bound sweep time.
func (s *NotificationService) CleanupRead(ctx context.Context, retentionDays, batchSize int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if batchSize <= 0 || batchSize > 1000 {
		batchSize = 1000
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Order("created_at ASC").
		Limit(batchSize).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("notification service: select retention batch: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: delete retention batch: %w", result.Error)
	}

	metrics.RetentionDeleted.Add(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
