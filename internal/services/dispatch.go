package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/deadlines"
	"github.com/permtrackhq/permtrack/internal/models"
	"github.com/permtrackhq/permtrack/internal/notify"
	"github.com/permtrackhq/permtrack/pkg/logger"
	"github.com/permtrackhq/permtrack/pkg/mail"
	"github.com/permtrackhq/permtrack/pkg/metrics"
)

// Candidate is one reminder the generator decided should fire: the case, the
// deadline, the owner, and the owner's resolved preferences.
type Candidate struct {
	User      models.User
	Case      models.PermCase
	Type      deadlines.Type
	Date      string
	DaysUntil int
	Label     string
	Prefs     ResolvedPreferences
}

// DispatchOutcome reports what the dispatcher did with one candidate.
type DispatchOutcome struct {
	NotificationID string
	Created        bool
	EmailSent      bool
	PushSent       bool
	// DroppedSubscriptions counts push endpoints removed because the push
	// service reported them permanently gone.
	DroppedSubscriptions int
}

// Dispatcher persists reminder notifications and routes them to channels
// according to user preference and quiet-hours policy. The channel decision
// is made once per candidate; push reuses the email quiet-hours verdict.
type Dispatcher struct {
	db            *gorm.DB
	notifications *NotificationService
	mailer        mail.Mailer
	push          notify.PushSender
	now           func() time.Time
	log           *zap.Logger
}

// DispatcherOption customises the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchNow overrides the clock used for quiet-hours evaluation.
func WithDispatchNow(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher constructs a Dispatcher. A nil mailer or push sender disables
// that channel without failing the run.
func NewDispatcher(db *gorm.DB, notifications *NotificationService, mailer mail.Mailer, push notify.PushSender, opts ...DispatcherOption) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("dispatcher: db is required")
	}
	if notifications == nil {
		return nil, errors.New("dispatcher: notification service is required")
	}

	d := &Dispatcher{
		db:            db,
		notifications: notifications,
		mailer:        mailer,
		push:          push,
		now:           time.Now,
		log:           logger.WithModule("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ClassifyType maps a deadline type to the notification type persisted for it.
func ClassifyType(t deadlines.Type) string {
	switch t {
	case deadlines.TypeRFIDue:
		return models.NotificationTypeRFIAlert
	case deadlines.TypeRFEDue:
		return models.NotificationTypeRFEAlert
	default:
		return models.NotificationTypeDeadlineReminder
	}
}

// PriorityFor ranks a reminder. The table is policy, not law, but it is
// monotonic: priority never drops as the deadline gets closer, and RFI/RFE
// alerts never rank below high.
func PriorityFor(notificationType string, daysUntil int) string {
	var priority string
	switch {
	case daysUntil <= 0:
		priority = models.PriorityUrgent
	case daysUntil <= 3:
		priority = models.PriorityHigh
	case daysUntil <= 14:
		priority = models.PriorityNormal
	default:
		priority = models.PriorityLow
	}

	if notificationType == models.NotificationTypeRFIAlert || notificationType == models.NotificationTypeRFEAlert {
		if priorityRank(priority) < priorityRank(models.PriorityHigh) {
			priority = models.PriorityHigh
		}
	}
	return priority
}

func priorityRank(priority string) int {
	switch priority {
	case models.PriorityUrgent:
		return 3
	case models.PriorityHigh:
		return 2
	case models.PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Dispatch persists the candidate's notification and issues channel requests.
// Creation is idempotent on the dedup key; a pre-existing row means another
// run already handled this reminder and no channel fires.
func (d *Dispatcher) Dispatch(ctx context.Context, cand Candidate) (DispatchOutcome, error) {
	notificationType := ClassifyType(cand.Type)
	priority := PriorityFor(notificationType, cand.DaysUntil)

	content := notify.ReminderContent{
		CaseID:       cand.Case.ID,
		EmployerName: cand.Case.EmployerName,
		Label:        cand.Label,
		Date:         cand.Date,
		DeadlineType: string(cand.Type),
		DaysUntil:    cand.DaysUntil,
	}

	caseID := cand.Case.ID
	daysUntil := cand.DaysUntil
	row, created, err := d.notifications.CreateReminder(ctx, CreateNotificationInput{
		UserID:            cand.User.ID,
		CaseID:            &caseID,
		Type:              notificationType,
		Title:             notify.ReminderTitle(content),
		Message:           notify.ReminderMessage(content),
		Priority:          priority,
		DeadlineDate:      cand.Date,
		DeadlineType:      string(cand.Type),
		DaysUntilDeadline: &daysUntil,
	})
	if err != nil {
		return DispatchOutcome{}, err
	}

	outcome := DispatchOutcome{NotificationID: row.ID, Created: created}
	if !created {
		return outcome, nil
	}

	// One decision covers both channels: push never fires when email was
	// suppressed, so the quiet-hours clock is consulted exactly once.
	suppressed := cand.Prefs.QuietHoursEnabled &&
		priority != models.PriorityUrgent &&
		d.quietHoursActive(cand.Prefs)

	emailFires := cand.Prefs.EmailEnabled && emailCategoryEnabled(notificationType, cand.Prefs) && !suppressed
	pushFires := cand.Prefs.PushEnabled && emailFires

	if suppressed {
		metrics.ChannelSends.WithLabelValues("email", "suppressed").Inc()
	}

	if emailFires {
		outcome.EmailSent = d.sendEmail(ctx, cand, content, row.ID)
	}
	if pushFires {
		sent, dropped := d.sendPush(ctx, cand, content)
		outcome.PushSent = sent
		outcome.DroppedSubscriptions = dropped
	}

	return outcome, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, cand Candidate, content notify.ReminderContent, notificationID string) bool {
	if d.mailer == nil {
		return false
	}

	subject, body := notify.RenderReminderEmail(content)
	err := d.mailer.Send(ctx, mail.Message{
		To:      []string{cand.User.Email},
		Subject: subject,
		Body:    body,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		return false
	}
	if err != nil {
		// Transient: the notification stays marked unsent, no in-run retry.
		d.log.Warn("reminder email failed",
			zap.String("user_id", cand.User.ID),
			zap.String("notification_id", notificationID),
			zap.Error(err))
		metrics.ChannelSends.WithLabelValues("email", "transient_error").Inc()
		return false
	}

	if err := d.notifications.MarkEmailSent(ctx, notificationID); err != nil {
		d.log.Warn("could not record email delivery",
			zap.String("notification_id", notificationID),
			zap.Error(err))
	}
	metrics.ChannelSends.WithLabelValues("email", "sent").Inc()
	return true
}

func (d *Dispatcher) sendPush(ctx context.Context, cand Candidate, content notify.ReminderContent) (bool, int) {
	if d.push == nil {
		return false, 0
	}

	var subs []models.PushSubscription
	if err := d.db.WithContext(ctx).
		Where("user_id = ?", cand.User.ID).
		Find(&subs).Error; err != nil {
		d.log.Warn("could not load push subscriptions",
			zap.String("user_id", cand.User.ID),
			zap.Error(err))
		return false, 0
	}

	msg := notify.RenderReminderPush(content)

	sent := false
	dropped := 0
	for _, sub := range subs {
		err := d.push.Send(ctx, sub, msg)
		switch {
		case err == nil:
			sent = true
			metrics.ChannelSends.WithLabelValues("push", "sent").Inc()
		case errors.Is(err, notify.ErrSubscriptionGone):
			dropped++
			metrics.ChannelSends.WithLabelValues("push", "permanent_error").Inc()
			if delErr := d.db.WithContext(ctx).Delete(&models.PushSubscription{}, "id = ?", sub.ID).Error; delErr != nil {
				d.log.Warn("could not remove dead push subscription",
					zap.String("subscription_id", sub.ID),
					zap.Error(delErr))
			} else {
				d.log.Info("removed expired push subscription",
					zap.String("user_id", cand.User.ID),
					zap.String("subscription_id", sub.ID))
			}
		default:
			metrics.ChannelSends.WithLabelValues("push", "transient_error").Inc()
			d.log.Warn("push delivery failed",
				zap.String("user_id", cand.User.ID),
				zap.String("subscription_id", sub.ID),
				zap.Error(err))
		}
	}
	return sent, dropped
}

func emailCategoryEnabled(notificationType string, prefs ResolvedPreferences) bool {
	switch notificationType {
	case models.NotificationTypeDeadlineReminder:
		return prefs.EmailDeadlineReminders
	case models.NotificationTypeRFIAlert, models.NotificationTypeRFEAlert:
		return prefs.EmailRFEAlerts
	case models.NotificationTypeStatusChange, models.NotificationTypeAutoClosure:
		return prefs.EmailStatusUpdates
	default:
		return true
	}
}

// quietHoursActive reports whether the user's local clock currently falls in
// their configured window. Malformed window bounds fail open (no quiet
// hours) so delivery is never silently blocked by a bad preference row.
func (d *Dispatcher) quietHoursActive(prefs ResolvedPreferences) bool {
	start, err := parseClock(prefs.QuietHoursStart)
	if err != nil {
		d.log.Warn("invalid quiet hours start", zap.String("value", prefs.QuietHoursStart), zap.Error(err))
		return false
	}
	end, err := parseClock(prefs.QuietHoursEnd)
	if err != nil {
		d.log.Warn("invalid quiet hours end", zap.String("value", prefs.QuietHoursEnd), zap.Error(err))
		return false
	}
	if start == end {
		return false
	}

	loc := prefs.Location
	if loc == nil {
		loc = time.UTC
	}
	local := d.now().In(loc)
	current := local.Hour()*60 + local.Minute()

	if start < end {
		return current >= start && current < end
	}
	// Window wraps midnight, e.g. 22:00-07:00.
	return current >= start || current < end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
