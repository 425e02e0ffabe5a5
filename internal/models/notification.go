package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types produced by the engine and its collaborators.
const (
	NotificationTypeDeadlineReminder = "deadline_reminder"
	NotificationTypeRFIAlert         = "rfi_alert"
	NotificationTypeRFEAlert         = "rfe_alert"
	NotificationTypeStatusChange     = "status_change"
	NotificationTypeAutoClosure      = "auto_closure"
	NotificationTypeSystem           = "system"
)

// Notification priorities, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification represents one persisted notification for a user. For deadline
// reminders the (CaseID, DeadlineType, DaysUntilDeadline) triple doubles as
// the deduplication key consulted by the next scheduled run.
type Notification struct {
	BaseModel

	UserID string  `gorm:"type:uuid;index;not null" json:"user_id"`
	CaseID *string `gorm:"type:uuid;index;uniqueIndex:idx_reminder_key" json:"case_id,omitempty"`

	Type     string `gorm:"type:varchar(64);not null;index" json:"type"`
	Title    string `gorm:"type:varchar(255);not null" json:"title"`
	Message  string `gorm:"type:text" json:"message"`
	Priority string `gorm:"type:varchar(32);default:'normal'" json:"priority"`

	// The unique index backs FirstOrCreate at the constraint level, so two
	// overlapping runs cannot both insert the same reminder. Non-reminder
	// rows leave CaseID and DaysUntilDeadline NULL and never collide.
	DeadlineDate      string `gorm:"type:varchar(10)" json:"deadline_date,omitempty"`
	DeadlineType      string `gorm:"type:varchar(64);index;uniqueIndex:idx_reminder_key" json:"deadline_type,omitempty"`
	DaysUntilDeadline *int   `gorm:"uniqueIndex:idx_reminder_key" json:"days_until_deadline,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	EmailSent   bool       `gorm:"default:false" json:"email_sent"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty"`
}
