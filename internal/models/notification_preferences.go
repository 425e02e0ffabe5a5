package models

import "gorm.io/datatypes"

// NotificationPreferences stores per-user delivery settings. The engine reads
// these; missing rows or fields resolve to the documented defaults (see
// services.DefaultPreferences).
type NotificationPreferences struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	EmailEnabled bool `gorm:"default:true" json:"email_enabled"`
	PushEnabled  bool `gorm:"default:false" json:"push_enabled"`

	EmailDeadlineReminders bool `gorm:"default:true" json:"email_deadline_reminders"`
	EmailStatusUpdates     bool `gorm:"default:true" json:"email_status_updates"`
	EmailRFEAlerts         bool `gorm:"default:true" json:"email_rfe_alerts"`

	// Days-before-deadline offsets at which reminders fire.
	ReminderIntervals datatypes.JSONSlice[int] `json:"reminder_intervals"`

	QuietHoursEnabled bool   `gorm:"default:false" json:"quiet_hours_enabled"`
	QuietHoursStart   string `gorm:"type:varchar(5)" json:"quiet_hours_start"` // "HH:MM"
	QuietHoursEnd     string `gorm:"type:varchar(5)" json:"quiet_hours_end"`   // "HH:MM"
	Timezone          string `gorm:"type:varchar(64)" json:"timezone"`         // IANA name

	// Nullable so an unset value keeps the opt-out default of true.
	WeeklyDigest *bool `json:"weekly_digest"`
}

// PushSubscription holds one Web Push endpoint registered by a user agent.
type PushSubscription struct {
	BaseModel

	UserID     string `gorm:"type:uuid;index;not null" json:"user_id"`
	Endpoint   string `gorm:"type:text;uniqueIndex;not null" json:"endpoint"`
	P256dhKey  string `gorm:"type:text;not null" json:"p256dh_key"`
	AuthKey    string `gorm:"type:text;not null" json:"auth_key"`
	DeviceName string `gorm:"type:varchar(255)" json:"device_name"`
}
