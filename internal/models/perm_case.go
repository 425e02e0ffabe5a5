package models

import (
	"time"

	"gorm.io/gorm"
)

// Case status values follow the PERM process phases.
const (
	CaseStatusPWD         = "pwd"
	CaseStatusRecruitment = "recruitment"
	CaseStatusETA9089     = "eta9089"
	CaseStatusI140        = "i140"
	CaseStatusClosed      = "closed"
)

// PermCase is one employer-sponsored labor certification filing. All date
// columns store ISO calendar dates ("YYYY-MM-DD"); an empty string means the
// date has not been entered yet.
type PermCase struct {
	BaseModel

	UserID        string `gorm:"type:uuid;index;not null" json:"user_id"`
	EmployerName  string `gorm:"type:varchar(255);not null" json:"employer_name"`
	PositionTitle string `gorm:"type:varchar(255)" json:"position_title"`

	CaseStatus     string `gorm:"type:varchar(32);default:'pwd';index" json:"case_status"`
	ProgressStatus string `gorm:"type:varchar(64)" json:"progress_status"`

	// PWD phase.
	PWDFilingDate        string `gorm:"type:varchar(10)" json:"pwd_filing_date"`
	PWDDeterminationDate string `gorm:"type:varchar(10)" json:"pwd_determination_date"`
	PWDExpirationDate    string `gorm:"type:varchar(10)" json:"pwd_expiration_date"`

	// Recruitment phase.
	SundayAdFirstDate       string `gorm:"type:varchar(10)" json:"sunday_ad_first_date"`
	SundayAdSecondDate      string `gorm:"type:varchar(10)" json:"sunday_ad_second_date"`
	JobOrderStartDate       string `gorm:"type:varchar(10)" json:"job_order_start_date"`
	JobOrderEndDate         string `gorm:"type:varchar(10)" json:"job_order_end_date"`
	NoticeOfFilingStartDate string `gorm:"type:varchar(10)" json:"notice_of_filing_start_date"`
	NoticeOfFilingEndDate   string `gorm:"type:varchar(10)" json:"notice_of_filing_end_date"`

	// Professional-occupation cases run extra recruitment methods.
	ProfessionalOccupation       bool   `gorm:"default:false" json:"professional_occupation"`
	AdditionalRecruitmentEndDate string `gorm:"type:varchar(10)" json:"additional_recruitment_end_date"`

	// ETA-9089 phase.
	ETA9089FilingDate        string `gorm:"type:varchar(10)" json:"eta9089_filing_date"`
	ETA9089CertificationDate string `gorm:"type:varchar(10)" json:"eta9089_certification_date"`
	ETA9089ExpirationDate    string `gorm:"type:varchar(10)" json:"eta9089_expiration_date"`

	// I-140 phase.
	I140FilingDate   string `gorm:"type:varchar(10)" json:"i140_filing_date"`
	I140ApprovalDate string `gorm:"type:varchar(10)" json:"i140_approval_date"`

	RFIEntries         []RFIEntry          `gorm:"foreignKey:CaseID" json:"rfi_entries,omitempty"`
	RFEEntries         []RFEEntry          `gorm:"foreignKey:CaseID" json:"rfe_entries,omitempty"`
	RecruitmentMethods []RecruitmentMethod `gorm:"foreignKey:CaseID" json:"recruitment_methods,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsClosed reports whether the case has been closed by its owner.
func (c *PermCase) IsClosed() bool {
	return c.CaseStatus == CaseStatusClosed
}

// RFIEntry is one Request for Information raised against a case.
type RFIEntry struct {
	BaseModel

	CaseID                string `gorm:"type:uuid;index;not null" json:"case_id"`
	Title                 string `gorm:"type:varchar(255)" json:"title"`
	ReceivedDate          string `gorm:"type:varchar(10)" json:"received_date"`
	ResponseDueDate       string `gorm:"type:varchar(10)" json:"response_due_date"`
	ResponseSubmittedDate string `gorm:"type:varchar(10)" json:"response_submitted_date"`
}

// IsOpen reports whether the entry still awaits a response: a due date is set
// and nothing has been submitted yet.
func (e *RFIEntry) IsOpen() bool {
	return e.ResponseDueDate != "" && e.ResponseSubmittedDate == ""
}

// RFEEntry is one Request for Evidence raised against a case.
type RFEEntry struct {
	BaseModel

	CaseID                string `gorm:"type:uuid;index;not null" json:"case_id"`
	Title                 string `gorm:"type:varchar(255)" json:"title"`
	ReceivedDate          string `gorm:"type:varchar(10)" json:"received_date"`
	ResponseDueDate       string `gorm:"type:varchar(10)" json:"response_due_date"`
	ResponseSubmittedDate string `gorm:"type:varchar(10)" json:"response_submitted_date"`
}

// IsOpen reports whether the entry still awaits a response.
func (e *RFEEntry) IsOpen() bool {
	return e.ResponseDueDate != "" && e.ResponseSubmittedDate == ""
}

// RecruitmentMethod records one additional recruitment step run for a
// professional-occupation case (job fair, campus recruiting, etc).
type RecruitmentMethod struct {
	BaseModel

	CaseID string `gorm:"type:uuid;index;not null" json:"case_id"`
	Name   string `gorm:"type:varchar(255)" json:"name"`
	Date   string `gorm:"type:varchar(10)" json:"date"`
}

// TouchedSince reports whether the case row changed after the cutoff.
func (c *PermCase) TouchedSince(cutoff time.Time) bool {
	return c.UpdatedAt.After(cutoff)
}
