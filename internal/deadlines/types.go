// Package deadlines decides which dates on a PERM case are live deadlines and
// extracts the milestone timeline shown to case owners. A deadline type that
// has been superseded by a later case event must neither surface as a
// calculated milestone nor generate reminders, no matter how close its raw
// date is.
package deadlines

// Type identifies one kind of deadline the engine tracks.
type Type string

const (
	TypePWDExpiration      Type = "pwd_expiration"
	TypeFilingWindowCloses Type = "filing_window_closes"
	TypeI140Filing         Type = "i140_filing_deadline"
	TypeRFIDue             Type = "rfi_due"
	TypeRFEDue             Type = "rfe_due"
)

// AllTypes lists every deadline type in the order the reminder generator
// evaluates them.
var AllTypes = []Type{
	TypePWDExpiration,
	TypeFilingWindowCloses,
	TypeI140Filing,
	TypeRFIDue,
	TypeRFEDue,
}

// Stage tags a milestone with the PERM process phase it belongs to.
type Stage string

const (
	StagePWD         Stage = "pwd"
	StageRecruitment Stage = "recruitment"
	StageETA9089     Stage = "eta9089"
	StageI140        Stage = "i140"
	StageRFI         Stage = "rfi"
	StageRFE         Stage = "rfe"
)

// Milestone is a derived, transient calendar entry. It is produced fresh on
// every extraction and never persisted.
type Milestone struct {
	Field        string `json:"field"`
	Label        string `json:"label"`
	Date         string `json:"date"`
	Stage        Stage  `json:"stage"`
	IsCalculated bool   `json:"is_calculated"`
	// Ordinal numbers RFI/RFE milestones 1..N by received date; zero for
	// everything else.
	Ordinal int `json:"ordinal,omitempty"`
}
