package deadlines

import "github.com/permtrackhq/permtrack/internal/models"

// activePredicates is the supersession table: one predicate per deadline type
// answering "has a later case event made this deadline irrelevant?".
var activePredicates = map[Type]func(*models.PermCase) bool{
	// PWD relevance ends the moment ETA-9089 is filed.
	TypePWDExpiration: func(c *models.PermCase) bool {
		return c.ETA9089FilingDate == ""
	},
	// The filing window only matters while the application is unfiled.
	TypeFilingWindowCloses: func(c *models.PermCase) bool {
		return c.ETA9089FilingDate == ""
	},
	TypeI140Filing: func(c *models.PermCase) bool {
		return c.I140FilingDate == ""
	},
	TypeRFIDue: func(c *models.PermCase) bool {
		return anyOpenRFI(c)
	},
	TypeRFEDue: func(c *models.PermCase) bool {
		return anyOpenRFE(c)
	},
}

// IsActive reports whether the deadline type is still live for the case.
// Closed and soft-deleted cases are inactive for every type.
func IsActive(t Type, c *models.PermCase) bool {
	if c == nil || c.IsClosed() || c.DeletedAt.Valid {
		return false
	}

	predicate, known := activePredicates[t]
	if !known {
		return false
	}
	return predicate(c)
}

func anyOpenRFI(c *models.PermCase) bool {
	for i := range c.RFIEntries {
		if c.RFIEntries[i].IsOpen() {
			return true
		}
	}
	return false
}

func anyOpenRFE(c *models.PermCase) bool {
	for i := range c.RFEEntries {
		if c.RFEEntries[i].IsOpen() {
			return true
		}
	}
	return false
}
