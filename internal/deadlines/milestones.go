package deadlines

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/permtrackhq/permtrack/internal/dates"
	"github.com/permtrackhq/permtrack/internal/models"
)

// staticFields maps the stored date columns to their milestone identity.
// Order here is only an iteration order; the final list is re-sorted by date.
var staticFields = []struct {
	field string
	label string
	stage Stage
	value func(*models.PermCase) string
}{
	{"pwd_filing_date", "PWD Filed", StagePWD, func(c *models.PermCase) string { return c.PWDFilingDate }},
	{"pwd_determination_date", "PWD Determination", StagePWD, func(c *models.PermCase) string { return c.PWDDeterminationDate }},
	{"pwd_expiration_date", "PWD Expiration", StagePWD, func(c *models.PermCase) string { return c.PWDExpirationDate }},
	{"sunday_ad_first_date", "First Sunday Ad", StageRecruitment, func(c *models.PermCase) string { return c.SundayAdFirstDate }},
	{"sunday_ad_second_date", "Second Sunday Ad", StageRecruitment, func(c *models.PermCase) string { return c.SundayAdSecondDate }},
	{"job_order_start_date", "Job Order Start", StageRecruitment, func(c *models.PermCase) string { return c.JobOrderStartDate }},
	{"job_order_end_date", "Job Order End", StageRecruitment, func(c *models.PermCase) string { return c.JobOrderEndDate }},
	{"notice_of_filing_start_date", "Notice of Filing Posted", StageRecruitment, func(c *models.PermCase) string { return c.NoticeOfFilingStartDate }},
	{"notice_of_filing_end_date", "Notice of Filing Removed", StageRecruitment, func(c *models.PermCase) string { return c.NoticeOfFilingEndDate }},
	{"additional_recruitment_end_date", "Additional Recruitment Ends", StageRecruitment, func(c *models.PermCase) string { return c.AdditionalRecruitmentEndDate }},
	{"eta9089_filing_date", "ETA 9089 Filing", StageETA9089, func(c *models.PermCase) string { return c.ETA9089FilingDate }},
	{"eta9089_certification_date", "ETA 9089 Certified", StageETA9089, func(c *models.PermCase) string { return c.ETA9089CertificationDate }},
	{"eta9089_expiration_date", "ETA 9089 Expiration", StageETA9089, func(c *models.PermCase) string { return c.ETA9089ExpirationDate }},
	{"i140_filing_date", "I-140 Filing", StageI140, func(c *models.PermCase) string { return c.I140FilingDate }},
	{"i140_approval_date", "I-140 Approval", StageI140, func(c *models.PermCase) string { return c.I140ApprovalDate }},
}

// ExtractMilestones produces the ordered calendar timeline for one case:
// every stored date, the calculated filing-window pair while it is still
// live, additional recruitment methods for professional-occupation cases,
// and open RFI/RFE response deadlines.
//
// Malformed stored dates skip only their own milestone; the combined error
// names each offending field so the caller can log it. The returned slice is
// deterministic for identical input.
func ExtractMilestones(c *models.PermCase) ([]Milestone, error) {
	if c == nil {
		return nil, nil
	}

	var (
		milestones []Milestone
		errs       error
	)

	for _, sf := range staticFields {
		value := sf.value(c)
		if _, ok, err := dates.Parse(sf.field, value); err != nil {
			errs = multierr.Append(errs, err)
			continue
		} else if !ok {
			continue
		}
		milestones = append(milestones, Milestone{
			Field: sf.field,
			Label: sf.label,
			Date:  value,
			Stage: sf.stage,
		})
	}

	if IsActive(TypeFilingWindowCloses, c) {
		opens, err := dates.FilingWindowOpens(c)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if opens != "" {
			milestones = append(milestones, Milestone{
				Field:        "filing_window_opens",
				Label:        "Ready to File",
				Date:         opens,
				Stage:        StageETA9089,
				IsCalculated: true,
			})
		}

		closes, err := dates.FilingWindowCloses(c)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if closes != "" {
			milestones = append(milestones, Milestone{
				Field:        "filing_window_closes",
				Label:        "Filing Deadline",
				Date:         closes,
				Stage:        StageETA9089,
				IsCalculated: true,
			})
		}
	}

	if c.ProfessionalOccupation {
		milestones = append(milestones, methodMilestones(c)...)
	}

	rfi, err := entryMilestones(rfiEntryDates(c), "rfi_due", "RFI Due", StageRFI)
	errs = multierr.Append(errs, err)
	milestones = append(milestones, rfi...)

	rfe, err := entryMilestones(rfeEntryDates(c), "rfe_due", "RFE Due", StageRFE)
	errs = multierr.Append(errs, err)
	milestones = append(milestones, rfe...)

	sort.SliceStable(milestones, func(i, j int) bool {
		return milestones[i].Date < milestones[j].Date
	})

	return milestones, errs
}

func methodMilestones(c *models.PermCase) []Milestone {
	methods := make([]models.RecruitmentMethod, 0, len(c.RecruitmentMethods))
	for _, method := range c.RecruitmentMethods {
		if method.Date != "" {
			methods = append(methods, method)
		}
	}
	sort.SliceStable(methods, func(i, j int) bool { return methods[i].Date < methods[j].Date })

	milestones := make([]Milestone, 0, len(methods))
	for i, method := range methods {
		label := method.Name
		if label == "" {
			label = fmt.Sprintf("Addl Method #%d", i+1)
		}
		milestones = append(milestones, Milestone{
			Field: "recruitment_method",
			Label: label,
			Date:  method.Date,
			Stage: StageRecruitment,
		})
	}
	return milestones
}

// entryDate is the slice element shared by RFI and RFE extraction.
type entryDate struct {
	title    string
	received string
	due      string
}

func rfiEntryDates(c *models.PermCase) []entryDate {
	var entries []entryDate
	for i := range c.RFIEntries {
		if c.RFIEntries[i].IsOpen() {
			entries = append(entries, entryDate{
				title:    c.RFIEntries[i].Title,
				received: c.RFIEntries[i].ReceivedDate,
				due:      c.RFIEntries[i].ResponseDueDate,
			})
		}
	}
	return entries
}

func rfeEntryDates(c *models.PermCase) []entryDate {
	var entries []entryDate
	for i := range c.RFEEntries {
		if c.RFEEntries[i].IsOpen() {
			entries = append(entries, entryDate{
				title:    c.RFEEntries[i].Title,
				received: c.RFEEntries[i].ReceivedDate,
				due:      c.RFEEntries[i].ResponseDueDate,
			})
		}
	}
	return entries
}

// entryMilestones numbers open entries 1..N by received date. A single entry
// keeps the bare label; multiple entries get "#N" suffixes.
func entryMilestones(entries []entryDate, field, baseLabel string, stage Stage) ([]Milestone, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].received < entries[j].received })

	var (
		milestones []Milestone
		errs       error
	)
	for i, entry := range entries {
		if _, ok, err := dates.Parse(field, entry.due); err != nil {
			errs = multierr.Append(errs, err)
			continue
		} else if !ok {
			continue
		}

		label := entry.title
		if label == "" {
			label = baseLabel
			if len(entries) > 1 {
				label = fmt.Sprintf("%s #%d", baseLabel, i+1)
			}
		}
		milestones = append(milestones, Milestone{
			Field:   field,
			Label:   label,
			Date:    entry.due,
			Stage:   stage,
			Ordinal: i + 1,
		})
	}
	return milestones, errs
}
