// Package dates implements the calendar arithmetic behind derived PERM
// deadlines. Everything operates on ISO calendar dates ("YYYY-MM-DD") in UTC
// at day granularity; an empty string is treated as an absent date, never an
// error.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/permtrackhq/permtrack/internal/models"
)

// ISOLayout is the storage format for all case dates.
const ISOLayout = "2006-01-02"

const (
	// filingWindowOpenOffset is the mandatory waiting period after the last
	// recruitment step before ETA-9089 may be filed.
	filingWindowOpenOffset = 30
	// filingWindowCloseOffset bounds the filing window from the first
	// recruitment step.
	filingWindowCloseOffset = 180
)

// DateFormatError reports a stored date that is present but not a valid ISO
// calendar date. The offending field is named so the caller can skip just
// that milestone.
type DateFormatError struct {
	Field string
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date %q in field %s", e.Value, e.Field)
}

// Parse converts a stored date into UTC midnight. It returns ok=false for an
// absent (empty) value and a *DateFormatError for a malformed one.
func Parse(field, value string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, nil
	}

	parsed, err := time.ParseInLocation(ISOLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, false, &DateFormatError{Field: field, Value: value}
	}
	return parsed, true, nil
}

// AddDays returns the date n calendar days after the input. Only dates are
// involved, so DST shifts cannot skew the result.
func AddDays(date string, n int) (string, error) {
	parsed, ok, err := Parse("date", date)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return parsed.AddDate(0, 0, n).Format(ISOLayout), nil
}

// FirstRecruitmentDate returns the earliest recruitment start activity on the
// case, or "" when none has been entered.
func FirstRecruitmentDate(c *models.PermCase) (string, error) {
	candidates := []struct {
		field string
		value string
	}{
		{"sunday_ad_first_date", c.SundayAdFirstDate},
		{"job_order_start_date", c.JobOrderStartDate},
		{"notice_of_filing_start_date", c.NoticeOfFilingStartDate},
	}

	earliest := ""
	for _, candidate := range candidates {
		if _, ok, err := Parse(candidate.field, candidate.value); err != nil {
			return "", err
		} else if !ok {
			continue
		}
		if earliest == "" || candidate.value < earliest {
			earliest = candidate.value
		}
	}
	return earliest, nil
}

// LastRecruitmentDate returns the latest recruitment end activity on the
// case. Professional-occupation cases additionally consider the
// additional-recruitment end date and every extra method date. Returns ""
// when no qualifying date exists.
func LastRecruitmentDate(c *models.PermCase) (string, error) {
	candidates := []struct {
		field string
		value string
	}{
		{"sunday_ad_second_date", c.SundayAdSecondDate},
		{"job_order_end_date", c.JobOrderEndDate},
		{"notice_of_filing_end_date", c.NoticeOfFilingEndDate},
	}

	if c.ProfessionalOccupation {
		candidates = append(candidates, struct {
			field string
			value string
		}{"additional_recruitment_end_date", c.AdditionalRecruitmentEndDate})
		for i, method := range c.RecruitmentMethods {
			candidates = append(candidates, struct {
				field string
				value string
			}{fmt.Sprintf("recruitment_methods[%d].date", i), method.Date})
		}
	}

	latest := ""
	for _, candidate := range candidates {
		if _, ok, err := Parse(candidate.field, candidate.value); err != nil {
			return "", err
		} else if !ok {
			continue
		}
		if candidate.value > latest {
			latest = candidate.value
		}
	}
	return latest, nil
}

// FilingWindowOpens returns the first day ETA-9089 may be filed: 30 days
// after the last recruitment step, or "" when recruitment has not ended.
func FilingWindowOpens(c *models.PermCase) (string, error) {
	last, err := LastRecruitmentDate(c)
	if err != nil || last == "" {
		return "", err
	}
	return AddDays(last, filingWindowOpenOffset)
}

// FilingWindowCloses returns the last day ETA-9089 may be filed: 180 days
// after the first recruitment step, capped at the PWD expiration when that
// comes sooner. Returns "" when recruitment has not started.
func FilingWindowCloses(c *models.PermCase) (string, error) {
	first, err := FirstRecruitmentDate(c)
	if err != nil || first == "" {
		return "", err
	}

	closes, err := AddDays(first, filingWindowCloseOffset)
	if err != nil {
		return "", err
	}

	if _, ok, err := Parse("pwd_expiration_date", c.PWDExpirationDate); err != nil {
		return "", err
	} else if ok && c.PWDExpirationDate < closes {
		closes = c.PWDExpirationDate
	}
	return closes, nil
}

// DaysUntil counts whole calendar days from UTC-midnight "today" until the
// deadline. Negative values mean the deadline has passed; ok=false means the
// date is absent.
func DaysUntil(date string, now time.Time) (int, bool, error) {
	target, ok, err := Parse("deadline_date", date)
	if err != nil || !ok {
		return 0, false, err
	}

	utc := now.UTC()
	today := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return int(target.Sub(today).Hours() / 24), true, nil
}
