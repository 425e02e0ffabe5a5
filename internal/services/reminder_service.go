package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/permtrackhq/permtrack/internal/dates"
	"github.com/permtrackhq/permtrack/internal/deadlines"
	"github.com/permtrackhq/permtrack/internal/models"
	"github.com/permtrackhq/permtrack/pkg/logger"
	"github.com/permtrackhq/permtrack/pkg/metrics"
)

// RunResult summarises one reminder-generation pass. Every case and candidate
// lands in exactly one counter so failures are never silently dropped.
type RunResult struct {
	CasesProcessed   int
	CasesFailed      int
	Generated        int
	SkippedInactive  int
	SkippedNoMatch   int
	SkippedDedup     int
	SkippedMalformed int
	EmailsSent       int
	PushesSent       int
}

// ReminderService is the once-per-schedule reminder generator: it scans all
// open cases, applies supersession and interval preferences, deduplicates
// against already-persisted reminders, and hands surviving candidates to the
// dispatcher.
type ReminderService struct {
	cases         *CaseService
	prefs         *PreferenceService
	notifications *NotificationService
	dispatcher    *Dispatcher
	now           func() time.Time
	log           *zap.Logger
}

// ReminderOption customises the ReminderService.
type ReminderOption func(*ReminderService)

// WithNow overrides the clock used to compute days-until values.
func WithNow(now func() time.Time) ReminderOption {
	return func(s *ReminderService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReminderService constructs a ReminderService.
func NewReminderService(cases *CaseService, prefs *PreferenceService, notifications *NotificationService, dispatcher *Dispatcher, opts ...ReminderOption) (*ReminderService, error) {
	if cases == nil || prefs == nil || notifications == nil || dispatcher == nil {
		return nil, errors.New("reminder service: all dependencies are required")
	}

	s := &ReminderService{
		cases:         cases,
		prefs:         prefs,
		notifications: notifications,
		dispatcher:    dispatcher,
		now:           time.Now,
		log:           logger.WithModule("reminders"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes one full reminder pass. The dedup index is snapshotted once at
// the start; if it cannot be read the run aborts, since generating without it
// risks double-notifying. Per-case failures are logged and counted but never
// abort the rest of the population.
func (s *ReminderService) Run(ctx context.Context) (RunResult, error) {
	var result RunResult

	openCases, err := s.cases.ListActive(ctx)
	if err != nil {
		metrics.ReminderRuns.WithLabelValues("aborted").Inc()
		return result, fmt.Errorf("reminder run: load cases: %w", err)
	}

	users, err := s.cases.ListUsers(ctx)
	if err != nil {
		metrics.ReminderRuns.WithLabelValues("aborted").Inc()
		return result, fmt.Errorf("reminder run: load users: %w", err)
	}

	index, err := s.notifications.LoadDedupIndex(ctx)
	if err != nil {
		metrics.ReminderRuns.WithLabelValues("aborted").Inc()
		return result, err
	}

	prefsCache := make(map[string]ResolvedPreferences)
	now := s.now()

	for i := range openCases {
		c := &openCases[i]

		owner, ok := users[c.UserID]
		if !ok {
			// Owner deactivated or deleted; their cases get no reminders.
			continue
		}

		if err := s.processCase(ctx, c, owner, prefsCache, index, now, &result); err != nil {
			result.CasesFailed++
			metrics.CaseFailures.Inc()
			s.log.Error("case skipped during reminder generation",
				zap.String("case_id", c.ID),
				zap.String("user_id", c.UserID),
				zap.Error(err))
			continue
		}
		result.CasesProcessed++
	}

	metrics.ReminderRuns.WithLabelValues("success").Inc()
	s.log.Info("reminder pass complete",
		zap.Int("cases_processed", result.CasesProcessed),
		zap.Int("cases_failed", result.CasesFailed),
		zap.Int("generated", result.Generated),
		zap.Int("skipped_dedup", result.SkippedDedup))
	return result, nil
}

func (s *ReminderService) processCase(ctx context.Context, c *models.PermCase, owner models.User, prefsCache map[string]ResolvedPreferences, index DedupIndex, now time.Time, result *RunResult) error {
	prefs, ok := prefsCache[owner.ID]
	if !ok {
		var err error
		prefs, err = s.prefs.GetForUser(ctx, owner.ID)
		if err != nil {
			return fmt.Errorf("resolve preferences: %w", err)
		}
		prefsCache[owner.ID] = prefs
	}

	instances, err := deadlineInstances(c)
	if err != nil {
		// Derived-date computation failed; the case's stored deadlines
		// are still processed, only the derived one is lost.
		result.SkippedMalformed++
		metrics.RemindersSkipped.WithLabelValues("malformed").Inc()
		s.log.Warn("derived deadline skipped: malformed date",
			zap.String("case_id", c.ID),
			zap.Error(err))
	}

	for _, instance := range instances {
		if !deadlines.IsActive(instance.Type, c) {
			result.SkippedInactive++
			metrics.RemindersSkipped.WithLabelValues("inactive").Inc()
			continue
		}

		daysUntil, present, dateErr := dates.DaysUntil(instance.Date, now)
		if dateErr != nil {
			result.SkippedMalformed++
			metrics.RemindersSkipped.WithLabelValues("malformed").Inc()
			s.log.Warn("deadline skipped: malformed date",
				zap.String("case_id", c.ID),
				zap.String("deadline_type", string(instance.Type)),
				zap.Error(dateErr))
			continue
		}
		if !present {
			continue
		}

		if !reminderFires(daysUntil, prefs.ReminderIntervals) {
			result.SkippedNoMatch++
			metrics.RemindersSkipped.WithLabelValues("no_interval").Inc()
			continue
		}

		key := DedupKey{CaseID: c.ID, DeadlineType: string(instance.Type), DaysUntil: daysUntil}
		if index.Contains(key) {
			result.SkippedDedup++
			metrics.RemindersSkipped.WithLabelValues("deduplicated").Inc()
			continue
		}

		outcome, dispatchErr := s.dispatcher.Dispatch(ctx, Candidate{
			User:      owner,
			Case:      *c,
			Type:      instance.Type,
			Date:      instance.Date,
			DaysUntil: daysUntil,
			Label:     instance.Label,
			Prefs:     prefs,
		})
		if dispatchErr != nil {
			return fmt.Errorf("dispatch %s: %w", instance.Type, dispatchErr)
		}

		index.Add(key)
		if outcome.Created {
			result.Generated++
			if outcome.EmailSent {
				result.EmailsSent++
			}
			if outcome.PushSent {
				result.PushesSent++
			}
		} else {
			// Row already existed despite the snapshot miss: an
			// overlapping run got there first.
			result.SkippedDedup++
			metrics.RemindersSkipped.WithLabelValues("deduplicated").Inc()
		}
	}

	return nil
}

// reminderFires decides whether a reminder is due at this day offset: an
// exact interval match, the day itself, or exactly one day overdue. A
// deadline more than one day past never fires again, so a missed run is
// never made up later.
func reminderFires(daysUntil int, intervals []int) bool {
	if daysUntil == 0 || daysUntil == -1 {
		return true
	}
	if daysUntil < -1 {
		return false
	}
	for _, interval := range intervals {
		if daysUntil == interval {
			return true
		}
	}
	return false
}

// deadlineInstance pairs a deadline type with its current date and label.
type deadlineInstance struct {
	Type  deadlines.Type
	Date  string
	Label string
}

// deadlineInstances lists the dates eligible for reminders on one case.
// Supersession is not applied here; callers gate on deadlines.IsActive.
func deadlineInstances(c *models.PermCase) ([]deadlineInstance, error) {
	var instances []deadlineInstance

	if c.PWDExpirationDate != "" {
		instances = append(instances, deadlineInstance{
			Type:  deadlines.TypePWDExpiration,
			Date:  c.PWDExpirationDate,
			Label: "PWD Expiration",
		})
	}

	closes, err := dates.FilingWindowCloses(c)
	if err == nil && closes != "" {
		instances = append(instances, deadlineInstance{
			Type:  deadlines.TypeFilingWindowCloses,
			Date:  closes,
			Label: "Filing Deadline",
		})
	}

	// The I-140 must be filed before the certified ETA-9089 expires.
	if c.ETA9089ExpirationDate != "" {
		instances = append(instances, deadlineInstance{
			Type:  deadlines.TypeI140Filing,
			Date:  c.ETA9089ExpirationDate,
			Label: "I-140 Deadline",
		})
	}

	if due := earliestOpenDue(rfiDue(c)); due != "" {
		instances = append(instances, deadlineInstance{
			Type:  deadlines.TypeRFIDue,
			Date:  due,
			Label: "RFI Due",
		})
	}
	if due := earliestOpenDue(rfeDue(c)); due != "" {
		instances = append(instances, deadlineInstance{
			Type:  deadlines.TypeRFEDue,
			Date:  due,
			Label: "RFE Due",
		})
	}

	return instances, err
}

func rfiDue(c *models.PermCase) []string {
	var due []string
	for i := range c.RFIEntries {
		if c.RFIEntries[i].IsOpen() {
			due = append(due, c.RFIEntries[i].ResponseDueDate)
		}
	}
	return due
}

func rfeDue(c *models.PermCase) []string {
	var due []string
	for i := range c.RFEEntries {
		if c.RFEEntries[i].IsOpen() {
			due = append(due, c.RFEEntries[i].ResponseDueDate)
		}
	}
	return due
}

// earliestOpenDue picks the most pressing due date; ISO strings compare
// lexically.
func earliestOpenDue(due []string) string {
	earliest := ""
	for _, d := range due {
		if earliest == "" || d < earliest {
			earliest = d
		}
	}
	return earliest
}
