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
	"github.com/permtrackhq/permtrack/internal/notify"
	"github.com/permtrackhq/permtrack/pkg/logger"
	"github.com/permtrackhq/permtrack/pkg/mail"
	"github.com/permtrackhq/permtrack/pkg/metrics"
)

const (
	// digestLookbackDays and digestLookaheadDays bound which deadlines the
	// weekly summary covers.
	digestLookbackDays  = 30
	digestLookaheadDays = 14

	// digestRecentDays bounds the "recently updated cases" section.
	digestRecentDays = 7

	digestFallback = "No upcoming deadlines or recent case activity this week. You're all caught up."
)

// DigestEntry is one deadline row of the weekly summary.
type DigestEntry struct {
	CaseID    string
	Employer  string
	Label     string
	Date      string
	DaysUntil int
}

// Digest is the assembled weekly summary for one user.
type Digest struct {
	Overdue  []DigestEntry
	Urgent   []DigestEntry
	Upcoming []DigestEntry
	Later    []DigestEntry

	RecentCases []models.PermCase
}

// IsEmpty reports whether the digest has nothing to say. Empty digests are
// still sent, with a fallback body, so a quiet week is distinguishable from
// a broken job.
func (d Digest) IsEmpty() bool {
	return len(d.Overdue) == 0 &&
		len(d.Urgent) == 0 &&
		len(d.Upcoming) == 0 &&
		len(d.Later) == 0 &&
		len(d.RecentCases) == 0
}

// DigestResult summarises one weekly digest pass.
type DigestResult struct {
	UsersConsidered int
	DigestsSent     int
	DigestsFailed   int
	EmptyDigests    int
}

// DigestService assembles and emails the weekly per-user summary.
type DigestService struct {
	cases  *CaseService
	prefs  *PreferenceService
	mailer mail.Mailer
	now    func() time.Time
	log    *zap.Logger
}

// DigestOption customises the DigestService.
type DigestOption func(*DigestService)

// WithDigestNow overrides the clock used to bucket deadlines.
func WithDigestNow(now func() time.Time) DigestOption {
	return func(s *DigestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDigestService constructs a DigestService.
func NewDigestService(cases *CaseService, prefs *PreferenceService, mailer mail.Mailer, opts ...DigestOption) (*DigestService, error) {
	if cases == nil || prefs == nil || mailer == nil {
		return nil, errors.New("digest service: all dependencies are required")
	}

	s := &DigestService{
		cases:  cases,
		prefs:  prefs,
		mailer: mailer,
		now:    time.Now,
		log:    logger.WithModule("digest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BuildDigest assembles the weekly summary for one user. Deadlines outside
// the lookback/lookahead window are omitted; superseded and inactive
// deadlines never appear.
func (s *DigestService) BuildDigest(ctx context.Context, userID string) (Digest, error) {
	var digest Digest

	openCases, err := s.cases.ListActiveForUser(ctx, userID)
	if err != nil {
		return digest, fmt.Errorf("digest: load cases: %w", err)
	}

	now := s.now()
	for i := range openCases {
		c := &openCases[i]

		instances, instErr := deadlineInstances(c)
		if instErr != nil {
			s.log.Warn("digest: derived dates unavailable for case",
				zap.String("case_id", c.ID),
				zap.Error(instErr))
		}

		for _, instance := range instances {
			if !deadlines.IsActive(instance.Type, c) {
				continue
			}

			daysUntil, present, dateErr := dates.DaysUntil(instance.Date, now)
			if dateErr != nil || !present {
				continue
			}
			if daysUntil < -digestLookbackDays || daysUntil > digestLookaheadDays {
				continue
			}

			entry := DigestEntry{
				CaseID:    c.ID,
				Employer:  c.EmployerName,
				Label:     instance.Label,
				Date:      instance.Date,
				DaysUntil: daysUntil,
			}
			switch {
			case daysUntil < 0:
				digest.Overdue = append(digest.Overdue, entry)
			case daysUntil <= 7:
				digest.Urgent = append(digest.Urgent, entry)
			case daysUntil <= 13:
				digest.Upcoming = append(digest.Upcoming, entry)
			default:
				digest.Later = append(digest.Later, entry)
			}
		}
	}

	cutoff := now.AddDate(0, 0, -digestRecentDays)
	recent, err := s.cases.UpdatedSince(ctx, userID, cutoff)
	if err != nil {
		return digest, fmt.Errorf("digest: load recent cases: %w", err)
	}
	digest.RecentCases = recent

	return digest, nil
}

// SendWeekly builds and emails a digest to every opted-in active user.
// Per-user failures are logged and counted; one bad mailbox never stops the
// rest of the send.
func (s *DigestService) SendWeekly(ctx context.Context) (DigestResult, error) {
	var result DigestResult

	users, err := s.cases.ListUsers(ctx)
	if err != nil {
		return result, fmt.Errorf("digest: load users: %w", err)
	}

	for _, user := range users {
		prefs, err := s.prefs.GetForUser(ctx, user.ID)
		if err != nil {
			result.DigestsFailed++
			metrics.DigestsSent.WithLabelValues("error").Inc()
			s.log.Error("digest skipped: preferences unavailable",
				zap.String("user_id", user.ID),
				zap.Error(err))
			continue
		}
		if !prefs.WeeklyDigest {
			continue
		}
		result.UsersConsidered++

		digest, err := s.BuildDigest(ctx, user.ID)
		if err != nil {
			result.DigestsFailed++
			metrics.DigestsSent.WithLabelValues("error").Inc()
			s.log.Error("digest build failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
			continue
		}
		if digest.IsEmpty() {
			result.EmptyDigests++
		}

		if err := s.send(ctx, user, digest); err != nil {
			if errors.Is(err, mail.ErrSMTPDisabled) {
				// Delivery is globally off; nothing to send anywhere.
				return result, nil
			}
			result.DigestsFailed++
			metrics.DigestsSent.WithLabelValues("error").Inc()
			s.log.Error("digest send failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
			continue
		}

		result.DigestsSent++
		metrics.DigestsSent.WithLabelValues("success").Inc()
	}

	s.log.Info("weekly digest pass complete",
		zap.Int("sent", result.DigestsSent),
		zap.Int("failed", result.DigestsFailed),
		zap.Int("empty", result.EmptyDigests))
	return result, nil
}

func (s *DigestService) send(ctx context.Context, user models.User, digest Digest) error {
	sections := []notify.DigestSection{
		{Heading: "Overdue", Lines: entryLines(digest.Overdue)},
		{Heading: "Due within 7 days", Lines: entryLines(digest.Urgent)},
		{Heading: "Coming up", Lines: entryLines(digest.Upcoming)},
		{Heading: "On the horizon", Lines: entryLines(digest.Later)},
		{Heading: "Recently updated cases", Lines: caseLines(digest.RecentCases)},
	}

	subject, body := notify.RenderDigestEmail(user.FirstName, sections, digestFallback)
	return s.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: subject,
		Body:    body,
	})
}

func entryLines(entries []DigestEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s (%s): %s on %s",
			e.Label, e.Employer, dueClause(e.DaysUntil), e.Date))
	}
	return lines
}

func dueClause(daysUntil int) string {
	switch {
	case daysUntil < -1:
		return fmt.Sprintf("overdue by %d days", -daysUntil)
	case daysUntil == -1:
		return "overdue by 1 day"
	case daysUntil == 0:
		return "due today"
	case daysUntil == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %d days", daysUntil)
	}
}

func caseLines(cases []models.PermCase) []string {
	lines := make([]string, 0, len(cases))
	for _, c := range cases {
		lines = append(lines, fmt.Sprintf("%s (%s)", c.EmployerName, c.CaseStatus))
	}
	return lines
}
