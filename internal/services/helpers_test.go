package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/models"
	"github.com/permtrackhq/permtrack/internal/notify"
	"github.com/permtrackhq/permtrack/pkg/mail"
)

// testNow is the frozen clock for deterministic days-until arithmetic.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// isoIn returns the ISO date that is offset days from the frozen clock.
func isoIn(offset int) string {
	return testNow.AddDate(0, 0, offset).Format("2006-01-02")
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type fakePush struct {
	mu   sync.Mutex
	errs map[string]error // keyed by endpoint
	sent []models.PushSubscription
}

func (p *fakePush) Send(_ context.Context, sub models.PushSubscription, _ notify.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[sub.Endpoint]; ok {
		return err
	}
	p.sent = append(p.sent, sub)
	return nil
}

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		Email:     "attorney@example.com",
		FirstName: "Dana",
		LastName:  "Reyes",
		IsActive:  true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedCase(t *testing.T, db *gorm.DB, userID string, mutate func(*models.PermCase)) models.PermCase {
	t.Helper()
	c := models.PermCase{
		UserID:       userID,
		EmployerName: "Acme Robotics",
		CaseStatus:   models.CaseStatusPWD,
	}
	if mutate != nil {
		mutate(&c)
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}
