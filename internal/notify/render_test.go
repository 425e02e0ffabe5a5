package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReminderMessagePhrasing(t *testing.T) {
	rc := ReminderContent{EmployerName: "Acme Corp", Label: "PWD Expiration", Date: "2024-09-01"}

	rc.DaysUntil = 5
	require.Equal(t, "PWD Expiration for Acme Corp is due in 5 days (2024-09-01).", ReminderMessage(rc))

	rc.DaysUntil = 1
	require.Contains(t, ReminderMessage(rc), "due tomorrow")

	rc.DaysUntil = 0
	require.Contains(t, ReminderMessage(rc), "due today")

	rc.DaysUntil = -1
	require.Contains(t, ReminderMessage(rc), "was due yesterday")

	rc.DaysUntil = -5
	require.Contains(t, ReminderMessage(rc), "was due 5 days ago")
}

func TestRenderReminderEmailSubject(t *testing.T) {
	subject, body := RenderReminderEmail(ReminderContent{
		EmployerName: "Acme Corp",
		Label:        "Filing Deadline",
		Date:         "2024-08-30",
		DaysUntil:    7,
	})
	require.Equal(t, "[PERM Tracker] Filing Deadline: Acme Corp", subject)
	require.Contains(t, body, "due in 7 days")
}

func TestRenderReminderPushTagGroupsByCaseAndType(t *testing.T) {
	msg := RenderReminderPush(ReminderContent{
		CaseID:       "case-1",
		EmployerName: "Acme Corp",
		Label:        "RFI Due",
		Date:         "2024-04-15",
		DeadlineType: "rfi_due",
		DaysUntil:    3,
	})
	require.Equal(t, "RFI Due: Acme Corp", msg.Title)
	require.Equal(t, "/cases/case-1", msg.URL)
	require.Equal(t, "rfi_due-case-1", msg.Tag)
}

func TestRenderDigestEmailWithSections(t *testing.T) {
	_, body := RenderDigestEmail("Priya", []DigestSection{
		{Heading: "Overdue", Lines: []string{"PWD Expiration: Acme Corp (2024-08-01)"}},
		{Heading: "Coming up", Lines: nil},
	}, "Nothing to report.")

	require.True(t, strings.HasPrefix(body, "Hi Priya,"))
	require.Contains(t, body, "Overdue")
	require.Contains(t, body, "  - PWD Expiration: Acme Corp (2024-08-01)")
	require.NotContains(t, body, "Coming up")
	require.NotContains(t, body, "Nothing to report.")
}

func TestRenderDigestEmailEmptyUsesFallback(t *testing.T) {
	subject, body := RenderDigestEmail("", nil, "No deadlines or case activity this week.")
	require.Equal(t, "[PERM Tracker] Your weekly PERM summary", subject)
	require.Contains(t, body, "No deadlines or case activity this week.")
}

func TestNewPushClientRequiresKeys(t *testing.T) {
	_, err := NewPushClient(PushConfig{Enabled: true})
	require.ErrorIs(t, err, ErrPushNotConfigured)

	sender, err := NewPushClient(PushConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, sender)
}
