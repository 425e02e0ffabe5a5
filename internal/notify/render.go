package notify

import (
	"fmt"
	"strings"
)

const subjectPrefix = "[PERM Tracker]"

// ReminderContent carries the resolved facts one reminder is rendered from.
type ReminderContent struct {
	CaseID       string
	EmployerName string
	Label        string
	Date         string
	DeadlineType string
	DaysUntil    int
}

// ReminderTitle follows the production event naming, e.g.
// "PWD Expiration: Acme Corp".
func ReminderTitle(rc ReminderContent) string {
	return fmt.Sprintf("%s: %s", rc.Label, rc.EmployerName)
}

// ReminderMessage phrases the time remaining in plain language.
func ReminderMessage(rc ReminderContent) string {
	switch {
	case rc.DaysUntil > 1:
		return fmt.Sprintf("%s for %s is due in %d days (%s).", rc.Label, rc.EmployerName, rc.DaysUntil, rc.Date)
	case rc.DaysUntil == 1:
		return fmt.Sprintf("%s for %s is due tomorrow (%s).", rc.Label, rc.EmployerName, rc.Date)
	case rc.DaysUntil == 0:
		return fmt.Sprintf("%s for %s is due today (%s).", rc.Label, rc.EmployerName, rc.Date)
	case rc.DaysUntil == -1:
		return fmt.Sprintf("%s for %s was due yesterday (%s).", rc.Label, rc.EmployerName, rc.Date)
	default:
		return fmt.Sprintf("%s for %s was due %d days ago (%s).", rc.Label, rc.EmployerName, -rc.DaysUntil, rc.Date)
	}
}

// RenderReminderEmail produces the subject and plain-text body for one
// reminder email.
func RenderReminderEmail(rc ReminderContent) (subject, body string) {
	subject = fmt.Sprintf("%s %s", subjectPrefix, ReminderTitle(rc))

	var b strings.Builder
	b.WriteString(ReminderMessage(rc))
	b.WriteString("\n\n")
	b.WriteString("Open the case to review what is outstanding and record your progress.\n")
	return subject, b.String()
}

// RenderReminderPush produces the push payload for one reminder. The tag
// groups repeats for the same case and deadline so browsers collapse them.
func RenderReminderPush(rc ReminderContent) PushMessage {
	return PushMessage{
		Title: ReminderTitle(rc),
		Body:  ReminderMessage(rc),
		URL:   fmt.Sprintf("/cases/%s", rc.CaseID),
		Tag:   fmt.Sprintf("%s-%s", rc.DeadlineType, rc.CaseID),
	}
}

// DigestSection is one block of the weekly summary email.
type DigestSection struct {
	Heading string
	Lines   []string
}

// RenderDigestEmail produces the subject and plain-text body of the weekly
// digest. An empty digest still renders, carrying the fallback message, so
// recipients can tell "nothing happening" apart from a broken job.
func RenderDigestEmail(recipientName string, sections []DigestSection, fallback string) (subject, body string) {
	subject = fmt.Sprintf("%s Your weekly PERM summary", subjectPrefix)

	var b strings.Builder
	if strings.TrimSpace(recipientName) != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", recipientName)
	}

	wrote := false
	for _, section := range sections {
		if len(section.Lines) == 0 {
			continue
		}
		wrote = true
		fmt.Fprintf(&b, "%s\n", section.Heading)
		for _, line := range section.Lines {
			fmt.Fprintf(&b, "  - %s\n", line)
		}
		b.WriteString("\n")
	}

	if !wrote {
		b.WriteString(fallback)
		b.WriteString("\n")
	}

	return subject, b.String()
}
