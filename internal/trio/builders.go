package trio

import (
	"fmt"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/domain"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/email"
)

// Layouts for event wall-clock input.
const (
	eventDateLayout = "2006-01-02"
	eventTimeLayout = "15:04"
)

// WelcomeRequest builds the dispatch for a newly registered user.
func WelcomeRequest(userID, emailAddr, name string) Request {
	return Request{
		Email: &EmailSpec{
			To:         emailAddr,
			TemplateID: email.TemplateWelcome,
			Data:       map[string]any{"Name": name},
		},
		Message: MessageSpec{
			Title:    "Welcome to @Cloud!",
			Content:  fmt.Sprintf("Welcome aboard, %s! Your account is ready.", name),
			Type:     domain.MessageTypeAnnouncement,
			Priority: domain.MessagePriorityMedium,
		},
		Recipients: []string{userID},
	}
}

// PasswordResetSuccessRequest builds the dispatch confirming a password
// reset.
func PasswordResetSuccessRequest(userID, emailAddr, name string) Request {
	return Request{
		Email: &EmailSpec{
			To:         emailAddr,
			TemplateID: email.TemplatePasswordResetSuccess,
			Data:       map[string]any{"Name": name},
			Priority:   domain.MessagePriorityHigh,
		},
		Message: MessageSpec{
			Title:    "Password reset",
			Content:  "Your password was reset successfully. If this wasn't you, contact support immediately.",
			Type:     domain.MessageTypeAuthChange,
			Priority: domain.MessagePriorityHigh,
		},
		Recipients: []string{userID},
	}
}

// EventRoleAssignedRequest builds the dispatch for a user assigned a role in
// an event.
func EventRoleAssignedRequest(userID, emailAddr, name, role, eventTitle string) Request {
	return Request{
		Email: &EmailSpec{
			To:         emailAddr,
			TemplateID: email.TemplateEventRoleAssigned,
			Data: map[string]any{
				"Name":       name,
				"Role":       role,
				"EventTitle": eventTitle,
			},
		},
		Message: MessageSpec{
			Title:   fmt.Sprintf("Role assigned: %s", eventTitle),
			Content: fmt.Sprintf("You are now %s for the event %q.", role, eventTitle),
			Type:    domain.MessageTypeUpdate,
			Metadata: map[string]any{
				"event_title": eventTitle,
				"role":        role,
			},
		},
		Recipients: []string{userID},
	}
}

// EventReminderRequest builds the dispatch reminding a user of an upcoming
// event. The event's wall-clock date, time and IANA timezone are resolved to
// a concrete instant before anything is rendered or stored; an unresolvable
// timezone fails the whole build.
func EventReminderRequest(userID, emailAddr, name, eventTitle, date, clock, timezone string) (Request, error) {
	startsAt, err := ResolveEventInstant(date, clock, timezone)
	if err != nil {
		return Request{}, fmt.Errorf("resolve event time for %q: %w", eventTitle, err)
	}

	return Request{
		Email: &EmailSpec{
			To:         emailAddr,
			TemplateID: email.TemplateEventReminder,
			Data: map[string]any{
				"Name":       name,
				"EventTitle": eventTitle,
				"StartsAt":   startsAt.Format(time.RFC1123),
			},
			Priority: domain.MessagePriorityHigh,
		},
		Message: MessageSpec{
			Title:    fmt.Sprintf("Reminder: %s", eventTitle),
			Content:  fmt.Sprintf("%q starts at %s.", eventTitle, startsAt.Format(time.RFC1123)),
			Type:     domain.MessageTypeUpdate,
			Priority: domain.MessagePriorityHigh,
			Metadata: map[string]any{
				"event_title": eventTitle,
				"starts_at":   startsAt.UTC().Format(time.RFC3339),
			},
		},
		Recipients: []string{userID},
	}, nil
}

// ResolveEventInstant maps a wall-clock date and time in an IANA timezone to
// a UTC instant. Ambiguous wall clocks (a DST fold repeats the hour) resolve
// to the earliest matching instant. Wall clocks skipped by a DST gap have no
// matching instant and resolve to the normalized time the zone shifts them
// to, which is also deterministic.
func ResolveEventInstant(date, clock, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	wall, err := time.Parse(eventDateLayout+" "+eventTimeLayout, date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event time %q %q: %w", date, clock, err)
	}

	year, month, day := wall.Date()
	hour, minute, _ := wall.Clock()

	// Treat the wall clock as UTC, then test each zone offset in effect
	// around that moment. Every offset whose shifted instant reads back as
	// the requested wall clock is a real occurrence of it.
	guess := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	seen := make(map[int]bool)
	var matches []time.Time
	for _, probe := range []time.Duration{-26 * time.Hour, 0, 26 * time.Hour} {
		_, offset := guess.Add(probe).In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		candidate := guess.Add(-time.Duration(offset) * time.Second)
		local := candidate.In(loc)
		y, mo, d := local.Date()
		h, mi, _ := local.Clock()
		if y == year && mo == month && d == day && h == hour && mi == minute {
			matches = append(matches, candidate)
		}
	}

	if len(matches) > 0 {
		sort.Slice(matches, func(i, j int) bool { return matches[i].Before(matches[j]) })
		return matches[0], nil
	}

	// Gap: the wall clock never occurred in this zone.
	return time.Date(year, month, day, hour, minute, 0, 0, loc), nil
}
