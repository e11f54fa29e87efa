package email

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template identifiers. The set is closed: an unknown identifier is a caller
// error, not a transport failure.
const (
	TemplateWelcome              = "welcome"
	TemplatePasswordResetSuccess = "password-reset-success"
	TemplateEventRoleAssigned    = "event-role-assigned"
	TemplateEventReminder        = "event-reminder"
)

// ErrUnknownTemplate is returned when a template identifier is not in the
// registry.
var ErrUnknownTemplate = fmt.Errorf("unknown email template")

// Template pairs a subject line with a body template. Subjects may themselves
// contain placeholders.
type Template struct {
	ID      string
	Subject string
	body    *template.Template
}

// Render fills the subject and body with the given data.
func (t *Template) Render(data map[string]any) (subject, body string, err error) {
	subjTmpl, err := template.New(t.ID + "-subject").Parse(t.Subject)
	if err != nil {
		return "", "", fmt.Errorf("parse subject for template %s: %w", t.ID, err)
	}

	var subjBuf bytes.Buffer
	if err := subjTmpl.Execute(&subjBuf, data); err != nil {
		return "", "", fmt.Errorf("render subject for template %s: %w", t.ID, err)
	}

	var bodyBuf bytes.Buffer
	if err := t.body.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("render template %s: %w", t.ID, err)
	}
	return subjBuf.String(), bodyBuf.String(), nil
}

var registry = map[string]*Template{
	TemplateWelcome: {
		ID:      TemplateWelcome,
		Subject: "Welcome to @Cloud!",
		body: template.Must(template.New(TemplateWelcome).Parse(
			"Hi {{.Name}},\n\nWelcome to the @Cloud community! Your account is ready.\n",
		)),
	},
	TemplatePasswordResetSuccess: {
		ID:      TemplatePasswordResetSuccess,
		Subject: "Your password has been reset",
		body: template.Must(template.New(TemplatePasswordResetSuccess).Parse(
			"Hi {{.Name}},\n\nYour password was reset successfully. If this wasn't you, contact support immediately.\n",
		)),
	},
	TemplateEventRoleAssigned: {
		ID:      TemplateEventRoleAssigned,
		Subject: "You have been assigned a role",
		body: template.Must(template.New(TemplateEventRoleAssigned).Parse(
			"Hi {{.Name}},\n\nYou are now {{.Role}} for the event \"{{.EventTitle}}\".\n",
		)),
	},
	TemplateEventReminder: {
		ID:      TemplateEventReminder,
		Subject: "Event reminder: {{.EventTitle}}",
		body: template.Must(template.New(TemplateEventReminder).Parse(
			"Hi {{.Name}},\n\nThis is a reminder that \"{{.EventTitle}}\" starts at {{.StartsAt}}.\n",
		)),
	},
}

// Resolve looks up a template by identifier.
func Resolve(id string) (*Template, error) {
	t, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return t, nil
}

// TemplateIDs returns the identifiers of all registered templates.
func TemplateIDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}
