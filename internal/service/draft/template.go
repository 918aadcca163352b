package draft

import (
	"fmt"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/osteele/liquid"
)

// Template is a reusable outreach email with liquid placeholders
// ({{ name }}, {{ company }}, {{ industry }}, {{ title }}, {{ painpoint }},
// {{ email }}).
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var templateEngine = liquid.NewEngine()

// render fills a template from a contact's profile. Missing profile fields
// fall back to neutral phrasing so a template never leaks an empty blank.
func (t *Template) render(c *domain.Contact) (subject, body string, err error) {
	bindings := map[string]interface{}{
		"name":      orDefault(c.Name, "there"),
		"email":     c.Email,
		"company":   orDefault(c.Company, "your organization"),
		"industry":  orDefault(c.Industry, "your industry"),
		"title":     c.Title,
		"painpoint": orDefault(c.Painpoint, "industry challenges"),
	}

	subject, err = templateEngine.ParseAndRenderString(t.Subject, bindings)
	if err != nil {
		return "", "", fmt.Errorf("render template subject: %w", err)
	}
	body, err = templateEngine.ParseAndRenderString(t.Body, bindings)
	if err != nil {
		return "", "", fmt.Errorf("render template body: %w", err)
	}
	return subject, body, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
