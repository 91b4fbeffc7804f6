package reminder

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// messagePolicy keeps the structural subset the settings form produces and
// drops everything else, attributes and event handlers included.
var messagePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h3", "h4", "p", "ul", "ol", "li", "strong", "em", "b", "i", "br")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// RenderMessage builds the popup body from its structured parts. Every part
// is escaped; empty parts are omitted.
func RenderMessage(title, intro string, bullets []string) string {
	var sb strings.Builder
	if t := strings.TrimSpace(title); t != "" {
		sb.WriteString("<h3>" + html.EscapeString(t) + "</h3>")
	}
	if i := strings.TrimSpace(intro); i != "" {
		sb.WriteString("<p>" + html.EscapeString(i) + "</p>")
	}
	var items []string
	for _, b := range bullets {
		if b = strings.TrimSpace(b); b != "" {
			items = append(items, "<li>"+html.EscapeString(b)+"</li>")
		}
	}
	if len(items) > 0 {
		sb.WriteString("<ul>" + strings.Join(items, "") + "</ul>")
	}
	return sb.String()
}

// Sanitize reduces an HTML fragment to the structural subset allowed in
// popups.
func Sanitize(fragment string) string {
	return messagePolicy.Sanitize(fragment)
}

// PopupHTML returns the sanitized body to display for r.
func PopupHTML(r Reminder) string {
	msg := r.PopupMessage
	if strings.TrimSpace(msg) == "" {
		msg = RenderMessage(r.Title, r.Intro, r.Bullets)
	}
	return Sanitize(msg)
}
