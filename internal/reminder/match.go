// Package reminder decides which reminder popups to show on the host page:
// URL wildcard matching, comma-separated text triggers, frequency policy
// and the per-navigation "already shown" bookkeeping.
package reminder

import (
	"fmt"
	"regexp"
	"strings"
)

// TriggerLogic combines the terms of a text trigger.
type TriggerLogic string

const (
	// TriggerAny matches when at least one term is on the page. It is the
	// default, and what reminders saved before TriggerLogic existed use.
	TriggerAny TriggerLogic = "OR"
	TriggerAll TriggerLogic = "ALL"
)

// Reminder is a popup bound to a URL pattern and optional page text.
type Reminder struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	URLPattern   string       `json:"urlPattern"`
	TextTrigger  string       `json:"textTrigger,omitempty"`
	TriggerLogic TriggerLogic `json:"triggerLogic,omitempty"`
	PopupMessage string       `json:"popupMessage"`
	Enabled      bool         `json:"enabled"`
	Frequency    Frequency    `json:"frequency,omitempty"`

	// Structured source of PopupMessage, kept so the settings form can be
	// re-populated.
	Title   string   `json:"title,omitempty"`
	Intro   string   `json:"intro,omitempty"`
	Bullets []string `json:"bullets,omitempty"`

	BuiltIn bool `json:"-"`
}

// URLMatcher reports whether a URL matches a compiled pattern.
type URLMatcher func(url string) bool

// CompileURLPattern turns a wildcard pattern into a case-insensitive,
// whole-string matcher where "*" matches any sequence. A pattern without
// any "*" matches every URL containing it.
func CompileURLPattern(pattern string) (URLMatcher, error) {
	pattern = strings.TrimSpace(pattern)
	if !strings.Contains(pattern, "*") {
		pattern = "*" + pattern + "*"
	}
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("(?is)^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return nil, fmt.Errorf("compile url pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}

// Terms splits a trigger on commas into trimmed, lowercased, non-empty terms.
func Terms(trigger string) []string {
	var terms []string
	for _, t := range strings.Split(trigger, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// TextMatches reports whether pageText satisfies trigger under logic. An
// empty trigger is always satisfied.
func TextMatches(trigger string, logic TriggerLogic, pageText string) bool {
	terms := Terms(trigger)
	if len(terms) == 0 {
		return true
	}
	text := strings.ToLower(pageText)
	if logic == TriggerAll {
		for _, t := range terms {
			if !strings.Contains(text, t) {
				return false
			}
		}
		return true
	}
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Evaluate reports whether r applies to the page at url showing pageText.
// A pattern that fails to compile never matches.
func Evaluate(r Reminder, url, pageText string) bool {
	match, err := CompileURLPattern(r.URLPattern)
	if err != nil || !match(url) {
		return false
	}
	return TextMatches(r.TextTrigger, r.TriggerLogic, pageText)
}
