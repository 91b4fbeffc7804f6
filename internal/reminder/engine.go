package reminder

import (
	"context"
	"fmt"
	"time"

	"prismakit/internal/dom"
	"prismakit/internal/logging"
	"prismakit/internal/store"
)

// lastShownKey is the local-scope key holding when id was last shown.
func lastShownKey(id string) string { return "lastShown." + id }

// Engine evaluates all reminders against the current page and shows the
// ones that apply. It holds no timers; the caller decides when to run it.
type Engine struct {
	repo  *Repository
	local store.KV
	nav   *NavigationState
	now   func() time.Time
}

// NewEngine wires an engine. nav is shared with whoever detects navigations.
func NewEngine(repo *Repository, local store.KV, nav *NavigationState) *Engine {
	return &Engine{repo: repo, local: local, nav: nav, now: time.Now}
}

// SetClock replaces the engine's clock.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Navigation returns the engine's navigation state.
func (e *Engine) Navigation() *NavigationState { return e.nav }

// Candidates returns built-in and custom reminders. Any storage failure is
// returned as is.
func (e *Engine) Candidates(ctx context.Context) ([]Reminder, error) {
	settings, err := e.repo.Settings(ctx)
	if err != nil {
		return nil, err
	}
	custom, err := e.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return append(BuiltIns(settings), custom...), nil
}

// Reevaluate shows every enabled reminder that matches doc and has not yet
// been shown during this navigation, subject to its frequency. It returns
// the IDs shown. Storage failures disable the cycle: nothing is shown and
// no error is returned.
func (e *Engine) Reevaluate(ctx context.Context, doc dom.Document) ([]string, error) {
	reminders, err := e.Candidates(ctx)
	if err != nil {
		logging.ReminderWarn("Reminder evaluation skipped: %v", err)
		return nil, nil
	}

	url, err := doc.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page url: %w", err)
	}
	var pageText string
	textLoaded := false

	var shown []string
	for _, r := range reminders {
		if !r.Enabled || e.nav.Shown(r.ID) {
			continue
		}
		// Page text is only fetched once some reminder's URL matches.
		match, err := CompileURLPattern(r.URLPattern)
		if err != nil || !match(url) {
			continue
		}
		if !textLoaded {
			pageText, err = doc.Text(ctx)
			if err != nil {
				return shown, fmt.Errorf("read page text: %w", err)
			}
			textLoaded = true
		}
		if !TextMatches(r.TextTrigger, r.TriggerLogic, pageText) {
			continue
		}

		now := e.now()
		if r.Frequency != "" {
			var last time.Time
			if _, err := e.local.Get(ctx, lastShownKey(r.ID), &last); err != nil {
				logging.ReminderWarn("Reminder evaluation skipped: %v", err)
				return shown, nil
			}
			if !ShouldShow(last, r.Frequency, now) {
				continue
			}
		}

		popup := dom.Popup{ID: r.ID, Title: r.Name, HTML: PopupHTML(r)}
		if err := doc.ShowPopup(ctx, popup); err != nil {
			return shown, fmt.Errorf("show reminder %s: %w", r.ID, err)
		}
		e.nav.MarkShown(r.ID)
		shown = append(shown, r.ID)
		logging.Reminder("Showed reminder %s on %s", r.ID, url)
		logging.Audit(logging.AuditEvent{
			EventType: logging.AuditReminderShown,
			Category:  logging.CategoryReminder,
			Target:    r.ID,
			Success:   true,
			Fields:    map[string]any{"url": url},
		})

		if err := e.local.Set(ctx, lastShownKey(r.ID), now); err != nil {
			logging.ReminderWarn("Could not record last shown time for %s: %v", r.ID, err)
		}
	}
	return shown, nil
}
