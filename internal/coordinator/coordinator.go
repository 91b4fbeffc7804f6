// Package coordinator wires the page, the stores and the flows together and
// exposes them as message bus actions. It also runs the navigation poll and
// the reminder re-evaluation loop.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"prismakit/internal/approvers"
	"prismakit/internal/automation"
	"prismakit/internal/clipboard"
	"prismakit/internal/config"
	"prismakit/internal/dom"
	"prismakit/internal/logging"
	"prismakit/internal/messaging"
	"prismakit/internal/reminder"
	"prismakit/internal/store"
)

// Bus actions handled besides the three automation flows.
const (
	ActionPasteSelected   = "pasteSelectedApprovers"
	ActionSettingsUpdated = "settingsUpdated"
	ActionFilterApprovers = "filterApprovers"
	ActionApproverFacets  = "approverFacets"
	ActionToggleFavorite  = "toggleFavorite"
	ActionToggleSelection = "toggleSelection"
	ActionClearSelection  = "clearSelection"
	ActionCopyEmails      = "copySelectedEmails"
	ActionListReminders   = "listReminders"
	ActionSaveReminder    = "saveReminder"
	ActionDeleteReminder  = "deleteReminder"
	ActionStats           = "stats"
)

// ErrNoSelection is returned by actions that need selected approvers.
var ErrNoSelection = errors.New("no approvers selected")

const emailSeparator = "; "

// Coordinator owns everything one host page needs.
type Coordinator struct {
	cfg  *config.Config
	doc  dom.Document
	clip clipboard.Clipboard

	flows     *automation.Automator
	stats     *automation.Stats
	engine    *reminder.Engine
	reminders *reminder.Repository

	dir       *approvers.Directory
	favorites *approvers.Favorites
	selection *approvers.Selection

	bus *messaging.Bus
}

// New builds a coordinator for doc. Favorites are loaded from the sync
// scope of st.
func New(ctx context.Context, cfg *config.Config, doc dom.Document, clip clipboard.Clipboard, st store.Store, dir *approvers.Directory) (*Coordinator, error) {
	sync := st.Scope(store.ScopeSync)
	local := st.Scope(store.ScopeLocal)

	favorites, err := approvers.LoadFavorites(ctx, sync)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}

	stats := automation.NewStats(local)
	repo := reminder.NewRepository(sync)
	c := &Coordinator{
		cfg:       cfg,
		doc:       doc,
		clip:      clip,
		flows:     automation.NewFromConfig(doc, clip, cfg, stats),
		stats:     stats,
		engine:    reminder.NewEngine(repo, local, reminder.NewNavigationState()),
		reminders: repo,
		dir:       dir,
		favorites: favorites,
		selection: approvers.NewSelection(dir),
		bus:       messaging.NewBus(),
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	return c, nil
}

// Bus returns the message bus with every action registered.
func (c *Coordinator) Bus() *messaging.Bus { return c.bus }

// Flows returns the automation flows bound to the page.
func (c *Coordinator) Flows() *automation.Automator { return c.flows }

// Engine returns the reminder engine.
func (c *Coordinator) Engine() *reminder.Engine { return c.engine }

// Reminders returns the custom reminder repository.
func (c *Coordinator) Reminders() *reminder.Repository { return c.reminders }

// Favorites returns the persisted favorite approvers.
func (c *Coordinator) Favorites() *approvers.Favorites { return c.favorites }

// Selection returns the approvers picked for the next paste.
func (c *Coordinator) Selection() *approvers.Selection { return c.selection }

// CheckNavigation compares the page URL with the last one seen. A change
// clears the reminders shown during the previous navigation.
func (c *Coordinator) CheckNavigation(ctx context.Context) (bool, error) {
	url, err := c.doc.URL(ctx)
	if err != nil {
		return false, fmt.Errorf("read page url: %w", err)
	}
	changed := c.engine.Navigation().ObserveURL(url)
	if changed {
		logging.ReminderDebug("Navigation to %s", url)
	}
	return changed, nil
}

// Reevaluate shows the reminders that match the page right now.
func (c *Coordinator) Reevaluate(ctx context.Context) ([]string, error) {
	return c.engine.Reevaluate(ctx, c.doc)
}

// Run polls for navigation and re-evaluates reminders until ctx is done.
// Errors from a single tick are logged and the loop continues.
func (c *Coordinator) Run(ctx context.Context) error {
	navTicker := time.NewTicker(c.cfg.GetNavigationPollInterval())
	defer navTicker.Stop()
	evalTicker := time.NewTicker(c.cfg.GetReevaluateInterval())
	defer evalTicker.Stop()

	logging.Boot("Reminder loop started (navigation every %s, evaluation every %s)",
		c.cfg.GetNavigationPollInterval(), c.cfg.GetReevaluateInterval())

	for {
		select {
		case <-ctx.Done():
			logging.Boot("Reminder loop stopped")
			return nil
		case <-navTicker.C:
			if _, err := c.CheckNavigation(ctx); err != nil && ctx.Err() == nil {
				logging.ReminderWarn("Navigation check failed: %v", err)
			}
		case <-evalTicker.C:
			if _, err := c.Reevaluate(ctx); err != nil && ctx.Err() == nil {
				logging.ReminderWarn("Reminder evaluation failed: %v", err)
			}
		}
	}
}

type dNumberRequest struct {
	DNumber string `json:"dNumber"`
}

type emailsRequest struct {
	Emails []string `json:"emails"`
}

type idRequest struct {
	ID string `json:"id"`
}

type settingsRequest struct {
	Settings *reminder.Settings `json:"settings,omitempty"`
}

// ApproverView is an approver as the picker renders it.
type ApproverView struct {
	approvers.Approver
	Favorite bool `json:"favorite"`
	Selected bool `json:"selected"`
}

// ToggleResult reports an approver's membership after a toggle.
type ToggleResult struct {
	ID       string `json:"id"`
	On       bool   `json:"on"`
	Selected int    `json:"selected"`
}

func (c *Coordinator) register() error {
	handlers := map[string]messaging.Handler{
		automation.ActionDNumberSearch: messaging.Bind(func(ctx context.Context, in dNumberRequest) (any, error) {
			return nil, c.flows.DNumberSearch(ctx, in.DNumber)
		}),
		automation.ActionSwapAccount: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, c.flows.SwapAccount(ctx)
		},
		automation.ActionPasteApprover: messaging.Bind(func(ctx context.Context, in emailsRequest) (any, error) {
			return c.flows.PasteApprovers(ctx, in.Emails)
		}),
		ActionPasteSelected: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.PasteSelected(ctx)
		},
		ActionSettingsUpdated: messaging.Bind(func(ctx context.Context, in settingsRequest) (any, error) {
			return c.SettingsUpdated(ctx, in.Settings)
		}),
		ActionFilterApprovers: messaging.Bind(func(ctx context.Context, in approvers.Criteria) (any, error) {
			return c.FilterApprovers(in), nil
		}),
		ActionApproverFacets: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return approvers.Facets(c.dir.All()), nil
		},
		ActionToggleFavorite: messaging.Bind(func(ctx context.Context, in idRequest) (any, error) {
			return c.ToggleFavorite(ctx, in.ID)
		}),
		ActionToggleSelection: messaging.Bind(func(ctx context.Context, in idRequest) (any, error) {
			return c.ToggleSelection(in.ID)
		}),
		ActionClearSelection: func(ctx context.Context, _ json.RawMessage) (any, error) {
			c.selection.Clear()
			return nil, nil
		},
		ActionCopyEmails: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.CopySelectedEmails(ctx)
		},
		ActionListReminders: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.engine.Candidates(ctx)
		},
		ActionSaveReminder: messaging.Bind(func(ctx context.Context, in reminder.Reminder) (any, error) {
			return c.reminders.Save(ctx, in)
		}),
		ActionDeleteReminder: messaging.Bind(func(ctx context.Context, in idRequest) (any, error) {
			found, err := c.reminders.Delete(ctx, in.ID)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("reminder %s not found", in.ID)
			}
			return nil, nil
		}),
		ActionStats: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.stats.Snapshot(ctx)
		},
	}
	for action, h := range handlers {
		if err := c.bus.Register(action, h); err != nil {
			return err
		}
	}
	return nil
}

// PasteSelected pastes the selected approvers' emails into the page.
func (c *Coordinator) PasteSelected(ctx context.Context) (automation.BatchResult, error) {
	emails := c.selection.Emails()
	if len(emails) == 0 {
		return automation.BatchResult{}, ErrNoSelection
	}
	return c.flows.PasteApprovers(ctx, emails)
}

// SettingsUpdated saves s when given, clears the per-navigation suppression
// and re-evaluates reminders at once.
func (c *Coordinator) SettingsUpdated(ctx context.Context, s *reminder.Settings) ([]string, error) {
	if s != nil {
		if err := c.reminders.SaveSettings(ctx, *s); err != nil {
			return nil, fmt.Errorf("save reminder settings: %w", err)
		}
	}
	c.engine.Navigation().ResetForNavigation()
	return c.Reevaluate(ctx)
}

// FilterApprovers applies crit to the directory using the saved favorites.
func (c *Coordinator) FilterApprovers(crit approvers.Criteria) []ApproverView {
	crit.Favorites = c.favorites.Set()
	selected := make(map[string]bool, c.selection.Len())
	for _, id := range c.selection.IDs() {
		selected[id] = true
	}
	matches := approvers.Filter(c.dir.All(), crit)
	out := make([]ApproverView, 0, len(matches))
	for _, a := range matches {
		out = append(out, ApproverView{Approver: a, Favorite: crit.Favorites[a.ID], Selected: selected[a.ID]})
	}
	return out
}

// ToggleFavorite flips and persists the favorite flag of a known approver.
func (c *Coordinator) ToggleFavorite(ctx context.Context, id string) (ToggleResult, error) {
	if !c.dir.Contains(id) {
		return ToggleResult{}, fmt.Errorf("unknown approver %q", id)
	}
	on, err := c.favorites.Toggle(ctx, id)
	if err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{ID: id, On: on, Selected: c.selection.Len()}, nil
}

// ToggleSelection flips whether a known approver is selected.
func (c *Coordinator) ToggleSelection(id string) (ToggleResult, error) {
	if !c.dir.Contains(id) {
		return ToggleResult{}, fmt.Errorf("unknown approver %q", id)
	}
	on := c.selection.Toggle(id)
	return ToggleResult{ID: id, On: on, Selected: c.selection.Len()}, nil
}

// CopySelectedEmails writes the selected emails to the clipboard and
// returns the copied text.
func (c *Coordinator) CopySelectedEmails(ctx context.Context) (string, error) {
	emails := c.selection.Emails()
	if len(emails) == 0 {
		return "", ErrNoSelection
	}
	text := strings.Join(emails, emailSeparator)
	if err := c.clip.WriteText(ctx, text); err != nil {
		return "", err
	}
	logging.Approvers("Copied %d approver emails", len(emails))
	return text, nil
}
