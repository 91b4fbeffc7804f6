package reminder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"prismakit/internal/logging"
	"prismakit/internal/store"
)

const (
	KeyCustomReminders = "customReminders"
	KeySettings        = "reminderSettings"
)

// Settings override the enabled flag and frequency of built-in reminders.
type Settings struct {
	Disabled    map[string]bool      `json:"disabled,omitempty"`
	Frequencies map[string]Frequency `json:"frequencies,omitempty"`
}

// Repository stores custom reminder definitions and reminder settings in
// the synced scope.
type Repository struct {
	kv store.KV
}

func NewRepository(sync store.KV) *Repository {
	return &Repository{kv: sync}
}

// List returns the custom reminders in saved order. Entries repeating an
// earlier ID are dropped.
func (r *Repository) List(ctx context.Context) ([]Reminder, error) {
	var saved []Reminder
	if _, err := r.kv.Get(ctx, KeyCustomReminders, &saved); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(saved))
	out := saved[:0]
	for _, rem := range saved {
		if seen[rem.ID] {
			logging.ReminderWarn("Dropping duplicate custom reminder id %s", rem.ID)
			continue
		}
		seen[rem.ID] = true
		if rem.TriggerLogic == "" {
			rem.TriggerLogic = TriggerAny
		}
		out = append(out, rem)
	}
	return out, nil
}

// Validate checks a reminder before it is saved.
func Validate(rem Reminder) error {
	if strings.TrimSpace(rem.Name) == "" {
		return fmt.Errorf("reminder name is required")
	}
	if strings.TrimSpace(rem.URLPattern) == "" {
		return fmt.Errorf("reminder url pattern is required")
	}
	if _, err := CompileURLPattern(rem.URLPattern); err != nil {
		return err
	}
	switch rem.TriggerLogic {
	case "", TriggerAny, TriggerAll:
	default:
		return fmt.Errorf("unknown trigger logic %q (want OR or ALL)", rem.TriggerLogic)
	}
	if _, err := ParseFrequency(string(rem.Frequency)); err != nil {
		return err
	}
	if IsBuiltIn(rem.ID) {
		return fmt.Errorf("reminder id %q is reserved", rem.ID)
	}
	return nil
}

// Save inserts rem, or replaces the reminder with the same ID. A reminder
// without an ID gets a fresh one. The stored message is rebuilt from the
// structured parts when present and always sanitized.
func (r *Repository) Save(ctx context.Context, rem Reminder) (Reminder, error) {
	if err := Validate(rem); err != nil {
		return Reminder{}, err
	}
	if rem.ID == "" {
		rem.ID = uuid.NewString()
	}
	if rem.TriggerLogic == "" {
		rem.TriggerLogic = TriggerAny
	}
	if rem.Title != "" || rem.Intro != "" || len(rem.Bullets) > 0 {
		rem.PopupMessage = RenderMessage(rem.Title, rem.Intro, rem.Bullets)
	}
	rem.PopupMessage = Sanitize(rem.PopupMessage)

	all, err := r.List(ctx)
	if err != nil {
		return Reminder{}, err
	}
	replaced := false
	for i := range all {
		if all[i].ID == rem.ID {
			all[i] = rem
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, rem)
	}
	if err := r.kv.Set(ctx, KeyCustomReminders, all); err != nil {
		return Reminder{}, err
	}
	logging.Reminder("Saved custom reminder %s (%s)", rem.ID, rem.Name)
	return rem, nil
}

// Delete removes the reminder with id and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	all, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]Reminder, 0, len(all))
	for _, rem := range all {
		if rem.ID != id {
			kept = append(kept, rem)
		}
	}
	if len(kept) == len(all) {
		return false, nil
	}
	if err := r.kv.Set(ctx, KeyCustomReminders, kept); err != nil {
		return false, err
	}
	logging.Reminder("Deleted custom reminder %s", id)
	return true, nil
}

// Settings returns the saved settings, empty when none were saved.
func (r *Repository) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	if _, err := r.kv.Get(ctx, KeySettings, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, s Settings) error {
	for id, f := range s.Frequencies {
		if _, err := ParseFrequency(string(f)); err != nil {
			return fmt.Errorf("reminder %s: %w", id, err)
		}
	}
	return r.kv.Set(ctx, KeySettings, s)
}
