package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prismakit/internal/reminder"
	"prismakit/internal/store"
)

// =============================================================================
// REMINDER COMMANDS - custom reminder definitions
// =============================================================================

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Manage reminder popups",
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom reminders",
	Args:  cobra.NoArgs,
	RunE:  remindersList,
}

var newReminder reminder.Reminder
var newReminderLogic, newReminderFrequency string
var newReminderDisabled bool

var remindersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a custom reminder",
	Example: `  prismakit reminders add --name "Flight dates" --url "*mediaocean.com*campaign*" \
    --text "flight start, flight end" --logic ALL --frequency daily \
    --title "Check flight dates" --bullet "Start date matches the IO" --bullet "End date matches the IO"`,
	Args: cobra.NoArgs,
	RunE: remindersAdd,
}

var remindersRemoveCmd = &cobra.Command{
	Use:   "remove [reminder-id]",
	Short: "Delete a custom reminder",
	Args:  cobra.ExactArgs(1),
	RunE:  remindersRemove,
}

var testPageText string

var remindersTestCmd = &cobra.Command{
	Use:   "test [url]",
	Short: "Show which enabled reminders would match a URL and page text",
	Args:  cobra.ExactArgs(1),
	RunE:  remindersTest,
}

func init() {
	f := remindersAddCmd.Flags()
	f.StringVar(&newReminder.ID, "id", "", "Reminder ID to replace (default: new)")
	f.StringVar(&newReminder.Name, "name", "", "Reminder name (required)")
	f.StringVar(&newReminder.URLPattern, "url", "", `URL pattern, "*" matches anything (required)`)
	f.StringVar(&newReminder.TextTrigger, "text", "", "Comma-separated page text terms")
	f.StringVar(&newReminderLogic, "logic", string(reminder.TriggerAny), "OR (any term) or ALL (every term)")
	f.StringVar(&newReminderFrequency, "frequency", "", "once, daily, weekly or monthly (default: every navigation)")
	f.StringVar(&newReminder.Title, "title", "", "Popup title")
	f.StringVar(&newReminder.Intro, "intro", "", "Popup intro paragraph")
	f.StringArrayVar(&newReminder.Bullets, "bullet", nil, "Popup bullet (repeatable)")
	f.StringVar(&newReminder.PopupMessage, "html", "", "Raw popup HTML, sanitized on save (ignored with --title/--intro/--bullet)")
	f.BoolVar(&newReminderDisabled, "disabled", false, "Save the reminder disabled")
	_ = remindersAddCmd.MarkFlagRequired("name")
	_ = remindersAddCmd.MarkFlagRequired("url")

	remindersTestCmd.Flags().StringVar(&testPageText, "text", "", "Page text to match triggers against")

	remindersCmd.AddCommand(remindersListCmd)
	remindersCmd.AddCommand(remindersAddCmd)
	remindersCmd.AddCommand(remindersRemoveCmd)
	remindersCmd.AddCommand(remindersTestCmd)
}

// withReminders opens the store and hands its reminder repository to fn.
func withReminders(fn func(*reminder.Repository) error) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(reminder.NewRepository(st.Scope(store.ScopeSync)))
}

func candidates(ctx context.Context, repo *reminder.Repository) ([]reminder.Reminder, error) {
	settings, err := repo.Settings(ctx)
	if err != nil {
		return nil, err
	}
	custom, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return append(reminder.BuiltIns(settings), custom...), nil
}

func reminderRows(list []reminder.Reminder) [][]string {
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		kind := "custom"
		if r.BuiltIn {
			kind = "built-in"
		}
		freq := string(r.Frequency)
		if freq == "" {
			freq = "navigation"
		}
		rows = append(rows, []string{
			mark(r.Enabled), r.ID, r.Name, kind, r.URLPattern, r.TextTrigger, string(r.TriggerLogic), freq,
		})
	}
	return rows
}

var reminderHeaders = []string{"On", "ID", "Name", "Kind", "URL pattern", "Text trigger", "Logic", "Frequency"}

func remindersList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	return withReminders(func(repo *reminder.Repository) error {
		list, err := candidates(ctx, repo)
		if err != nil {
			return err
		}
		cmd.Println(renderTable(reminderHeaders, reminderRows(list)))
		return nil
	})
}

func remindersAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	if reminder.IsBuiltIn(newReminder.ID) {
		return fmt.Errorf("%s is a built-in reminder; change it through settings", newReminder.ID)
	}
	logic := reminder.TriggerLogic(strings.ToUpper(strings.TrimSpace(newReminderLogic)))
	if logic != reminder.TriggerAny && logic != reminder.TriggerAll {
		return fmt.Errorf("invalid --logic %q (want OR or ALL)", newReminderLogic)
	}
	freq, err := reminder.ParseFrequency(newReminderFrequency)
	if err != nil {
		return err
	}

	rem := newReminder
	rem.TriggerLogic = logic
	rem.Frequency = freq
	rem.Enabled = !newReminderDisabled

	return withReminders(func(repo *reminder.Repository) error {
		saved, err := repo.Save(ctx, rem)
		if err != nil {
			return err
		}
		cmd.Printf("Saved reminder %s (%s)\n", saved.ID, saved.Name)
		return nil
	})
}

func remindersRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	id := args[0]
	if reminder.IsBuiltIn(id) {
		return fmt.Errorf("%s is a built-in reminder and cannot be removed", id)
	}
	return withReminders(func(repo *reminder.Repository) error {
		found, err := repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("reminder %s not found", id)
		}
		cmd.Printf("Removed reminder %s\n", id)
		return nil
	})
}

func remindersTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	url := args[0]
	return withReminders(func(repo *reminder.Repository) error {
		list, err := candidates(ctx, repo)
		if err != nil {
			return err
		}
		var matched []reminder.Reminder
		for _, r := range list {
			if r.Enabled && reminder.Evaluate(r, url, testPageText) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			cmd.Println(dimStyle.Render("No enabled reminder matches."))
			return nil
		}
		cmd.Println(renderTable(reminderHeaders, reminderRows(matched)))
		return nil
	})
}
