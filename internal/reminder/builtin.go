package reminder

// builtIns ship with the agent. Their enabled flag and frequency can be
// overridden through Settings.
var builtIns = []Reminder{
	{
		ID:           "builtin-io-approval",
		Name:         "IO approval checklist",
		URLPattern:   "*mediaocean.com*order*",
		TextTrigger:  "send for approval, submit for approval",
		TriggerLogic: TriggerAny,
		Frequency:    FrequencyDaily,
		Enabled:      true,
		Title:        "Before you send for approval",
		Intro:        "Check the order against the signed IO.",
		Bullets: []string{
			"Attach the signed IO to the campaign.",
			"Confirm the D-Number is in the campaign name.",
			"Add every required approver.",
		},
	},
	{
		ID:           "builtin-dnumber-naming",
		Name:         "D-Number naming",
		URLPattern:   "*mediaocean.com*campaign*",
		TextTrigger:  "create campaign, campaign name",
		TriggerLogic: TriggerAll,
		Frequency:    FrequencyWeekly,
		Enabled:      true,
		Title:        "Campaign naming",
		Intro:        "Campaign names start with the D-Number, for example D12345678_Brand_Q3.",
	},
	{
		ID:         "builtin-month-end",
		Name:       "Month-end close",
		URLPattern: "*mediaocean.com*",
		Frequency:  FrequencyMonthly,
		Enabled:    true,
		Title:      "Month-end close",
		Intro:      "A new month started. Reconcile last month's actualizations before closing.",
	},
}

// BuiltIns returns the built-in reminders with settings applied.
func BuiltIns(s Settings) []Reminder {
	out := make([]Reminder, 0, len(builtIns))
	for _, r := range builtIns {
		r.BuiltIn = true
		r.Bullets = append([]string(nil), r.Bullets...)
		if s.Disabled[r.ID] {
			r.Enabled = false
		}
		if f, ok := s.Frequencies[r.ID]; ok && f != "" {
			r.Frequency = f
		}
		out = append(out, r)
	}
	return out
}

// IsBuiltIn reports whether id names a built-in reminder.
func IsBuiltIn(id string) bool {
	for _, r := range builtIns {
		if r.ID == id {
			return true
		}
	}
	return false
}
