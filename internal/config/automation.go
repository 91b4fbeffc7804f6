package config

import "time"

// AutomationConfig configures the DOM automation flows.
type AutomationConfig struct {
	PollInterval     string `yaml:"poll_interval"`     // default 100ms
	ElementTimeout   string `yaml:"element_timeout"`   // light DOM waits, default 5s
	ShadowTimeout    string `yaml:"shadow_timeout"`    // shadow DOM waits, default 10s
	DisappearTimeout string `yaml:"disappear_timeout"` // default 5s

	Selectors Selectors `yaml:"selectors"`

	// Exact text of the user-menu entry that opens the account dialog.
	SwapMenuLabel string `yaml:"swap_menu_label"`
	// Class marking the currently active account option.
	ActiveOptionClass string `yaml:"active_option_class"`
}

// Selectors are the CSS selectors the flows look for in the host page.
// Selectors are evaluated relative to the element found in the previous step
// where a flow says so.
type Selectors struct {
	SearchTrigger string `yaml:"search_trigger"`
	SearchOverlay string `yaml:"search_overlay"`
	SearchInput   string `yaml:"search_input"`   // inside the overlay
	SearchResults string `yaml:"search_results"` // inside the overlay
	ResultLink    string `yaml:"result_link"`    // inside the results list

	UserMenuTrigger string `yaml:"user_menu_trigger"`
	UserMenuPanel   string `yaml:"user_menu_panel"`
	MenuItem        string `yaml:"menu_item"` // inside the panel
	SwapDialog      string `yaml:"swap_dialog"`
	OptionsGroup    string `yaml:"options_group"` // inside the dialog
	OptionButton    string `yaml:"option_button"` // inside the options group
	SaveButton      string `yaml:"save_button"`   // inside the dialog

	ApproverSelect string `yaml:"approver_select"`
	ApproverInput  string `yaml:"approver_input"`  // inside the select widget
	ApproverOption string `yaml:"approver_option"` // inside the select widget
}

// DefaultAutomationConfig returns selectors and timings for the host app.
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		PollInterval:     "100ms",
		ElementTimeout:   "5s",
		ShadowTimeout:    "10s",
		DisappearTimeout: "5s",
		Selectors: Selectors{
			SearchTrigger: `mo-icon-button[aria-label="Search"]`,
			SearchOverlay: `mo-search-overlay`,
			SearchInput:   `input[type="text"]`,
			SearchResults: `.search-results`,
			ResultLink:    `a`,

			UserMenuTrigger: `button.user-menu-trigger`,
			UserMenuPanel:   `.menu-content`,
			MenuItem:        `[role="menuitem"]`,
			SwapDialog:      `.pid-dialog`,
			OptionsGroup:    `.pid-options`,
			OptionButton:    `button`,
			SaveButton:      `button.save`,

			ApproverSelect: `mo-multi-select[name="approvers"]`,
			ApproverInput:  `input.search`,
			ApproverOption: `.option-list .option`,
		},
		SwapMenuLabel:     "Switch PID",
		ActiveOptionClass: "active",
	}
}

// GetPollInterval returns the wait polling interval.
func (c *Config) GetPollInterval() time.Duration {
	return parseDurationOr(c.Automation.PollInterval, 100*time.Millisecond)
}

// GetElementTimeout returns the default light DOM wait timeout.
func (c *Config) GetElementTimeout() time.Duration {
	return parseDurationOr(c.Automation.ElementTimeout, 5*time.Second)
}

// GetShadowTimeout returns the default shadow DOM wait timeout.
func (c *Config) GetShadowTimeout() time.Duration {
	return parseDurationOr(c.Automation.ShadowTimeout, 10*time.Second)
}

// GetDisappearTimeout returns the default wait-for-removal timeout.
func (c *Config) GetDisappearTimeout() time.Duration {
	return parseDurationOr(c.Automation.DisappearTimeout, 5*time.Second)
}
