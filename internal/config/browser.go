package config

import "time"

// BrowserConfig configures the Chromium instance the agent attaches to.
type BrowserConfig struct {
	// DevTools websocket URL of an already running browser. Empty means launch.
	DebuggerURL string `yaml:"debugger_url"`
	// Launch argv: binary followed by flags. Empty means rod's default browser.
	Launch              []string `yaml:"launch"`
	Headless            bool     `yaml:"headless"`
	ViewportWidth       int      `yaml:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height"`
	NavigationTimeout   string   `yaml:"navigation_timeout"`
	SessionStore        string   `yaml:"session_store"`
	UseExistingProfile  bool     `yaml:"use_existing_profile"` // false opens pages in an incognito context
	EventThrottleMillis int      `yaml:"event_throttle_ms"`
}

// GetNavigationTimeout returns the page navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDurationOr(c.Browser.NavigationTimeout, 30*time.Second)
}
