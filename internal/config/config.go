package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all prismakit configuration.
type Config struct {
	Name string `yaml:"name"`

	// HostURL is the media-buying application the agent drives.
	HostURL string `yaml:"host_url"`

	Browser    BrowserConfig    `yaml:"browser"`
	Automation AutomationConfig `yaml:"automation"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
	Approvers  ApproversConfig  `yaml:"approvers"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RemindersConfig configures the reminder scheduler.
type RemindersConfig struct {
	// How often the page URL is compared against the last seen one.
	NavigationPollInterval string `yaml:"navigation_poll_interval"`
	// How often reminders are re-evaluated against the page.
	ReevaluateInterval string `yaml:"reevaluate_interval"`
}

// StoreConfig configures the key-value store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig configures the local message endpoint.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// ApproversConfig points at an optional external approver table.
type ApproversConfig struct {
	DataPath string `yaml:"data_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "prismakit",
		HostURL: "https://prisma.mediaocean.com/",

		Browser: BrowserConfig{
			Headless:            false,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeout:   "30s",
			SessionStore:        ".prismakit/browser/sessions.json",
			UseExistingProfile:  true,
			EventThrottleMillis: 100,
		},

		Automation: DefaultAutomationConfig(),

		Reminders: RemindersConfig{
			NavigationPollInterval: "1s",
			ReevaluateInterval:     "2s",
		},

		Store: StoreConfig{
			DatabasePath: ".prismakit/prismakit.db",
		},

		Server: ServerConfig{
			Enabled: true,
			Listen:  "127.0.0.1:7780",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Dir:    ".prismakit/logs",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("PRISMAKIT_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if url := os.Getenv("PRISMAKIT_HOST_URL"); url != "" {
		c.HostURL = url
	}
	if path := os.Getenv("PRISMAKIT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if addr := os.Getenv("PRISMAKIT_LISTEN"); addr != "" {
		c.Server.Listen = addr
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HostURL) == "" {
		return fmt.Errorf("host_url not configured (set PRISMAKIT_HOST_URL)")
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path not configured")
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server.listen required when server is enabled")
	}
	for name, raw := range map[string]string{
		"automation.poll_interval":           c.Automation.PollInterval,
		"automation.element_timeout":         c.Automation.ElementTimeout,
		"automation.shadow_timeout":          c.Automation.ShadowTimeout,
		"reminders.navigation_poll_interval": c.Reminders.NavigationPollInterval,
		"reminders.reevaluate_interval":      c.Reminders.ReevaluateInterval,
	} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, raw)
		}
	}
	return nil
}

func parseDurationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetNavigationPollInterval returns the URL-change poll interval.
func (c *Config) GetNavigationPollInterval() time.Duration {
	return parseDurationOr(c.Reminders.NavigationPollInterval, time.Second)
}

// GetReevaluateInterval returns the reminder re-evaluation interval.
func (c *Config) GetReevaluateInterval() time.Duration {
	return parseDurationOr(c.Reminders.ReevaluateInterval, 2*time.Second)
}

// DefaultConfigPath returns the default path to .prismakit/config.yaml.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ".prismakit/config.yaml"
	}
	return filepath.Join(cwd, ".prismakit", "config.yaml")
}
