package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "prismakit" {
		t.Errorf("expected Name=prismakit, got %s", cfg.Name)
	}
	if got := cfg.GetPollInterval(); got != 100*time.Millisecond {
		t.Errorf("expected poll interval 100ms, got %v", got)
	}
	if got := cfg.GetShadowTimeout(); got != 10*time.Second {
		t.Errorf("expected shadow timeout 10s, got %v", got)
	}
	if cfg.Automation.SwapMenuLabel == "" {
		t.Error("expected default swap menu label")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("PRISMAKIT_HOST_URL", "")
	t.Setenv("PRISMAKIT_DB", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.HostURL = "https://example.mediaocean.com/"
	cfg.Automation.Selectors.SearchTrigger = "#search"
	cfg.Automation.ElementTimeout = "2s"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.mediaocean.com/", loaded.HostURL)
	assert.Equal(t, "#search", loaded.Automation.Selectors.SearchTrigger)
	assert.Equal(t, 2*time.Second, loaded.GetElementTimeout())
	// Fields not touched keep their defaults.
	assert.Equal(t, DefaultConfig().Automation.Selectors.ApproverSelect, loaded.Automation.Selectors.ApproverSelect)
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Listen, cfg.Server.Listen)
}

func TestConfig_LoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host_url: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PRISMAKIT_DEBUGGER_URL", "ws://127.0.0.1:9222/devtools/browser/abc")
	t.Setenv("PRISMAKIT_HOST_URL", "https://staging.example.com/")
	t.Setenv("PRISMAKIT_DB", "/tmp/pk.db")
	t.Setenv("PRISMAKIT_LISTEN", "127.0.0.1:9999")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.DebuggerURL)
	assert.Equal(t, "https://staging.example.com/", cfg.HostURL)
	assert.Equal(t, "/tmp/pk.db", cfg.Store.DatabasePath)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.HostURL = " " }, true},
		{"missing db", func(c *Config) { c.Store.DatabasePath = "" }, true},
		{"server without listen", func(c *Config) { c.Server.Listen = "" }, true},
		{"server disabled without listen", func(c *Config) {
			c.Server.Enabled = false
			c.Server.Listen = ""
		}, false},
		{"bad duration", func(c *Config) { c.Automation.PollInterval = "fast" }, true},
		{"negative duration", func(c *Config) { c.Reminders.ReevaluateInterval = "-1s" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 100*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, 5*time.Second, cfg.GetElementTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetShadowTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetDisappearTimeout())
	assert.Equal(t, time.Second, cfg.GetNavigationPollInterval())
	assert.Equal(t, 2*time.Second, cfg.GetReevaluateInterval())
	assert.Equal(t, 30*time.Second, cfg.GetNavigationTimeout())
}

func TestLoggingConfig_Options(t *testing.T) {
	lc := LoggingConfig{Level: "debug", DebugMode: true, Dir: "logs", Categories: map[string]bool{"store": false}}
	assert.False(t, lc.IsCategoryEnabled("store"))
	assert.True(t, lc.IsCategoryEnabled("automation"))

	opts := lc.Options()
	assert.True(t, opts.DebugMode)
	assert.Equal(t, "logs", opts.Dir)
	assert.Equal(t, "debug", opts.Level)
}
