package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileURLPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		url     string
		want    bool
	}{
		{"wildcards both ends", "*mediaocean.com*", "https://foo.mediaocean.com/bar", true},
		{"wildcards other host", "*mediaocean.com*", "https://example.com", false},
		{"no wildcard is contains", "prisma", "https://app.PRISMA.example/x", true},
		{"no wildcard absent", "prisma", "https://example.com/", false},
		{"anchored without leading star", "https://*.mediaocean.com/*", "https://a.mediaocean.com/orders", true},
		{"anchored rejects prefix", "https://*.mediaocean.com/*", "xhttps://a.mediaocean.com/orders", false},
		{"regex metachars are literal", "*a.b?c*", "https://x/a.b?c", true},
		{"dot is not any char", "*a.b*", "https://x/aXb", false},
		{"middle wildcard", "*mediaocean.com*order*", "https://p.mediaocean.com/campaign/123/orders", true},
		{"case insensitive", "*MEDIAOCEAN.COM*", "https://foo.mediaocean.com", true},
		{"empty pattern matches all", "", "https://anything", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := CompileURLPattern(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, m(tc.url))
		})
	}
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar baz"}, Terms(" Foo ,, BAR baz ,"))
	assert.Nil(t, Terms(" , "))
}

func TestEvaluate_TextTriggers(t *testing.T) {
	base := Reminder{URLPattern: "*mediaocean.com*", TextTrigger: "foo, bar"}
	url := "https://p.mediaocean.com/x"

	t.Run("OR default matches either term", func(t *testing.T) {
		assert.True(t, Evaluate(base, url, "only FOO here"))
		assert.True(t, Evaluate(base, url, "only bar here"))
		assert.False(t, Evaluate(base, url, "neither"))
	})

	t.Run("explicit OR", func(t *testing.T) {
		r := base
		r.TriggerLogic = TriggerAny
		assert.True(t, Evaluate(r, url, "bar"))
	})

	t.Run("ALL requires every term", func(t *testing.T) {
		r := base
		r.TriggerLogic = TriggerAll
		assert.False(t, Evaluate(r, url, "only foo here"))
		assert.True(t, Evaluate(r, url, "foo and bar"))
	})

	t.Run("no trigger is vacuously true", func(t *testing.T) {
		r := Reminder{URLPattern: "*mediaocean.com*"}
		assert.True(t, Evaluate(r, url, ""))
	})

	t.Run("url must match too", func(t *testing.T) {
		assert.False(t, Evaluate(base, "https://example.com", "foo bar"))
	})
}

func TestShouldShow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 5, 14, 15, 0, 0, 0, loc)

	tests := []struct {
		name string
		last time.Time
		freq Frequency
		want bool
	}{
		{"never shown", time.Time{}, FrequencyOnce, true},
		{"never shown daily", time.Time{}, FrequencyDaily, true},
		{"once already shown", now.Add(-365 * 24 * time.Hour), FrequencyOnce, false},
		{"daily same day", time.Date(2026, 5, 14, 0, 5, 0, 0, loc), FrequencyDaily, false},
		{"daily previous day", time.Date(2026, 5, 13, 23, 59, 0, 0, loc), FrequencyDaily, true},
		{"daily same day last year", time.Date(2025, 5, 14, 12, 0, 0, 0, loc), FrequencyDaily, true},
		{"weekly six days", now.Add(-6 * 24 * time.Hour), FrequencyWeekly, false},
		{"weekly seven days", now.Add(-7 * 24 * time.Hour), FrequencyWeekly, true},
		{"monthly same month", time.Date(2026, 5, 1, 0, 0, 0, 0, loc), FrequencyMonthly, false},
		{"monthly previous month", time.Date(2026, 4, 30, 23, 0, 0, 0, loc), FrequencyMonthly, true},
		{"monthly same month last year", time.Date(2025, 5, 20, 0, 0, 0, 0, loc), FrequencyMonthly, true},
		{"unknown frequency", now, Frequency("hourly"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldShow(tc.last, tc.freq, now))
		})
	}
}

func TestShouldShow_UsesNowLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 02:00 UTC on the 15th is still the 14th in New York.
	last := time.Date(2026, 5, 15, 2, 0, 0, 0, time.UTC)
	now := time.Date(2026, 5, 14, 23, 0, 0, 0, ny)
	assert.False(t, ShouldShow(last, FrequencyDaily, now))
}

func TestParseFrequency(t *testing.T) {
	for _, s := range []string{"", "once", "daily", "weekly", "monthly"} {
		_, err := ParseFrequency(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFrequency("hourly")
	assert.Error(t, err)
}

func TestNavigationState(t *testing.T) {
	n := NewNavigationState()

	assert.False(t, n.ObserveURL("https://a/1"), "first observation is not a navigation")
	n.MarkShown("r1")
	assert.True(t, n.Shown("r1"))

	assert.False(t, n.ObserveURL("https://a/1"))
	assert.True(t, n.Shown("r1"))

	assert.True(t, n.ObserveURL("https://a/2"))
	assert.False(t, n.Shown("r1"))
	assert.Equal(t, "https://a/2", n.LastURL())

	n.MarkShown("r2")
	n.ResetForNavigation()
	assert.False(t, n.Shown("r2"))
}
