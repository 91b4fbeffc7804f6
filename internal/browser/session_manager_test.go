package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"prismakit/internal/config"
	"prismakit/internal/dom"
)

func TestEventThrottler(t *testing.T) {
	var nilThrottler *eventThrottler
	assert.True(t, nilThrottler.Allow("x"), "nil throttler allows everything")
	assert.Nil(t, newEventThrottler(0))

	th := newEventThrottler(50)
	assert.True(t, th.Allow("console"))
	assert.False(t, th.Allow("console"))
	assert.True(t, th.Allow("exception"), "keys are independent")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, th.Allow("console"))
}

func TestNewSessionManager_FromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.NavigationTimeout = "7s"
	cfg.Browser.ViewportWidth = 0
	cfg.Browser.ViewportHeight = 900

	m := NewSessionManager(cfg)
	assert.Equal(t, 7*time.Second, m.navTimeout)
	w, h := m.viewport()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 900, h)
	assert.Nil(t, m.browser)
	assert.Empty(t, m.sessions)
}

func TestStart_FailedConnectReleasesLifetime(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.DebuggerURL = "ws://127.0.0.1:1/devtools/browser/none"
	cfg.Browser.SessionStore = ""

	m := NewSessionManager(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Error(t, m.Start(ctx))
	assert.Nil(t, m.browser)
	assert.Nil(t, m.life)
	assert.Nil(t, m.stop)
}

func TestSessionPersistence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.SessionStore = filepath.Join(t.TempDir(), "browser", "sessions.json")

	m := NewSessionManager(cfg)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.sessions["s1"] = &sessionRecord{meta: Session{
		ID: "s1", TargetID: "T1", URL: "https://prisma.mediaocean.com/", Status: "active",
		CreatedAt: created, LastActive: created,
	}, page: &rod.Page{}}
	m.sessions["gone"] = &sessionRecord{meta: Session{ID: "gone", TargetID: "T0"}}
	require.NoError(t, m.persistSessions())

	_, err := os.Stat(cfg.Browser.SessionStore)
	require.NoError(t, err)

	reloaded := NewSessionManager(cfg)
	require.NoError(t, reloaded.loadSessionsLocked())
	require.Len(t, reloaded.saved, 1, "only live sessions are written")
	got := reloaded.saved[0]
	assert.Equal(t, "detached", got.Status)
	assert.Equal(t, "T1", got.TargetID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Empty(t, reloaded.sessions, "saved sessions are candidates, not tracked sessions")

	_, ok := reloaded.Page("s1")
	assert.False(t, ok)
}

func TestSessionPersistence_ReplacesPreviousRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.SessionStore = filepath.Join(t.TempDir(), "sessions.json")

	for run := 1; run <= 3; run++ {
		m := NewSessionManager(cfg)
		require.NoError(t, m.loadSessionsLocked())
		id := fmt.Sprintf("run-%d", run)
		m.sessions[id] = &sessionRecord{meta: Session{ID: id, TargetID: "T" + id}, page: &rod.Page{}}
		require.NoError(t, m.persistSessions())
	}

	m := NewSessionManager(cfg)
	require.NoError(t, m.loadSessionsLocked())
	require.Len(t, m.saved, 1)
	assert.Equal(t, "run-3", m.saved[0].ID)
}

func TestSavedTarget(t *testing.T) {
	m := NewSessionManager(config.DefaultConfig())
	m.saved = []Session{
		{ID: "old", TargetID: "T-closed"},
		{ID: "blank"},
		{ID: "ours", TargetID: "T-ours", URL: "https://prisma.mediaocean.com/"},
	}

	open := map[string]string{
		"T-ours":  "https://news.example.test/",
		"T-other": "https://prisma.mediaocean.com/",
	}
	assert.Equal(t, "T-ours", m.savedTarget(open), "previous tab wins even after it navigated away")
	assert.Empty(t, m.savedTarget(map[string]string{"T-other": "https://prisma.mediaocean.com/"}))
}

func TestFindTab(t *testing.T) {
	open := map[string]string{
		"B": "https://prisma.mediaocean.com/orders",
		"A": "https://prisma.mediaocean.com/",
		"C": "https://other.example.test/",
	}
	assert.Equal(t, "A", findTab(open, "prisma.mediaocean.com"))
	assert.Empty(t, findTab(open, "missing.example.test"))
}

func TestSessionPersistence_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.SessionStore = ""
	m := NewSessionManager(cfg)
	assert.NoError(t, m.persistSessions())
	assert.NoError(t, m.loadSessionsLocked())
}

func TestUpdateMetadata(t *testing.T) {
	m := NewSessionManager(config.DefaultConfig())
	m.sessions["s1"] = &sessionRecord{meta: Session{ID: "s1"}}

	m.UpdateMetadata("s1", func(s Session) Session {
		s.URL = "https://prisma.mediaocean.com/orders"
		return s
	})
	m.UpdateMetadata("missing", func(s Session) Session { return s })

	got, _ := m.GetSession("s1")
	assert.Equal(t, "https://prisma.mediaocean.com/orders", got.URL)
}

func TestSameHost(t *testing.T) {
	assert.True(t, sameHost("https://prisma.mediaocean.com/campaigns/1", "prisma.mediaocean.com"))
	assert.True(t, sameHost("https://PRISMA.mediaocean.com/", "prisma.mediaocean.com"))
	assert.False(t, sameHost("https://other.mediaocean.com/", "prisma.mediaocean.com"))
	assert.False(t, sameHost("about:blank", "prisma.mediaocean.com"))
}

func TestStringifyConsoleArgs(t *testing.T) {
	args := []*proto.RuntimeRemoteObject{
		{Description: "Error: boom"},
		nil,
		{Value: gson.New("plain")},
		{},
	}
	assert.Equal(t, "Error: boom plain", stringifyConsoleArgs(args))
}

func TestMapErr(t *testing.T) {
	err := mapErr(&rod.ObjectNotFoundError{RuntimeRemoteObject: &proto.RuntimeRemoteObject{}})
	assert.ErrorIs(t, err, dom.ErrDetached)

	syntax := &rod.EvalError{RuntimeExceptionDetails: &proto.RuntimeExceptionDetails{
		Exception: &proto.RuntimeRemoteObject{
			Description: "SyntaxError: Failed to execute 'querySelector' on 'Document': '[[[' is not a valid selector.",
		},
	}}
	assert.ErrorIs(t, mapErr(syntax), dom.ErrInvalidSelector)

	thrown := &rod.EvalError{RuntimeExceptionDetails: &proto.RuntimeExceptionDetails{
		Exception: &proto.RuntimeRemoteObject{Description: "Error: Cannot find context with specified id"},
	}}
	assert.NotErrorIs(t, mapErr(thrown), dom.ErrInvalidSelector)

	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
}
