// Package browser connects to Chromium over the DevTools protocol, keeps
// track of the host app's page, and adapts that page to the dom interfaces
// the automation flows use.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"prismakit/internal/config"
	"prismakit/internal/logging"
)

// Session describes the public metadata for a tracked page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta Session
	page *rod.Page
}

type eventThrottler struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func newEventThrottler(ms int) *eventThrottler {
	if ms <= 0 {
		return nil
	}
	return &eventThrottler{
		interval: time.Duration(ms) * time.Millisecond,
		last:     make(map[string]time.Time),
	}
}

func (t *eventThrottler) Allow(key string) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[key]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
	}
	t.last[key] = now
	return true
}

// NavigationFunc is called from the event stream whenever a session's main
// frame navigates.
type NavigationFunc func(sessionID, url string)

// SessionManager owns the Chrome connection and tracks the pages opened on
// the host app.
type SessionManager struct {
	cfg        config.BrowserConfig
	navTimeout time.Duration
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*sessionRecord
	saved      []Session // from the previous run, candidates for reattach
	onNavigate NavigationFunc

	// life bounds the connection and the event streams. It outlives the
	// context passed to Start and ends in Shutdown.
	life context.Context
	stop context.CancelFunc
}

// NewSessionManager creates a session manager from the browser section of
// cfg.
func NewSessionManager(cfg *config.Config) *SessionManager {
	return &SessionManager{
		cfg:        cfg.Browser,
		navTimeout: cfg.GetNavigationTimeout(),
		sessions:   make(map[string]*sessionRecord),
	}
}

// OnNavigate registers fn for main-frame navigations. It must be set before
// sessions are created.
func (m *SessionManager) OnNavigate(fn NavigationFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNavigate = fn
}

func (m *SessionManager) viewport() (int, int) {
	w, h := m.cfg.ViewportWidth, m.cfg.ViewportHeight
	if w == 0 {
		w = 1920
	}
	if h == 0 {
		h = 1080
	}
	return w, h
}

// Start connects to an existing Chrome or launches a new one. ctx bounds
// the connection attempt only; the connection lives until Shutdown.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		_, err := m.browser.Version()
		if err == nil {
			return nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting: %v", err)
		_ = m.browser.Close()
		m.browser = nil
		m.stopLocked()
		m.sessions = make(map[string]*sessionRecord)
	}

	if err := m.loadSessionsLocked(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(m.cfg.Headless)
		for _, rawFlag := range m.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			fallback := launcher.New().Bin(bin).Headless(m.cfg.Headless)
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			logging.BrowserWarn("Launch flags rejected, started %s without them: %v", bin, err)
			url = alt
		}
		controlURL = url
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	life, stop := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(controlURL).Context(life)
	connected := make(chan error, 1)
	go func() { connected <- browser.Connect() }()
	select {
	case err := <-connected:
		if err != nil {
			stop()
			return fmt.Errorf("connect to chrome: %w", err)
		}
	case <-ctx.Done():
		stop()
		<-connected
		return fmt.Errorf("connect to chrome: %w", ctx.Err())
	}

	m.browser = browser
	m.life, m.stop = life, stop
	logging.Browser("Connected to Chrome at %s", controlURL)
	return nil
}

// stopLocked ends the connection lifetime. Caller must hold lock.
func (m *SessionManager) stopLocked() {
	if m.stop != nil {
		m.stop()
	}
	m.life, m.stop = nil, nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// Shutdown closes the pages this manager created and disconnects. A
// browser reached through debugger_url is left running with its tabs.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := m.cfg.DebuggerURL == ""
	for id, record := range m.sessions {
		if owned && record.page != nil && record.meta.Status == "active" {
			_ = record.page.Close()
		}
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil {
		if owned {
			err = m.browser.Close()
		}
		m.browser = nil
	}
	m.stopLocked()
	logging.Browser("Browser session closed")
	return err
}

// OpenHost returns a session on hostURL. With debugger_url or
// use_existing_profile, a tab the previous run used is reattached if it is
// still open, and sent back to hostURL if it wandered off. With
// use_existing_profile any open tab on the same host is reused next.
// Otherwise a new page is created.
func (m *SessionManager) OpenHost(ctx context.Context, hostURL string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	want, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("parse host url: %w", err)
	}
	if m.cfg.DebuggerURL == "" && !m.cfg.UseExistingProfile {
		return m.CreateSession(ctx, hostURL)
	}

	open, err := m.openTargets(ctx)
	if err != nil {
		return nil, err
	}
	if targetID := m.savedTarget(open); targetID != "" {
		logging.Browser("Reattaching to previous tab %s", targetID)
		session, err := m.Attach(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !sameHost(session.URL, want.Host) {
			if err := m.Navigate(ctx, session.ID, hostURL); err != nil {
				return nil, fmt.Errorf("return to host: %w", err)
			}
			session.URL = hostURL
		}
		return session, nil
	}
	if m.cfg.UseExistingProfile {
		if targetID := findTab(open, want.Host); targetID != "" {
			logging.Browser("Attaching to open host tab %s", targetID)
			return m.Attach(ctx, targetID)
		}
	}
	return m.CreateSession(ctx, hostURL)
}

// openTargets maps the target ID of every open page to its URL.
func (m *SessionManager) openTargets(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	pages, err := browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	open := make(map[string]string, len(pages))
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		open[string(p.TargetID)] = info.URL
	}
	return open, nil
}

// savedTarget returns the first previous-run target that is still open, or
// "".
func (m *SessionManager) savedTarget(open map[string]string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.saved {
		if _, ok := open[s.TargetID]; ok && s.TargetID != "" {
			return s.TargetID
		}
	}
	return ""
}

// findTab returns the lowest target ID among open pages on host, or "".
func findTab(open map[string]string, host string) string {
	var found string
	for id, u := range open {
		if sameHost(u, host) && (found == "" || id < found) {
			found = id
		}
	}
	return found
}

func sameHost(raw, host string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// CreateSession opens a new page and tracks it.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	if !m.cfg.UseExistingProfile {
		incognito, err := browser.Incognito()
		if err != nil {
			return nil, fmt.Errorf("incognito context: %w", err)
		}
		browser = incognito
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	width, height := m.viewport()
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("Failed to set viewport: %v", err)
	}

	if err := page.Context(ctx).Timeout(m.navTimeout).Navigate(url); err != nil {
		logging.BrowserWarn("Initial navigation to %s did not complete: %v", url, err)
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.track(meta, page)
	return &meta, nil
}

// Attach binds to an existing target by TargetID.
func (m *SessionManager) Attach(ctx context.Context, targetID string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   targetID,
		Status:     "attached",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	if info, err := page.Info(); err == nil {
		meta.URL = info.URL
		meta.Title = info.Title
	}

	m.track(meta, page)
	return &meta, nil
}

// track registers a live session, starts its event stream and persists the
// live set.
func (m *SessionManager) track(meta Session, page *rod.Page) {
	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page}
	life := m.life
	m.mu.Unlock()

	if life != nil {
		m.startEventStream(life, meta.ID, page)
	}
	if err := m.persistSessions(); err != nil {
		logging.BrowserWarn("Could not persist sessions: %v", err)
	}
}

// Page returns the underlying Rod page for a session.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns session metadata.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// Navigate navigates a session to url.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	if err := m.ensureStarted(ctx); err != nil {
		return err
	}
	page, ok := m.Page(sessionID)
	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	return page.Context(ctx).Timeout(m.navTimeout).Navigate(url)
}

// startEventStream reports navigations and logs page errors for a session
// until ctx ends. ctx must be the connection lifetime, not a request
// context.
func (m *SessionManager) startEventStream(ctx context.Context, sessionID string, page *rod.Page) {
	m.mu.RLock()
	onNavigate := m.onNavigate
	m.mu.RUnlock()
	throttler := newEventThrottler(m.cfg.EventThrottleMillis)

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.PageFrameNavigated) {
			// Only the main frame counts as a navigation of the host app.
			if ev.Frame == nil || ev.Frame.ParentID != "" {
				return
			}
			now := time.Now()
			logging.BrowserDebug("[session:%s] navigated to %s", sessionID, ev.Frame.URL)
			m.UpdateMetadata(sessionID, func(s Session) Session {
				s.URL = ev.Frame.URL
				s.LastActive = now
				return s
			})
			if onNavigate != nil {
				onNavigate(sessionID, ev.Frame.URL)
			}
		},
		func(ev *proto.RuntimeConsoleAPICalled) {
			if ev.Type != proto.RuntimeConsoleAPICalledTypeError && ev.Type != proto.RuntimeConsoleAPICalledTypeWarning {
				return
			}
			if !throttler.Allow("console") {
				return
			}
			logging.BrowserDebug("[session:%s] console %s: %s", sessionID, ev.Type, stringifyConsoleArgs(ev.Args))
		},
		func(ev *proto.RuntimeExceptionThrown) {
			if !throttler.Allow("exception") {
				return
			}
			if ev.ExceptionDetails != nil {
				logging.BrowserDebug("[session:%s] page exception: %s", sessionID, ev.ExceptionDetails.Text)
			}
		},
	)
	go wait()
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		switch {
		case arg.Description != "":
			parts = append(parts, arg.Description)
		case !arg.Value.Nil():
			parts = append(parts, arg.Value.String())
		}
	}
	return strings.Join(parts, " ")
}

// persistSessions writes the live sessions to disk, replacing what the
// previous run saved.
func (m *SessionManager) persistSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	m.mu.RLock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		if rec.page != nil {
			sessions = append(sessions, rec.meta)
		}
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionStore, data, 0o644)
}

// loadSessionsLocked loads the previous run's sessions as reattach
// candidates. Caller must hold lock.
func (m *SessionManager) loadSessionsLocked() error {
	m.saved = nil
	if m.cfg.SessionStore == "" {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionStore)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}
	for _, s := range sessions {
		s.Status = "detached"
		m.saved = append(m.saved, s)
	}
	return nil
}
