package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"prismakit/internal/approvers"
	"prismakit/internal/browser"
	"prismakit/internal/clipboard"
	"prismakit/internal/coordinator"
	"prismakit/internal/store"
)

// agent is a coordinator bound to the host tab, plus what it needs to shut
// down cleanly.
type agent struct {
	store    *store.SQLite
	sessions *browser.SessionManager
	session  *browser.Session
	coord    *coordinator.Coordinator
}

// openStore opens the configured key-value store.
func openStore() (*store.SQLite, error) {
	st, err := store.OpenSQLite(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// startAgent opens the store, attaches to the host tab and builds the
// coordinator. The caller must close the agent.
func startAgent(ctx context.Context) (*agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := approvers.Load(cfg.Approvers.DataPath)
	if err != nil {
		return nil, err
	}
	clip, err := clipboard.NewSystem()
	if err != nil {
		return nil, err
	}
	st, err := openStore()
	if err != nil {
		return nil, err
	}

	a := &agent{store: st, sessions: browser.NewSessionManager(cfg)}

	// Navigation events can arrive before the coordinator exists. Those are
	// dropped here and covered by seeding from the session below.
	var coord atomic.Pointer[coordinator.Coordinator]
	a.sessions.OnNavigate(func(sessionID, url string) {
		if c := coord.Load(); c != nil {
			c.Engine().Navigation().ObserveURL(url)
		}
	})

	if err := a.sessions.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	a.session, err = a.sessions.OpenHost(ctx, cfg.HostURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.HostURL, err)
	}
	page, ok := a.sessions.Page(a.session.ID)
	if !ok {
		a.Close()
		return nil, fmt.Errorf("session %s has no page", a.session.ID)
	}

	a.coord, err = coordinator.New(ctx, cfg, browser.NewDocument(page, clip), clip, st, dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	coord.Store(a.coord)
	if current, ok := a.sessions.GetSession(a.session.ID); ok {
		a.coord.Engine().Navigation().ObserveURL(current.URL)
	}
	logger.Info("Attached to host tab",
		zap.String("session", a.session.ID),
		zap.String("url", a.session.URL))
	return a, nil
}

// Close shuts down the browser connection and the store.
func (a *agent) Close() {
	if err := a.sessions.Shutdown(context.Background()); err != nil {
		logger.Warn("Browser shutdown failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("Store close failed", zap.Error(err))
	}
}
