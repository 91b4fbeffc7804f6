package automation

import (
	"context"
	"sync"
	"time"

	"prismakit/internal/logging"
	"prismakit/internal/store"
)

// KeyStats is the local-scope key holding per-action counters.
const KeyStats = "stats"

// ActionStats counts the outcomes of one action.
type ActionStats struct {
	Success   int       `json:"success"`
	Failure   int       `json:"failure"`
	LastError string    `json:"lastError,omitempty"`
	LastRun   time.Time `json:"lastRun"`
}

// Stats persists ActionStats per action name.
type Stats struct {
	mu sync.Mutex
	kv store.KV
}

func NewStats(local store.KV) *Stats {
	return &Stats{kv: local}
}

// Record counts one outcome of action. Storage failures are logged and
// otherwise ignored.
func (s *Stats) Record(ctx context.Context, action string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, loadErr := s.load(ctx)
	if loadErr != nil {
		logging.StoreWarn("Could not load stats: %v", loadErr)
		return
	}
	st := all[action]
	if err != nil {
		st.Failure++
		st.LastError = err.Error()
	} else {
		st.Success++
		st.LastError = ""
	}
	st.LastRun = now()
	all[action] = st
	if err := s.kv.Set(ctx, KeyStats, all); err != nil {
		logging.StoreWarn("Could not save stats: %v", err)
	}
}

// Snapshot returns the saved counters.
func (s *Stats) Snapshot(ctx context.Context) (map[string]ActionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Stats) load(ctx context.Context) (map[string]ActionStats, error) {
	all := make(map[string]ActionStats)
	if _, err := s.kv.Get(ctx, KeyStats, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = make(map[string]ActionStats)
	}
	return all, nil
}
