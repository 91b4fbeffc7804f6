package approvers

import (
	"context"
	"sort"
	"sync"

	"prismakit/internal/logging"
	"prismakit/internal/store"
)

// KeyFavorites is the sync-scope key holding favorite approver IDs.
const KeyFavorites = "favoriteApprovers"

// Favorites is the persisted set of favorite approvers.
type Favorites struct {
	mu  sync.Mutex
	kv  store.KV
	ids map[string]bool
}

// LoadFavorites reads the favorite set from kv. A missing key is an empty
// set.
func LoadFavorites(ctx context.Context, kv store.KV) (*Favorites, error) {
	var saved []string
	if _, err := kv.Get(ctx, KeyFavorites, &saved); err != nil {
		return nil, err
	}
	f := &Favorites{kv: kv, ids: make(map[string]bool, len(saved))}
	for _, id := range saved {
		f.ids[id] = true
	}
	return f, nil
}

// Toggle flips id's membership, persists the set, and returns the new
// membership. The in-memory set is left unchanged when the write fails.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string]bool, len(f.ids)+1)
	for k := range f.ids {
		next[k] = true
	}
	on := !next[id]
	if on {
		next[id] = true
	} else {
		delete(next, id)
	}
	if err := f.kv.Set(ctx, KeyFavorites, sortedKeys(next)); err != nil {
		logging.ApproversWarn("Could not save favorites: %v", err)
		return f.ids[id], err
	}
	f.ids = next
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditFavoriteToggled,
		Category:  logging.CategoryApprovers,
		Target:    id,
		Success:   true,
		Fields:    map[string]any{"favorite": on},
	})
	return on, nil
}

func (f *Favorites) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[id]
}

// Set returns a copy of the favorite set, suitable for Criteria.Favorites.
func (f *Favorites) Set() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.ids))
	for k := range f.ids {
		out[k] = true
	}
	return out
}

// IDs returns the favorite IDs sorted.
func (f *Favorites) IDs() []string {
	return sortedKeys(f.Set())
}

// Selection is the in-memory set of approvers picked for a bulk action.
type Selection struct {
	mu  sync.Mutex
	dir *Directory
	ids map[string]bool
}

func NewSelection(dir *Directory) *Selection {
	return &Selection{dir: dir, ids: make(map[string]bool)}
}

// Toggle flips id's membership and returns it. Unknown IDs are ignored and
// report false.
func (s *Selection) Toggle(id string) bool {
	if !s.dir.Contains(id) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[id] {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = true
	return true
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]bool)
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns the selected IDs in directory order.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		a, _ := s.dir.index(ids[i])
		b, _ := s.dir.index(ids[j])
		return a < b
	})
	return ids
}

// Emails returns the selected approvers' emails in directory order.
func (s *Selection) Emails() []string {
	ids := s.IDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.dir.Get(id); ok && a.Email != "" {
			out = append(out, a.Email)
		}
	}
	return out
}
