package reminder

import "sync"

// NavigationState remembers which reminders were shown since the host page
// last changed URL. It is reset by ResetForNavigation, either because
// ObserveURL saw a new URL or because settings changed.
type NavigationState struct {
	mu      sync.Mutex
	lastURL string
	shown   map[string]bool
}

func NewNavigationState() *NavigationState {
	return &NavigationState{shown: make(map[string]bool)}
}

// Shown reports whether id was shown during the current navigation.
func (n *NavigationState) Shown(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown[id]
}

func (n *NavigationState) MarkShown(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown[id] = true
}

// ResetForNavigation forgets every shown reminder.
func (n *NavigationState) ResetForNavigation() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = make(map[string]bool)
}

// ObserveURL records url and resets the state when it differs from the
// previously observed one. It reports whether a navigation happened; the
// very first observation is not one.
func (n *NavigationState) ObserveURL(url string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastURL == url {
		return false
	}
	first := n.lastURL == ""
	n.lastURL = url
	if first {
		return false
	}
	n.shown = make(map[string]bool)
	return true
}

// LastURL returns the most recently observed URL.
func (n *NavigationState) LastURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastURL
}
