package window

import (
	"sort"
	"sync"
	"time"

	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

// Handle describes a detached window. It owns exactly one tab for its
// lifetime.
type Handle struct {
	WindowID   id.WindowID   `json:"window_id"`
	OwnedTabID string        `json:"owned_tab_id"`
	Position   tabs.Position `json:"position"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Registry tracks the detached windows known to one window manager. It is an
// explicit value so every manager (and every test) has its own.
type Registry struct {
	mu      sync.RWMutex
	windows map[id.WindowID]Handle // Protected by mu
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{windows: make(map[id.WindowID]Handle)}
}

// Register records a window, replacing any previous entry for the same id.
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	r.windows[h.WindowID] = h
	r.mu.Unlock()
}

// Unregister forgets a window.
func (r *Registry) Unregister(w id.WindowID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.windows[w]; !ok {
		return false
	}
	delete(r.windows, w)
	return true
}

// Get returns the handle of a window.
func (r *Registry) Get(w id.WindowID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.windows[w]
	return h, ok
}

// ByTab returns the window that owns a tab.
func (r *Registry) ByTab(tabID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.windows {
		if h.OwnedTabID == tabID {
			return h, true
		}
	}
	return Handle{}, false
}

// List returns all handles, oldest first.
func (r *Registry) List() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.windows))
	for _, h := range r.windows {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].WindowID < out[j].WindowID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered windows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.windows)
}
