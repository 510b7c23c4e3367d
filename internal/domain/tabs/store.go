package tabs

import (
	"sync"

	"go.uber.org/zap"
)

// Store is one window's ordered collection of tabs plus its active selection.
// Each window owns its own Store; stores are never shared between windows.
type Store struct {
	mu       sync.RWMutex
	tabs     []Tab  // Protected by mu
	activeID string // Protected by mu, "" when nothing is active
	logger   *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger}
}

// Add appends the tab and activates it. If a tab with the same id is already
// present it is only activated.
func (s *Store) Add(tab Tab) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(tab.ID) >= 0 {
		s.activeID = tab.ID
		return false
	}

	s.tabs = append(s.tabs, tab)
	s.activeID = tab.ID
	return true
}

// Remove deletes a tab. If it was active, the first remaining tab becomes
// active, or nothing when the store is empty. Unknown ids are tolerated.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.removeAt(s.indexOf(id))
	return ok
}

// Rename changes a tab title; unknown ids are a no-op.
func (s *Store) Rename(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.tabs[i].Title = title
	return true
}

// SetActive selects a tab. The id is not checked against the store, so a
// stale id leaves a dangling selection.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
}

// Reorder moves the movable tab at source to target. Indices count only
// movable tabs, so the pinned home tab can be neither source nor target and
// keeps its position.
func (s *Store) Reorder(source, target int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]int, 0, len(s.tabs))
	for i, t := range s.tabs {
		if !t.Pinned() {
			slots = append(slots, i)
		}
	}
	if source < 0 || source >= len(slots) || target < 0 || target >= len(slots) {
		return ErrIndexOutOfRange
	}
	if source == target {
		return nil
	}

	movable := make([]Tab, len(slots))
	for i, slot := range slots {
		movable[i] = s.tabs[slot]
	}

	moved := movable[source]
	movable = append(movable[:source], movable[source+1:]...)
	movable = append(movable[:target], append([]Tab{moved}, movable[target:]...)...)

	for i, slot := range slots {
		s.tabs[slot] = movable[i]
	}
	return nil
}

// Get returns a copy of the tab with the given id.
func (s *Store) Get(id string) (Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Tab{}, false
	}
	return s.tabs[i], true
}

// Tabs returns a snapshot of the tabs in order.
func (s *Store) Tabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tab, len(s.tabs))
	copy(out, s.tabs)
	return out
}

// IDs returns the tab ids in order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.tabs))
	for i, t := range s.tabs {
		ids[i] = t.ID
	}
	return ids
}

// ActiveID returns the active tab id, or "" when nothing is active.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Len returns the number of tabs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs)
}

// IndexOf returns the position of a tab, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

// MovableIndexOf returns the position of a tab among movable tabs, or -1
// for unknown and pinned tabs.
func (s *Store) MovableIndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tabs {
		if t.Pinned() {
			continue
		}
		if t.ID == id {
			return n
		}
		n++
	}
	return -1
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// removeAt must be called with mu held.
func (s *Store) removeAt(i int) (Tab, bool) {
	if i < 0 || i >= len(s.tabs) {
		return Tab{}, false
	}

	tab := s.tabs[i]
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)

	if s.activeID == tab.ID {
		s.activeID = ""
		if len(s.tabs) > 0 {
			s.activeID = s.tabs[0].ID
		}
	}
	return tab, true
}

// insertAt must be called with mu held.
func (s *Store) insertAt(i int, tab Tab) {
	if i < 0 || i > len(s.tabs) {
		i = len(s.tabs)
	}
	s.tabs = append(s.tabs, Tab{})
	copy(s.tabs[i+1:], s.tabs[i:])
	s.tabs[i] = tab
}
