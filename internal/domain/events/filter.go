package events

import (
	"sync"

	"github.com/anafis/workspace/internal/domain/tabs"
)

// VersionFilter discards stale or duplicated ownership transfers. Delivery
// between windows is unordered and may repeat, so a receiver only accepts a
// tab whose version is newer than the last one it accepted for that id.
type VersionFilter struct {
	mu   sync.Mutex
	seen map[string]uint64
}

// NewVersionFilter creates an empty filter.
func NewVersionFilter() *VersionFilter {
	return &VersionFilter{seen: make(map[string]uint64)}
}

// Accept records the transfer and reports whether it should be applied.
// Unversioned transfers (version 0) are always accepted.
func (f *VersionFilter) Accept(info tabs.Info) bool {
	if info.Version == 0 {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if last, ok := f.seen[info.ID]; ok && info.Version <= last {
		return false
	}
	f.seen[info.ID] = info.Version
	return true
}

// Observe raises the floor for a tab without accepting a transfer, e.g. when
// the tab leaves this window with a newer version.
func (f *VersionFilter) Observe(info tabs.Info) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if info.Version > f.seen[info.ID] {
		f.seen[info.ID] = info.Version
	}
}
