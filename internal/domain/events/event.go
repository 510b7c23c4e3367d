package events

import (
	"time"

	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

// Kind names an event on the wire.
type Kind string

const (
	KindDragStart       Kind = "tab-drag-start"
	KindDrop            Kind = "tab-drop"
	KindReattachRequest Kind = "tab-from-detached"

	// kindReattachAlias is accepted on decode for hosts that still emit the
	// older event name.
	kindReattachAlias Kind = "reattach-tab"
)

// Event is the closed set of payloads that travel between windows. Only the
// types in this package implement it.
type Event interface {
	Kind() Kind
	event()
}

// DragStart lets other windows render a floating preview of a tab being
// dragged in the origin window.
type DragStart struct {
	Tab tabs.Info `json:"tab"`
}

// Drop hands a tab to the window whose tab bar it was released over. An
// empty Target means any window other than the origin.
type Drop struct {
	Tab    tabs.Info   `json:"tab"`
	Target id.WindowID `json:"target,omitempty"`
}

// ReattachRequest asks the main window to take a tab back from a detached
// window.
type ReattachRequest struct {
	Tab tabs.Info `json:"tab"`
}

func (DragStart) Kind() Kind       { return KindDragStart }
func (Drop) Kind() Kind            { return KindDrop }
func (ReattachRequest) Kind() Kind { return KindReattachRequest }

func (DragStart) event()       {}
func (Drop) event()            {}
func (ReattachRequest) event() {}

// Envelope carries one event together with its origin.
type Envelope struct {
	ID     string
	Origin id.WindowID
	SentAt time.Time
	Event  Event
}

// Kind returns the kind of the carried event.
func (e Envelope) Kind() Kind {
	if e.Event == nil {
		return ""
	}
	return e.Event.Kind()
}

// TabInfo returns the tab identity carried by any event variant.
func (e Envelope) TabInfo() tabs.Info {
	switch ev := e.Event.(type) {
	case DragStart:
		return ev.Tab
	case Drop:
		return ev.Tab
	case ReattachRequest:
		return ev.Tab
	}
	return tabs.Info{}
}
