package tabs

import (
	"fmt"
)

// ContentType selects the panel factory for a tab. The orchestration core
// treats it as an opaque key.
type ContentType string

const (
	ContentHome        ContentType = "home"
	ContentSpreadsheet ContentType = "spreadsheet"
	ContentFitting     ContentType = "fitting"
	ContentSolver      ContentType = "solver"
	ContentMonteCarlo  ContentType = "montecarlo"
)

// HomeID is the id of the pinned home tab.
const HomeID = "home"

// Valid reports whether c is part of the known vocabulary.
func (c ContentType) Valid() bool {
	switch c {
	case ContentHome, ContentSpreadsheet, ContentFitting, ContentSolver, ContentMonteCarlo:
		return true
	}
	return false
}

// ParseContentType validates a content type received from another window.
func ParseContentType(s string) (ContentType, error) {
	c := ContentType(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, s)
	}
	return c, nil
}

// Position is a screen position in physical pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DefaultPosition is used when a detach has no pointer coordinates.
var DefaultPosition = Position{X: 100, Y: 100}

// Tab is one work area rendered as a panel inside exactly one window.
type Tab struct {
	ID          string
	Title       string
	ContentType ContentType
	// Content is the opaque UI handle built by the panel factory. It never
	// leaves the window that owns the tab.
	Content any
	// Version increases each time ownership moves to another window.
	Version uint64
}

// Pinned reports whether the tab is the home tab.
func (t Tab) Pinned() bool {
	return t.ID == HomeID
}

// Info returns the transferable identity of the tab.
func (t Tab) Info() Info {
	return Info{
		ID:          t.ID,
		Title:       t.Title,
		ContentType: t.ContentType,
		Version:     t.Version,
	}
}

// Info is the part of a tab that crosses window boundaries.
type Info struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	Version     uint64      `json:"version,omitempty"`
}

// Transferred returns the identity to send when handing the tab to another
// window.
func (i Info) Transferred() Info {
	i.Version++
	return i
}

// Validate checks an identity received from another window.
func (i Info) Validate() error {
	if i.ID == "" {
		return ErrEmptyTabID
	}
	if _, err := ParseContentType(string(i.ContentType)); err != nil {
		return err
	}
	return nil
}

// ContentFactory rebuilds panel content from a content type alone.
type ContentFactory func(ContentType) any

// Materialize turns a received identity back into a tab owned by this window.
func (i Info) Materialize(factory ContentFactory) Tab {
	var content any
	if factory != nil {
		content = factory(i.ContentType)
	}
	return Tab{
		ID:          i.ID,
		Title:       i.Title,
		ContentType: i.ContentType,
		Content:     content,
		Version:     i.Version,
	}
}

// Home returns the pinned home tab.
func Home(factory ContentFactory) Tab {
	return Info{ID: HomeID, Title: "Home", ContentType: ContentHome}.Materialize(factory)
}
