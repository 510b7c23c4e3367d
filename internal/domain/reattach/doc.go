// Package reattach moves a tab from a detached window back into the main
// window.
//
// The detached window's Reattacher sends the tab identity to the host, which
// relays it to the main window as a tab-from-detached event. The main
// window's Listener rebuilds the panel from its content type and adds the
// tab. Adding is idempotent and transfers carry a version, so a repeated or
// late delivery never produces a second copy.
//
// Reattach is unavailable in the main window. A failed send is abandoned:
// the detached window keeps its tab and stays open.
package reattach
