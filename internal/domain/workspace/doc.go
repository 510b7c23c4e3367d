// Package workspace composes one window process.
//
// The main window starts with the pinned home tab and listens for tabs sent
// back by detached windows. A detached window boots from its URL with exactly
// one tab and closes itself when it no longer holds any. Every window adopts
// tabs dropped onto its tab bar by other windows.
package workspace
