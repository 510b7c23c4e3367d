// Package events provides the per-window event bus and the closed set of
// cross-window events.
//
// Windows share no memory. A window emits on its own Bus; the bus delivers to
// local handlers and hands the envelope to a Relay, which the host runtime
// fans out to the other windows, where it arrives through Bus.Deliver.
//
// Delivery is at-most-once and unacknowledged, with no ordering across
// windows. Receivers that take ownership of a tab use a
// VersionFilter to drop duplicates and stale transfers.
//
// Event kinds:
//   - tab-drag-start: preview replication while a tab is dragged
//   - tab-drop: tab released over another window's tab bar
//   - tab-from-detached (alias reattach-tab): reattach payload for the main window
package events
