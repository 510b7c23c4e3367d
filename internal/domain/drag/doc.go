// Package drag interprets pointer gestures on a window's tab bar.
//
// A press on a movable tab arms a Session. Once the pointer travels
// MinDistance pixels the gesture becomes a drag and a tab-drag-start event is
// broadcast so other windows can highlight their bars. On release:
//
//   - over another tab of the same bar: reorder among movable tabs
//   - over another window's bar: emit tab-drop and remove the tab locally
//   - anywhere else: detach into a new window at the release point
//
// A vertical displacement beyond DetachThreshold turns a same-bar release
// into a detach. The home tab never starts a gesture.
package drag
