// Package host is the runtime between window processes.
//
// The shell side is a Shell plus a Hub: the Shell launches and closes window
// processes, the Hub keeps one WebSocket per window and relays events between
// them. Window processes use a Client, which sends commands to the shell over
// HTTP and doubles as their event bus relay.
//
// IPC frames are JSON objects with a "type" of event, close, focus or
// welcome:
//
//	{"type":"welcome","window":"main","conn":"conn_01J..."}
//	{"type":"event","window":"main","event":{"id":"...","kind":"tab-drop",...}}
//	{"type":"close","window":"tab_fitting-2"}
//
// When the main window disconnects the shell closes every detached window.
package host
