// Package main is a headless window process for the workspace shell.
//
// The shell launches one per window with the flags its ExecLauncher builds
// (--label, --url and the geometry). The main window starts with the home
// tab; a detached window rebuilds its single tab from the boot URL. Tab
// commands are read from stdin so windows can be scripted without a UI
// toolkit:
//
//	open spreadsheet Sales
//	detach spreadsheet_01J... 400 300
//	drop fitting_01J... tab_spreadsheet_01J...
//	reattach
//
// The process exits when the shell sends a close frame, the IPC socket
// drops, or on SIGINT/SIGTERM.
package main
