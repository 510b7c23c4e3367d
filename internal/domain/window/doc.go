// Package window manages top-level windows on behalf of the workspace.
//
// A detached window is created by the host runtime with the tab's identity
// encoded as URL query parameters:
//
//	tab.html?detached=true&tabId=fitting-2&tabType=fitting&tabTitle=Fitting
//
// On boot the new window parses its own parameters and registers exactly one
// tab in a fresh store; it never learns about other windows' tabs.
//
// Window labels follow the shell's scheme: "main" for the workspace window,
// "tab_<tabId>" for detached windows.
package window
