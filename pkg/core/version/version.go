// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     version
// Description: Central version information for the personachat binary
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// App is the application version
const App = "0.3.0"

// Component versions
const (
	Web          = "0.3.0"
	TUI          = "0.2.0"
	Orchestrator = "0.3.0"
	Archive      = "0.1.0"
)

// Set via -ldflags "-X github.com/msto63/personachat/pkg/core/version.Commit=..."
var (
	Commit    = "dev"
	BuildDate = "unknown"
)

// ComponentVersion returns the version for a given component name
func ComponentVersion(name string) string {
	switch name {
	case "web":
		return Web
	case "tui":
		return TUI
	case "orchestrator":
		return Orchestrator
	case "archive":
		return Archive
	default:
		return App
	}
}

// String returns the full version line printed by `personachat version`
func String() string {
	return fmt.Sprintf("personachat %s (commit %s, built %s, %s/%s)",
		App, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent with outgoing HTTP requests
func UserAgent() string {
	return "personachat/" + App
}
