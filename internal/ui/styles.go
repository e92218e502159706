// Package ui holds terminal styling helpers for the gw CLI.
package ui

import "fmt"

// ANSI256 color codes for CLI output.
const (
	colorPass  = 71  // green
	colorFail  = 167 // red
	colorWarn  = 179 // yellow
	colorMuted = 245 // medium gray
)

var noColor bool

// RenderPass returns s in the pass (green) color.
func RenderPass(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorPass, s)
}

// RenderFail returns s in the fail (red) color.
func RenderFail(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorFail, s)
}

// RenderWarn returns s in the warn (yellow) color.
func RenderWarn(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorWarn, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
