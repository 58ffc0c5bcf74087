// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails.
	DefaultTerminalWidth = 80

	// MaxRenderWidth caps the word-wrap width of rendered answers.
	MaxRenderWidth = 100
)

// isTerminal reports whether w is an *os.File attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsStdinTTY returns true if stdin is a terminal.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalWidth returns the width of w's terminal, or DefaultTerminalWidth.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}

// renderWidth is the word-wrap width for answers written to w.
func renderWidth(w io.Writer) int {
	width := terminalWidth(w) - 2
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	if width < 20 {
		width = 20
	}
	return width
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// colorsEnabled decides whether w gets colored output. NO_COLOR always
// wins, FORCE_COLOR overrides TTY detection, and the config can turn
// colors off. See https://no-color.org/.
func colorsEnabled(w io.Writer, configured bool) bool {
	if os.Getenv("NO_COLOR") != "" || !configured {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return isTerminal(w)
}

// setupColors points lipgloss at the right color profile for w.
func setupColors(w io.Writer, configured bool) bool {
	enabled := colorsEnabled(w, configured)
	if enabled {
		lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return enabled
}
