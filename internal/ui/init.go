// Package ui provides terminal output for the scan-router CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// Init applies the colour setting. Colour is also disabled when stdout is not a terminal.
func Init(noColor bool) {
	if noColor || !IsTerminal() {
		color.NoColor = true
	}
}

// SetOutput redirects messages and errors, mainly for tests.
func SetOutput(stdout, stderr io.Writer) {
	out, errOut = stdout, stderr
}

// IsTerminal reports whether stdout is a character device.
func IsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
