// Package ui holds the terminal styles used by the vidx CLI.
//
// Styles are built with lipgloss and degrade to plain text when output is not a terminal,
// so command output stays greppable and testable.
package ui
