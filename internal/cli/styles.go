package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#A40000") // Voiceprep red
	accentColor  = lipgloss.Color("#FFA500") // Orange
	successColor = lipgloss.Color("#00AA00") // Green
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	WarnStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(w io.Writer, version string) {
	fmt.Fprintln(w, TitleStyle.Render("Voiceprep 🎙"))
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Fprintln(w)
}

// PrintError prints an error message to stderr
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}
