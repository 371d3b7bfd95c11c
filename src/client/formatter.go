package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Dracula palette, shared with the TUI
var (
	colorForeground = lipgloss.Color("#f8f8f2")
	colorSelection  = lipgloss.Color("#44475a")
	colorComment    = lipgloss.Color("#6272a4")
	colorCyan       = lipgloss.Color("#8be9fd")
	colorGreen      = lipgloss.Color("#50fa7b")
	colorPurple     = lipgloss.Color("#bd93f9")
	colorRed        = lipgloss.Color("#ff5555")
)

// Formatter handles output formatting
type Formatter struct {
	Format string
	Color  bool
}

// NewFormatter creates a new formatter
func NewFormatter(format string, color bool) *Formatter {
	return &Formatter{
		Format: format,
		Color:  color,
	}
}

// IsJSON reports whether structured output was requested
func (f *Formatter) IsJSON() bool {
	return f.Format == "json"
}

// Heading renders a progress line such as "Getting forecast for Cape Town..."
func (f *Formatter) Heading(text string) string {
	if !f.Color {
		return text
	}
	return lipgloss.NewStyle().Foreground(colorPurple).Bold(true).Render(text)
}

// FormatJSON formats data as indented JSON
func (f *Formatter) FormatJSON(data interface{}) string {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting JSON: %v", err)
	}
	return string(jsonData)
}

// FormatJSONLine formats data as a single line of JSON
func (f *Formatter) FormatJSONLine(data interface{}) string {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(jsonData)
}

// ColorEnabled decides whether to style output.
// Priority: 1. output.color always/never (--no-color sets never) -> 2. NO_COLOR -> 3. TTY detection
func ColorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}
