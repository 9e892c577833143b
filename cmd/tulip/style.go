package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	runtime "github.com/chazu/tulip/lib/runtime"
)

// Theme defines the CLI color scheme.
type Theme struct {
	Error  lipgloss.Color
	Result lipgloss.Color
	Dim    lipgloss.Color
}

// DefaultTheme is used unless output is not a terminal.
var DefaultTheme = Theme{
	Error:  lipgloss.Color("#ff5f87"),
	Result: lipgloss.Color("#00ff9f"),
	Dim:    lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Label  lipgloss.Style
	Error  lipgloss.Style
	Result lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Error:  lipgloss.NewStyle().Foreground(t.Error),
		Result: lipgloss.NewStyle().Foreground(t.Result),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

var styles = NewStyles(DefaultTheme)

// reportFailure writes a failed outcome to w, labelled by its status.
func reportFailure(w io.Writer, out runtime.Outcome) {
	if out.OK() || out.Err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render(out.Status.String()+":"), styles.Error.Render(out.Err.Error()))
}
