// Package tui provides terminal prompts and the color theme.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette used by styled output.
type Theme struct {
	Primary    lipgloss.AdaptiveColor
	Success    lipgloss.AdaptiveColor
	Warning    lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
}

// DefaultTheme returns the default palette.
func DefaultTheme() Theme {
	return Theme{
		Primary:    lipgloss.AdaptiveColor{Light: "#6d28d9", Dark: "#c4b5fd"},
		Success:    lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#86efac"},
		Warning:    lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#fcd34d"},
		Error:      lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#fca5a5"},
		Muted:      lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"},
		Foreground: lipgloss.AdaptiveColor{Light: "#111827", Dark: "#f3f4f6"},
	}
}

// NoColorTheme returns a theme with empty colors.
// Lipgloss treats empty strings as "no color".
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Foreground: empty,
	}
}

// ResolveTheme honors NO_COLOR, otherwise returns the default theme.
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}
	return DefaultTheme()
}
