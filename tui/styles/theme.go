package styles

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents a color theme
type Theme struct {
	Name      string
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	TextDim   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Image     lipgloss.AdaptiveColor
}

// Default theme
var DefaultTheme = Theme{
	Name:      "default",
	Primary:   lipgloss.AdaptiveColor{Light: "#1A73E8", Dark: "#8AB4F8"},
	Secondary: lipgloss.AdaptiveColor{Light: "#9334E6", Dark: "#C58AF9"},
	Text:      lipgloss.AdaptiveColor{Light: "#1E1E1E", Dark: "#E0E0E0"},
	TextDim:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"},
	Border:    lipgloss.AdaptiveColor{Light: "#BDBDBD", Dark: "#FFFFFF"},
	Success:   lipgloss.AdaptiveColor{Light: "#188038", Dark: "#81C995"},
	Warning:   lipgloss.AdaptiveColor{Light: "#E37400", Dark: "#FDD663"},
	Error:     lipgloss.AdaptiveColor{Light: "#D93025", Dark: "#F28B82"},
	Image:     lipgloss.AdaptiveColor{Light: "#00796B", Dark: "#4ECDC4"},
}

// Dracula theme
var DraculaTheme = Theme{
	Name:      "dracula",
	Primary:   lipgloss.AdaptiveColor{Light: "#BD93F9", Dark: "#BD93F9"},
	Secondary: lipgloss.AdaptiveColor{Light: "#FF79C6", Dark: "#FF79C6"},
	Text:      lipgloss.AdaptiveColor{Light: "#F8F8F2", Dark: "#F8F8F2"},
	TextDim:   lipgloss.AdaptiveColor{Light: "#6272A4", Dark: "#6272A4"},
	Border:    lipgloss.AdaptiveColor{Light: "#6272A4", Dark: "#6272A4"},
	Success:   lipgloss.AdaptiveColor{Light: "#50FA7B", Dark: "#50FA7B"},
	Warning:   lipgloss.AdaptiveColor{Light: "#F1FA8C", Dark: "#F1FA8C"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF5555", Dark: "#FF5555"},
	Image:     lipgloss.AdaptiveColor{Light: "#8BE9FD", Dark: "#8BE9FD"},
}

// Nord theme
var NordTheme = Theme{
	Name:      "nord",
	Primary:   lipgloss.AdaptiveColor{Light: "#5E81AC", Dark: "#81A1C1"},
	Secondary: lipgloss.AdaptiveColor{Light: "#88C0D0", Dark: "#88C0D0"},
	Text:      lipgloss.AdaptiveColor{Light: "#2E3440", Dark: "#D8DEE9"},
	TextDim:   lipgloss.AdaptiveColor{Light: "#4C566A", Dark: "#4C566A"},
	Border:    lipgloss.AdaptiveColor{Light: "#4C566A", Dark: "#4C566A"},
	Success:   lipgloss.AdaptiveColor{Light: "#A3BE8C", Dark: "#A3BE8C"},
	Warning:   lipgloss.AdaptiveColor{Light: "#EBCB8B", Dark: "#EBCB8B"},
	Error:     lipgloss.AdaptiveColor{Light: "#BF616A", Dark: "#BF616A"},
	Image:     lipgloss.AdaptiveColor{Light: "#8FBCBB", Dark: "#8FBCBB"},
}

var themes = map[string]Theme{
	DefaultTheme.Name: DefaultTheme,
	DraculaTheme.Name: DraculaTheme,
	NordTheme.Name:    NordTheme,
}

// GetTheme returns a theme by name, falling back to the default theme
func GetTheme(name string) Theme {
	if theme, ok := themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return theme
	}
	return DefaultTheme
}

// ThemeNames lists the known theme names
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
