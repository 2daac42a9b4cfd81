package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the styles used by the chat screen
type Styles struct {
	Theme Theme

	// Header
	Title   lipgloss.Style
	Model   lipgloss.Style
	Verbose lipgloss.Style
	Help    lipgloss.Style

	// Messages
	UserLabel  lipgloss.Style
	UserText   lipgloss.Style
	ModelLabel lipgloss.Style
	ImageLine  lipgloss.Style
	Command    lipgloss.Style
	Error      lipgloss.Style

	// Live region
	Spinner    lipgloss.Style
	StatusBar  lipgloss.Style
	StatusBusy lipgloss.Style
	StatusErr  lipgloss.Style
	Input      lipgloss.Style

	// Slash-command suggestions
	SuggestName     lipgloss.Style
	SuggestDesc     lipgloss.Style
	SuggestSelected lipgloss.Style
}

// NewStyles creates a new styles instance with the given theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{
		Theme: theme,
	}

	s.Title = lipgloss.NewStyle().
		Foreground(theme.Text).
		Bold(true)

	s.Model = lipgloss.NewStyle().
		Foreground(theme.Primary)

	s.Verbose = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Help = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.UserLabel = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.UserText = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.ModelLabel = lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true)

	s.ImageLine = lipgloss.NewStyle().
		Foreground(theme.Image).
		Italic(true)

	s.Command = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.Error = lipgloss.NewStyle().
		Foreground(theme.Error)

	s.Spinner = lipgloss.NewStyle().
		Foreground(theme.Primary)

	s.StatusBar = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.StatusBusy = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.StatusErr = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Input = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.SuggestName = lipgloss.NewStyle().
		Foreground(theme.Primary)

	s.SuggestDesc = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.SuggestSelected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("62"))

	return s
}

// RenderRole returns a styled role prefix
func (s *Styles) RenderRole(role string) string {
	switch role {
	case "user":
		return s.UserLabel.Render("You:")
	case "model":
		return s.ModelLabel.Render("Gemini:")
	default:
		return s.Command.Render(role + ":")
	}
}
