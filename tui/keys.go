package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines key bindings
type KeyMap struct {
	Quit     key.Binding
	Send     key.Binding
	Clear    key.Binding
	Complete key.Binding
	Prev     key.Binding
	Next     key.Binding
}

// DefaultKeyMap returns default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q", "esc"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear screen"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "complete command"),
		),
		Prev: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous suggestion"),
		),
		Next: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next suggestion"),
		),
	}
}

// ShortHelp lists the bindings shown in /help
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Complete, k.Clear, k.Quit}
}
