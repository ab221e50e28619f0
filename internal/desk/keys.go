package desk

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the alert panel.
type KeyMap struct {
	Down key.Binding
	Up   key.Binding

	MarkRead    key.Binding
	MarkAllRead key.Binding
	SnoozeAll   key.Binding
	Refresh     key.Binding

	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("enter", "x"),
			key.WithHelp("enter", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		SnoozeAll: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "snooze all"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MarkRead, k.MarkAllRead, k.SnoozeAll, k.Refresh, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.MarkRead, k.MarkAllRead, k.SnoozeAll},
		{k.Refresh, k.Quit},
	}
}
