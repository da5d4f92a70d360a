package app

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/XDukeHD/nex-client/internal/views/help"
)

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	PlayPause  key.Binding
	Next       key.Binding
	Previous   key.Binding
	Stop       key.Binding
	Reconnect  key.Binding
	Disconnect key.Binding
	Logout     key.Binding
	Debug      key.Binding
	Help       key.Binding
	Escape     key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "previous player"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next player"),
		),
		PlayPause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play / pause"),
		),
		Next: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next track"),
		),
		Previous: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "previous track"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "disconnect"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "notice log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// HelpSections groups the bindings for the help overlay.
func (k KeyMap) HelpSections() []help.Section {
	return []help.Section{
		{Title: "Connection", Bindings: []key.Binding{k.Reconnect, k.Disconnect, k.Logout}},
		{Title: "Audio", Bindings: []key.Binding{k.Up, k.Down, k.PlayPause, k.Next, k.Previous, k.Stop}},
		{Title: "General", Bindings: []key.Binding{k.Debug, k.Help, k.Escape, k.Quit}},
	}
}
