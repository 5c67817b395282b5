package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the watcher.
type keyMap struct {
	history   key.Binding
	reconnect key.Binding
	help      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		history:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		reconnect: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconnect"), key.WithDisabled()),
		help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.history, k.reconnect, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.history, k.reconnect},
		{k.help, k.quit},
	}
}
