package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	analyze  key.Binding
	preview  key.Binding
	generate key.Binding
	up       key.Binding
	down     key.Binding
	dismiss  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		analyze:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "analyze")),
		preview:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview")),
		generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate")),
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		dismiss:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.analyze, k.preview, k.generate, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.analyze, k.preview, k.generate},
		{k.up, k.down},
		{k.dismiss, k.quit},
	}
}
