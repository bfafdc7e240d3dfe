package feed

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Push key.Binding
	Auto key.Binding
	Quit key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Push: key.NewBinding(
			key.WithKeys("p", "enter"),
			key.WithHelp("p/enter", "push message"),
		),
		Auto: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto push"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Push, k.Auto, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
