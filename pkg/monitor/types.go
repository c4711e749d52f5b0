package monitor

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/marcus/bam/internal/store"
)

// LoadedMsg is sent when the initial load finishes
type LoadedMsg struct {
	Err error
}

// EntityEventMsg carries a state change of one store entity
type EntityEventMsg store.Event

// ClearStatusMsg clears the status message
type ClearStatusMsg struct{}

// keyMap holds the editor's bindings
type keyMap struct {
	Up           key.Binding
	Down         key.Binding
	Left         key.Binding
	Right        key.Binding
	Toggle       key.Binding
	CycleDefault key.Binding
	NextPostType key.Binding
	PrevPostType key.Binding
	Filter       key.Binding
	Save         key.Binding
	Reload       key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:           key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:         key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Left:         key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("←/h", "column")),
		Right:        key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("→/l", "column")),
		Toggle:       key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		CycleDefault: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "default style")),
		NextPostType: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "post type")),
		PrevPostType: key.NewBinding(key.WithKeys("shift+tab")),
		Filter:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Save:         key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save now")),
		Reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.CycleDefault, k.NextPostType, k.Filter, k.Save, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Toggle, k.CycleDefault, k.NextPostType},
		{k.Filter, k.Save, k.Reload, k.Quit},
	}
}
