package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings of the page view. Cancel, Commit and Save
// only apply while a field is being edited; every other key then goes to the
// edit control.
type KeyMap struct {
	Quit   key.Binding
	Cancel key.Binding
	// Commit is a plain Enter. Enter with a modifier is left to the control.
	Commit key.Binding
	Save   key.Binding

	NextField key.Binding
	PrevField key.Binding
	Edit      key.Binding

	Reload  key.Binding
	CopyURL key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Commit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "save"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("S-tab", "prev field"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	CopyURL: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy url"),
	),
}

// helpLine renders "key: desc" pairs for the status bar.
func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, "  "))
}
