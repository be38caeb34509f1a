package tui

import "github.com/charmbracelet/lipgloss"

// priorityDef holds the icon and color for a Redmine priority level.
type priorityDef struct {
	icon  string
	color lipgloss.Color
}

// priorityMap maps the stock Redmine priority names (and common renames) to
// their display definition.
var priorityMap = map[string]priorityDef{
	"Immediate": {icon: "⊘", color: lipgloss.Color("#FF5630")},
	"Urgent":    {icon: "↑↑", color: lipgloss.Color("#FF5630")},
	"High":      {icon: "↑", color: lipgloss.Color("#FF7452")},
	"Normal":    {icon: "≡", color: lipgloss.Color("#FFAB00")},
	"Medium":    {icon: "≡", color: lipgloss.Color("#FFAB00")},
	"Low":       {icon: "↓", color: lipgloss.Color("#2684FF")},
}

// priorityIcon returns the plain icon for a priority name, or "" if unknown.
func priorityIcon(name string) string {
	return priorityMap[name].icon
}

// priorityLabel returns a colored "icon name" string for the given priority
// name. Falls back to the raw name if unknown.
func priorityLabel(name string) string {
	if def, ok := priorityMap[name]; ok {
		style := lipgloss.NewStyle().Foreground(def.color)
		return style.Render(def.icon) + " " + name
	}
	return name
}
