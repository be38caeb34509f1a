package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")) // bright blue

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")) // dim gray

	// Status styles
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // red

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // green

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // yellow

	// Page styles
	editableStyle = lipgloss.NewStyle().
			Underline(true)

	focusedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12")).
			Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	// Control styles
	controlSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("12")).
				Bold(true)

	controlDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
