package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusBusy = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow")).
			Bold(true)

	StyleStatusIdle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	StyleStatusError = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusOffline = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// Health bar styles
var (
	StyleHealthGood = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green"))

	StyleHealthLow = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
