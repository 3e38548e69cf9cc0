package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorBlue   = lipgloss.Color("39")
	ColorRed    = lipgloss.Color("196")
	ColorYellow = lipgloss.Color("220")
	ColorGray   = lipgloss.Color("240")
	ColorWhite  = lipgloss.Color("255")

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)
	helpStyle       = lipgloss.NewStyle().Foreground(ColorGray)
	errorStyle      = lipgloss.NewStyle().Foreground(ColorRed)
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)

	blockedBar = lipgloss.NewStyle().Foreground(ColorRed).Background(ColorRed)
	cachedBar  = lipgloss.NewStyle().Foreground(ColorYellow).Background(ColorYellow)
	otherBar   = lipgloss.NewStyle().Foreground(ColorBlue).Background(ColorBlue)
)
