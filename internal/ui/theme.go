package ui

import "charm.land/lipgloss/v2"

var (
	tabStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	tabActiveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true).Padding(0, 1)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	paneStyle         = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	paneFocusedStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("75"))
	paneTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	paneDirtyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	paneConflictStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	reconnectingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)
