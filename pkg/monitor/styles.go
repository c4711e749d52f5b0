package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/bam/internal/store"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	columnStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	activeColumnStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)

	allowedCell = lipgloss.NewStyle().Foreground(successColor).Render("✓")
	deniedCell  = lipgloss.NewStyle().Foreground(errorColor).Render("✗")
	missingCell = lipgloss.NewStyle().Foreground(mutedColor).Render("·")

	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("237")).
				Foreground(lipgloss.Color("255"))
	selectedCellStyle = lipgloss.NewStyle().Reverse(true)

	stateStyles = map[store.State]lipgloss.Style{
		store.StateLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		store.StateIdle:    lipgloss.NewStyle().Foreground(mutedColor),
		store.StateSaving:  lipgloss.NewStyle().Foreground(warningColor),
	}

	statusOKStyle    = lipgloss.NewStyle().Foreground(successColor)
	statusErrorStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warnStyle        = lipgloss.NewStyle().Foreground(warningColor)
	defaultStyleTag  = lipgloss.NewStyle().Foreground(primaryColor)
)
