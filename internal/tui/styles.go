package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/skein/internal/models"
)

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(cyanColor)

	stateFree    = lipgloss.NewStyle().Foreground(mutedColor)
	stateOpen    = lipgloss.NewStyle().Foreground(cyanColor)
	stateClosed  = lipgloss.NewStyle().Foreground(successColor)
	stateStopped = lipgloss.NewStyle().Foreground(warningColor)
	stateFailed  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
)

func stateStyle(s models.TaskState) lipgloss.Style {
	switch s {
	case models.TaskStateOpen, models.TaskStateAssigned:
		return stateOpen
	case models.TaskStateClosed:
		return stateClosed
	case models.TaskStateCanceled:
		return stateStopped
	case models.TaskStateFailed:
		return stateFailed
	}
	return stateFree
}
