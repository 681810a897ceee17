package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/joinboard/join/pkg/models"
)

// Style definitions shared by the board, summary and list output.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("#2A3647")).
			Padding(0, 1)

	columnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	highlightColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("#29ABE2"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#29ABE2"))

	selectedCardStyle = lipgloss.NewStyle().
				Reverse(true)

	draggedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Italic(true)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	urgentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3D00")).Bold(true)
	mediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA800"))
	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7AE229"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

func stageStyle(s models.Stage) lipgloss.Style {
	switch s {
	case models.StageTodo:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	case models.StageProgress:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	case models.StageFeedback:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	case models.StageDone:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	}
	return lipgloss.NewStyle()
}

func priorityStyle(p models.Priority) lipgloss.Style {
	switch p {
	case models.PriorityUrgent:
		return urgentStyle
	case models.PriorityMedium:
		return mediumStyle
	case models.PriorityLow:
		return lowStyle
	}
	return lipgloss.NewStyle()
}

func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	}
	return lipgloss.NewStyle()
}

// badgeStyle renders contact initials on the contact's color.
func badgeStyle(color string) lipgloss.Style {
	if color == "" {
		color = "240"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color(color)).
		Bold(true)
}
