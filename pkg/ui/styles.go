package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	filterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).MarginLeft(1)

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	failedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	sourcesTitleStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("#AFAFAF"))
	citationStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).PaddingLeft(2)

	introStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	examplesTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	exampleStyle         = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#AFAFAF"))
	selectedExampleStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(lipgloss.Color("62"))

	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Italic(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	pickerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(1, 3)
)
