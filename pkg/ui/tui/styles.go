package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	errorRed    = lipgloss.Color("#FF3B3B")
	darkBg      = lipgloss.Color("#0A0E27")
	darkBg2     = lipgloss.Color("#1A1E37")
	dimWhite    = lipgloss.Color("#B0B0B0")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(1, 0, 0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Background(darkBg2).
			Padding(1, 2)

	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#333333"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	successStyle = lipgloss.NewStyle().
			Foreground(neonGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(neonOrange).
			Bold(true)

	queueItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	queueItemActiveStyle = lipgloss.NewStyle().
				Foreground(neonGreen).
				Bold(true)

	queueItemCompletedStyle = lipgloss.NewStyle().
				Foreground(dimWhite).
				Faint(true).
				PaddingLeft(2)

	// router stage of an active download
	stageStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Italic(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)

	titleStyle = lipgloss.NewStyle().
			Background(neonMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	accountsHealthyStyle = lipgloss.NewStyle().
				Foreground(neonGreen)

	accountsDegradedStyle = lipgloss.NewStyle().
				Foreground(neonOrange)

	accountsCriticalStyle = lipgloss.NewStyle().
				Foreground(errorRed)
)

// GetAccountHealthStyle picks a color from the share of available accounts
func GetAccountHealthStyle(availablePct float64) lipgloss.Style {
	switch {
	case availablePct <= 10:
		return accountsCriticalStyle
	case availablePct < 50:
		return accountsDegradedStyle
	default:
		return accountsHealthyStyle
	}
}
