package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#00D7FF")
	magenta = lipgloss.Color("#FF5FD7")
	green   = lipgloss.Color("#5FFF87")
	yellow  = lipgloss.Color("#FFD75F")
	orange  = lipgloss.Color("#FF8700")
	red     = lipgloss.Color("#FF5F5F")
	dim     = lipgloss.Color("#8A8A8A")

	titleStyle = lipgloss.NewStyle().
			Background(magenta).
			Foreground(lipgloss.Color("#000000")).
			Bold(true).
			Padding(0, 1)

	siteStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(accent)
	valueStyle = lipgloss.NewStyle().Foreground(yellow)

	downloadedStyle = lipgloss.NewStyle().Foreground(green)
	presentStyle    = lipgloss.NewStyle().Foreground(dim)
	skippedStyle    = lipgloss.NewStyle().Foreground(dim).Faint(true)
	failedStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	pageStyle       = lipgloss.NewStyle().Foreground(orange)

	doneStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// eventStyle picks the style of a feed line
func eventStyle(kind eventKind) lipgloss.Style {
	switch kind {
	case eventDownloaded:
		return downloadedStyle
	case eventPresent:
		return presentStyle
	case eventFailed:
		return failedStyle
	case eventPage:
		return pageStyle
	default:
		return skippedStyle
	}
}
