package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor  = lipgloss.Color("#7C3AED")
	accentColor   = lipgloss.Color("#F59E0B")
	gainColor     = lipgloss.Color("#10B981")
	lossColor     = lipgloss.Color("#EF4444")
	borderColor   = lipgloss.Color("#374151")
	focusColor    = lipgloss.Color("#7C3AED")
	textColor     = lipgloss.Color("#F9FAFB")
	textSecondary = lipgloss.Color("#9CA3AF")
	textMuted     = lipgloss.Color("#6B7280")
	statusBg      = lipgloss.Color("#1F2937")
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	focusedPanelStyle = panelStyle.BorderForeground(focusColor)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textSecondary)

	rowStyle = lipgloss.NewStyle().
			Foreground(textColor)

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(textColor).
				Background(borderColor)

	gainStyle = lipgloss.NewStyle().Foreground(gainColor)
	lossStyle = lipgloss.NewStyle().Foreground(lossColor)

	mutedStyle = lipgloss.NewStyle().Foreground(textMuted)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)

	statusBarStyle = lipgloss.NewStyle().
			Background(statusBg).
			Foreground(textSecondary).
			Padding(0, 1)

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)
)

// signed renders v with two decimals, green when positive and red when
// negative.
func signed(v float64, suffix string) string {
	s := fmt.Sprintf("%+.2f%s", v, suffix)
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return rowStyle.Render(s)
}
