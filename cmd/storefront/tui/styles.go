package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/marshallshelly/storefront/pkg/migration"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#F3F4F6")
	colorBorder  = lipgloss.Color("#4B5563")
	colorButton  = lipgloss.Color("#1F2937")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	titleStyle   = fg(colorPrimary).Bold(true).MarginBottom(1)
	successStyle = fg(colorSuccess).Bold(true)
	errorStyle   = fg(colorDanger).Bold(true)
	infoStyle    = fg(colorInfo)
	mutedStyle   = fg(colorMuted)
	helpStyle    = fg(colorMuted).MarginTop(1)
	helpKeyStyle = fg(colorPrimary)

	selectedItemStyle   = fg(colorPrimary).Bold(true).PaddingLeft(2)
	unselectedItemStyle = fg(colorText).PaddingLeft(4)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	activeButtonStyle   = fg(colorText).Background(colorPrimary).Padding(0, 3).Bold(true)
	inactiveButtonStyle = fg(colorMuted).Background(colorButton).Padding(0, 3)
)

// statusBadge is the icon and color used for a migration status.
type statusBadge struct {
	icon  string
	color lipgloss.Color
}

var statusBadges = map[migration.MigrationStatus]statusBadge{
	migration.StatusApplied: {"✓", colorSuccess},
	migration.StatusPending: {"○", colorWarning},
	migration.StatusFailed:  {"✗", colorDanger},
}

// FormatStatus returns a styled status indicator
func FormatStatus(status migration.MigrationStatus) string {
	badge, ok := statusBadges[status]
	if !ok {
		return mutedStyle.Render(string(status))
	}
	style := fg(badge.color)
	return style.Render(badge.icon) + " " + style.Bold(true).Render(string(status))
}

// FormatKey formats a help key
func FormatKey(key, description string) string {
	return helpKeyStyle.Render(key) + " " + mutedStyle.Render(description)
}
