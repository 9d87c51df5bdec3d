package tui

import (
	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1)

	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	StatusBadge = lipgloss.NewStyle().
			Padding(0, 1).
			MarginRight(1)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)
)

// StateColor returns the badge color for a lifecycle state.
func StateColor(s component.State) lipgloss.Color {
	switch s {
	case component.StateConstructed:
		return MutedColor
	case component.StateLocallyInitialized, component.StateDependenciesReady:
		return BlueColor
	case component.StateActive:
		return SecondaryColor
	case component.StateDeactivated:
		return PrimaryColor
	case component.StateFailed:
		return ErrorColor
	default:
		return MutedColor
	}
}

// StateBadge renders a colored, fixed-width state label.
func StateBadge(s component.State) string {
	return StatusBadge.
		Foreground(SurfaceColor).
		Background(StateColor(s)).
		Width(23).
		Render(s.String())
}
