package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles for the chat view. The accent color is
// injected from configuration.
type Styles struct {
	Header        lipgloss.Style
	UserName      lipgloss.Style
	UserText      lipgloss.Style
	AssistantName lipgloss.Style
	Accent        lipgloss.Style
	Muted         lipgloss.Style
	Notice        lipgloss.Style
	Error         lipgloss.Style
	Done          lipgloss.Style
	Card          lipgloss.Style
	WarningCard   lipgloss.Style
	CardTitle     lipgloss.Style
}

// NewStyles builds the style set around one accent color.
func NewStyles(accent string) Styles {
	accentColor := lipgloss.Color(accent)
	muted := lipgloss.Color("241")

	return Styles{
		Header:        lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1),
		UserName:      lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginTop(1),
		UserText:      lipgloss.NewStyle().PaddingLeft(2),
		AssistantName: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35")).MarginTop(1),
		Accent:        lipgloss.NewStyle().Foreground(accentColor),
		Muted:         lipgloss.NewStyle().Foreground(muted),
		Notice:        lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Done:          lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			MarginLeft(2),
		WarningCard: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1).
			MarginLeft(2),
		CardTitle: lipgloss.NewStyle().Bold(true),
	}
}
