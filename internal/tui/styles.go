package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color Palette
var (
	ColorPrimary = lipgloss.Color("#A3AAAE") // Silber
	ColorAccent  = lipgloss.Color("#0A84FF")
	ColorSuccess = lipgloss.Color("#30D158")
	ColorWarning = lipgloss.Color("#FFD60A")
	ColorError   = lipgloss.Color("#FF453A")
	ColorMuted   = lipgloss.Color("#8E8E93")
	ColorDimmed  = lipgloss.Color("#3A3A3C")

	ColorText      = lipgloss.Color("#F2F2F7")
	ColorTextMuted = lipgloss.Color("#AEAEB2")
)

// Header styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	TitlePanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimmed).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)
)

// Message styles
var (
	UserMessageStyle = lipgloss.NewStyle().
				Foreground(ColorText).
				PaddingLeft(2)

	AssistantMessageStyle = lipgloss.NewStyle().
				Foreground(ColorText).
				PaddingLeft(2)

	RoleLabelUserStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	RoleLabelAssistantStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)
)

// Panel styles
var (
	ChatPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimmed)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimmed)

	FocusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorAccent)

	ModelListStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(0, 1)

	ModelItemStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	SelectedModelItemStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)
)

// Status and help styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	StatusOnStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StatusOffStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	ThinkingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)
)

// RenderKeyHint renders a keyboard shortcut hint
func RenderKeyHint(key, description string) string {
	return HelpKeyStyle.Render(key) + " " + HelpDescStyle.Render(description)
}

// RenderToggle renders an on/off indicator
func RenderToggle(label string, on bool) string {
	if on {
		return StatusOnStyle.Render("● " + label)
	}
	return StatusOffStyle.Render("○ " + label)
}
