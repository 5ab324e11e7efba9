package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/conner-go/internal/notify"
)

// Colors used throughout the TUI.
var (
	ColorTeal    = lipgloss.Color("#2DD4BF")
	ColorViolet  = lipgloss.Color("#A78BFA")
	ColorRed     = lipgloss.Color("#F87171")
	ColorGreen   = lipgloss.Color("#4ADE80")
	ColorGray    = lipgloss.Color("#6B7280")
	ColorDimGray = lipgloss.Color("#374151")
	ColorWhite   = lipgloss.Color("#F9FAFB")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTeal)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorViolet)

	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorTeal)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	NoticeStyles = map[notify.Kind]lipgloss.Style{
		notify.KindInfo:    lipgloss.NewStyle().Foreground(ColorWhite),
		notify.KindSuccess: lipgloss.NewStyle().Foreground(ColorGreen),
		notify.KindError:   lipgloss.NewStyle().Foreground(ColorRed).Bold(true),
	}

	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorViolet).
			Bold(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
