package console

import "github.com/charmbracelet/lipgloss"

// Glyphs convey meaning without relying on color alone.
const (
	GlyphCurrent  = "▸"
	GlyphDone     = "✓"
	GlyphPending  = "○"
	GlyphReminder = "⏰"
	GlyphSleep    = "⏳"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var pausedBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	previewStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	currentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	doneStyle = lipgloss.NewStyle().
			Foreground(colorGreen)
)

var reminderStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorYellow).
	Foreground(colorYellow).
	Bold(true).
	Padding(0, 2)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

var finishedBannerStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorGreen).
	Foreground(colorGreen).
	Bold(true).
	Padding(0, 2).
	Align(lipgloss.Center)
