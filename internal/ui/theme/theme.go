package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Palette: safety signage colours on a dark background.
var (
	Primary   = lipgloss.Color("#FACC15") // warning yellow
	Secondary = lipgloss.Color("#38BDF8") // information blue
	Accent    = lipgloss.Color("#F97316") // hazard orange
	Success   = lipgloss.Color("#22C55E") // safe-condition green
	Danger    = lipgloss.Color("#EF4444") // prohibition red
	Text      = lipgloss.Color("#F8FAFC")
	TextDim   = lipgloss.Color("#94A3B8")
	BgCard    = lipgloss.Color("#1E293B")
	Border    = lipgloss.Color("#334155")
)

var (
	Title    = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	Body     = lipgloss.NewStyle().Foreground(Text)
	Hint     = lipgloss.NewStyle().Foreground(TextDim).Italic(true)
	Strong   = lipgloss.NewStyle().Bold(true)
	Emphasis = lipgloss.NewStyle().Italic(true)
	ErrorMsg = lipgloss.NewStyle().Foreground(Danger).Bold(true)

	TutorName     = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	LearnerName   = lipgloss.NewStyle().Foreground(Secondary).Bold(true)
	LearnerBubble = lipgloss.NewStyle().Foreground(Text).Background(BgCard).Padding(0, 1)

	Selected   = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	Unselected = lipgloss.NewStyle().Foreground(Text)

	ProgressFilled = lipgloss.NewStyle().Background(Secondary)
	ProgressEmpty  = lipgloss.NewStyle().Background(Border)
)

// TutorBubble is a rounded tutor message box with the given border colour.
func TutorBubble(border color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(Text).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// tierColors follow the signage convention: green is routine, yellow
// needs care, orange is hazardous.
var tierColors = map[string]color.Color{
	"BASIC":        Success,
	"INTERMEDIATE": Primary,
	"ADVANCED":     Accent,
}

// TierBadge renders a tier name. The current tier is shown inverted.
func TierBadge(tier string, current bool) string {
	c, ok := tierColors[tier]
	if !ok {
		c = Text
	}
	label := " " + tier + " "
	if !current {
		return lipgloss.NewStyle().Foreground(c).Faint(true).Render(label)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(BgCard).Background(c).Render(label)
}
