package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/prltutor/internal/ui/theme"
)

const (
	MinWidth  = 60
	MinHeight = 20

	// Below this width the header drops the screen title.
	CompactWidthThreshold = 100
)

// KeyHint is one "key action" pair in the footer.
type KeyHint struct {
	Key         string
	Description string
}

func IsCompactWidth(width int) bool {
	return width < CompactWidthThreshold
}

func IsTooSmall(width, height int) bool {
	return width < MinWidth || height < MinHeight
}

func RenderMinSizeMessage(width, height int) string {
	msg := fmt.Sprintf("Terminal too small!\n\nPlease resize to at\nleast %d x %d\n\nCurrent: %d x %d",
		MinWidth, MinHeight, width, height)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, theme.Body.Render(msg))
}

var bar = lipgloss.NewStyle().
	Background(theme.BgCard).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(theme.Border)

// RenderHeader draws the brand on the left, title centred and status on
// the right. Narrow terminals keep the status and drop the title.
func RenderHeader(title, status string, width int) string {
	inner := max(width-4, 0)

	brand := theme.TutorName.Render("  ⚠ prltutor")
	right := lipgloss.NewStyle().Foreground(theme.Accent).Render(status)
	center := ""
	if !IsCompactWidth(width) {
		center = theme.Body.Render(title)
	}

	side := max((inner-lipgloss.Width(center))/2, lipgloss.Width(brand)+1)
	rest := max(inner-side-lipgloss.Width(center), lipgloss.Width(right)+1)

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.PlaceHorizontal(side, lipgloss.Left, brand),
		center,
		lipgloss.PlaceHorizontal(rest, lipgloss.Right, right),
	)
	return bar.Width(width).Render(row)
}

func RenderFooter(hints []KeyHint, width int) string {
	key := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	desc := lipgloss.NewStyle().Foreground(theme.TextDim)

	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = key.Render(h.Key) + " " + desc.Render(h.Description)
	}
	return bar.Width(width).Render("  " + strings.Join(parts, "   "))
}

// RenderFrame stacks header, content and footer, giving the content all
// rows the other two leave.
func RenderFrame(header, content, footer string, width, height int) string {
	rows := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	body := lipgloss.NewStyle().Width(width).Height(rows).Render(content)
	return strings.Join([]string{header, body, footer}, "\n")
}

// TailLines keeps the last n lines of s.
func TailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
