package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/ui/theme"
)

// MultiChoice is a multiple-choice selector. It never knows the correct
// answer; it only reports the label the learner picked.
type MultiChoice struct {
	Prompt   string
	Options  []question.Option
	Selected int
	Chosen   string
}

// NewMultiChoice creates a selector for the given options.
func NewMultiChoice(prompt string, options []question.Option) MultiChoice {
	return MultiChoice{
		Prompt:  prompt,
		Options: append([]question.Option(nil), options...),
	}
}

// Init returns nil.
func (m MultiChoice) Init() tea.Cmd {
	return nil
}

// Update handles arrow navigation. Enter records the highlighted label in
// Chosen.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.Options) == 0 {
		return m, nil
	}

	switch kmsg.String() {
	case "up":
		if m.Selected > 0 {
			m.Selected--
		}
	case "down":
		if m.Selected < len(m.Options)-1 {
			m.Selected++
		}
	case "enter":
		m.Chosen = m.Options[m.Selected].Label
	}

	return m, nil
}

// SelectedLabel returns the highlighted label.
func (m MultiChoice) SelectedLabel() string {
	if m.Selected < 0 || m.Selected >= len(m.Options) {
		return ""
	}
	return m.Options[m.Selected].Label
}

// View renders the prompt and the options.
func (m MultiChoice) View(width int) string {
	var b strings.Builder
	if m.Prompt != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Width(width).Render(m.Prompt))
		b.WriteString("\n\n")
	}

	for i, opt := range m.Options {
		prefix := "  "
		style := theme.Unselected
		if i == m.Selected {
			prefix = "▸ "
			style = theme.Selected
		}
		line := fmt.Sprintf("%s%s)  %s", prefix, opt.Label, opt.Text)
		b.WriteString(style.Width(width).Render(line))
		b.WriteString("\n")
	}

	return b.String()
}
