package chat

import (
	"strings"

	"charm.land/lipgloss/v2"

	sess "github.com/abhisek/prltutor/internal/session"
	"github.com/abhisek/prltutor/internal/ui/components"
	"github.com/abhisek/prltutor/internal/ui/layout"
	"github.com/abhisek/prltutor/internal/ui/theme"
)

func (s *ChatScreen) View(width, height int) string {
	bottom := s.renderBottom(width)
	transcriptHeight := height - lipgloss.Height(bottom)
	if transcriptHeight < 0 {
		transcriptHeight = 0
	}

	transcript := lipgloss.NewStyle().
		Height(transcriptHeight).
		Render(s.renderTranscript(width, transcriptHeight))

	return transcript + "\n" + bottom
}

// renderTranscript renders the newest lines that fit in height.
func (s *ChatScreen) renderTranscript(width, height int) string {
	bubbleWidth := width - 6
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var b strings.Builder
	for i, l := range s.lines {
		if i == s.activeAt && s.choice != nil {
			continue
		}
		if l.learner {
			b.WriteString(theme.LearnerName.Render("  You"))
			b.WriteString("\n")
			b.WriteString(indent(theme.LearnerBubble.Width(bubbleWidth).Render(l.text)))
		} else {
			b.WriteString(theme.TutorName.Render("  Tutor"))
			b.WriteString("\n")
			b.WriteString(indent(tutorStyle(l.kind).Width(bubbleWidth).Render(components.RenderMarkdown(l.text))))
		}
		b.WriteString("\n")
	}

	return layout.TailLines(strings.TrimRight(b.String(), "\n"), height)
}

func (s *ChatScreen) renderBottom(width int) string {
	var b strings.Builder

	if s.choice != nil {
		b.WriteString(indent(s.choice.View(width - 4)))
		b.WriteString("\n")
	}

	if s.errMsg != "" {
		b.WriteString(theme.ErrorMsg.Render("  " + s.errMsg))
		b.WriteString("\n")
	}

	switch {
	case s.ended:
		b.WriteString(theme.Hint.Render("  Press Ctrl+C to exit."))
	case s.pending:
		b.WriteString(theme.Hint.Render("  " + spinnerFrames[s.frame] + " Thinking..."))
	default:
		b.WriteString("  ")
		b.WriteString(s.input.View())
	}

	return b.String()
}

func tutorStyle(kind sess.MessageKind) lipgloss.Style {
	switch kind {
	case sess.KindTierChange:
		return theme.TutorBubble(theme.Accent)
	case sess.KindExplanation:
		return theme.TutorBubble(theme.Secondary)
	case sess.KindFeedback:
		return theme.TutorBubble(theme.Primary)
	default:
		return theme.TutorBubble(theme.Border)
	}
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
