package progress

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/router"
	"github.com/abhisek/prltutor/internal/screen"
	sess "github.com/abhisek/prltutor/internal/session"
	"github.com/abhisek/prltutor/internal/ui/components"
	"github.com/abhisek/prltutor/internal/ui/theme"
)

// ProgressScreen shows the learner's accuracy and how close the current
// tier is to a promotion or demotion.
type ProgressScreen struct {
	progress sess.Progress
	policy   level.Policy
}

var _ screen.Screen = (*ProgressScreen)(nil)

// New creates a progress screen for a snapshot of the session.
func New(p sess.Progress, policy level.Policy) *ProgressScreen {
	return &ProgressScreen{progress: p, policy: policy}
}

func (s *ProgressScreen) Init() tea.Cmd { return nil }

func (s *ProgressScreen) Title() string { return "Progress" }

func (s *ProgressScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "esc", "q", "ctrl+p":
			return s, router.Pop()
		}
	}
	return s, nil
}

func (s *ProgressScreen) View(width, height int) string {
	p := s.progress
	barWidth := min(width-8, 60)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Title.Width(width).Render("Your progress"))
	b.WriteString("\n\n")

	b.WriteString(ladder(p.Tier))
	b.WriteString("\n\n")

	overall := level.Stats{Answered: p.Answered, Correct: p.Correct}
	b.WriteString(theme.Body.Render(fmt.Sprintf("    Overall: %d/%d correct", p.Correct, p.Answered)))
	b.WriteString("\n    ")
	b.WriteString(components.NewProgressBar("", overall.Rate(), true, barWidth).View())
	b.WriteString("\n\n")

	b.WriteString(theme.Body.Render(fmt.Sprintf("    At %s: %d/%d correct", p.Tier, p.TierStats.Correct, p.TierStats.Answered)))
	b.WriteString("\n    ")
	bar := components.NewProgressBar("", p.TierStats.Rate(), true, barWidth)
	bar.Marks = []float64{s.policy.DemoteBelow, s.policy.PromoteAt}
	b.WriteString(bar.View())
	b.WriteString("\n\n")

	b.WriteString(theme.Hint.Render("    " + s.outlook()))
	b.WriteString("\n")

	return lipgloss.NewStyle().Width(width).Height(height).Render(b.String())
}

// outlook explains what the next answers can change.
func (s *ProgressScreen) outlook() string {
	st := s.progress.TierStats
	if need := s.policy.MinSamples - st.Answered; need > 0 {
		return fmt.Sprintf("%d more answer(s) at this level before it can change.", need)
	}
	rate := st.Rate()
	switch {
	case rate >= s.policy.PromoteAt && s.progress.Tier < level.Highest:
		return "On track for promotion."
	case rate < s.policy.DemoteBelow && s.progress.Tier > level.Lowest:
		return "Below the demotion threshold."
	default:
		return fmt.Sprintf("Promotion at %d%%, demotion under %d%%.",
			int(s.policy.PromoteAt*100), int(s.policy.DemoteBelow*100))
	}
}

func ladder(current level.Tier) string {
	parts := make([]string, 0, len(level.AllTiers()))
	for _, t := range level.AllTiers() {
		parts = append(parts, theme.TierBadge(t.String(), t == current))
	}
	return "    " + strings.Join(parts, theme.Hint.Render(" → "))
}
