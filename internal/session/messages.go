package session

import (
	"fmt"
	"strings"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
)

// MessageKind classifies tutor output so clients can style it.
type MessageKind string

const (
	KindGreeting       MessageKind = "greeting"
	KindRoleAck        MessageKind = "role_ack"
	KindFeedback       MessageKind = "feedback"
	KindTierChange     MessageKind = "tier_change"
	KindExplanation    MessageKind = "explanation"
	KindAcknowledgment MessageKind = "acknowledgment"
	KindQuestion       MessageKind = "question"
	KindInfo           MessageKind = "info"
	KindInput          MessageKind = "input" // learner text, history only
)

// Message is one piece of tutor output. Text may contain **bold** and
// *italic* markers.
type Message struct {
	Kind MessageKind
	Text string
}

// QuestionView is a question as shown to the learner, without its answer.
type QuestionView struct {
	ID      string
	Tier    level.Tier
	Topic   string
	Prompt  string
	Options []question.Option
}

// Progress summarises the session for the progress indicator.
type Progress struct {
	Answered int
	Correct  int
	Tier     level.Tier

	// TierStats counts answers since the current tier was entered.
	TierStats level.Stats
}

// Text renders the progress line.
func (p Progress) Text() string {
	return fmt.Sprintf("📊 Progress: %d/%d correct | Level: %s", p.Correct, p.Answered, p.Tier)
}

// Reply is the outcome of one engine call.
type Reply struct {
	Phase    Phase
	Messages []Message

	// Question is set while an answer is awaited.
	Question *QuestionView

	Progress Progress

	// TierChange is set when this call promoted or demoted the learner.
	TierChange *level.Change
}

func (r *Reply) add(kind MessageKind, text string) {
	r.Messages = append(r.Messages, Message{Kind: kind, Text: text})
}

// Text joins all messages, separated by blank lines.
func (r *Reply) Text() string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}

func viewOf(q *question.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		ID:      q.ID,
		Tier:    q.Tier,
		Topic:   q.Topic,
		Prompt:  q.Prompt,
		Options: append([]question.Option(nil), q.Options...),
	}
}

func greetingText() string {
	return "👋 **Welcome to the workplace safety tutor!**\n" +
		"I'll ask you multiple-choice questions on occupational risk prevention " +
		"and adapt the difficulty to your answers.\n\n" +
		"To get started, what is your *job role*?"
}

func roleAckText(role string, tier level.Tier) string {
	return fmt.Sprintf("Thanks! I'll keep the questions relevant for a **%s**. We start at **%s** level.", role, tier)
}

func welcomeBackText(s State) string {
	if s.Role == "" {
		return fmt.Sprintf("👋 Welcome back! You are at **%s** level.", s.Tier)
	}
	return fmt.Sprintf("👋 Welcome back, %s! You are at **%s** level.", s.Role, s.Tier)
}

func tierChangeText(ch *level.Change) string {
	if ch.Direction == level.DirectionPromote {
		return fmt.Sprintf("⬆️ **Level up!** You move from %s to **%s**.", ch.From, ch.To)
	}
	return fmt.Sprintf("⬇️ **Let's consolidate.** You move from %s back to **%s**.", ch.From, ch.To)
}

func questionText(q *question.Question, alphabet question.Alphabet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Question (%s)**\n%s\n", q.Tier, q.Prompt)
	for _, o := range q.Options {
		fmt.Fprintf(&b, "\n%s) %s", o.Label, o.Text)
	}
	fmt.Fprintf(&b, "\n\nReply with %s.", alphabet)
	return b.String()
}

func invalidAnswerText(alphabet question.Alphabet) string {
	return fmt.Sprintf("Please answer with %s.", alphabet)
}
