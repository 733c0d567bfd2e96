// Package evaluation grades answers to multiple-choice questions.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/prltutor/internal/question"
)

// ErrUnknownQuestion is returned when the answered question cannot be
// resolved.
var ErrUnknownQuestion = errors.New("unknown question")

// Request identifies an answer to grade.
type Request struct {
	QuestionID string
	Label      string

	// Question is the active question. Evaluators that keep their own
	// catalog may ignore it.
	Question *question.Question

	// Role is the learner's role, used to personalise feedback.
	Role string
}

// Result is the verdict on one answer.
type Result struct {
	IsCorrect    bool
	CorrectLabel string
	Feedback     string
}

// Evaluator grades a submitted option label.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// Local grades against the question's correct label.
type Local struct{}

// NewLocal returns a local evaluator.
func NewLocal() *Local { return &Local{} }

// Evaluate compares the label with the correct one.
func (l *Local) Evaluate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	q := req.Question
	if q == nil || q.ID != req.QuestionID {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, req.QuestionID)
	}

	correct := req.Label == q.Correct
	return Result{
		IsCorrect:    correct,
		CorrectLabel: q.Correct,
		Feedback:     localFeedback(q, correct),
	}, nil
}

func localFeedback(q *question.Question, correct bool) string {
	var b strings.Builder
	if correct {
		b.WriteString("✅ **Correct!**")
	} else {
		text, _ := q.Option(q.Correct)
		fmt.Fprintf(&b, "❌ **Not quite.** The correct answer was **%s** (%s).", q.Correct, text)
	}
	if q.Explanation != "" {
		b.WriteString("\n")
		b.WriteString(q.Explanation)
	}
	return b.String()
}
