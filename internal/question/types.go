// Package question defines the multiple-choice question model and the
// sources that serve questions to a session.
package question

import (
	"context"
	"errors"

	"github.com/abhisek/prltutor/internal/level"
)

// Option is one labelled answer choice.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Question is a multiple-choice question with exactly one correct option.
type Question struct {
	// ID uniquely identifies the question within its source.
	ID string `json:"id" yaml:"id"`

	// Tier is the difficulty tier the question was served for.
	Tier level.Tier `json:"tier" yaml:"tier"`

	// Topic is a short subject tag, e.g. "personal protective equipment".
	Topic string `json:"topic,omitempty" yaml:"topic"`

	// Prompt is the question text shown to the learner.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Options are the answer choices in display order.
	Options []Option `json:"options" yaml:"options"`

	// Correct is the label of the correct option.
	Correct string `json:"correct" yaml:"correct"`

	// Explanation is shown after answering and used for reinforcement.
	Explanation string `json:"explanation,omitempty" yaml:"explanation"`
}

// Option returns the text of the option with the given label.
func (q *Question) Option(label string) (string, bool) {
	for _, o := range q.Options {
		if o.Label == label {
			return o.Text, true
		}
	}
	return "", false
}

// Clone returns a deep copy.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	c := *q
	c.Options = append([]Option(nil), q.Options...)
	return &c
}

// Request carries the context a source needs to pick the next question.
type Request struct {
	Tier level.Tier

	// ExcludeIDs lists questions already presented at this tier.
	ExcludeIDs []string

	// Role is the learner's self-described job role, when known.
	Role string
}

// Provider serves the next question for a session.
type Provider interface {
	Next(ctx context.Context, req Request) (*Question, error)
}

// Catalog resolves previously served questions by id.
type Catalog interface {
	Lookup(id string) (*Question, bool)
}

// ErrNoQuestions is returned when a source has nothing to serve for a tier.
var ErrNoQuestions = errors.New("no questions available")
