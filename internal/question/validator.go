package question

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a question that is structurally unusable.
var ErrMalformed = errors.New("malformed question")

// Validator checks a question served by a source.
type Validator interface {
	// Name returns a short identifier, e.g. "structural".
	Name() string

	// Validate returns nil when the question passes.
	Validate(q *Question, alphabet Alphabet) *ValidationError
}

// ValidationError describes why a question failed validation.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// Is makes every ValidationError match ErrMalformed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrMalformed
}

// DefaultValidators returns the standard validator chain.
func DefaultValidators() []Validator {
	return []Validator{&StructuralValidator{}, &OptionsValidator{}}
}

// Validate runs the default chain and returns the first failure.
func Validate(q *Question, alphabet Alphabet) error {
	return runValidators(DefaultValidators(), q, alphabet)
}

func runValidators(vs []Validator, q *Question, alphabet Alphabet) error {
	if q == nil {
		return &ValidationError{Validator: "structural", Message: "question is nil"}
	}
	for _, v := range vs {
		if verr := v.Validate(q, alphabet); verr != nil {
			return verr
		}
	}
	return nil
}

// StructuralValidator checks required fields and length limits.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *Question, _ Alphabet) *ValidationError {
	switch {
	case q.ID == "":
		return &ValidationError{Validator: v.Name(), Message: "id is empty"}
	case q.Prompt == "":
		return &ValidationError{Validator: v.Name(), Message: "prompt is empty"}
	case len(q.Prompt) > 1000:
		return &ValidationError{Validator: v.Name(), Message: "prompt exceeds 1000 characters"}
	case len(q.Explanation) > 2000:
		return &ValidationError{Validator: v.Name(), Message: "explanation exceeds 2000 characters"}
	case !q.Tier.Valid():
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("invalid tier %d", int(q.Tier))}
	}
	return nil
}

// OptionsValidator checks that options use the alphabet exactly once each and
// that the correct label names one of them.
type OptionsValidator struct{}

func (v *OptionsValidator) Name() string { return "options" }

func (v *OptionsValidator) Validate(q *Question, alphabet Alphabet) *ValidationError {
	if len(q.Options) != len(alphabet) {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("expected %d options, got %d", len(alphabet), len(q.Options)),
		}
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if !alphabet.Contains(o.Label) {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("unknown label %q", o.Label)}
		}
		if seen[o.Label] {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("duplicate label %q", o.Label)}
		}
		if o.Text == "" {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("option %q has no text", o.Label)}
		}
		seen[o.Label] = true
	}
	if !seen[q.Correct] {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("correct label %q is not an option", q.Correct)}
	}
	return nil
}
