package question

import (
	"errors"
	"testing"

	"github.com/abhisek/prltutor/internal/level"
)

func validQuestion() *Question {
	return &Question{
		ID:     "q1",
		Tier:   level.TierBasic,
		Prompt: "Which sign marks an emergency exit?",
		Options: []Option{
			{Label: "A", Text: "Red circle"},
			{Label: "B", Text: "Green rectangle"},
			{Label: "C", Text: "Blue circle"},
			{Label: "D", Text: "Yellow triangle"},
		},
		Correct:     "B",
		Explanation: "Green rectangles mark safe conditions.",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Question)
		wantOK bool
	}{
		{"valid", func(q *Question) {}, true},
		{"empty id", func(q *Question) { q.ID = "" }, false},
		{"empty prompt", func(q *Question) { q.Prompt = "" }, false},
		{"invalid tier", func(q *Question) { q.Tier = level.Tier(9) }, false},
		{"too few options", func(q *Question) { q.Options = q.Options[:3] }, false},
		{"unknown label", func(q *Question) { q.Options[3].Label = "E" }, false},
		{"duplicate label", func(q *Question) { q.Options[3].Label = "A" }, false},
		{"empty option text", func(q *Question) { q.Options[0].Text = "" }, false},
		{"correct not an option", func(q *Question) { q.Correct = "E" }, false},
		{"correct empty", func(q *Question) { q.Correct = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(q)
			err := Validate(q, DefaultAlphabet)
			if tt.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("error %v does not match ErrMalformed", err)
				}
			}
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil, DefaultAlphabet); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestQuestionOption(t *testing.T) {
	q := validQuestion()
	if text, ok := q.Option("B"); !ok || text != "Green rectangle" {
		t.Errorf("Option(B) = %q, %v", text, ok)
	}
	if _, ok := q.Option("Z"); ok {
		t.Error("Option(Z) should not exist")
	}

	c := q.Clone()
	c.Options[0].Text = "changed"
	if q.Options[0].Text == "changed" {
		t.Error("Clone shares options")
	}
}
