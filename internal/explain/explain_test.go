package explain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/llm"
	"github.com/abhisek/prltutor/internal/question"
)

type mapCatalog map[string]*question.Question

func (m mapCatalog) Lookup(id string) (*question.Question, bool) {
	q, ok := m[id]
	return q, ok
}

func catalog() mapCatalog {
	return mapCatalog{
		"q1": {
			ID: "q1", Prompt: "Who provides PPE?", Correct: "C",
			Options:     []question.Option{{Label: "C", Text: "The employer"}},
			Explanation: "The **employer** provides PPE.",
		},
		"q2": {
			ID: "q2", Prompt: "Which colour is a mandatory sign?", Correct: "B",
			Options: []question.Option{{Label: "B", Text: "Blue"}},
		},
	}
}

func TestStaticExplain(t *testing.T) {
	s := NewStatic(catalog())
	got, err := s.Explain(context.Background(), Request{FailedIDs: []string{"q1", "q2", "q1", "gone"}})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	for _, want := range []string{"**1. Who provides PPE?**", "**2. Which colour", "The **employer** provides PPE.", "**B** (Blue)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "**3.") {
		t.Error("duplicate or unknown ids should be skipped")
	}
}

func TestStaticExplain_TopicsOnly(t *testing.T) {
	s := NewStatic(mapCatalog{})
	got, _ := s.Explain(context.Background(), Request{FailedIDs: []string{"x"}, Topics: []string{"fire safety"}})
	if !strings.Contains(got, "*fire safety*") {
		t.Errorf("got %q", got)
	}
}

func TestLLMExplain(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"title":"Protective equipment","content":"The **employer** supplies PPE."}`),
	})
	e := NewLLM(mock, catalog(), DefaultConfig())

	got, err := e.Explain(context.Background(), Request{
		FailedIDs: []string{"q1"},
		Topics:    []string{"ppe"},
		Role:      "warehouse",
		Tier:      level.TierIntermediate,
	})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if got != "📚 **Protective equipment**\n\nThe **employer** supplies PPE." {
		t.Errorf("got %q", got)
	}

	msg := mock.Calls[0].Messages[0].Content
	for _, want := range []string{"Tier: INTERMEDIATE", "Learner role: warehouse", "1. Who provides PPE?"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
}

func TestLLMExplain_Errors(t *testing.T) {
	e := NewLLM(llm.NewMockProvider(), catalog(), DefaultConfig())
	_, err := e.Explain(context.Background(), Request{FailedIDs: []string{"q1"}})
	var unavail *llm.ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}

	e = NewLLM(llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"title":"x","content":""}`)}), catalog(), DefaultConfig())
	_, err = e.Explain(context.Background(), Request{FailedIDs: []string{"q1"}})
	var invalid *llm.ErrInvalidResponse
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestAcknowledgment(t *testing.T) {
	if !strings.Contains(Acknowledgment(level.TierAdvanced), "ADVANCED") {
		t.Error("acknowledgment should name the tier")
	}
}
