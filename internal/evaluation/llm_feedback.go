package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/prltutor/internal/llm"
)

var feedbackSchema = &llm.Schema{
	Name:        "answer-feedback",
	Description: "Short personalised feedback on a multiple-choice answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"feedback": map[string]any{
				"type":        "string",
				"description": "Two or three sentences addressed to the learner",
			},
		},
		"required":             []any{"feedback"},
		"additionalProperties": false,
	},
}

const feedbackSystemPrompt = `You are an encouraging occupational risk prevention tutor. A learner just answered a multiple-choice question. The verdict is already decided; do not change it. Write two or three sentences of feedback that say whether the answer was right, explain the key idea, and, when a role is given, relate it to that role. Use **bold** for the key term.`

// LLMFeedback grades locally and asks a model for the feedback wording.
// The verdict never depends on the model; when the model fails the local
// feedback is used.
type LLMFeedback struct {
	provider llm.Provider
	local    *Local
	cfg      FeedbackConfig
}

// FeedbackConfig controls feedback generation.
type FeedbackConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultFeedbackConfig returns recommended defaults.
func DefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{MaxTokens: 300, Temperature: 0.5}
}

// NewLLMFeedback creates an evaluator that writes feedback with provider.
func NewLLMFeedback(provider llm.Provider, cfg FeedbackConfig) *LLMFeedback {
	return &LLMFeedback{provider: provider, local: NewLocal(), cfg: cfg}
}

// Evaluate grades the answer and generates feedback text.
func (e *LLMFeedback) Evaluate(ctx context.Context, req Request) (Result, error) {
	res, err := e.local.Evaluate(ctx, req)
	if err != nil {
		return Result{}, err
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeFeedback)
	resp, err := e.provider.Generate(ctx, llm.Request{
		System: feedbackSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildFeedbackMessage(req, res)},
		},
		Schema:      feedbackSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return res, nil
	}

	var out struct {
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil || strings.TrimSpace(out.Feedback) == "" {
		return res, nil
	}

	mark := "❌"
	if res.IsCorrect {
		mark = "✅"
	}
	res.Feedback = mark + " " + strings.TrimSpace(out.Feedback)
	return res, nil
}

func buildFeedbackMessage(req Request, res Result) string {
	q := req.Question
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n", q.Prompt)
	for _, o := range q.Options {
		fmt.Fprintf(&b, "%s. %s\n", o.Label, o.Text)
	}
	fmt.Fprintf(&b, "Learner answered: %s\n", req.Label)
	fmt.Fprintf(&b, "Correct answer: %s\n", res.CorrectLabel)
	fmt.Fprintf(&b, "Verdict: %s\n", map[bool]string{true: "correct", false: "incorrect"}[res.IsCorrect])
	if q.Explanation != "" {
		fmt.Fprintf(&b, "Reference explanation: %s\n", q.Explanation)
	}
	if req.Role != "" {
		fmt.Fprintf(&b, "Learner role: %s\n", req.Role)
	}
	return b.String()
}
