package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/prltutor/internal/llm"
	"github.com/abhisek/prltutor/internal/question"
)

var explanationSchema = &llm.Schema{
	Name:        "reinforcement",
	Description: "A short remedial explanation covering the questions a learner missed",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "A short heading, under 60 characters",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The explanation, one short paragraph per concept, using **bold** for key terms",
			},
		},
		"required":             []any{"title", "content"},
		"additionalProperties": false,
	},
}

const explanationSystemPrompt = `You are a patient occupational risk prevention tutor. A learner missed some questions in their last block. Explain the underlying concepts clearly and briefly, one short paragraph per concept, without repeating the questions word for word. When the learner's role is given, use examples from that role. Use **bold** for key terms and *italic* for emphasis.`

// Config controls explanation generation.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns recommended defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 900, Temperature: 0.4}
}

// LLM writes explanations with a model.
type LLM struct {
	provider llm.Provider
	catalog  question.Catalog
	cfg      Config
}

// NewLLM creates a model-backed explainer. catalog resolves failed ids to
// their questions; unresolved ids are described by topic only.
func NewLLM(provider llm.Provider, catalog question.Catalog, cfg Config) *LLM {
	return &LLM{provider: provider, catalog: catalog, cfg: cfg}
}

// Explain asks the model for a remedial explanation.
func (e *LLM) Explain(ctx context.Context, req Request) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeExplanation)

	resp, err := e.provider.Generate(ctx, llm.Request{
		System: explanationSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: e.buildMessage(req)},
		},
		Schema:      explanationSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("explanation generation: %w", err)
	}

	var out struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", &llm.ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("parse explanation: %w", err)}
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", &llm.ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("explanation is empty")}
	}

	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = "Let's review"
	}
	return fmt.Sprintf("📚 **%s**\n\n%s", title, strings.TrimSpace(out.Content)), nil
}

func (e *LLM) buildMessage(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tier: %s\n", req.Tier)
	if req.Role != "" {
		fmt.Fprintf(&b, "Learner role: %s\n", req.Role)
	}
	if len(req.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(req.Topics, ", "))
	}

	b.WriteString("\nMissed questions:\n")
	n := 0
	for _, id := range req.FailedIDs {
		q, ok := e.catalog.Lookup(id)
		if !ok {
			continue
		}
		n++
		text, _ := q.Option(q.Correct)
		fmt.Fprintf(&b, "%d. %s\n   Correct answer: %s\n", n, q.Prompt, text)
	}
	if n == 0 {
		b.WriteString("Not available; explain the topics above.\n")
	}
	return b.String()
}
