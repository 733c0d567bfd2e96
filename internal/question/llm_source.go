package question

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/llm"
)

// LLMConfig controls the LLM-backed question source.
type LLMConfig struct {
	MaxTokens   int
	Temperature float64

	// MaxPriorPrompts caps the prompts listed for deduplication.
	MaxPriorPrompts int

	// CacheSize bounds the generated questions kept for Lookup.
	CacheSize int

	// MaxRegenerations bounds the extra attempts made when the model
	// returns a question whose id is excluded.
	MaxRegenerations int
}

// DefaultLLMConfig returns recommended defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		MaxTokens:       700,
		Temperature:     0.7,
		MaxPriorPrompts: 10,
		CacheSize:       200,

		MaxRegenerations: 2,
	}
}

// LLMSource generates questions with an LLM provider.
type LLMSource struct {
	provider   llm.Provider
	alphabet   Alphabet
	cfg        LLMConfig
	validators []Validator

	mu     sync.Mutex
	served map[string]*Question
	order  []string
}

// NewLLMSource creates a question source backed by provider.
func NewLLMSource(provider llm.Provider, alphabet Alphabet, cfg LLMConfig) *LLMSource {
	return &LLMSource{
		provider:   provider,
		alphabet:   alphabet,
		cfg:        cfg,
		validators: DefaultValidators(),
		served:     make(map[string]*Question),
	}
}

type questionOutput struct {
	Prompt       string   `json:"prompt"`
	Topic        string   `json:"topic"`
	Options      []Option `json:"options"`
	CorrectLabel string   `json:"correct_label"`
	Explanation  string   `json:"explanation"`
}

// Next asks the model for a question at the requested tier. A generated
// question that is already excluded is regenerated up to MaxRegenerations
// times; only then is the repeat returned.
func (s *LLMSource) Next(ctx context.Context, req Request) (*Question, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeQuestion)

	q, err := s.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	for range s.cfg.MaxRegenerations {
		if !slices.Contains(req.ExcludeIDs, q.ID) {
			break
		}
		again, err := s.generate(ctx, req)
		if err != nil {
			// The repeat in hand is still a valid question.
			break
		}
		q = again
	}
	return q, nil
}

func (s *LLMSource) generate(ctx context.Context, req Request) (*Question, error) {

	msg := buildQuestionMessage(req, s.priorPrompts(req.ExcludeIDs), s.alphabet, s.cfg.MaxPriorPrompts)
	resp, err := s.provider.Generate(ctx, llm.Request{
		System: questionSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: msg},
		},
		Schema:      questionSchema(s.alphabet),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("question generation: %w", err)
	}

	var out questionOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse question response: %w: %v", ErrMalformed, err)
	}

	q := &Question{
		ID:          contentID(req.Tier, out.Prompt),
		Tier:        req.Tier,
		Topic:       strings.TrimSpace(out.Topic),
		Prompt:      strings.TrimSpace(out.Prompt),
		Options:     normalizeOptions(out.Options),
		Correct:     strings.ToUpper(strings.TrimSpace(out.CorrectLabel)),
		Explanation: strings.TrimSpace(out.Explanation),
	}
	if err := runValidators(s.validators, q, s.alphabet); err != nil {
		return nil, err
	}

	s.remember(q)
	return q.Clone(), nil
}

// Lookup returns a question this source generated recently.
func (s *LLMSource) Lookup(id string) (*Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.served[id]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

func (s *LLMSource) remember(q *Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.served[q.ID]; !ok {
		s.order = append(s.order, q.ID)
	}
	s.served[q.ID] = q.Clone()

	for s.cfg.CacheSize > 0 && len(s.order) > s.cfg.CacheSize {
		delete(s.served, s.order[0])
		s.order = s.order[1:]
	}
}

// priorPrompts maps excluded ids back to the prompts this source produced.
// Ids from other sources or evicted from the cache are skipped.
func (s *LLMSource) priorPrompts(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prompts []string
	for _, id := range ids {
		if q, ok := s.served[id]; ok {
			prompts = append(prompts, q.Prompt)
		}
	}
	return prompts
}

func normalizeOptions(opts []Option) []Option {
	out := make([]Option, len(opts))
	for i, o := range opts {
		out[i] = Option{
			Label: strings.ToUpper(strings.TrimSpace(o.Label)),
			Text:  strings.TrimSpace(o.Text),
		}
	}
	return out
}

// contentID derives a stable id from the tier and prompt text.
func contentID(tier level.Tier, prompt string) string {
	sum := sha256.Sum256([]byte(tier.String() + "\x00" + strings.ToLower(strings.TrimSpace(prompt))))
	return "gen-" + hex.EncodeToString(sum[:6])
}
