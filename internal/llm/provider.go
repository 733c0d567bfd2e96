package llm

import (
	"context"
	"encoding/json"
)

// Provider generates content for the tutor: fresh questions, answer
// feedback and topic explanations.
type Provider interface {
	// Generate sends req to the model. When req.Schema is set the returned
	// Content has already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID names the model the provider talks to.
	ModelID() string
}

// Request is a single prompt to the model.
type Request struct {
	System   string
	Messages []Message

	// Schema, when set, asks for structured JSON output. Without it the
	// Content of the response is the model's raw text.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default in place.
	Temperature float64
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema for structured output. Name is also the
// cache key for the compiled validator, so two schemas must not share one.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Normalized stop reasons reported in Response.StopReason.
const (
	stopEnd       = "end"
	stopMaxTokens = "max_tokens"
)

// Response is the model output plus accounting.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// newUsage fills TotalTokens when the provider does not report it.
func newUsage(in, out, total int) Usage {
	if total == 0 {
		total = in + out
	}
	return Usage{InputTokens: in, OutputTokens: out, TotalTokens: total}
}

// resolveModel maps a friendly model name to a provider model ID. Unknown
// names pass through so full model IDs can be configured directly.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
