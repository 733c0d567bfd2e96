package question

import (
	"strings"

	"github.com/abhisek/prltutor/internal/llm"
)

// questionSchema builds the structured-output schema for a generated
// question. Labels are constrained to the alphabet.
func questionSchema(alphabet Alphabet) *llm.Schema {
	labels := make([]any, len(alphabet))
	for i, l := range alphabet {
		labels[i] = l
	}

	return &llm.Schema{
		Name:        "mc-question-" + strings.ToLower(strings.Join(alphabet, "")),
		Description: "A single multiple-choice question on occupational risk prevention",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The question shown to the learner",
				},
				"topic": map[string]any{
					"type":        "string",
					"description": "Short subject tag, e.g. \"fire safety\"",
				},
				"options": map[string]any{
					"type":     "array",
					"minItems": len(alphabet),
					"maxItems": len(alphabet),
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"label": map[string]any{"type": "string", "enum": labels},
							"text":  map[string]any{"type": "string"},
						},
						"required":             []any{"label", "text"},
						"additionalProperties": false,
					},
					"description": "One option per label, in label order",
				},
				"correct_label": map[string]any{
					"type":        "string",
					"enum":        labels,
					"description": "Label of the single correct option",
				},
				"explanation": map[string]any{
					"type":        "string",
					"description": "Why the correct option is right, two or three sentences",
				},
			},
			"required":             []any{"prompt", "topic", "options", "correct_label", "explanation"},
			"additionalProperties": false,
		},
	}
}
