// Package explain produces the remedial explanation shown after a block of
// answers that contained mistakes.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
)

// Request describes the block being reinforced.
type Request struct {
	FailedIDs []string
	Topics    []string
	Role      string
	Tier      level.Tier
}

// Explainer writes an explanation for the failed questions of a block.
type Explainer interface {
	Explain(ctx context.Context, req Request) (string, error)
}

// Acknowledgment is shown instead of an explanation when a block had no
// mistakes.
func Acknowledgment(tier level.Tier) string {
	return fmt.Sprintf("🎉 **Great work!** No mistakes in the last block. Keep going at %s level.", tier)
}

// Static joins the stored explanations of the failed questions.
type Static struct {
	catalog question.Catalog
}

// NewStatic creates an explainer that reads explanations from catalog.
func NewStatic(catalog question.Catalog) *Static {
	return &Static{catalog: catalog}
}

// Explain builds a review of each failed question.
func (s *Static) Explain(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("📚 **Let's review what went wrong**\n")

	seen := make(map[string]bool)
	n := 0
	for _, id := range req.FailedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		q, ok := s.catalog.Lookup(id)
		if !ok {
			continue
		}
		n++
		text, _ := q.Option(q.Correct)
		fmt.Fprintf(&b, "\n**%d. %s**\nAnswer: **%s** (%s)\n", n, q.Prompt, q.Correct, text)
		if q.Explanation != "" {
			b.WriteString(q.Explanation)
			b.WriteString("\n")
		}
	}

	if n == 0 {
		if len(req.Topics) == 0 {
			b.WriteString("\nReview the explanations of the questions you missed before continuing.")
		} else {
			fmt.Fprintf(&b, "\nTake a moment to review: *%s*.", strings.Join(req.Topics, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
