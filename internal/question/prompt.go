package question

import (
	"fmt"
	"strings"
)

const questionSystemPrompt = `You are an occupational risk prevention tutor writing multiple-choice test questions for employees.

Rules:
- Write one question with exactly one correct option.
- Distractors must be plausible and reflect common misconceptions.
- Match the difficulty tier: BASIC covers core concepts and everyday behaviour, INTERMEDIATE covers procedures and regulations, ADVANCED covers edge cases, rights and coordination duties.
- When the learner's role is given, set the question in situations that role faces.
- Use **bold** for key terms in the explanation. Keep the prompt under 300 characters.
- Do not repeat any question from the "already asked" list.`

// buildQuestionMessage renders the user message for a question request.
func buildQuestionMessage(req Request, prior []string, alphabet Alphabet, maxPrior int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tier: %s\n", req.Tier)
	if req.Role != "" {
		fmt.Fprintf(&b, "Learner role: %s\n", req.Role)
	}
	fmt.Fprintf(&b, "Option labels: %s\n", strings.Join(alphabet, ", "))

	b.WriteString("\nAlready asked at this tier:\n")
	b.WriteString(buildPrior(prior, maxPrior))

	return b.String()
}

// buildPrior formats prior prompts, keeping the most recent max entries.
func buildPrior(prior []string, max int) string {
	if len(prior) == 0 {
		return "None"
	}
	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}

	var b strings.Builder
	for i, p := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	return strings.TrimRight(b.String(), "\n")
}
