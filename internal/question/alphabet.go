package question

import (
	"fmt"
	"slices"
	"strings"
)

// Alphabet is the ordered set of valid option labels.
type Alphabet []string

// DefaultAlphabet is A through D.
var DefaultAlphabet = Alphabet{"A", "B", "C", "D"}

// ParseAlphabet builds an alphabet from labels, upper-casing each one.
func ParseAlphabet(labels []string) (Alphabet, error) {
	if len(labels) < 2 {
		return nil, fmt.Errorf("alphabet needs at least 2 labels, got %d", len(labels))
	}
	out := make(Alphabet, 0, len(labels))
	for _, l := range labels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			return nil, fmt.Errorf("empty label in alphabet")
		}
		if slices.Contains(out, l) {
			return nil, fmt.Errorf("duplicate label %q in alphabet", l)
		}
		out = append(out, l)
	}
	return out, nil
}

// Normalize trims and upper-cases input and reports whether it is one of
// the labels.
func (a Alphabet) Normalize(input string) (string, bool) {
	label := strings.ToUpper(strings.TrimSpace(input))
	if slices.Contains(a, label) {
		return label, true
	}
	return "", false
}

// Contains reports whether label is in the alphabet, exactly as given.
func (a Alphabet) Contains(label string) bool {
	return slices.Contains(a, label)
}

// String renders the labels for prompts, e.g. "A, B, C or D".
func (a Alphabet) String() string {
	switch len(a) {
	case 0:
		return ""
	case 1:
		return a[0]
	}
	return strings.Join(a[:len(a)-1], ", ") + " or " + a[len(a)-1]
}
