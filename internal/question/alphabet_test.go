package question

import "testing"

func TestAlphabetNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"A", "A", true},
		{" b ", "B", true},
		{"d\n", "D", true},
		{"E", "", false},
		{"AB", "", false},
		{"", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		got, ok := DefaultAlphabet.Normalize(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseAlphabet(t *testing.T) {
	a, err := ParseAlphabet([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.String() != "A, B or C" {
		t.Errorf("String() = %q", a.String())
	}

	for _, bad := range [][]string{{"A"}, {"A", "A"}, {"A", " "}} {
		if _, err := ParseAlphabet(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}
