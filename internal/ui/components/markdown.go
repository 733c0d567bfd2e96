package components

import (
	"strings"

	"github.com/abhisek/prltutor/internal/ui/theme"
)

// RenderMarkdown styles the **bold** and *italic* spans used in tutor
// messages. Unbalanced markers are left as typed.
func RenderMarkdown(s string) string {
	var b strings.Builder
	for len(s) > 0 {
		switch {
		case strings.HasPrefix(s, "**"):
			end := strings.Index(s[2:], "**")
			if end < 0 {
				b.WriteString(s)
				return b.String()
			}
			b.WriteString(theme.Strong.Render(s[2 : 2+end]))
			s = s[end+4:]
		case s[0] == '*':
			end := strings.IndexByte(s[1:], '*')
			if end <= 0 {
				b.WriteByte('*')
				s = s[1:]
				continue
			}
			b.WriteString(theme.Emphasis.Render(s[1 : 1+end]))
			s = s[end+2:]
		default:
			next := strings.IndexByte(s, '*')
			if next < 0 {
				b.WriteString(s)
				return b.String()
			}
			b.WriteString(s[:next])
			s = s[next:]
		}
	}
	return b.String()
}
