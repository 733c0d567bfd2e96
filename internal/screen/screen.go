package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/prltutor/internal/ui/layout"
)

// Screen is one view of the terminal client.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the content area between header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string
}

// KeyHintProvider is implemented by screens with their own footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider is implemented by screens that show a status line on the
// right of the header.
type StatusProvider interface {
	Status() string
}
