package router

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/prltutor/internal/screen"
	"github.com/abhisek/prltutor/internal/ui/layout"
)

// PushScreenMsg asks the router to open a screen on top of the current one.
type PushScreenMsg struct {
	Screen screen.Screen
}

// PopScreenMsg asks the router to close the current screen.
type PopScreenMsg struct{}

// Push returns a command that opens s.
func Push(s screen.Screen) tea.Cmd {
	return func() tea.Msg { return PushScreenMsg{Screen: s} }
}

// Pop returns a command that closes the current screen.
func Pop() tea.Cmd {
	return func() tea.Msg { return PopScreenMsg{} }
}

// Router manages a stack of screens. The root screen is never popped.
type Router struct {
	stack []screen.Screen
}

// New creates a Router rooted at initial.
func New(initial screen.Screen) *Router {
	return &Router{stack: []screen.Screen{initial}}
}

// Init runs the root screen's Init.
func (r *Router) Init() tea.Cmd {
	return r.stack[0].Init()
}

// Push adds a screen on top of the stack and runs its Init.
func (r *Router) Push(s screen.Screen) tea.Cmd {
	r.stack = append(r.stack, s)
	return s.Init()
}

// Pop removes the top screen unless it is the root.
func (r *Router) Pop() tea.Cmd {
	if len(r.stack) <= 1 {
		return nil
	}
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

// Active returns the top screen.
func (r *Router) Active() screen.Screen {
	return r.stack[len(r.stack)-1]
}

// Depth returns the number of screens on the stack.
func (r *Router) Depth() int {
	return len(r.stack)
}

// Update handles navigation messages. Key presses go to the active screen
// only; every other message reaches all screens so that the root keeps
// receiving async results while another screen is open.
func (r *Router) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case PushScreenMsg:
		return r.Push(msg.Screen)
	case PopScreenMsg:
		return r.Pop()
	case tea.KeyMsg:
		top := len(r.stack) - 1
		updated, cmd := r.stack[top].Update(msg)
		r.stack[top] = updated
		return cmd
	}

	cmds := make([]tea.Cmd, 0, len(r.stack))
	for i, s := range r.stack {
		updated, cmd := s.Update(msg)
		r.stack[i] = updated
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// View renders the active screen.
func (r *Router) View(width, height int) string {
	return r.Active().View(width, height)
}

// Title returns the active screen's title.
func (r *Router) Title() string {
	return r.Active().Title()
}

// Status returns the status line of the nearest screen that has one.
func (r *Router) Status() string {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if sp, ok := r.stack[i].(screen.StatusProvider); ok {
			return sp.Status()
		}
	}
	return ""
}

// KeyHints returns the footer hints for the active screen.
func (r *Router) KeyHints() []layout.KeyHint {
	var hints []layout.KeyHint
	if kp, ok := r.Active().(screen.KeyHintProvider); ok {
		hints = append(hints, kp.KeyHints()...)
	}
	if len(r.stack) > 1 {
		hints = append(hints, layout.KeyHint{Key: "Esc", Description: "Back"})
	}
	return append(hints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
}
