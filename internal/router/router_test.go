package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prltutor/internal/screen"
	"github.com/abhisek/prltutor/internal/ui/layout"
)

type tickMsg struct{}

// stubScreen is a minimal screen for testing.
type stubScreen struct {
	title   string
	status  string
	initRan bool
	keys    int
	ticks   int
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}

func (s *stubScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		s.keys++
	case tickMsg:
		s.ticks++
	}
	return s, nil
}

func (s *stubScreen) View(int, int) string { return s.title }
func (s *stubScreen) Title() string        { return s.title }

type statusScreen struct{ *stubScreen }

func (s statusScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	s.stubScreen.Update(msg)
	return s, nil
}

func (s statusScreen) Status() string { return s.status }

func (s statusScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Enter", Description: "Send"}}
}

func TestPushPop(t *testing.T) {
	root := &stubScreen{title: "root"}
	r := New(root)

	next := &stubScreen{title: "next"}
	r.Push(next)
	assert.Equal(t, 2, r.Depth())
	assert.Equal(t, "next", r.Title())
	assert.True(t, next.initRan)

	r.Pop()
	assert.Equal(t, 1, r.Depth())
	assert.Equal(t, "root", r.Title())
}

func TestPopKeepsRoot(t *testing.T) {
	r := New(&stubScreen{title: "root"})
	assert.Nil(t, r.Pop())
	assert.Equal(t, 1, r.Depth())
}

func TestNavigationMessages(t *testing.T) {
	r := New(&stubScreen{title: "root"})

	r.Update(Push(&stubScreen{title: "pushed"})())
	require.Equal(t, 2, r.Depth())
	assert.Equal(t, "pushed", r.View(80, 24))

	r.Update(Pop()())
	assert.Equal(t, 1, r.Depth())
}

func TestKeysReachActiveOnly(t *testing.T) {
	root := &stubScreen{title: "root"}
	top := &stubScreen{title: "top"}
	r := New(root)
	r.Push(top)

	r.Update(tea.KeyPressMsg{Code: 'a', Text: "a"})
	assert.Equal(t, 0, root.keys)
	assert.Equal(t, 1, top.keys)

	r.Update(tickMsg{})
	assert.Equal(t, 1, root.ticks)
	assert.Equal(t, 1, top.ticks)
}

func TestStatusAndHints(t *testing.T) {
	root := statusScreen{&stubScreen{title: "chat", status: "3/4"}}
	r := New(root)

	assert.Equal(t, "3/4", r.Status())
	assert.Equal(t, []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Ctrl+C", Description: "Quit"},
	}, r.KeyHints())

	r.Push(&stubScreen{title: "progress"})
	assert.Equal(t, "3/4", r.Status(), "status falls back to the root")
	assert.Equal(t, []layout.KeyHint{
		{Key: "Esc", Description: "Back"},
		{Key: "Ctrl+C", Description: "Quit"},
	}, r.KeyHints())
}
