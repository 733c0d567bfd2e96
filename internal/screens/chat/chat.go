package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/router"
	"github.com/abhisek/prltutor/internal/screen"
	"github.com/abhisek/prltutor/internal/screens/progress"
	sess "github.com/abhisek/prltutor/internal/session"
	"github.com/abhisek/prltutor/internal/ui/components"
	"github.com/abhisek/prltutor/internal/ui/layout"
)

// Engine is the part of the session engine the chat screen drives.
type Engine interface {
	Start(ctx context.Context) (*sess.Reply, error)
	Submit(ctx context.Context, input string) (*sess.Reply, error)
	Resume(ctx context.Context) (*sess.Reply, error)
	Logout(ctx context.Context) error
	Progress() sess.Progress
}

const spinnerInterval = 120 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// line is one transcript entry.
type line struct {
	learner bool
	kind    sess.MessageKind
	text    string
}

// ChatScreen is the conversation with the tutor.
type ChatScreen struct {
	ctx    context.Context
	engine Engine
	policy level.Policy
	logger *zap.Logger

	lines    []line
	input    components.TextInput
	choice   *components.MultiChoice
	activeAt int // transcript index of the active question, -1 when none

	phase    sess.Phase
	progress sess.Progress
	pending  bool
	frame    int
	errMsg   string
	ended    bool
}

var (
	_ screen.Screen          = (*ChatScreen)(nil)
	_ screen.KeyHintProvider = (*ChatScreen)(nil)
	_ screen.StatusProvider  = (*ChatScreen)(nil)
)

// New creates the chat screen. ctx bounds every engine call.
func New(ctx context.Context, engine Engine, policy level.Policy, logger *zap.Logger) *ChatScreen {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatScreen{
		ctx:      ctx,
		engine:   engine,
		policy:   policy,
		logger:   logger,
		input:    components.NewTextInput("Type your reply...", sess.MaxRoleLength),
		activeAt: -1,
		progress: engine.Progress(),
	}
}

func (s *ChatScreen) Init() tea.Cmd {
	s.pending = true
	return tea.Batch(s.call(s.engine.Start), s.input.Init(), spinnerTick())
}

func (s *ChatScreen) Title() string {
	return "Tutor"
}

// Status shows the progress indicator in the header.
func (s *ChatScreen) Status() string {
	return s.progress.Text()
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	if s.ended {
		return nil
	}
	hints := []layout.KeyHint{{Key: "Enter", Description: "Send"}}
	if s.choice != nil {
		hints = append(hints, layout.KeyHint{Key: "↑↓", Description: "Choose"})
	}
	return append(hints,
		layout.KeyHint{Key: "Ctrl+R", Description: "Retry"},
		layout.KeyHint{Key: "Ctrl+P", Description: "Progress"},
		layout.KeyHint{Key: "Ctrl+L", Description: "Log out"},
	)
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case replyMsg:
		s.handleReply(msg)
		return s, nil

	case logoutMsg:
		return s.handleLogout(msg)

	case spinnerTickMsg:
		if !s.pending {
			return s, nil
		}
		s.frame = (s.frame + 1) % len(spinnerFrames)
		return s, spinnerTick()

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.ended {
		return s, nil
	}

	key := msg.String()
	if key == "ctrl+p" {
		return s, router.Push(progress.New(s.engine.Progress(), s.policy))
	}
	if s.pending {
		return s, nil
	}

	switch key {
	case "ctrl+r":
		return s, s.send(s.engine.Resume)
	case "ctrl+l":
		s.pending = true
		return s, tea.Batch(s.logout(), spinnerTick())
	case "up", "down":
		if s.choice != nil && s.input.Value() == "" {
			updated, cmd := s.choice.Update(msg)
			s.choice = &updated
			return s, cmd
		}
	case "enter":
		return s, s.submit()
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

// submit sends the typed text, or the highlighted option when nothing was
// typed while a question is shown.
func (s *ChatScreen) submit() tea.Cmd {
	text := s.input.Value()
	if text == "" && s.choice != nil {
		text = s.choice.SelectedLabel()
	}
	if text == "" {
		return nil
	}

	s.lines = append(s.lines, line{learner: true, kind: sess.KindInput, text: text})
	s.input.Clear()
	return s.send(func(ctx context.Context) (*sess.Reply, error) {
		return s.engine.Submit(ctx, text)
	})
}

func (s *ChatScreen) send(fn func(context.Context) (*sess.Reply, error)) tea.Cmd {
	s.pending = true
	s.errMsg = ""
	return tea.Batch(s.call(fn), spinnerTick())
}

func (s *ChatScreen) call(fn func(context.Context) (*sess.Reply, error)) tea.Cmd {
	ctx := s.ctx
	return func() tea.Msg {
		reply, err := fn(ctx)
		return replyMsg{Reply: reply, Err: err}
	}
}

func (s *ChatScreen) logout() tea.Cmd {
	ctx := s.ctx
	engine := s.engine
	return func() tea.Msg {
		return logoutMsg{Err: engine.Logout(ctx)}
	}
}

func (s *ChatScreen) handleReply(msg replyMsg) {
	s.pending = false

	if r := msg.Reply; r != nil {
		s.phase = r.Phase
		s.progress = r.Progress
		s.choice = nil
		s.activeAt = -1
		for _, m := range r.Messages {
			if m.Kind == sess.KindQuestion && r.Question != nil {
				s.activeAt = len(s.lines)
			}
			s.lines = append(s.lines, line{kind: m.Kind, text: m.Text})
		}
		if r.Question != nil && s.activeAt >= 0 {
			mc := components.NewMultiChoice(questionTitle(r.Question), r.Question.Options)
			s.choice = &mc
			s.input.SetPlaceholder("Type a letter, or press Enter for the highlighted option...")
		} else {
			s.input.SetPlaceholder("Type your reply...")
		}
	}

	if msg.Err != nil {
		s.errMsg = describeError(msg.Err)
		s.logger.Warn("engine call failed", zap.Error(msg.Err), zap.Stringer("phase", s.phase))
	}
}

func (s *ChatScreen) handleLogout(msg logoutMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	if msg.Err != nil {
		s.errMsg = describeError(msg.Err)
		s.logger.Warn("logout failed", zap.Error(msg.Err))
		return s, nil
	}
	s.ended = true
	s.choice = nil
	s.activeAt = -1
	s.phase = sess.PhaseTerminated
	s.lines = append(s.lines, line{kind: sess.KindInfo, text: "👋 Session ended. Your progress has been cleared. Goodbye!"})
	return s, tea.Quit
}

func questionTitle(q *sess.QuestionView) string {
	title := fmt.Sprintf("Question (%s)", q.Tier)
	if q.Topic != "" {
		title += " · " + q.Topic
	}
	return title + "\n" + q.Prompt
}

// describeError turns an engine error into a line for the learner.
func describeError(err error) string {
	switch {
	case errors.Is(err, sess.ErrBusy):
		return "Still working on your last message..."
	case errors.Is(err, sess.ErrInvalidInput):
		return "Please type something first."
	case errors.Is(err, sess.ErrTerminated):
		return "This session has ended."
	case errors.Is(err, sess.ErrMalformedResponse):
		return "The tutor produced an unusable response. Press Ctrl+R to try again."
	case errors.Is(err, sess.ErrCollaboratorUnavailable):
		return "The tutor is unavailable right now. Press Ctrl+R to try again."
	default:
		return "Something went wrong: " + err.Error()
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}
