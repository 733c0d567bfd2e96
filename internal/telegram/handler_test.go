package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
	sess "github.com/abhisek/prltutor/internal/session"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeEngine struct {
	userID    string
	submitted []string
	logouts   int
	reply     *sess.Reply
	err       error
}

func (f *fakeEngine) Start(context.Context) (*sess.Reply, error) { return f.reply, f.err }

func (f *fakeEngine) Submit(_ context.Context, input string) (*sess.Reply, error) {
	f.submitted = append(f.submitted, input)
	return f.reply, f.err
}

func (f *fakeEngine) Resume(context.Context) (*sess.Reply, error) { return f.reply, f.err }

func (f *fakeEngine) Logout(context.Context) error {
	f.logouts++
	return nil
}

func (f *fakeEngine) Progress() sess.Progress {
	return sess.Progress{Answered: 4, Correct: 3, Tier: level.TierIntermediate}
}

type harness struct {
	bot     *fakeBot
	handler *Handler
	engines map[string]*fakeEngine
	reply   *sess.Reply
	err     error
}

func newHarness(t *testing.T) *harness {
	h := &harness{bot: &fakeBot{}, engines: map[string]*fakeEngine{}}
	h.handler = NewHandler(h.bot, func(_ context.Context, userID string) (Engine, error) {
		e := &fakeEngine{userID: userID, reply: h.reply, err: h.err}
		h.engines[userID] = e
		return e, nil
	}, zaptest.NewLogger(t))
	return h
}

func command(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: userID},
		From:     &tgbotapi.User{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func text(userID int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: s,
		Chat: &tgbotapi.Chat{ID: userID},
		From: &tgbotapi.User{ID: userID},
	}}
}

func questionReply() *sess.Reply {
	return &sess.Reply{
		Phase: sess.PhaseAwaitingAnswer,
		Messages: []sess.Message{
			{Kind: sess.KindRoleAck, Text: "Thanks! We start at **BASIC** level."},
			{Kind: sess.KindQuestion, Text: "**Question (BASIC)**\nWhich sign means danger?"},
		},
		Question: &sess.QuestionView{
			ID:   "q1",
			Tier: level.TierBasic,
			Options: []question.Option{
				{Label: "A", Text: "Yellow triangle"}, {Label: "B", Text: "Blue circle"},
				{Label: "C", Text: "Green square"}, {Label: "D", Text: "White arrow"},
			},
		},
	}
}

func TestHandleUpdate_TextGoesToSubmit(t *testing.T) {
	h := newHarness(t)
	h.reply = questionReply()

	h.handler.HandleUpdate(context.Background(), text(42, "roofer"))

	e := h.engines["tg:42"]
	require.NotNil(t, e)
	assert.Equal(t, []string{"roofer"}, e.submitted)

	require.Len(t, h.bot.sent, 2)
	last := h.bot.sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, tgbotapi.ModeHTML, last.ParseMode)
	kb, ok := last.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "question carries the answer keyboard")
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Len(t, kb.InlineKeyboard[0], 4)
	assert.Nil(t, h.bot.sent[0].(tgbotapi.MessageConfig).ReplyMarkup)
}

func TestHandleUpdate_EnginesPerUser(t *testing.T) {
	h := newHarness(t)
	h.handler.HandleUpdate(context.Background(), text(1, "a"))
	h.handler.HandleUpdate(context.Background(), text(2, "b"))
	h.handler.HandleUpdate(context.Background(), text(1, "c"))

	assert.Equal(t, []string{"a", "c"}, h.engines["tg:1"].submitted)
	assert.Equal(t, []string{"b"}, h.engines["tg:2"].submitted)
}

func TestHandleUpdate_Callback(t *testing.T) {
	h := newHarness(t)
	h.handler.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 5},
		Data:    "answer:C",
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 5}},
	}})

	assert.Equal(t, []string{"C"}, h.engines["tg:5"].submitted)
	require.Len(t, h.bot.requests, 1)
	assert.IsType(t, tgbotapi.CallbackConfig{}, h.bot.requests[0])
	assert.IsType(t, tgbotapi.EditMessageReplyMarkupConfig{}, h.bot.sent[0])
}

func TestHandleUpdate_UnknownCallbackIgnored(t *testing.T) {
	h := newHarness(t)
	h.handler.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 5},
		Data:    "other",
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 5}},
	}})
	assert.Empty(t, h.engines)
	assert.Empty(t, h.bot.sent)
}

func TestHandleUpdate_ErrorText(t *testing.T) {
	h := newHarness(t)
	h.err = sess.ErrCollaboratorUnavailable
	h.handler.HandleUpdate(context.Background(), text(3, "B"))

	assert.Contains(t, h.bot.texts(), errorText(sess.ErrCollaboratorUnavailable))
}

func TestCommands(t *testing.T) {
	h := newHarness(t)
	h.reply = &sess.Reply{Messages: []sess.Message{{Kind: sess.KindGreeting, Text: "Hi"}}}
	ctx := context.Background()

	h.handler.HandleUpdate(ctx, command(8, "/start"))
	h.handler.HandleUpdate(ctx, command(8, "/progress"))
	h.handler.HandleUpdate(ctx, command(8, "/help"))
	h.handler.HandleUpdate(ctx, command(8, "/nope"))

	assert.Equal(t, []string{
		"Hi",
		"📊 Progress: 3/4 correct | Level: INTERMEDIATE",
		msgHelp,
		msgUnknownCommand,
	}, h.bot.texts())
}

func TestResetForgetsEngine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.handler.HandleUpdate(ctx, text(8, "hello"))
	first := h.engines["tg:8"]

	h.handler.HandleUpdate(ctx, command(8, "/reset"))
	assert.Equal(t, 1, first.logouts)
	assert.Contains(t, h.bot.texts(), msgReset)

	h.handler.HandleUpdate(ctx, text(8, "again"))
	assert.NotSame(t, first, h.engines["tg:8"])
}

func TestFactoryFailure(t *testing.T) {
	bot := &fakeBot{}
	handler := NewHandler(bot, func(context.Context, string) (Engine, error) {
		return nil, errors.New("db locked")
	}, nil)

	handler.HandleUpdate(context.Background(), text(1, "hi"))
	assert.Equal(t, []string{msgInternalError}, bot.texts())
}

func TestEngine_SlowOpenDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	h := NewHandler(&fakeBot{}, func(_ context.Context, userID string) (Engine, error) {
		if userID == "tg:1" {
			<-release
		}
		return &fakeEngine{userID: userID}, nil
	}, zaptest.NewLogger(t))

	slow := make(chan Engine)
	go func() {
		e, _ := h.engine(context.Background(), 1)
		slow <- e
	}()

	done := make(chan Engine)
	go func() {
		e, _ := h.engine(context.Background(), 2)
		done <- e
	}()
	select {
	case e := <-done:
		assert.Equal(t, "tg:2", e.(*fakeEngine).userID)
	case <-time.After(2 * time.Second):
		t.Fatal("open of user 2 waited for user 1")
	}

	close(release)
	assert.Equal(t, "tg:1", (<-slow).(*fakeEngine).userID)
}

func TestEngine_ConcurrentOpensShareOne(t *testing.T) {
	var opens sync.WaitGroup
	opens.Add(2)
	h := NewHandler(&fakeBot{}, func(_ context.Context, userID string) (Engine, error) {
		// Both callers reach the factory before either stores its engine.
		opens.Done()
		opens.Wait()
		return &fakeEngine{userID: userID}, nil
	}, zaptest.NewLogger(t))

	got := make(chan Engine, 2)
	for range 2 {
		go func() {
			e, err := h.engine(context.Background(), 7)
			assert.NoError(t, err)
			got <- e
		}()
	}
	a, b := <-got, <-got
	assert.Same(t, a, b)

	again, err := h.engine(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, a, again)
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	h := newHarness(t)
	updates := make(chan tgbotapi.Update, 1)
	updates <- text(1, "hi")
	close(updates)

	require.NoError(t, h.handler.Run(context.Background(), updates))
	assert.Equal(t, []string{"hi"}, h.engines["tg:1"].submitted)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.handler.Run(ctx, make(chan tgbotapi.Update)), context.Canceled)
}

func TestFormatHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain <tag> & text", "plain &lt;tag&gt; &amp; text"},
		{"**Level up!** to *ADVANCED*", "<b>Level up!</b> to <i>ADVANCED</i>"},
		{"a **b", "a **b"},
		{"2 * 3", "2 * 3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatHTML(tt.in))
	}
}

func TestParseAnswerData(t *testing.T) {
	label, ok := parseAnswerData("answer:B")
	assert.True(t, ok)
	assert.Equal(t, "B", label)

	_, ok = parseAnswerData("answer:")
	assert.False(t, ok)
	_, ok = parseAnswerData("name:3")
	assert.False(t, ok)
}
