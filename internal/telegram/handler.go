package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/abhisek/prltutor/internal/identity"
	sess "github.com/abhisek/prltutor/internal/session"
)

// Engine is the per-learner session engine the bot drives.
type Engine interface {
	Start(ctx context.Context) (*sess.Reply, error)
	Submit(ctx context.Context, input string) (*sess.Reply, error)
	Resume(ctx context.Context) (*sess.Reply, error)
	Logout(ctx context.Context) error
	Progress() sess.Progress
}

// EngineFactory opens the engine of one learner.
type EngineFactory func(ctx context.Context, userID string) (Engine, error)

// Bot is the part of tgbotapi.BotAPI the handler uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler routes Telegram updates to per-learner engines. Every Telegram
// user gets an isolated engine keyed by their user ID.
type Handler struct {
	bot     Bot
	factory EngineFactory
	logger  *zap.Logger

	mu      sync.Mutex
	engines map[int64]Engine

	wg sync.WaitGroup
}

// NewHandler creates a Handler.
func NewHandler(bot Bot, factory EngineFactory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bot:     bot,
		factory: factory,
		logger:  logger,
		engines: make(map[int64]Engine),
	}
}

// Run handles updates until ctx is cancelled or the channel closes. Each
// update runs in its own goroutine; a learner who writes while their
// previous message is still being processed is told to wait.
func (h *Handler) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate processes one update synchronously.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	h.logger.Debug("update received",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.Int64("user_id", msg.From.ID),
	)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}

	h.withEngine(ctx, msg.Chat.ID, msg.From.ID, func(e Engine) (*sess.Reply, error) {
		return e.Submit(ctx, msg.Text)
	})
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Stop the client's loading indicator.
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		h.logger.Warn("callback answer failed", zap.Error(err))
	}

	label, ok := parseAnswerData(cb.Data)
	if !ok || cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	// Drop the keyboard so the question cannot be answered twice.
	h.send(tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	}))
	h.send(newHTMLMessage(chatID, "<b>"+label+"</b>"))

	h.withEngine(ctx, chatID, cb.From.ID, func(e Engine) (*sess.Reply, error) {
		return e.Submit(ctx, label)
	})
}

// withEngine runs fn against the learner's engine and renders the outcome.
func (h *Handler) withEngine(ctx context.Context, chatID, userID int64, fn func(Engine) (*sess.Reply, error)) {
	e, err := h.engine(ctx, userID)
	if err != nil {
		h.logger.Error("failed to open session",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		h.send(newHTMLMessage(chatID, msgInternalError))
		return
	}

	reply, err := fn(e)
	h.sendReply(chatID, reply)
	if err != nil {
		h.logger.Warn("engine call failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		if errors.Is(err, sess.ErrTerminated) {
			h.forget(userID)
		}
		h.send(newHTMLMessage(chatID, errorText(err)))
	}
}

// engine returns the cached engine of userID, opening it on first use. The
// snapshot load runs without h.mu so one slow store does not stall other
// learners; if two opens race, the first one stored wins.
func (h *Handler) engine(ctx context.Context, userID int64) (Engine, error) {
	h.mu.Lock()
	e, ok := h.engines[userID]
	h.mu.Unlock()
	if ok {
		return e, nil
	}

	opened, err := h.factory(ctx, identity.Telegram(userID))
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.engines[userID]; ok {
		return e, nil
	}
	h.engines[userID] = opened
	return opened, nil
}

// forget drops the cached engine so that the next message starts fresh.
func (h *Handler) forget(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.engines, userID)
}

func (h *Handler) sendReply(chatID int64, r *sess.Reply) {
	if r == nil {
		return
	}
	for i, m := range r.Messages {
		msg := newHTMLMessage(chatID, formatHTML(m.Text))
		if m.Kind == sess.KindQuestion && r.Question != nil && i == lastQuestion(r) {
			msg.ReplyMarkup = answerKeyboard(r.Question)
		}
		h.send(msg)
	}
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
	}
}

func lastQuestion(r *sess.Reply) int {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Kind == sess.KindQuestion {
			return i
		}
	}
	return -1
}
