package telegram

import (
	"context"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	sess "github.com/abhisek/prltutor/internal/session"
)

// Commands is the command menu registered with Telegram.
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start or continue the assessment"},
	{Command: "progress", Description: "Show your progress"},
	{Command: "retry", Description: "Retry the last step"},
	{Command: "reset", Description: "End the session and forget your progress"},
	{Command: "help", Description: "How it works"},
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID

	switch msg.Command() {
	case "start":
		h.withEngine(ctx, chatID, userID, func(e Engine) (*sess.Reply, error) {
			return e.Start(ctx)
		})

	case "retry":
		h.withEngine(ctx, chatID, userID, func(e Engine) (*sess.Reply, error) {
			return e.Resume(ctx)
		})

	case "progress":
		e, err := h.engine(ctx, userID)
		if err != nil {
			h.logger.Error("failed to open session", zap.Int64("user_id", userID), zap.Error(err))
			h.send(newHTMLMessage(chatID, msgInternalError))
			return
		}
		h.send(newHTMLMessage(chatID, html.EscapeString(e.Progress().Text())))

	case "reset":
		h.reset(ctx, chatID, userID)

	case "help":
		h.send(newHTMLMessage(chatID, msgHelp))

	default:
		h.send(newHTMLMessage(chatID, msgUnknownCommand))
	}
}

func (h *Handler) reset(ctx context.Context, chatID, userID int64) {
	e, err := h.engine(ctx, userID)
	if err != nil {
		h.logger.Error("failed to open session", zap.Int64("user_id", userID), zap.Error(err))
		h.send(newHTMLMessage(chatID, msgInternalError))
		return
	}
	if err := e.Logout(ctx); err != nil {
		h.logger.Warn("logout failed", zap.Int64("user_id", userID), zap.Error(err))
		h.send(newHTMLMessage(chatID, errorText(err)))
		return
	}
	h.forget(userID)
	h.send(newHTMLMessage(chatID, msgReset))
}
