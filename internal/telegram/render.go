package telegram

import (
	"errors"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	sess "github.com/abhisek/prltutor/internal/session"
)

const answerPrefix = "answer:"

const (
	msgHelp = "I ask multiple-choice questions on occupational risk prevention and " +
		"adapt the level to your answers.\n\n" +
		"Tap a button or type the letter to answer.\n" +
		"/progress shows your score, /retry repeats a step that failed, " +
		"/reset ends the session."
	msgReset          = "👋 Session ended and your progress was cleared. Send /start to begin again."
	msgUnknownCommand = "Unknown command. Try /help."
	msgInternalError  = "⚠️ Something went wrong. Please try again later."
)

func newHTMLMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

// answerKeyboard has one button per option.
func answerKeyboard(q *sess.QuestionView) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(q.Options))
	for _, o := range q.Options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(o.Label, answerPrefix+o.Label))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func parseAnswerData(data string) (string, bool) {
	label, ok := strings.CutPrefix(data, answerPrefix)
	if !ok || label == "" {
		return "", false
	}
	return label, true
}

// formatHTML escapes s and turns **bold** and *italic* spans into HTML tags.
// Unbalanced markers are kept as typed.
func formatHTML(s string) string {
	var b strings.Builder
	for len(s) > 0 {
		switch {
		case strings.HasPrefix(s, "**"):
			end := strings.Index(s[2:], "**")
			if end < 0 {
				b.WriteString(html.EscapeString(s))
				return b.String()
			}
			b.WriteString("<b>" + html.EscapeString(s[2:2+end]) + "</b>")
			s = s[end+4:]
		case s[0] == '*':
			end := strings.IndexByte(s[1:], '*')
			if end <= 0 {
				b.WriteByte('*')
				s = s[1:]
				continue
			}
			b.WriteString("<i>" + html.EscapeString(s[1:1+end]) + "</i>")
			s = s[end+2:]
		default:
			next := strings.IndexByte(s, '*')
			if next < 0 {
				b.WriteString(html.EscapeString(s))
				return b.String()
			}
			b.WriteString(html.EscapeString(s[:next]))
			s = s[next:]
		}
	}
	return b.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, sess.ErrBusy):
		return "⏳ Still working on your last message..."
	case errors.Is(err, sess.ErrInvalidInput):
		return "Please send some text."
	case errors.Is(err, sess.ErrTerminated):
		return "This session has ended. Send /start to begin again."
	case errors.Is(err, sess.ErrMalformedResponse):
		return "⚠️ The tutor produced an unusable response. Send /retry to try again."
	case errors.Is(err, sess.ErrCollaboratorUnavailable):
		return "⚠️ The tutor is unavailable right now. Send /retry to try again."
	default:
		return msgInternalError
	}
}
