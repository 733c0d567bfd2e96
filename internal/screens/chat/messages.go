package chat

import (
	"time"

	sess "github.com/abhisek/prltutor/internal/session"
)

// replyMsg carries the outcome of an engine call.
type replyMsg struct {
	Reply *sess.Reply
	Err   error
}

// logoutMsg is sent when the session has been ended.
type logoutMsg struct {
	Err error
}

// spinnerTickMsg animates the thinking indicator.
type spinnerTickMsg time.Time
