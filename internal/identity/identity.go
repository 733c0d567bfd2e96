// Package identity resolves the learner id a session is keyed by.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"strings"
)

// ErrNoIdentity is returned when no learner id can be determined.
var ErrNoIdentity = errors.New("no learner identity")

// Provider returns the stable id of the current learner.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// Static always returns the same id.
type Static string

func (s Static) UserID(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

// OSUser uses the login name of the process owner.
type OSUser struct {
	current func() (*user.User, error)
}

// NewOSUser returns a Provider backed by os/user.
func NewOSUser() *OSUser {
	return &OSUser{current: user.Current}
}

func (o *OSUser) UserID(context.Context) (string, error) {
	u, err := o.current()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if u.Username == "" {
		return "", ErrNoIdentity
	}
	return "local:" + u.Username, nil
}

// Chain tries each provider in order and returns the first id found.
type Chain []Provider

func (c Chain) UserID(ctx context.Context) (string, error) {
	for _, p := range c {
		id, err := p.UserID(ctx)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoIdentity) {
			return "", err
		}
	}
	return "", ErrNoIdentity
}

// Telegram builds the id for a Telegram user.
func Telegram(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}
