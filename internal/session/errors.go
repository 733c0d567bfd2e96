package session

import (
	"errors"
	"fmt"

	"github.com/abhisek/prltutor/internal/llm"
	"github.com/abhisek/prltutor/internal/question"
)

var (
	// ErrInvalidInput means the input does not fit the current phase.
	// Nothing was changed and no collaborator was called.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCollaboratorUnavailable means a question, evaluation or
	// explanation call failed. The step can be retried.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrMalformedResponse means a collaborator answered with content that
	// could not be used. It also matches ErrCollaboratorUnavailable.
	ErrMalformedResponse = fmt.Errorf("malformed response: %w", ErrCollaboratorUnavailable)

	// ErrPersistence marks snapshot load and save failures. These are
	// logged and never returned from a transition.
	ErrPersistence = errors.New("persistence failure")

	// ErrBusy is returned when a transition is already running.
	ErrBusy = errors.New("session busy")

	// ErrTerminated is returned after logout.
	ErrTerminated = errors.New("session terminated")
)

// collaboratorError classifies a failed collaborator call.
func collaboratorError(op string, err error) error {
	if errors.Is(err, question.ErrMalformed) || llm.IsInvalidResponse(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCollaboratorUnavailable, err)
}
