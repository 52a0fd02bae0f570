package service

import (
	"errors"
	"fmt"

	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/repository"
)

// ErrClientClosed indicates the client has been closed.
var ErrClientClosed = errors.New("damkit: client is closed")

// UserError is a failure whose message can be shown to end users as is.
// It wraps a repository sentinel so callers can still classify it.
type UserError struct {
	message string
	kind    error
}

func (e *UserError) Error() string { return e.message }

// Unwrap returns the sentinel the error is classified as.
func (e *UserError) Unwrap() error { return e.kind }

func invalidInput(format string, args ...any) error {
	return &UserError{message: fmt.Sprintf(format, args...), kind: repository.ErrValidation}
}

func notFound(format string, args ...any) error {
	return &UserError{message: fmt.Sprintf(format, args...), kind: repository.ErrNotFound}
}

// UserMessage returns the text to show for err: the bare message for user
// and folder errors, the full chain otherwise.
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.message
	}
	if _, ok := folder.AsDuplicate(err); ok || errors.Is(err, folder.ErrInvalidName) {
		return folder.UserMessage(err)
	}
	return err.Error()
}
