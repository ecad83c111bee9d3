package core

import (
	"errors"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeCapacityExceeded = "capacity_exceeded"
	ErrCodeDuplicateName    = "duplicate_name"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeProtocol         = "protocol_error"
	ErrCodeInternal         = "internal"
)

// ErrCapacityExceeded is returned by Registry.Register when every slot is taken.
var ErrCapacityExceeded = store.ErrCapacityExceeded

// CoreError wraps a code and human-readable message. It is always answered to
// the issuing session and never ends the connection.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Line renders the error as a SERVER reply.
func (e *CoreError) Line() string {
	return proto.Notice("%s", e.Message)
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// classify maps storage and auth errors onto the taxonomy, using msg for the
// reply text when the error is expected and a generic text otherwise.
func classify(err error, msg string) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, store.ErrCapacityExceeded):
		return coreError(ErrCodeCapacityExceeded, msg)
	case errors.Is(err, store.ErrDuplicateName), errors.Is(err, auth.ErrUserExists):
		return coreError(ErrCodeDuplicateName, msg)
	case errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeNotFound, msg)
	case errors.Is(err, store.ErrBanned), errors.Is(err, auth.ErrInvalidCredentials):
		return coreError(ErrCodeUnauthorized, msg)
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, store.ErrInvalidName):
		return coreError(ErrCodeProtocol, msg)
	default:
		return coreError(ErrCodeInternal, "Internal error, try again later.")
	}
}
