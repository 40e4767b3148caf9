package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Relay boundary rejections. Never fatal, the hub refuses and logs.
	ErrEmptyContent = fmt.Errorf("empty message content")
	ErrNoIdentity   = fmt.Errorf("connection has no joined identity")

	ErrSessionClosed = fmt.Errorf("session already disconnected")
	ErrPersistence   = fmt.Errorf("message store unavailable")

	ErrWeakPassword       = fmt.Errorf("password must be at least 8 characters long")
	ErrUsernameTaken      = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrInvalidPayload = fmt.Errorf("invalid event payload")
)

// MapToHTTPStatus converts domain errors into the status codes exposed by the
// REST surface. Auth failures are 400 with the specific reason carried in
// the response body.
func MapToHTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrWeakPassword),
		stderrors.Is(err, ErrEmptyContent),
		stderrors.Is(err, ErrNoIdentity),
		stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrInvalidCredentials),
		stderrors.Is(err, ErrUsernameTaken):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
