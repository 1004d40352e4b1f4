package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classification with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("transport failure")
)

// Error is a non-2xx answer from the API, decoded from its error envelope.
// Status is 0 for drafts rejected locally before sending.
type Error struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	// Response is the fallback reply text carried by chat failures.
	Response string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Is maps 404 to ErrNotFound and 400/422 (or a validation code) to
// ErrValidation.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Status == http.StatusBadRequest ||
			e.Status == http.StatusUnprocessableEntity ||
			e.Code == codeValidation
	}
	return false
}

const codeValidation = "validation_failed"

// envelope mirrors the server's error body.
type envelope struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Response  string `json:"response"`
}
