package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-complaint-desk/internal/http/middleware"
	"github.com/tbourn/go-complaint-desk/internal/validation"
)

// ErrorResponse is the error envelope of every endpoint:
//
//	HTTP/1.1 404 Not Found
//	{"request_id": "123e4567-...", "code": "not_found", "message": "complaint not found"}
//
// Chatbot failures also carry `response`, text the chat widget shows in
// place of a bot reply. Validation failures list fields under `details`.
type ErrorResponse struct {
	RequestID string                  `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string                  `json:"code" example:"not_found"`
	Message   string                  `json:"message" example:"complaint not found"`
	Response  string                  `json:"response,omitempty" example:"Sorry, I'm having trouble responding right now. Please try again later."`
	Details   []validation.FieldError `json:"details,omitempty"`
}

// fail aborts with a plain error envelope.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

// failWith aborts with resp, stamping the request id. 5xx answers are
// logged through the request-scoped logger.
func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// failValidation answers 400 for a binding error, with per-field details
// when the validator produced them.
func failValidation(c *gin.Context, err error) {
	var fields validation.Errors
	if errors.As(validation.Translate(err), &fields) {
		failWith(c, http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeValidation,
			Message: fields.Error(),
			Details: fields,
		})
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
}

// Fail lets the router answer with the same envelope (404/405 handlers).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
