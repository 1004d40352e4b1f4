// Feedback HTTP handlers.
//
// This file exposes the endpoint the chat widget uses to rate a conversation
// or one of its bot replies:
//   - POST /chatbot/feedback  (create feedback)
//
// Ratings are constrained to {-1, +1}. The widget treats this call as
// fire-and-forget, so error bodies are for logs and tooling rather than users.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-complaint-desk/internal/services"
)

// LeaveFeedbackRequest is the JSON payload for rating a conversation.
//
// Rating must be one of:
//   - +1 : helpful
//   - -1 : not helpful
type LeaveFeedbackRequest struct {
	ConversationID string `json:"conversationId" binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// MessageID optionally pins the rating to one bot reply.
	MessageID *string `json:"messageId,omitempty" binding:"omitempty,uuid" example:"fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b"`
	Rating    int     `json:"rating" binding:"required,oneof=-1 1" example:"1"`
	Comment   string  `json:"comment,omitempty" binding:"max=1000" example:"Quick and clear"`
}

// LeaveFeedbackResponse acknowledges stored feedback.
type LeaveFeedbackResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status" example:"received"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Rate a conversation
// @Description Records positive (+1) or negative (-1) feedback for a conversation, optionally for one bot message.
// @Tags        Chatbot
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.LeaveFeedbackRequest true "Feedback payload"
//
// @Success     201  {object} handlers.LeaveFeedbackResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     403  {object} handlers.ErrorResponse "Not allowed to rate this message"
// @Failure     404  {object} handlers.ErrorResponse "Conversation or message not found"
// @Failure     409  {object} handlers.ErrorResponse "Feedback already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /chatbot/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}

	fb, err := h.feedback.Leave(c.Request.Context(), userID(c), req.ConversationID, req.MessageID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidFeedback):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rating must be -1 or 1")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "comment too long")
		case errors.Is(err, services.ErrConversationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case errors.Is(err, services.ErrMessageNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		case errors.Is(err, services.ErrForbiddenFeedback):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "cannot leave feedback on this message")
		case errors.Is(err, services.ErrDuplicateFeedback):
			fail(c, http.StatusConflict, ErrCodeDuplicateFeedback, "feedback already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, LeaveFeedbackResponse{ID: fb.ID, Status: "received", Timestamp: fb.CreatedAt})
}
