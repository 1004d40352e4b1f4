// Chatbot HTTP handlers.
//
// This file exposes the endpoints used by the chat widget:
//   - POST /chatbot/message                    (send a message, get the bot reply)
//   - POST /chatbot/conversation               (start a conversation)
//   - GET  /chatbot/conversation/{id}          (history, paginated)
//   - POST /chatbot/conversation/{id}/end      (end a conversation)
//   - GET  /chatbot/capabilities               (feature flags of the responder)
//   - GET  /chatbot/metrics                    (usage counters)
//
// Message failures carry a `response` field with text the widget can render
// in place of the missing bot reply.
package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-complaint-desk/internal/chatbot"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/services"
)

// Fallback texts returned alongside chat errors.
const (
	replyTroubleText = "Sorry, I'm having trouble right now. Please try again in a moment."
	replyEmptyText   = "Please type a message so I can help."
	replyTooLongText = "That message is too long. Could you shorten it?"
	replyEndedText   = "This conversation has ended. Start a new one to keep chatting."
	replyUnknownConv = "I couldn't find that conversation. Let's start a new one."
)

//
// DTOs
//

// ChatMessageRequest is the payload for POST /chatbot/message.
type ChatMessageRequest struct {
	Message string `json:"message" example:"I want to report a pothole"`
	// ConversationID continues an existing conversation; empty starts one.
	ConversationID string `json:"conversationId,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// ChatMessageResponse is the bot's answer to one message.
type ChatMessageResponse struct {
	Message        string           `json:"message"`
	ConversationID string           `json:"conversationId"`
	MessageID      string           `json:"messageId"`
	Intent         string           `json:"intent,omitempty"`
	Confidence     float64          `json:"confidence"`
	Entities       []chatbot.Entity `json:"entities,omitempty"`
	Suggestions    []string         `json:"suggestions,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// ConversationStatusResponse reports a conversation lifecycle change.
type ConversationStatusResponse struct {
	ConversationID string    `json:"conversationId"`
	Status         string    `json:"status" example:"started"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationHistoryResponse is one page of a conversation transcript.
type ConversationHistoryResponse struct {
	ConversationID string               `json:"conversationId"`
	Title          string               `json:"title"`
	Status         string               `json:"status"`
	History        []domain.ChatMessage `json:"history"`
	Pagination     domain.Pagination    `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeMessage normalizes line endings, collapses blank-line runs and
// trims surrounding whitespace.
func sanitizeMessage(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func chatFail(c *gin.Context, status int, code, msg, reply string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg, Response: reply})
}

func conversationID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// SendChatMessage godoc
// @ID          sendChatMessage
// @Summary     Send a chat message
// @Description Stores the user's message and the rule-based reply. Without conversationId a new
// @Description conversation is started. Error bodies carry a `response` fallback text.
// @Tags        Chatbot
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ChatMessageRequest  true  "Message"
// @Success     200  {object} handlers.ChatMessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Empty or too long"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     409  {object} handlers.ErrorResponse "Conversation ended"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatbot/message [post]
func (h *Handlers) SendChatMessage(c *gin.Context) {
	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		chatFail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", replyEmptyText)
		return
	}
	convID := strings.TrimSpace(req.ConversationID)
	if convID != "" {
		if _, err := uuid.Parse(convID); err != nil {
			chatFail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversationId must be a UUID", replyUnknownConv)
			return
		}
	}

	ex, err := h.convs.Send(c.Request.Context(), userID(c), convID, sanitizeMessage(req.Message))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			chatFail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required", replyEmptyText)
		case errors.Is(err, services.ErrTooLong):
			chatFail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), replyTooLongText)
		case errors.Is(err, services.ErrConversationNotFound):
			chatFail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found", replyUnknownConv)
		case errors.Is(err, services.ErrConversationEnded):
			chatFail(c, http.StatusConflict, ErrCodeConversationEnded, "conversation has ended", replyEndedText)
		default:
			chatFail(c, http.StatusInternalServerError, ErrCodeChatFailed, err.Error(), replyTroubleText)
		}
		return
	}

	ok(c, http.StatusOK, ChatMessageResponse{
		Message:        ex.Bot.Text,
		ConversationID: ex.ConversationID,
		MessageID:      ex.Bot.ID,
		Intent:         ex.Reply.Intent,
		Confidence:     ex.Reply.Confidence,
		Entities:       ex.Reply.Entities,
		Suggestions:    ex.Reply.Suggestions,
		Timestamp:      ex.Bot.CreatedAt,
	})
}

// StartConversation godoc
// @ID          startConversation
// @Summary     Start a conversation
// @Tags        Chatbot
// @Produce     json
// @Success     201  {object} handlers.ConversationStatusResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatbot/conversation [post]
func (h *Handlers) StartConversation(c *gin.Context) {
	conv, err := h.convs.Start(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, ConversationStatusResponse{
		ConversationID: conv.ID,
		Status:         "started",
		Timestamp:      conv.CreatedAt,
	})
}

// ConversationHistory godoc
// @ID          conversationHistory
// @Summary     Conversation history
// @Description Returns messages oldest first.
// @Tags        Chatbot
// @Produce     json
// @Param       id     path   string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       page   query  int     false "Page number"     minimum(1) default(1)
// @Param       limit  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ConversationHistoryResponse
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /chatbot/conversation/{id} [get]
func (h *Handlers) ConversationHistory(c *gin.Context) {
	id, valid := conversationID(c)
	if !valid {
		return
	}
	page, limit := clampPagination(c)
	conv, msgs, total, err := h.convs.History(c.Request.Context(), userID(c), id, page, limit)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ConversationHistoryResponse{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Status:         string(conv.Status),
		History:        msgs,
		Pagination:     pagination(page, limit, total),
	})
}

// EndConversation godoc
// @ID          endConversation
// @Summary     End a conversation
// @Description Ending an already ended conversation succeeds.
// @Tags        Chatbot
// @Produce     json
// @Param       id   path  string  true  "Conversation ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.ConversationStatusResponse
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /chatbot/conversation/{id}/end [post]
func (h *Handlers) EndConversation(c *gin.Context) {
	id, valid := conversationID(c)
	if !valid {
		return
	}
	if err := h.convs.End(c.Request.Context(), userID(c), id); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ConversationStatusResponse{
		ConversationID: id,
		Status:         "ended",
		Timestamp:      time.Now().UTC(),
	})
}

// ChatCapabilities godoc
// @ID          chatCapabilities
// @Summary     Chatbot capabilities
// @Tags        Chatbot
// @Produce     json
// @Success     200  {object} services.Capabilities
// @Router      /chatbot/capabilities [get]
func (h *Handlers) ChatCapabilities(c *gin.Context) {
	ok(c, http.StatusOK, h.convs.Capabilities())
}

// ChatMetrics godoc
// @ID          chatMetrics
// @Summary     Chatbot usage metrics
// @Tags        Chatbot
// @Produce     json
// @Success     200  {object} services.ChatMetrics
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatbot/metrics [get]
func (h *Handlers) ChatMetrics(c *gin.Context) {
	m, err := h.convs.Metrics(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, m)
}
