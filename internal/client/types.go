package client

import (
	"encoding/json"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// ComplaintList is one page of complaints. Pagination is nil when the
// server omits it (search results).
type ComplaintList struct {
	Complaints []domain.Complaint `json:"complaints"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

// File is an attachment uploaded with a draft.
type File struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Draft is a complaint ready for submission. It is validated locally before
// anything is sent.
type Draft struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Category    string `json:"category"    validate:"required,category"`
	Priority    string `json:"priority"    validate:"omitempty,priority"`
	Description string `json:"description" validate:"required,max=5000"`
	Location    string `json:"location"    validate:"omitempty,max=255"`
	Attachments []File `json:"attachments" validate:"max=5,dive"`

	// IdempotencyKey makes retries safe; empty means one is generated.
	IdempotencyKey string `json:"-"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title,omitempty"       validate:"omitempty,min=1,max=200"`
	Category    *string `json:"category,omitempty"    validate:"omitempty,category"`
	Priority    *string `json:"priority,omitempty"    validate:"omitempty,priority"`
	Status      *string `json:"status,omitempty"      validate:"omitempty,status"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=5000"`
	Location    *string `json:"location,omitempty"    validate:"omitempty,max=255"`
}

// ChatRequest is one user utterance.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatReply is the collaborator's answer. Either Message or Response carries
// the text. Intent, Sentiment and Entities are passed through untouched.
type ChatReply struct {
	Message        string          `json:"message,omitempty"`
	Response       string          `json:"response,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	MessageID      string          `json:"messageId,omitempty"`
	Suggestions    []string        `json:"suggestions,omitempty"`
	Intent         string          `json:"intent,omitempty"`
	Confidence     float64         `json:"confidence,omitempty"`
	Sentiment      json.RawMessage `json:"sentiment,omitempty"`
	Entities       json.RawMessage `json:"entities,omitempty"`
}

// Conversation acknowledges a started or ended conversation.
type Conversation struct {
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
}

// Capabilities lists optional chatbot features.
type Capabilities struct {
	Capabilities []string        `json:"capabilities,omitempty"`
	Features     map[string]bool `json:"features"`
}

// Feedback rates a conversation or one bot message.
type Feedback struct {
	ConversationID string  `json:"conversationId"`
	MessageID      *string `json:"messageId,omitempty"`
	Rating         int     `json:"rating"`
	Comment        string  `json:"comment,omitempty"`
}
