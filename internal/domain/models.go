package domain

import (
	"time"

	"gorm.io/gorm"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ConversationStatus is the lifecycle state of a server-side conversation.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationEnded  ConversationStatus = "ended"
)

// Conversation is a server-tracked chat session owned by a user.
//
// Fields:
//   - ID: opaque identifier handed to the client as conversationId.
//   - Title: derived from the first user message.
//   - EndedAt: set once when the conversation is ended (explicitly or by the
//     idle sweeper).
type Conversation struct {
	ID        string             `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string             `json:"userId"    gorm:"type:varchar(64);not null;index:idx_user_conversations"`
	Title     string             `json:"title"     gorm:"type:varchar(255);not null;default:'New conversation'"`
	Status    ConversationStatus `json:"status"    gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','ended')"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	EndedAt   *time.Time         `json:"endedAt,omitempty"`
	DeletedAt gorm.DeletedAt     `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// ChatMessage is a single utterance within a conversation. Bot messages carry
// the intent of the rule that produced them and its confidence.
type ChatMessage struct {
	ID             string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversationId" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Sender         Sender    `json:"sender"         gorm:"type:varchar(8);not null;check:sender IN ('user','bot')"`
	Text           string    `json:"text"           gorm:"type:text;not null"`
	Intent         string    `json:"intent,omitempty"     gorm:"type:varchar(64)"`
	Confidence     *float64  `json:"confidence,omitempty"`
	CreatedAt      time.Time `json:"createdAt"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// Feedback is a user rating on a conversation, optionally pinned to one bot
// message. A user can rate a given message at most once.
type Feedback struct {
	ID             string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversationId" gorm:"type:char(36);not null;index"`
	MessageID      *string   `json:"messageId,omitempty" gorm:"type:char(36);uniqueIndex:ux_feedback_message_user"`
	UserID         string    `json:"userId"         gorm:"type:varchar(64);not null;uniqueIndex:ux_feedback_message_user"`
	Rating         int       `json:"rating"         gorm:"not null;check:rating IN (-1,1)"`
	Comment        string    `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"createdAt"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
