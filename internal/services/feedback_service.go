// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how users rate
// chatbot conversations (-1 or +1), optionally pinned to one bot message. It
// enforces business rules (conversation ownership, message membership,
// bot-only restriction, uniqueness) and persists feedback atomically.
// Service-level errors (ErrInvalidFeedback, ErrConversationNotFound,
// ErrMessageNotFound, ErrForbiddenFeedback, ErrDuplicateFeedback) are
// returned for predictable cases so handlers can map them consistently.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/observability"
	"github.com/tbourn/go-complaint-desk/internal/repo"
)

// maxCommentRunes bounds free-text feedback comments.
const maxCommentRunes = 1000

// FeedbackService implements the use-cases around chatbot feedback.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB *gorm.DB
}

// Leave records rating for conversationID on behalf of userID.
//
// Semantics and validation:
//   - rating must be exactly -1 or 1; otherwise ErrInvalidFeedback.
//   - The conversation must exist and be owned by userID; otherwise
//     ErrConversationNotFound.
//   - When messageID is set, the message must exist (ErrMessageNotFound),
//     belong to the conversation and be a bot message (ErrForbiddenFeedback).
//   - A user may rate a given message at most once (ErrDuplicateFeedback).
//     Conversation-level feedback (nil messageID) is not deduplicated.
//
// The checks and the insert run inside one transaction.
func (s *FeedbackService) Leave(ctx context.Context, userID, conversationID string, messageID *string, rating int, comment string) (*domain.Feedback, error) {
	tr := observability.Tracer("services/feedback")
	ctx, span := tr.Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
			attribute.Int("rating", rating),
		),
	)
	defer span.End()

	if rating != -1 && rating != 1 {
		return nil, ErrInvalidFeedback
	}
	comment = strings.TrimSpace(comment)
	if len([]rune(comment)) > maxCommentRunes {
		return nil, ErrTooLong
	}
	if messageID != nil && strings.TrimSpace(*messageID) == "" {
		messageID = nil
	}

	var out *domain.Feedback
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetConversation(ctx, tx, conversationID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrConversationNotFound
			}
			return err
		}

		if messageID != nil {
			msg, err := repo.GetMessage(ctx, tx, *messageID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrMessageNotFound
				}
				return err
			}
			if msg.ConversationID != conversationID || msg.Sender != domain.SenderBot {
				return ErrForbiddenFeedback
			}
		}

		fb, err := repo.CreateFeedback(ctx, tx, conversationID, messageID, userID, rating, comment)
		if err != nil {
			if repo.IsUniqueViolation(err) {
				return ErrDuplicateFeedback
			}
			return err
		}
		out = fb
		return nil
	})
	if err != nil {
		return nil, err
	}

	label := "negative"
	if rating > 0 {
		label = "positive"
	}
	observability.FeedbackRatings.WithLabelValues(label).Inc()
	return out, nil
}
