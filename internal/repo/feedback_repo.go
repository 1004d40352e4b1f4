// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
//
// Error semantics:
//   - Duplicate feedback (same message_id,user_id) relies on the database
//     unique constraint and is returned as a raw DB error. The service layer
//     translates that into services.ErrDuplicateFeedback.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// CreateFeedback inserts a feedback row. messageID may be nil for feedback on
// the conversation as a whole. Rating must be -1 or 1; the database check
// constraint rejects anything else.
func CreateFeedback(ctx context.Context, db *gorm.DB, conversationID string, messageID *string, userID string, rating int, comment string) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		MessageID:      messageID,
		UserID:         userID,
		Rating:         rating,
		Comment:        comment,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		return nil, err
	}
	return fb, nil
}

// FeedbackTotals returns the number of feedback rows and how many of them are
// positive.
func FeedbackTotals(ctx context.Context, db *gorm.DB) (total, positive int64, err error) {
	q := db.WithContext(ctx).Model(&domain.Feedback{})
	if err = q.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = db.WithContext(ctx).Model(&domain.Feedback{}).Where("rating > 0").Count(&positive).Error; err != nil {
		return 0, 0, err
	}
	return total, positive, nil
}
