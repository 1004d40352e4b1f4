// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// CreateConversation inserts a new active conversation owned by userID.
func CreateConversation(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Status:    domain.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation by ID and owner, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConversationTitle renames a conversation owned by userID.
func UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchConversation bumps UpdatedAt so the idle sweeper sees recent activity.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

// EndConversation marks an active conversation as ended. Ending an already
// ended conversation is a no-op; ErrNotFound means no such conversation.
func EndConversation(ctx context.Context, db *gorm.DB, id, userID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.ConversationActive).
		Updates(map[string]any{"status": domain.ConversationEnded, "ended_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetConversation(ctx, db, id, userID); err != nil {
			return err
		}
	}
	return nil
}

// EndIdleConversations ends every active conversation not updated since
// cutoff and returns how many were closed.
func EndIdleConversations(ctx context.Context, db *gorm.DB, cutoff, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("status = ? AND updated_at < ?", domain.ConversationActive, cutoff).
		Updates(map[string]any{"status": domain.ConversationEnded, "ended_at": at})
	return res.RowsAffected, res.Error
}

// CountConversations returns the number of conversations, optionally limited
// to one status (empty means all).
func CountConversations(ctx context.Context, db *gorm.DB, status domain.ConversationStatus) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Conversation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

// AverageSessionDuration returns the mean lifetime of ended conversations
// (ended_at - created_at). Zero when none have ended.
func AverageSessionDuration(ctx context.Context, db *gorm.DB) (time.Duration, error) {
	var rows []struct {
		CreatedAt time.Time
		EndedAt   *time.Time
	}
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Select("created_at, ended_at").
		Where("ended_at IS NOT NULL").
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	var sum time.Duration
	for _, r := range rows {
		if r.EndedAt != nil && r.EndedAt.After(r.CreatedAt) {
			sum += r.EndedAt.Sub(r.CreatedAt)
		}
	}
	return sum / time.Duration(len(rows)), nil
}
