// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Complaint
// and Attachment models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. Every
// query is scoped to the owning user; a complaint that exists but belongs to
// someone else is indistinguishable from a missing one (ErrNotFound).
//
// Functions:
//
//   - CreateComplaint(ctx, db, c) -> error
//     Inserts the complaint together with its attachments.
//
//   - GetComplaint(ctx, db, id, userID) -> *domain.Complaint, error
//     Loads one complaint with attachment metadata (payloads omitted).
//
//   - CountComplaints / ListComplaintsPage
//     Filtered listing, newest first, for paginated responses.
//
//   - UpdateComplaint(ctx, db, id, userID, fields) -> error
//     Applies a column map; ErrNotFound when nothing matched.
//
//   - DeleteComplaint(ctx, db, id, userID) -> error
//     Soft-deletes the complaint.
//
//   - GetAttachment(ctx, db, complaintID, attachmentID, userID)
//     Loads one attachment including its payload.
//
//   - CountByStatus(ctx, db, userID) -> domain.Stats, error
//     Aggregates complaint counts per status bucket.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// complaintFilters scopes a query to userID and the non-empty fields of f.
// Search is a case-insensitive substring match over title, description
// and location.
func complaintFilters(userID string, f domain.Filters) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("user_id = ?", userID)
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Category != "" {
			q = q.Where("category = ?", f.Category)
		}
		if f.Priority != "" {
			q = q.Where("priority = ?", f.Priority)
		}
		if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
			like := "%" + escapeLike(term) + "%"
			q = q.Where(
				"LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\' OR LOWER(location) LIKE ? ESCAPE '\\'",
				like, like, like,
			)
		}
		return q
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CreateComplaint inserts c and its attachments in one statement batch.
// The caller assigns IDs.
func CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetComplaint fetches a single complaint by ID and owner. Attachment rows are
// preloaded without their binary payload.
func GetComplaint(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Complaint, error) {
	var c domain.Complaint
	err := db.WithContext(ctx).
		Preload("Attachments", func(q *gorm.DB) *gorm.DB {
			return q.Omit("data").Order("created_at ASC, id ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountComplaints returns how many of userID's complaints match f.
func CountComplaints(ctx context.Context, db *gorm.DB, userID string, f domain.Filters) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Scopes(complaintFilters(userID, f)).
		Count(&total).Error
	return total, err
}

// ListComplaintsPage returns a page of userID's complaints matching f, ordered
// by submission time descending (newest first).
func ListComplaintsPage(ctx context.Context, db *gorm.DB, userID string, f domain.Filters, offset, limit int) ([]domain.Complaint, error) {
	var out []domain.Complaint
	err := db.WithContext(ctx).
		Scopes(complaintFilters(userID, f)).
		Preload("Attachments", func(q *gorm.DB) *gorm.DB {
			return q.Omit("data").Order("created_at ASC, id ASC")
		}).
		Order("submitted_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateComplaint applies fields (column -> value) to the complaint identified
// by id and owned by userID. If no rows are affected it returns ErrNotFound.
func UpdateComplaint(ctx context.Context, db *gorm.DB, id, userID string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteComplaint soft-deletes the complaint. Attachments stay in place until
// the row is purged.
func DeleteComplaint(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Complaint{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetAttachment loads one attachment, payload included, checking that its
// complaint is live and owned by userID.
func GetAttachment(ctx context.Context, db *gorm.DB, complaintID, attachmentID, userID string) (*domain.Attachment, error) {
	var a domain.Attachment
	err := db.WithContext(ctx).
		Joins("JOIN complaints ON complaints.id = attachments.complaint_id").
		Where("attachments.id = ? AND attachments.complaint_id = ?", attachmentID, complaintID).
		Where("complaints.user_id = ? AND complaints.deleted_at IS NULL", userID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountByStatus aggregates userID's complaints per status. In-progress
// complaints count towards Total only.
func CountByStatus(ctx context.Context, db *gorm.DB, userID string) (domain.Stats, error) {
	var rows []struct {
		Status domain.Status
		N      int
	}
	err := db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.Stats{}, err
	}
	var s domain.Stats
	for _, r := range rows {
		s.Total += r.N
		switch r.Status {
		case domain.StatusPending:
			s.Pending = r.N
		case domain.StatusResolved:
			s.Resolved = r.N
		case domain.StatusRejected:
			s.Rejected = r.N
		}
	}
	return s, nil
}
