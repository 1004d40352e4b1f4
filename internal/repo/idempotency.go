package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// ErrDuplicate means a record for the same (user, scope, key) already exists.
var ErrDuplicate = errors.New("duplicate")

// IdempotencyRepo stores which resource an Idempotency-Key produced. It
// backs the request validator (Lookup) and the handlers (Remember).
type IdempotencyRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewIdempotencyRepo returns a repository over db using the wall clock.
func NewIdempotencyRepo(db *gorm.DB) *IdempotencyRepo {
	return &IdempotencyRepo{db: db, now: time.Now}
}

// Lookup returns the resource remembered for a key that has not expired at
// now. Blank scopes and keys never match.
func (r *IdempotencyRepo) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(key) == "" {
		return "", false, nil
	}
	var rec domain.Idempotency
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at > ?", userID, scope, key, now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// Remember records that key produced resourceID with status. When two
// requests race, the first record stands and the loser gets nil.
func (r *IdempotencyRepo) Remember(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) error {
	_, err := r.insert(ctx, userID, scope, key, resourceID, status, ttl)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (r *IdempotencyRepo) insert(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := r.now().UTC()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     userID,
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// Purge deletes records that expired at or before now.
func (r *IdempotencyRepo) Purge(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// SQLite reports unique violations as text; Postgres errors are translated
// to gorm.ErrDuplicatedKey because OpenPostgres sets TranslateError.
var uniqueViolationMarkers = []string{
	"unique constraint failed",
	"constraint failed: unique",
	"duplicate key value",
}

// IsUniqueViolation recognizes unique-constraint failures from either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range uniqueViolationMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
