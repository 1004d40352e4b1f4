package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

const testScope = "POST /api/v1/complaints"

func newIdemRepo(t *testing.T, at time.Time) *IdempotencyRepo {
	t.Helper()
	r := NewIdempotencyRepo(newTestDB(t, &domain.Idempotency{}))
	r.now = func() time.Time { return at }
	return r
}

func TestIdempotencyRepo_RememberAndLookup(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newIdemRepo(t, t0)

	if err := r.Remember(ctx, "u1", testScope, "k1", "c1", 201, time.Hour); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	cases := []struct {
		name             string
		user, scope, key string
		at               time.Time
		wantID           string
		wantFound        bool
	}{
		{"hit", "u1", testScope, "k1", t0.Add(time.Minute), "c1", true},
		{"other route", "u1", "POST /api/v1/chatbot/message", "k1", t0, "", false},
		{"other user", "u2", testScope, "k1", t0, "", false},
		{"expired", "u1", testScope, "k1", t0.Add(time.Hour), "", false},
		{"blank scope", "u1", "  ", "k1", t0, "", false},
		{"blank key", "u1", testScope, "", t0, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok, err := r.Lookup(ctx, tc.user, tc.scope, tc.key, tc.at)
			if err != nil || id != tc.wantID || ok != tc.wantFound {
				t.Fatalf("Lookup = (%q, %v, %v); want (%q, %v, nil)", id, ok, err, tc.wantID, tc.wantFound)
			}
		})
	}
}

func TestIdempotencyRepo_DuplicateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().UTC()
	r := newIdemRepo(t, t0)

	if _, err := r.insert(ctx, "u1", testScope, "k1", "c1", 201, time.Hour); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := r.insert(ctx, "u1", testScope, "k1", "c2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert err = %v, want ErrDuplicate", err)
	}
	if err := r.Remember(ctx, "u1", testScope, "k1", "c3", 201, time.Hour); err != nil {
		t.Fatalf("Remember on duplicate should be nil, got %v", err)
	}
	if id, _, _ := r.Lookup(ctx, "u1", testScope, "k1", t0); id != "c1" {
		t.Fatalf("first writer lost: %q", id)
	}
}

func TestIdempotencyRepo_Purge(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().UTC()
	r := newIdemRepo(t, t0)
	for key, ttl := range map[string]time.Duration{"short": time.Minute, "long": 48 * time.Hour} {
		if err := r.Remember(ctx, "u1", testScope, key, "c-"+key, 201, ttl); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	n, err := r.Purge(ctx, t0.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Purge: n=%d err=%v", n, err)
	}
	if _, ok, _ := r.Lookup(ctx, "u1", testScope, "long", t0); !ok {
		t.Fatal("unexpired record purged")
	}
}

func TestIdempotencyRepo_NoTable(t *testing.T) {
	r := NewIdempotencyRepo(newTestDB(t))
	err := r.Remember(context.Background(), "u1", testScope, "k", "r", 201, time.Hour)
	if err == nil {
		t.Fatal("expected a database error")
	}
	if _, _, err := r.Lookup(context.Background(), "u1", testScope, "k", time.Now()); err == nil {
		t.Fatal("expected a database error from Lookup")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{errors.New("UNIQUE constraint failed: idempotency.key"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "ux"`), true},
		{errors.New("no such table: idempotency"), false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("IsUniqueViolation(%v) = %v", tc.err, got)
		}
	}
}
