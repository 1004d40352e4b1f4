package repo

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/domain"
)

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "app.db")
	db, err := OpenSQLite(bad)
	if db != nil || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want not-exist error", bad, db, err)
	}
}

func TestOpenSQLite_PragmasAndPool(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragma := func(name string) string {
		t.Helper()
		var v string
		if err := db.Raw("PRAGMA " + name).Row().Scan(&v); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		return strings.ToLower(v)
	}
	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, v := range want {
		if got := pragma(name); got != v {
			t.Fatalf("PRAGMA %s = %q, want %q", name, got, v)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != sqlitePool.maxOpen {
		t.Fatalf("MaxOpenConnections = %d", n)
	}
}

func TestAutoMigrate_CreatesUsableSchema(t *testing.T) {
	db := newTestDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range models {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("no table for %T", m)
		}
	}
	// idempotent
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}

	now := time.Now().UTC()
	rows := []any{
		&domain.Complaint{ID: "c1", UserID: "u1", Title: "t", Category: domain.CategoryOther,
			Priority: domain.PriorityLow, Status: domain.StatusPending, Description: "d"},
		&domain.Conversation{ID: "v1", UserID: "u1", Title: "t", Status: domain.ConversationActive, CreatedAt: now, UpdatedAt: now},
		&domain.ChatMessage{ID: "m1", ConversationID: "v1", Sender: domain.SenderUser, Text: "hi", CreatedAt: now, UpdatedAt: now},
		&domain.Idempotency{ID: "i1", Key: "k1", UserID: "u1", Scope: "POST /complaints", ResourceID: "c1",
			Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("insert %T: %v", r, err)
		}
	}
	var got domain.Complaint
	if err := db.First(&got, "id = ?", "c1").Error; err != nil || got.UserID != "u1" {
		t.Fatalf("readback: err=%v got=%+v", err, got)
	}
}

func TestOpen_Driver(t *testing.T) {
	db, err := Open(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "open.db")})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if len(db.Plugins) != 1 {
		t.Fatalf("tracing plugin not registered: %v", db.Plugins)
	}

	if _, err := Open(config.DBConfig{Driver: "oracle"}); err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Fatalf("unsupported driver err = %v", err)
	}
}
