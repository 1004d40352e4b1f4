// Package repotest opens throwaway databases for tests.
package repotest

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a private in-memory SQLite database with foreign keys on,
// closed when t finishes. Each model in models is auto-migrated.
func NewDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("repotest: open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("repotest: migrate: %v", err)
		}
	}
	return db
}

// Migrated is NewDB followed by migrate, typically repo.AutoMigrate.
func Migrated(t testing.TB, migrate func(*gorm.DB) error) *gorm.DB {
	t.Helper()
	db := NewDB(t)
	if err := migrate(db); err != nil {
		t.Fatalf("repotest: migrate: %v", err)
	}
	return db
}
