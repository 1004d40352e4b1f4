package services

import (
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/repo"
	"github.com/tbourn/go-complaint-desk/internal/repo/repotest"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return repotest.Migrated(t, repo.AutoMigrate)
}
