package repo

import (
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/repo/repotest"
)

func newTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	return repotest.NewDB(t, models...)
}
