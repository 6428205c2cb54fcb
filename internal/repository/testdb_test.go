package repository

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated SQLite database in a per-test temp file.
// A file is used over :memory: so every pooled connection sees one database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.Attachment{}, &models.PostAttachment{}))
	return db
}

func hexID(n int) string {
	return fmt.Sprintf("%064x", n)
}

func newPost(n int, author string) *models.Post {
	return &models.Post{
		ID:        hexID(n),
		Version:   0,
		Host:      "ephemera.example",
		Author:    author,
		Content:   fmt.Sprintf("post %d", n),
		Footer:    "[]",
		Signature: fmt.Sprintf("%0128x", n),
		Timestamp: int64(1700000000000 + n),
	}
}
