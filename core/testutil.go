package core

import (
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/sunerpy/akari/models"
)

// NewTempDBDir creates a temporary sqlite-backed AnimeDB under dir and runs
// the full migration set, for tests that need a real gorm handle without
// touching the user's home directory.
func NewTempDBDir(dir string) (*models.AnimeDB, error) {
	dbFile := filepath.Join(dir, "akari.db")
	db, err := gorm.Open(sqlite.Open("file:"+dbFile), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return models.NewAnimeDBFromGorm(db, appVersion)
}
