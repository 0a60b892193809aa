package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory sqlite database and migrates every table
// newAnimeDBFromGorm would, matching the teacher's own per-package test
// convention of bootstrapping a throwaway DB directly instead of routing
// through core (which would create an import cycle back into models).
func setupTestDB(t *testing.T) *AnimeDB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	adb, err := NewAnimeDBFromGorm(db, "test")
	if err != nil {
		t.Fatalf("初始化测试数据库失败: %v", err)
	}
	return adb
}
