package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"
)

const (
	DBFile  = "akari.db"
	WorkDir = ".akari"
)

// AnimeDB is the persistence gateway (spec §4.8): it owns the gorm handle
// and exposes the typed operations the core components call. Callers
// never hold a row across an operation boundary — they always re-read by
// identity.
type AnimeDB struct {
	DB *gorm.DB
}

// NewDB initializes and returns an AnimeDB.
func NewDB(gormLg zapgorm2.Logger) (*AnimeDB, error) {
	return NewDBWithVersion(gormLg, "unknown")
}

// NewDBWithVersion initializes an AnimeDB tagged with an application version
// for the schema-version guard.
func NewDBWithVersion(gormLg zapgorm2.Logger, appVersion string) (*AnimeDB, error) {
	homeDir, _ := os.UserHomeDir()
	dbDir := filepath.Join(homeDir, WorkDir)
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("创建工作目录失败: %w", err)
	}
	dbFile := filepath.Join(dbDir, DBFile)
	db, err := gorm.Open(
		sqlite.Open("file:"+dbFile), &gorm.Config{
			Logger: gormLg,
		})
	if err != nil {
		return nil, fmt.Errorf("无法初始化 GORM: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, fmt.Errorf("无法启用 WAL 模式: %w", err)
	}
	adb, err := newAnimeDBFromGorm(db, appVersion)
	if err != nil {
		return nil, err
	}
	return adb, nil
}

// NewAnimeDBFromGorm wraps an already-open gorm handle (e.g. an in-memory
// or temp-dir sqlite connection in tests) with the same migration and
// sentinel-bootstrap steps NewDBWithVersion runs for the real database.
func NewAnimeDBFromGorm(db *gorm.DB, appVersion string) (*AnimeDB, error) {
	return newAnimeDBFromGorm(db, appVersion)
}

func newAnimeDBFromGorm(db *gorm.DB, appVersion string) (*AnimeDB, error) {
	if err := db.AutoMigrate(
		&SchemaVersion{},
		&Subscription{},
		&DownloadHistory{},
		&FeedCacheHeader{},
		&FeedCacheItem{},
		&SubgroupMapping{},
	); err != nil {
		return nil, fmt.Errorf("自动迁移失败: %w", err)
	}

	schemaManager := NewSchemaManager(db, appVersion)
	if err := schemaManager.RunMigrations(); err != nil {
		return nil, fmt.Errorf("架构迁移失败: %w", err)
	}

	adb := &AnimeDB{DB: db}
	if err := adb.ensureManualSentinel(); err != nil {
		return nil, fmt.Errorf("写入手动下载哨兵订阅失败: %w", err)
	}
	return adb, nil
}

// ensureManualSentinel guarantees the reserved subscription used to
// attribute manual downloads exists exactly once (spec §3 invariant ii).
func (a *AnimeDB) ensureManualSentinel() error {
	var existing Subscription
	err := a.DB.Where("bangumi_id = ?", ManualSentinelBangumiID).First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	sentinel := Subscription{
		BangumiID: ManualSentinelBangumiID,
		Title:     ManualSentinelTitle,
		IsEnabled: false,
	}
	if createErr := a.DB.Create(&sentinel).Error; createErr != nil {
		// A concurrent initializer may have won the race; treat as success.
		var again Subscription
		if lookupErr := a.DB.Where("bangumi_id = ?", ManualSentinelBangumiID).First(&again).Error; lookupErr == nil {
			return nil
		}
		return createErr
	}
	// IsEnabled carries default:true, so gorm leaves the false zero value out
	// of the INSERT and the column default applies; write it explicitly.
	return a.DB.Model(&sentinel).Update("is_enabled", false).Error
}

// ManualSentinel returns the reserved subscription row used to attribute
// manual downloads.
func (a *AnimeDB) ManualSentinel() (*Subscription, error) {
	var sub Subscription
	if err := a.DB.Where("bangumi_id = ?", ManualSentinelBangumiID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
