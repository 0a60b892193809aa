package models

import (
	"time"

	"gorm.io/gorm"
)

// SchemaVersion tracks applied migrations so AutoMigrate additions don't
// silently drift between releases. This is a guard, not a migration
// system: full schema-migration tooling is out of scope (spec.md §1).
type SchemaVersion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Version     int       `gorm:"uniqueIndex;not null" json:"version"`
	Description string    `gorm:"size:255" json:"description"`
	AppliedAt   time.Time `gorm:"not null" json:"applied_at"`
	AppVersion  string    `gorm:"size:64" json:"app_version"`
}

// CurrentSchemaVersion is bumped every time a migration is registered below.
const CurrentSchemaVersion = 1

// Schema history:
// v1: initial schema (subscriptions, download history, feed cache, subgroup mapping).

type MigrationFunc func(db *gorm.DB) error

type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
}

type SchemaManager struct {
	db         *gorm.DB
	migrations []Migration
	appVersion string
}

func NewSchemaManager(db *gorm.DB, appVersion string) *SchemaManager {
	return &SchemaManager{db: db, appVersion: appVersion}
}

func (sm *SchemaManager) GetCurrentVersion() (int, error) {
	if !sm.db.Migrator().HasTable(&SchemaVersion{}) {
		return 0, nil
	}
	var sv SchemaVersion
	err := sm.db.Order("version DESC").First(&sv).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sv.Version, nil
}

func (sm *SchemaManager) EnsureSchemaVersionTable() error {
	return sm.db.AutoMigrate(&SchemaVersion{})
}

func (sm *SchemaManager) RecordVersion(version int, description string) error {
	sv := SchemaVersion{
		Version:     version,
		Description: description,
		AppliedAt:   time.Now(),
		AppVersion:  sm.appVersion,
	}
	return sm.db.Create(&sv).Error
}

// RunMigrations brings a fresh or existing database up to
// CurrentSchemaVersion, recording every step taken.
func (sm *SchemaManager) RunMigrations() error {
	if err := sm.EnsureSchemaVersionTable(); err != nil {
		return err
	}
	currentVersion, err := sm.GetCurrentVersion()
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		if err := sm.RecordVersion(CurrentSchemaVersion, "initial install"); err != nil {
			return err
		}
		return nil
	}
	for _, m := range sm.migrations {
		if m.Version > currentVersion {
			if err := m.Up(sm.db); err != nil {
				return err
			}
			if err := sm.RecordVersion(m.Version, m.Description); err != nil {
				return err
			}
		}
	}
	return nil
}
