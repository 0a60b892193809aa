package models

import (
	"time"

	"gorm.io/gorm"
)

// ManualSentinelBangumiID and ManualSentinelTitle identify the reserved,
// permanently-disabled subscription used to attribute manual downloads
// (spec §3 invariant ii).
const (
	ManualSentinelBangumiID = -1
	ManualSentinelTitle     = "__manual_download_tracking__"
)

// Subscription represents a user's interest in one anime release track
// (spec §3).
type Subscription struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BangumiID       int64      `gorm:"uniqueIndex:idx_bangumi_id" json:"bangumiId"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	MikanBangumiID  string     `gorm:"size:64;index" json:"mikanBangumiId"`
	SubgroupID      string     `gorm:"size:64" json:"subgroupId"`
	SubgroupName    string     `gorm:"size:255" json:"subgroupName"`
	KeywordInclude  string     `gorm:"size:512" json:"keywordInclude"`
	KeywordExclude  string     `gorm:"size:512" json:"keywordExclude"`
	IsEnabled       bool       `gorm:"default:true;index" json:"isEnabled"`
	LastCheckedAt   *time.Time `gorm:"index" json:"lastCheckedAt"`
	LastDownloadAt  *time.Time `json:"lastDownloadAt"`
	DownloadCount   int        `gorm:"default:0" json:"downloadCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// IsManualSentinel reports whether this row is the reserved manual-download
// attribution subscription.
func (s *Subscription) IsManualSentinel() bool {
	return s.BangumiID == ManualSentinelBangumiID
}

// ListEnabledForPoll implements the §4.1 fair-selection query: enabled,
// real (bangumi_id > 0) subscriptions ordered by last_checked_at ascending
// (nulls first), id ascending as tie-breaker, capped at limit. Because the
// ordering key is mutated by every check (UpdateCheckTimestamps), repeated
// calls rotate through the whole enabled set instead of starving the tail.
func (a *AnimeDB) ListEnabledForPoll(limit int) ([]Subscription, error) {
	var subs []Subscription
	err := a.DB.
		Where("is_enabled = ? AND bangumi_id > 0", true).
		Order("last_checked_at IS NOT NULL, last_checked_at ASC, id ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// GetSubscriptionByID re-reads a subscription by identity.
func (a *AnimeDB) GetSubscriptionByID(id uint) (*Subscription, error) {
	var sub Subscription
	if err := a.DB.First(&sub, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// GetSubscriptionByBangumiID looks up the (at most one) active subscription
// for an external anime identifier.
func (a *AnimeDB) GetSubscriptionByBangumiID(bangumiID int64) (*Subscription, error) {
	var sub Subscription
	err := a.DB.Where("bangumi_id = ?", bangumiID).First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &sub, err
}

// EnsureSubscription idempotently upserts a subscription keyed by
// bangumi_id (spec §6 "Ensure subscription", §8 round-trip law): calling
// it twice with the same (bangumiID, title, mikanBangumiID) returns the
// same id and performs no duplicate insert. A unique-constraint race is
// treated as success-on-existing (Conflict kind, spec §7).
func (a *AnimeDB) EnsureSubscription(bangumiID int64, title, mikanBangumiID string) (*Subscription, error) {
	var sub Subscription
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		lookupErr := tx.Where("bangumi_id = ?", bangumiID).First(&sub).Error
		if lookupErr == nil {
			return nil
		}
		if lookupErr != gorm.ErrRecordNotFound {
			return lookupErr
		}
		sub = Subscription{
			BangumiID:      bangumiID,
			Title:          title,
			MikanBangumiID: mikanBangumiID,
			IsEnabled:      true,
		}
		if createErr := tx.Create(&sub).Error; createErr != nil {
			// Concurrent ensure raced us; the loser reads back the winner's row.
			if again := tx.Where("bangumi_id = ?", bangumiID).First(&sub).Error; again == nil {
				return nil
			}
			return createErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription creates or fully replaces a user-edited subscription.
func (a *AnimeDB) UpsertSubscription(sub *Subscription) error {
	return a.DB.Save(sub).Error
}

// UpdateCheckTimestamps is called exactly once per tick per subscription
// (spec §4.1 step 4), regardless of outcome, so the fair-selection window
// rotates even when the check failed.
func (a *AnimeDB) UpdateCheckTimestamps(id uint, checkedAt time.Time, downloadAt *time.Time, incrementCount bool) error {
	updates := map[string]any{"last_checked_at": checkedAt}
	if downloadAt != nil {
		updates["last_download_at"] = *downloadAt
	}
	if incrementCount {
		return a.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&Subscription{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
			return tx.Model(&Subscription{}).Where("id = ?", id).
				UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
		})
	}
	return a.DB.Model(&Subscription{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteSubscription removes a subscription; history rows survive deletion
// (spec §3 lifecycle).
func (a *AnimeDB) DeleteSubscription(id uint) error {
	return a.DB.Delete(&Subscription{}, id).Error
}

// ListSubscriptions returns every subscription row, including the manual
// sentinel, for the UI collaborator's list operation.
func (a *AnimeDB) ListSubscriptions() ([]Subscription, error) {
	var subs []Subscription
	err := a.DB.Order("id ASC").Find(&subs).Error
	return subs, err
}
