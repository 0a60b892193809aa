package models

import (
	"time"

	"gorm.io/gorm"
)

// SubgroupMapping is one (mikan_bangumi_id, subgroup_id) pairing observed
// on an anime's Mikan page, used to populate the subgroup picker for a
// subscription (spec §4.3).
type SubgroupMapping struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	MikanBangumiID string    `gorm:"size:64;uniqueIndex:idx_subgroup_mapping" json:"mikanBangumiId"`
	SubgroupID     string    `gorm:"size:64;uniqueIndex:idx_subgroup_mapping" json:"subgroupId"`
	SubgroupName   string    `gorm:"size:255" json:"subgroupName"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ListSubgroupsForAnime returns every subgroup mapping known for a Mikan
// anime id (spec §6 "list subgroups for an anime").
func (a *AnimeDB) ListSubgroupsForAnime(mikanBangumiID string) ([]SubgroupMapping, error) {
	var rows []SubgroupMapping
	err := a.DB.Where("mikan_bangumi_id = ?", mikanBangumiID).Order("subgroup_name ASC").Find(&rows).Error
	return rows, err
}

// SyncSubgroups replaces the subgroup set known for a Mikan anime with the
// rows scraped during a full page sync (spec §4.3 step 3 full-sync
// semantics):
//
//   - fetchSucceeded == false: the scrape itself failed (network error,
//     unexpected markup); the existing mapping is left untouched, since an
//     empty `current` here carries no information about what subgroups
//     actually exist.
//   - fetchSucceeded == true and current is empty: the page loaded but
//     listed no subgroups; the mapping is cleared, since an empty result
//     from a successful fetch IS the new truth.
//   - fetchSucceeded == true and current is non-empty: the mapping is
//     replaced with current in one transaction.
func (a *AnimeDB) SyncSubgroups(mikanBangumiID string, current []SubgroupMapping, fetchSucceeded bool) error {
	if !fetchSucceeded {
		return nil
	}
	return a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mikan_bangumi_id = ?", mikanBangumiID).Delete(&SubgroupMapping{}).Error; err != nil {
			return err
		}
		if len(current) == 0 {
			return nil
		}
		now := time.Now()
		for i := range current {
			current[i].MikanBangumiID = mikanBangumiID
			current[i].UpdatedAt = now
		}
		return tx.Create(&current).Error
	})
}
