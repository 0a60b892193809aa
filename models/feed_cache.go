package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedCacheHeader records the last successful or failed fetch of one
// upstream feed, keyed by the same (mikan_bangumi_id, subgroup_id) pair
// that subscriptions and subgroup mapping use (spec §4.2, §4.3).
type FeedCacheHeader struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	MikanBangumiID    string    `gorm:"size:64;uniqueIndex:idx_feed_cache_key" json:"mikanBangumiId"`
	SubgroupID        string    `gorm:"size:64;uniqueIndex:idx_feed_cache_key" json:"subgroupId"`
	FetchedAt         time.Time `json:"fetchedAt"`
	Succeeded         bool      `json:"succeeded"`
	ItemCount         int       `json:"itemCount"`
	ErrorMessage      string    `gorm:"size:1024" json:"errorMessage"`
	EpisodeOffset     int       `json:"episodeOffset"`
	LatestEpisode     int       `json:"latestEpisode"`
	LatestPublishedAt time.Time `json:"latestPublishedAt"`
	LatestTitle       string    `gorm:"size:512" json:"latestTitle"`
	SeasonName        string    `gorm:"size:255" json:"seasonName"`
}

// FeedCacheItem is one parsed entry from a cached feed fetch. Rows stay until
// the next Replace for the same header; they are served instead of a live
// fetch only while the header is fresh within FeedCacheTTLSeconds.
type FeedCacheItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	HeaderID    uint      `gorm:"index" json:"headerId"`
	Title       string    `gorm:"size:512" json:"title"`
	TorrentURL  string    `gorm:"size:2048" json:"torrentUrl"`
	TorrentHash string    `gorm:"size:40" json:"torrentHash"`
	FileSize    int64     `json:"fileSize"`
	PublishedAt time.Time `json:"publishedAt"`
}

// GetHeader returns the cache header for a feed key, or nil if never
// fetched.
func (a *AnimeDB) GetHeader(mikanBangumiID, subgroupID string) (*FeedCacheHeader, error) {
	var header FeedCacheHeader
	err := a.DB.Where("mikan_bangumi_id = ? AND subgroup_id = ?", mikanBangumiID, subgroupID).First(&header).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &header, err
}

// GetCachedItems returns the items attached to a cache header, used when a
// fetch is coalesced within the TTL window instead of re-hitting Mikan.
func (a *AnimeDB) GetCachedItems(headerID uint) ([]FeedCacheItem, error) {
	var items []FeedCacheItem
	err := a.DB.Where("header_id = ?", headerID).Find(&items).Error
	return items, err
}

// IsFresh reports whether a cache header was fetched within ttl of now.
func (h *FeedCacheHeader) IsFresh(now time.Time, ttl time.Duration) bool {
	if h == nil {
		return false
	}
	return now.Sub(h.FetchedAt) < ttl
}

// ReplaceParams carries the feed-parser output that gets stamped onto the
// cache header alongside the item set (spec §4.3 "Store episode_offset on
// the feed cache header").
type ReplaceParams struct {
	Succeeded         bool
	ErrorMessage      string
	EpisodeOffset     int
	LatestEpisode     int
	LatestPublishedAt time.Time
	LatestTitle       string
	SeasonName        string
	Items             []FeedCacheItem
}

// Replace atomically overwrites the cache entry for (mikanBangumiID,
// subgroupID): the previous header and its items are deleted and a new
// header+item set is written in one transaction, so readers never observe
// a header with a stale or partial item set (spec §4.2 step 4).
func (a *AnimeDB) Replace(mikanBangumiID, subgroupID string, p ReplaceParams) (*FeedCacheHeader, error) {
	var header FeedCacheHeader
	items := p.Items
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		header = FeedCacheHeader{
			MikanBangumiID:    mikanBangumiID,
			SubgroupID:        subgroupID,
			FetchedAt:         time.Now(),
			Succeeded:         p.Succeeded,
			ItemCount:         len(items),
			ErrorMessage:      p.ErrorMessage,
			EpisodeOffset:     p.EpisodeOffset,
			LatestEpisode:     p.LatestEpisode,
			LatestPublishedAt: p.LatestPublishedAt,
			LatestTitle:       p.LatestTitle,
			SeasonName:        p.SeasonName,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "mikan_bangumi_id"}, {Name: "subgroup_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"fetched_at", "succeeded", "item_count", "error_message",
				"episode_offset", "latest_episode", "latest_published_at", "latest_title", "season_name",
			}),
		}).Create(&header).Error; err != nil {
			return err
		}
		if err := tx.Where("mikan_bangumi_id = ? AND subgroup_id = ?", mikanBangumiID, subgroupID).First(&header).Error; err != nil {
			return err
		}
		if err := tx.Where("header_id = ?", header.ID).Delete(&FeedCacheItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].HeaderID = header.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &header, nil
}
