package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// DownloadStatus is the state-machine status of a DownloadHistory row
// (spec §3, §4.5).
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusSkipped     DownloadStatus = "skipped"
)

// DownloadSource distinguishes subscription-driven submissions from the
// manual-download API path (spec §3, §4.5).
type DownloadSource string

const (
	SourceManual       DownloadSource = "manual"
	SourceSubscription DownloadSource = "subscription"
)

// DownloadHistory is one record per torrent hash the system has ever
// offered to the torrent client (spec §3).
type DownloadHistory struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	SubscriptionID      uint           `gorm:"index" json:"subscriptionId"`
	TorrentURL          string         `gorm:"size:2048" json:"torrentUrl"`
	TorrentHash         string         `gorm:"uniqueIndex;size:40;not null" json:"torrentHash"`
	Title               string         `gorm:"size:512" json:"title"`
	FileSize            int64          `json:"fileSize"`
	Status              DownloadStatus `gorm:"size:16;index" json:"status"`
	Source              DownloadSource `gorm:"size:16" json:"source"`
	AnimeBangumiID      int64          `json:"animeBangumiId"`
	AnimeMikanBangumiID string         `gorm:"size:64" json:"animeMikanBangumiId"`
	AnimeTitle          string         `gorm:"size:255" json:"animeTitle"`
	Progress            float64        `json:"progress"`
	DownloadSpeed       int64          `json:"downloadSpeed"`
	ETA                 int64          `json:"eta"`
	NumSeeds            int            `json:"numSeeds"`
	NumLeechers         int            `json:"numLeechers"`
	SavePath            string         `gorm:"size:1024" json:"savePath"`
	Category            string         `gorm:"size:128" json:"category"`
	PublishedAt         *time.Time     `json:"publishedAt"`
	DiscoveredAt        time.Time      `json:"discoveredAt"`
	DownloadedAt        *time.Time     `json:"downloadedAt"`
	LastSyncedAt        *time.Time     `json:"lastSyncedAt"`
	ErrorMessage        string         `gorm:"size:1024" json:"errorMessage"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// NormalizeHash trims and upper-cases a torrent hash at the persistence
// boundary; feed parsing and the qBittorrent adapter use mikan.NormalizeHash,
// which also converts base32 hashes (§9 design note, §8 idempotence law: NormalizeHash(NormalizeHash(x)) ==
// NormalizeHash(x)).
func NormalizeHash(hash string) string {
	return strings.ToUpper(strings.TrimSpace(hash))
}

// ExistsByHash reports whether a history row already exists for hash.
func (a *AnimeDB) ExistsByHash(hash string) (bool, error) {
	var count int64
	err := a.DB.Model(&DownloadHistory{}).Where("torrent_hash = ?", NormalizeHash(hash)).Count(&count).Error
	return count > 0, err
}

// BatchExistsByHashes performs the single batched dedup lookup required by
// spec §4.4 step 1 — N+1 queries are prohibited. Returns the subset of the
// input hashes (normalized) that already have a history row.
func (a *AnimeDB) BatchExistsByHashes(hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}
	normalized := make([]string, len(hashes))
	for i, h := range hashes {
		normalized[i] = NormalizeHash(h)
	}
	var found []string
	if err := a.DB.Model(&DownloadHistory{}).
		Where("torrent_hash IN ?", normalized).
		Pluck("torrent_hash", &found).Error; err != nil {
		return nil, err
	}
	for _, h := range found {
		result[h] = true
	}
	return result, nil
}

// InsertIfAbsent inserts a new history row, normalizing its hash first. If
// a concurrent insert for the same hash already won, the unique-constraint
// violation is treated as success and the existing row is returned (spec
// §4.5 idempotency, §8 round-trip law).
func (a *AnimeDB) InsertIfAbsent(row *DownloadHistory) (*DownloadHistory, error) {
	row.TorrentHash = NormalizeHash(row.TorrentHash)
	err := a.DB.Create(row).Error
	if err == nil {
		return row, nil
	}
	existing, findErr := a.FindByHash(row.TorrentHash)
	if findErr != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return nil, err
}

// FindByHash re-reads a history row by its normalized hash.
func (a *AnimeDB) FindByHash(hash string) (*DownloadHistory, error) {
	var row DownloadHistory
	err := a.DB.Where("torrent_hash = ?", NormalizeHash(hash)).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &row, err
}

// DeleteByHash removes a history row; used only on explicit user deletion
// via the torrent-client adapter (spec §4.6/§4.7 step 5).
func (a *AnimeDB) DeleteByHash(hash string) error {
	return a.DB.Where("torrent_hash = ?", NormalizeHash(hash)).Delete(&DownloadHistory{}).Error
}

// ProgressChange is one row's worth of realtime-field updates collected by
// the progress reconciler before a single batched write (spec §4.7 step 4).
type ProgressChange struct {
	TorrentHash   string
	Status        DownloadStatus
	Progress      float64
	DownloadSpeed int64
	ETA           int64
	NumSeeds      int
	NumLeechers   int
	ErrorMessage  string
	SyncedAt      time.Time
	DownloadedAt  *time.Time
}

// UpdateProgressBatch persists every reconciler change in one transaction
// (spec §4.7 step 4); last_synced_at is set on each.
func (a *AnimeDB) UpdateProgressBatch(changes []ProgressChange) error {
	if len(changes) == 0 {
		return nil
	}
	return a.DB.Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			updates := map[string]any{
				"status":         c.Status,
				"progress":       c.Progress,
				"download_speed": c.DownloadSpeed,
				"eta":            c.ETA,
				"num_seeds":      c.NumSeeds,
				"num_leechers":   c.NumLeechers,
				"last_synced_at": c.SyncedAt,
			}
			if c.ErrorMessage != "" {
				updates["error_message"] = c.ErrorMessage
			}
			if c.DownloadedAt != nil {
				updates["downloaded_at"] = *c.DownloadedAt
			}
			if err := tx.Model(&DownloadHistory{}).
				Where("torrent_hash = ?", NormalizeHash(c.TorrentHash)).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListHistoryBySubscription returns history rows for one subscription,
// newest first.
func (a *AnimeDB) ListHistoryBySubscription(subscriptionID uint) ([]DownloadHistory, error) {
	var rows []DownloadHistory
	err := a.DB.Where("subscription_id = ?", subscriptionID).Order("discovered_at DESC").Find(&rows).Error
	return rows, err
}

// ListHistoryByBangumiID returns history rows attributed to a bangumi id,
// whether via subscription or manual submission (spec §6 "Query download
// history ... by manual-anime bangumi_id").
func (a *AnimeDB) ListHistoryByBangumiID(bangumiID int64) ([]DownloadHistory, error) {
	var rows []DownloadHistory
	err := a.DB.Where("anime_bangumi_id = ?", bangumiID).Order("discovered_at DESC").Find(&rows).Error
	return rows, err
}

// ListActiveHistory returns every history row not yet in a terminal state
// (pending/downloading), for the §6 "list torrents with realtime merge"
// operation — these are the only rows worth reconciling against a live
// qBittorrent fetch.
func (a *AnimeDB) ListActiveHistory() ([]DownloadHistory, error) {
	var rows []DownloadHistory
	err := a.DB.Where("status IN ?", []DownloadStatus{StatusPending, StatusDownloading}).
		Order("discovered_at DESC").Find(&rows).Error
	return rows, err
}
