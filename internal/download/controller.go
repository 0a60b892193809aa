// Package download implements the submission state machine that turns a
// filtered feed item into a persisted DownloadHistory row (spec.md §4.5).
package download

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/filter"
	"github.com/sunerpy/akari/internal/mikan"
	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

// TorrentAdder is the narrow torrent-client surface the controller needs.
// Satisfied by *qbit.Client.
type TorrentAdder interface {
	AddTorrentWithTracking(ctx context.Context, urlOrMagnet, hash string, opts qbit.AddOptions) (*qbit.AddedTorrent, error)
}

// HistoryStore is the narrow persistence-gateway surface the controller
// needs. Satisfied by *models.AnimeDB.
type HistoryStore interface {
	InsertIfAbsent(row *models.DownloadHistory) (*models.DownloadHistory, error)
}

// Controller submits filtered items to the torrent client and records at
// most one history row per hash; a transient client failure records none
// (spec §4.5).
type Controller struct {
	adder   TorrentAdder
	history HistoryStore
	opts    qbit.AddOptions
}

// New creates a Controller. opts is applied to every AddTorrentWithTracking
// call this controller makes, scheduled or manual (spec §4.5 step 1:
// AddTorrent(..., category, save_path)).
func New(adder TorrentAdder, history HistoryStore, opts qbit.AddOptions) *Controller {
	return &Controller{adder: adder, history: history, opts: opts}
}

// SubmissionOutcome reports what happened to one item, for the caller's
// logging/counters.
type SubmissionOutcome struct {
	Item  filter.Item
	Row   *models.DownloadHistory
	Error error
	// Deferred is true when a transient failure left the hash unrecorded,
	// so the next tick's dedup step re-observes the item naturally.
	Deferred bool
}

// SubmitSubscriptionItems submits every item for one subscription tick, in
// published_at ascending order so older episodes land before newer ones
// within the subscription (spec §5 ordering guarantees). Items from
// different subscriptions must never be interleaved through one call.
func (c *Controller) SubmitSubscriptionItems(ctx context.Context, items []filter.Item, sub *models.Subscription) []SubmissionOutcome {
	sorted := make([]filter.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PublishedAt.Before(sorted[j].PublishedAt) })

	outcomes := make([]SubmissionOutcome, 0, len(sorted))
	now := time.Now()
	for _, it := range sorted {
		outcomes = append(outcomes, c.submit(ctx, it, sub.ID, models.SourceSubscription, sub.MikanBangumiID, sub.BangumiID, sub.Title, now))
	}
	return outcomes
}

// SubmitManual submits one manually-requested item, attributed to the
// reserved manual-download sentinel subscription (spec §4.5 "Manual
// path"). If item carries no hash and none can be derived from its
// magnet link, the request is rejected before ever touching the torrent
// client.
func (c *Controller) SubmitManual(ctx context.Context, item filter.Item, manualSub *models.Subscription, animeBangumiID int64, animeTitle string) SubmissionOutcome {
	if item.TorrentHash == "" {
		if hash, ok := mikan.ExtractHashFromMagnet(item.MagnetLink); ok {
			item.TorrentHash = hash
		}
	}
	if item.TorrentHash == "" {
		return SubmissionOutcome{Item: item, Error: apperr.Validation("no torrent hash derivable from submission", errors.New("missing hash and magnet"))}
	}
	outcome := c.submit(ctx, item, manualSub.ID, models.SourceManual, "", animeBangumiID, animeTitle, time.Now())
	return outcome
}

// submit performs the submit-then-persist sequence: AddTorrent is called
// before any row is written, and a transient failure leaves the hash
// unrecorded entirely (spec §4.5 "Submission order" — the dead-letter
// bug fix).
func (c *Controller) submit(ctx context.Context, item filter.Item, subscriptionID uint, source models.DownloadSource, mikanBangumiID string, animeBangumiID int64, animeTitle string, now time.Time) SubmissionOutcome {
	urlOrMagnet := item.MagnetLink
	if urlOrMagnet == "" {
		urlOrMagnet = item.TorrentURL
	}

	added, err := c.adder.AddTorrentWithTracking(ctx, urlOrMagnet, item.TorrentHash, c.opts)
	if err == nil {
		row := &models.DownloadHistory{
			SubscriptionID:      subscriptionID,
			TorrentURL:          item.TorrentURL,
			TorrentHash:         added.Hash,
			Title:               item.Title,
			FileSize:            item.FileSize,
			Status:              models.StatusPending,
			Source:              source,
			AnimeBangumiID:      animeBangumiID,
			AnimeMikanBangumiID: mikanBangumiID,
			AnimeTitle:          animeTitle,
			PublishedAt:         publishedAtPtr(item.PublishedAt),
			DiscoveredAt:        now,
			DownloadedAt:        &now,
		}
		persisted, persistErr := c.history.InsertIfAbsent(row)
		if persistErr != nil {
			return SubmissionOutcome{Item: item, Error: persistErr}
		}
		return SubmissionOutcome{Item: item, Row: persisted}
	}

	if isTransient(err) {
		return SubmissionOutcome{Item: item, Error: err, Deferred: true}
	}

	row := &models.DownloadHistory{
		SubscriptionID:      subscriptionID,
		TorrentURL:          item.TorrentURL,
		TorrentHash:         item.TorrentHash,
		Title:               item.Title,
		FileSize:            item.FileSize,
		Status:              models.StatusFailed,
		Source:              source,
		AnimeBangumiID:      animeBangumiID,
		AnimeMikanBangumiID: mikanBangumiID,
		AnimeTitle:          animeTitle,
		PublishedAt:         publishedAtPtr(item.PublishedAt),
		DiscoveredAt:        now,
		ErrorMessage:        err.Error(),
	}
	persisted, persistErr := c.history.InsertIfAbsent(row)
	if persistErr != nil {
		return SubmissionOutcome{Item: item, Error: persistErr}
	}
	return SubmissionOutcome{Item: item, Row: persisted, Error: err}
}

// isTransient reports whether err should leave the hash unrecorded so the
// next tick retries (spec §4.5 step 3: "client unavailable, timeout").
func isTransient(err error) bool {
	return apperr.Is(err, apperr.ErrUpstreamUnavailable) || apperr.Is(err, apperr.ErrCancelled)
}

func publishedAtPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
