// Package check wires the fetcher, parser, filter pipeline and download
// controller into the single per-subscription operation the scheduler
// drives and the web API exposes directly (spec.md §4.2-§4.5).
package check

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/download"
	"github.com/sunerpy/akari/internal/fetcher"
	"github.com/sunerpy/akari/internal/filter"
	"github.com/sunerpy/akari/internal/metadata"
	"github.com/sunerpy/akari/internal/mikan"
	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

// Store is the persistence-gateway surface this package needs, beyond what
// filter.HistoryLookup and download.HistoryStore already narrow.
type Store interface {
	filter.HistoryLookup
	download.HistoryStore
	GetHeader(mikanBangumiID, subgroupID string) (*models.FeedCacheHeader, error)
	GetCachedItems(headerID uint) ([]models.FeedCacheItem, error)
	Replace(mikanBangumiID, subgroupID string, p models.ReplaceParams) (*models.FeedCacheHeader, error)
	ListSubgroupsForAnime(mikanBangumiID string) ([]models.SubgroupMapping, error)
	SyncSubgroups(mikanBangumiID string, current []models.SubgroupMapping, fetchSucceeded bool) error
	ManualSentinel() (*models.Subscription, error)
}

// Options bundles the per-deployment values Service needs beyond its
// collaborators: the upstream base URL, the feed-cache TTL, and the save
// path and category forwarded to the torrent client, all §6 Configuration
// entries.
type Options struct {
	MikanBaseURL string
	FeedCacheTTL time.Duration
	SavePath     string
	Category     string
}

// Service is the composition root for one subscription's
// fetch -> parse -> filter -> submit pipeline (spec §4.2-§4.5), reused by
// both the scheduler (periodic ticks) and the web API (on-demand reads).
type Service struct {
	fetcher    *fetcher.Fetcher
	provider   metadata.Provider
	store      Store
	pipeline   *filter.Pipeline
	controller *download.Controller
	opts       Options
	logger     *zap.Logger
}

func New(f *fetcher.Fetcher, provider metadata.Provider, store Store, adder download.TorrentAdder, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		fetcher:  f,
		provider: provider,
		store:    store,
		pipeline: filter.NewPipeline(store),
		opts:     opts,
		logger:   logger,
	}
	s.controller = download.New(adder, store, qbit.AddOptions{SavePath: opts.SavePath, Category: opts.Category})
	return s
}

func (s *Service) feedURL(mikanBangumiID, subgroupID string) string {
	u := fmt.Sprintf("%s/RSS/Bangumi?bangumiId=%s", s.opts.MikanBaseURL, url.QueryEscape(mikanBangumiID))
	if subgroupID != "" {
		u += "&subgroupid=" + url.QueryEscape(subgroupID)
	}
	return u
}

func (s *Service) searchURL(query string) string {
	return fmt.Sprintf("%s/Home/Search?searchstr=%s", s.opts.MikanBaseURL, url.QueryEscape(query))
}

func (s *Service) bangumiPageURL(mikanBangumiID string) string {
	return fmt.Sprintf("%s/Home/Bangumi/%s", s.opts.MikanBaseURL, url.PathEscape(mikanBangumiID))
}

// Check implements scheduler.CheckFunc: one subscription's full tick (spec
// §4.1 step 3, §4.2-§4.5). downloaded reports whether at least one item
// was submitted successfully (used to set last_download_at).
func (s *Service) Check(ctx context.Context, sub models.Subscription) (bool, error) {
	items, err := s.fetchFilterItems(ctx, &sub)
	if err != nil {
		return false, err
	}
	kept, _, err := s.pipeline.Run(items, &sub, sub.SubgroupName)
	if err != nil {
		return false, fmt.Errorf("过滤管道执行失败: %w", err)
	}
	if len(kept) == 0 {
		return false, nil
	}
	outcomes := s.controller.SubmitSubscriptionItems(ctx, kept, &sub)
	downloaded := false
	for _, o := range outcomes {
		if o.Error == nil && !o.Deferred {
			downloaded = true
		}
		if o.Error != nil && !o.Deferred {
			s.logger.Warn("submission failed permanently",
				zap.String("title", o.Item.Title), zap.Error(o.Error))
		}
	}
	return downloaded, nil
}

// FetchParsedFeed returns the normalized feed for (mikanBangumiID,
// subgroupID), serving the persisted feed cache when it's fresh within
// FeedCacheTTL (spec §4.2 Caching) and live-fetching otherwise. bangumiID
// and seasonName feed episode-offset normalization (spec §4.3).
func (s *Service) FetchParsedFeed(ctx context.Context, mikanBangumiID, subgroupID string, bangumiID int64, seasonName string) (*mikan.FeedResponse, error) {
	header, err := s.store.GetHeader(mikanBangumiID, subgroupID)
	if err != nil {
		return nil, err
	}
	if header.IsFresh(time.Now(), s.opts.FeedCacheTTL) && header.Succeeded {
		cached, err := s.store.GetCachedItems(header.ID)
		if err != nil {
			return nil, err
		}
		items := make([]mikan.Item, 0, len(cached))
		for _, ci := range cached {
			items = append(items, cacheItemToMikanItem(ci))
		}
		return &mikan.FeedResponse{
			Items:             items,
			LatestEpisode:     header.LatestEpisode,
			LatestPublishedAt: header.LatestPublishedAt,
			LatestTitle:       header.LatestTitle,
			EpisodeOffset:     header.EpisodeOffset,
			SeasonName:        header.SeasonName,
		}, nil
	}

	raw, _, err := s.fetcher.FetchFeed(ctx, s.feedURL(mikanBangumiID, subgroupID), mikanBangumiID, subgroupID)
	if err != nil {
		if !apperr.Is(err, apperr.ErrCancelled) {
			_, _ = s.store.Replace(mikanBangumiID, subgroupID, models.ReplaceParams{Succeeded: false, ErrorMessage: err.Error()})
		}
		return nil, err
	}
	parsed, err := mikan.ParseFeed(ctx, raw, bangumiID, seasonName, s.provider)
	if err != nil {
		_, _ = s.store.Replace(mikanBangumiID, subgroupID, models.ReplaceParams{Succeeded: false, ErrorMessage: err.Error()})
		return nil, err
	}

	cacheItems := make([]models.FeedCacheItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		cacheItems = append(cacheItems, mikanItemToCacheItem(it))
	}
	if _, err := s.store.Replace(mikanBangumiID, subgroupID, models.ReplaceParams{
		Succeeded:         true,
		EpisodeOffset:     parsed.EpisodeOffset,
		LatestEpisode:     parsed.LatestEpisode,
		LatestPublishedAt: parsed.LatestPublishedAt,
		LatestTitle:       parsed.LatestTitle,
		SeasonName:        parsed.SeasonName,
		Items:             cacheItems,
	}); err != nil {
		return nil, err
	}
	return parsed, nil
}

// fetchFilterItems is FetchParsedFeed narrowed to the shape the filter
// pipeline consumes, for the scheduler's Check path.
func (s *Service) fetchFilterItems(ctx context.Context, sub *models.Subscription) ([]filter.Item, error) {
	parsed, err := s.FetchParsedFeed(ctx, sub.MikanBangumiID, sub.SubgroupID, sub.BangumiID, sub.Title)
	if err != nil {
		return nil, err
	}
	items := make([]filter.Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, mikanItemToFilterItem(it))
	}
	return items, nil
}

// SearchUpstream implements the §6 "search upstream by title" operation
// (spec §4.2 SearchAnime).
func (s *Service) SearchUpstream(ctx context.Context, query string) ([]mikan.SearchResult, error) {
	body, err := s.fetcher.SearchAnime(ctx, s.searchURL(query))
	if err != nil {
		return nil, err
	}
	return mikan.ParseSearchPage(string(body))
}

// SyncSubgroups re-scrapes an anime's Mikan page for its current subgroup
// set and syncs the mapping table (spec §4.3, §4.8 sync semantics): a
// fetch failure leaves the existing mapping untouched.
func (s *Service) SyncSubgroups(ctx context.Context, mikanBangumiID string) ([]models.SubgroupMapping, error) {
	body, err := s.fetcher.SearchAnime(ctx, s.bangumiPageURL(mikanBangumiID))
	if err != nil {
		_ = s.store.SyncSubgroups(mikanBangumiID, nil, false)
		return nil, err
	}
	rows, err := mikan.ParseSubgroupsFromBangumiPage(string(body))
	if err != nil {
		_ = s.store.SyncSubgroups(mikanBangumiID, nil, false)
		return nil, err
	}
	mappings := make([]models.SubgroupMapping, 0, len(rows))
	for _, r := range rows {
		mappings = append(mappings, models.SubgroupMapping{SubgroupID: r.SubgroupID, SubgroupName: r.SubgroupName})
	}
	if err := s.store.SyncSubgroups(mikanBangumiID, mappings, true); err != nil {
		return nil, err
	}
	return s.store.ListSubgroupsForAnime(mikanBangumiID)
}

// SubmitManual implements the §6 "submit a manual torrent download"
// operation, attributing the row to the reserved sentinel subscription
// (spec §4.5 Manual path).
func (s *Service) SubmitManual(ctx context.Context, item filter.Item, animeBangumiID int64, animeTitle string) download.SubmissionOutcome {
	sentinel, err := s.store.ManualSentinel()
	if err != nil {
		return download.SubmissionOutcome{Item: item, Error: apperr.NotFound("manual sentinel subscription missing", err)}
	}
	return s.controller.SubmitManual(ctx, item, sentinel, animeBangumiID, animeTitle)
}

// AddOptions returns the qbit.AddOptions every submission in this
// deployment uses (spec §6 torrent_client.{default_save_path, category}).
func (s *Service) AddOptions() qbit.AddOptions {
	return qbit.AddOptions{SavePath: s.opts.SavePath, Category: s.opts.Category}
}

func mikanItemToFilterItem(it mikan.Item) filter.Item {
	return filter.Item{
		Title:       it.Title,
		TorrentURL:  it.TorrentURL,
		MagnetLink:  it.MagnetLink,
		TorrentHash: it.TorrentHash,
		FileSize:    it.FileSize,
		PublishedAt: it.PublishedAt,
		Subgroup:    it.Subgroup,
		CanDownload: it.CanDownload,
	}
}

func mikanItemToCacheItem(it mikan.Item) models.FeedCacheItem {
	return models.FeedCacheItem{
		Title:       it.Title,
		TorrentURL:  it.TorrentURL,
		TorrentHash: it.TorrentHash,
		FileSize:    it.FileSize,
		PublishedAt: it.PublishedAt,
	}
}

// cacheItemToMikanItem recovers the fields filter/display need from a
// persisted cache row. Subgroup and can_download aren't stored columns —
// they're cheap to re-derive from the title and hash rather than widen the
// cache schema for two recomputable fields.
func cacheItemToMikanItem(ci models.FeedCacheItem) mikan.Item {
	return mikan.Item{
		Title:       ci.Title,
		TorrentURL:  ci.TorrentURL,
		TorrentHash: ci.TorrentHash,
		FileSize:    ci.FileSize,
		PublishedAt: ci.PublishedAt,
		Subgroup:    mikan.ParseSubgroup(ci.Title),
		CanDownload: ci.TorrentHash != "",
	}
}
