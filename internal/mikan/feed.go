package mikan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sunerpy/akari/internal/metadata"
)

// Item is one normalized RSS entry (spec §4.3 Extraction/Output).
type Item struct {
	Title        string
	TorrentURL   string
	MagnetLink   string
	TorrentHash  string
	FileSize     int64
	PublishedAt  time.Time
	Resolution   string
	Subgroup     string
	SubtitleType string
	Episode      int
	HasEpisode   bool
	IsCollection bool
	CanDownload  bool
}

// FeedResponse is the parser's output for one fetch (spec §4.3 Output).
type FeedResponse struct {
	Items             []Item
	LatestEpisode     int
	LatestPublishedAt time.Time
	LatestTitle       string
	EpisodeOffset     int
	SeasonName        string
}

// ParseFeed converts raw RSS XML bytes into a FeedResponse, extracting
// per-item fields and then applying episode-offset normalization across
// the whole batch (spec §4.3). bangumiID is used to look up the external
// episode count; seasonName is carried through unchanged onto the header.
func ParseFeed(ctx context.Context, raw []byte, bangumiID int64, seasonName string, provider metadata.Provider) (*FeedResponse, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("解析 RSS 失败: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		items = append(items, itemFromFeedItem(fi))
	}

	eps, hasEps, err := provider.EpisodeCount(ctx, bangumiID)
	if err != nil {
		return nil, fmt.Errorf("获取集数元数据失败: %w", err)
	}

	episodes := make([]int, 0, len(items))
	indices := make([]int, 0, len(items))
	for i, it := range items {
		if it.HasEpisode {
			episodes = append(episodes, it.Episode)
			indices = append(indices, i)
		}
	}
	normalized, offset := NormalizeEpisodes(episodes, eps, hasEps)
	for j, idx := range indices {
		items[idx].Episode = normalized[j]
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	resp := &FeedResponse{
		Items:         items,
		EpisodeOffset: offset,
		SeasonName:    seasonName,
	}
	if len(items) > 0 {
		resp.LatestTitle = items[0].Title
		resp.LatestPublishedAt = items[0].PublishedAt
	}
	epOnly := make([]int, 0, len(items))
	for _, it := range items {
		if it.HasEpisode {
			epOnly = append(epOnly, it.Episode)
		}
	}
	resp.LatestEpisode = LatestEpisode(epOnly)
	return resp, nil
}

func itemFromFeedItem(fi *gofeed.Item) Item {
	title := fi.Title
	var torrentURL string
	var fileSize int64
	if len(fi.Enclosures) > 0 {
		torrentURL = fi.Enclosures[0].URL
		fileSize = parseContentLength(fi.Enclosures[0])
	}

	magnet := extractMagnetFromItem(fi)
	hash, hashOK := "", false
	if magnet != "" {
		hash, hashOK = ExtractHashFromMagnet(magnet)
	}
	if !hashOK && torrentURL != "" {
		if h, ok := hashFromGUID(fi.GUID); ok {
			hash, hashOK = h, true
		}
	}
	if hashOK && magnet == "" {
		magnet = BuildMagnetLink(hash, title)
	}

	episode, hasEpisode := ParseEpisode(title)
	publishedAt := time.Now()
	if fi.PublishedParsed != nil {
		publishedAt = *fi.PublishedParsed
	}

	return Item{
		Title:        title,
		TorrentURL:   torrentURL,
		MagnetLink:   magnet,
		TorrentHash:  hash,
		FileSize:     fileSize,
		PublishedAt:  publishedAt,
		Resolution:   ParseResolution(title),
		Subgroup:     ParseSubgroup(title),
		SubtitleType: ParseSubtitleType(title),
		Episode:      episode,
		HasEpisode:   hasEpisode,
		IsCollection: IsCollection(title),
		CanDownload:  hashOK,
	}
}

// parseContentLength reads the torrent:contentLength-style length gofeed
// surfaces as the enclosure's Length field.
func parseContentLength(enc *gofeed.Enclosure) int64 {
	if enc == nil || enc.Length == "" {
		return 0
	}
	var n int64
	_, _ = fmt.Sscanf(enc.Length, "%d", &n)
	return n
}

// extractMagnetFromItem looks for a magnet URI carried in a custom
// element or the item's link, since Mikan items don't always put the
// magnet in a standard RSS field.
func extractMagnetFromItem(fi *gofeed.Item) string {
	if strings.HasPrefix(fi.Link, "magnet:") {
		return fi.Link
	}
	if fi.Extensions != nil {
		if ext, ok := fi.Extensions["mikan"]; ok {
			if vals, ok := ext["magnetLink"]; ok && len(vals) > 0 {
				return vals[0].Value
			}
		}
	}
	return ""
}

// hashFromGUID extracts a btih hash from a GUID when Mikan encodes it
// there directly instead of in a magnet parameter.
func hashFromGUID(guid string) (string, bool) {
	candidate := NormalizeHash(guid)
	if IsValidHash(candidate) {
		return candidate, true
	}
	return "", false
}
