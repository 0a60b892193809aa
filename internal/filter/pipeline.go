// Package filter provides pattern matching and the subscription filter
// pipeline that turns parsed feed items into the "new downloadable" set.
package filter

import (
	"strings"
	"time"

	"github.com/sunerpy/akari/models"
)

// HistoryLookup is the narrow persistence-gateway surface the pipeline
// needs for step 1 (dedup). Satisfied by *models.AnimeDB.
type HistoryLookup interface {
	BatchExistsByHashes(hashes []string) (map[string]bool, error)
}

// Item is the input shape the pipeline filters: a feed item already
// normalized by internal/mikan, decoupled from the feed-parsing package so
// filter has no import-time dependency on it.
type Item struct {
	Title       string
	TorrentURL  string
	MagnetLink  string
	TorrentHash string
	FileSize    int64
	PublishedAt time.Time
	Subgroup    string
	CanDownload bool
}

// Result annotates one input item with the pipeline's verdict, so callers
// can log why an item was dropped without re-deriving it.
type Result struct {
	Item    Item
	Kept    bool
	Dropped string // reason, empty when Kept
}

// Pipeline runs the five-step filter algorithm for one subscription tick.
type Pipeline struct {
	history HistoryLookup
}

// NewPipeline creates a Pipeline backed by the given history lookup.
func NewPipeline(history HistoryLookup) *Pipeline {
	return &Pipeline{history: history}
}

// Run applies dedup, subgroup, include-keyword, exclude-keyword, and
// downloadability filtering in that order. subgroupName is the name a
// subscription's configured subgroup_id resolves to (empty means "no
// subgroup filter", per spec invariant iii on empty subgroup_id).
func (p *Pipeline) Run(items []Item, sub *models.Subscription, subgroupName string) ([]Item, []Result, error) {
	hashes := make([]string, 0, len(items))
	for _, it := range items {
		if it.TorrentHash != "" {
			hashes = append(hashes, it.TorrentHash)
		}
	}
	seen, err := p.history.BatchExistsByHashes(hashes)
	if err != nil {
		return nil, nil, err
	}

	includeTokens := tokenize(sub.KeywordInclude)
	excludeTokens := tokenize(sub.KeywordExclude)

	results := make([]Result, 0, len(items))
	kept := make([]Item, 0, len(items))

	for _, it := range items {
		if it.TorrentHash != "" && seen[models.NormalizeHash(it.TorrentHash)] {
			results = append(results, Result{Item: it, Dropped: "duplicate"})
			continue
		}
		if subgroupName != "" && !strings.EqualFold(it.Subgroup, subgroupName) {
			results = append(results, Result{Item: it, Dropped: "subgroup_mismatch"})
			continue
		}
		if !containsAllTokens(it.Title, includeTokens) {
			results = append(results, Result{Item: it, Dropped: "include_keyword_miss"})
			continue
		}
		if containsAnyToken(it.Title, excludeTokens) {
			results = append(results, Result{Item: it, Dropped: "exclude_keyword_hit"})
			continue
		}
		if !it.CanDownload {
			results = append(results, Result{Item: it, Dropped: "not_downloadable"})
			continue
		}
		results = append(results, Result{Item: it, Kept: true})
		kept = append(kept, it)
	}
	return kept, results, nil
}

// tokenize splits a comma/whitespace-separated keyword field into
// lowercase, non-empty tokens (spec §4.4 steps 3-4).
func tokenize(field string) []string {
	fields := strings.FieldsFunc(field, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// containsAllTokens reports whether title contains every token
// (case-insensitive substring). An empty token list always passes.
func containsAllTokens(title string, tokens []string) bool {
	lower := strings.ToLower(title)
	for _, t := range tokens {
		if !strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

// containsAnyToken reports whether title contains at least one token
// (case-insensitive substring). An empty token list never matches.
func containsAnyToken(title string, tokens []string) bool {
	lower := strings.ToLower(title)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
