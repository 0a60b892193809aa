// Package metadata defines the narrow collaborator interface the feed
// parser consults for episode-offset normalization. Anime-metadata
// aggregation itself (cover art, ratings, translations) is out of scope
// (spec.md §1) — this package only ever reads (bangumi_id, eps) tuples.
package metadata

import "context"

// Provider reports the external episode count for an anime, used to
// detect series-relative vs season-relative episode numbering
// (spec.md §4.3 episode-offset normalization).
type Provider interface {
	// EpisodeCount returns the total episode count known for bangumiID.
	// ok is false when no metadata is known, in which case the caller
	// skips offset normalization for that subscription.
	EpisodeCount(ctx context.Context, bangumiID int64) (eps int, ok bool, err error)
}

// StaticProvider is a fixed lookup table, suitable for tests and for
// deployments with no metadata aggregator configured.
type StaticProvider struct {
	Counts map[int64]int
}

// NewStaticProvider builds a StaticProvider from a bangumi_id -> eps map.
func NewStaticProvider(counts map[int64]int) *StaticProvider {
	return &StaticProvider{Counts: counts}
}

func (p *StaticProvider) EpisodeCount(_ context.Context, bangumiID int64) (int, bool, error) {
	eps, ok := p.Counts[bangumiID]
	return eps, ok, nil
}

// NoopProvider never knows an episode count; used when no metadata source
// is configured at all.
type NoopProvider struct{}

func (NoopProvider) EpisodeCount(_ context.Context, _ int64) (int, bool, error) {
	return 0, false, nil
}
