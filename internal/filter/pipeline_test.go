package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunerpy/akari/models"
)

type fakeHistoryLookup struct {
	existing map[string]bool
}

func (f *fakeHistoryLookup) BatchExistsByHashes(hashes []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for _, h := range hashes {
		if f.existing[models.NormalizeHash(h)] {
			result[models.NormalizeHash(h)] = true
		}
	}
	return result, nil
}

func TestPipelineDedup(t *testing.T) {
	lookup := &fakeHistoryLookup{existing: map[string]bool{"AAAA": true}}
	p := NewPipeline(lookup)
	sub := &models.Subscription{}

	items := []Item{
		{Title: "New Episode", TorrentHash: "bbbb", CanDownload: true},
		{Title: "Already Seen", TorrentHash: "aaaa", CanDownload: true},
	}

	kept, results, err := p.Run(items, sub, "")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "New Episode", kept[0].Title)
	assert.Equal(t, "duplicate", results[1].Dropped)
}

func TestPipelineSubgroupFilter(t *testing.T) {
	lookup := &fakeHistoryLookup{existing: map[string]bool{}}
	p := NewPipeline(lookup)
	sub := &models.Subscription{SubgroupID: "123", SubgroupName: "SubsPlease"}

	items := []Item{
		{Title: "Show S01E01", TorrentHash: "aaaa", Subgroup: "SubsPlease", CanDownload: true},
		{Title: "Show S01E01", TorrentHash: "bbbb", Subgroup: "OtherGroup", CanDownload: true},
	}

	kept, _, err := p.Run(items, sub, sub.SubgroupName)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "aaaa", kept[0].TorrentHash)
}

func TestPipelineIncludeExcludeKeywords(t *testing.T) {
	lookup := &fakeHistoryLookup{existing: map[string]bool{}}
	p := NewPipeline(lookup)
	sub := &models.Subscription{KeywordInclude: "1080p, BDRip", KeywordExclude: "v2"}

	items := []Item{
		{Title: "Show 1080p BDRip", TorrentHash: "aaaa", CanDownload: true},
		{Title: "Show 1080p BDRip v2", TorrentHash: "bbbb", CanDownload: true},
		{Title: "Show 720p", TorrentHash: "cccc", CanDownload: true},
	}

	kept, results, err := p.Run(items, sub, "")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "aaaa", kept[0].TorrentHash)
	assert.Equal(t, "exclude_keyword_hit", results[1].Dropped)
	assert.Equal(t, "include_keyword_miss", results[2].Dropped)
}

func TestPipelineDownloadability(t *testing.T) {
	lookup := &fakeHistoryLookup{existing: map[string]bool{}}
	p := NewPipeline(lookup)
	sub := &models.Subscription{}

	items := []Item{
		{Title: "No Hash Parsed", TorrentHash: "", CanDownload: false},
	}

	kept, results, err := p.Run(items, sub, "")
	require.NoError(t, err)
	assert.Len(t, kept, 0)
	assert.Equal(t, "not_downloadable", results[0].Dropped)
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("1080p, BDRip\tv2")
	assert.Equal(t, []string{"1080p", "bdrip", "v2"}, tokens)
	assert.Empty(t, tokenize(""))
}
