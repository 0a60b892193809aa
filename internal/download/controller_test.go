package download

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/filter"
	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

type fakeAdder struct {
	err      error
	lastURL  string
	lastHash string
	lastOpts qbit.AddOptions
	calls    int
}

func (f *fakeAdder) AddTorrentWithTracking(ctx context.Context, urlOrMagnet, hash string, opts qbit.AddOptions) (*qbit.AddedTorrent, error) {
	f.calls++
	f.lastURL = urlOrMagnet
	f.lastHash = hash
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &qbit.AddedTorrent{Hash: models.NormalizeHash(hash)}, nil
}

type fakeHistory struct {
	rows    map[string]*models.DownloadHistory
	insertN int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{rows: make(map[string]*models.DownloadHistory)}
}

func (f *fakeHistory) InsertIfAbsent(row *models.DownloadHistory) (*models.DownloadHistory, error) {
	f.insertN++
	hash := models.NormalizeHash(row.TorrentHash)
	if existing, ok := f.rows[hash]; ok {
		return existing, nil
	}
	row.TorrentHash = hash
	f.rows[hash] = row
	return row, nil
}

func TestSubmitSucceedsInsertsPendingRow(t *testing.T) {
	adder := &fakeAdder{}
	history := newFakeHistory()
	c := New(adder, history, qbit.AddOptions{})
	sub := &models.Subscription{ID: 1, MikanBangumiID: "100", BangumiID: 5, Title: "Show"}

	items := []filter.Item{{Title: "Ep1", TorrentURL: "http://x/1.torrent", TorrentHash: "aaaa", PublishedAt: time.Now()}}
	outcomes := c.SubmitSubscriptionItems(context.Background(), items, sub)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Error)
	require.NotNil(t, outcomes[0].Row)
	assert.Equal(t, models.StatusPending, outcomes[0].Row.Status)
	assert.Equal(t, "AAAA", outcomes[0].Row.TorrentHash)
}

func TestSubmitForwardsConfiguredAddOptions(t *testing.T) {
	adder := &fakeAdder{}
	history := newFakeHistory()
	opts := qbit.AddOptions{SavePath: "/downloads/anime", Category: "akari"}
	c := New(adder, history, opts)
	sub := &models.Subscription{ID: 1}

	items := []filter.Item{{Title: "Ep1", TorrentHash: "aaaa"}}
	c.SubmitSubscriptionItems(context.Background(), items, sub)
	assert.Equal(t, opts, adder.lastOpts)

	manualSub := &models.Subscription{ID: 99, BangumiID: models.ManualSentinelBangumiID, Title: models.ManualSentinelTitle}
	item := filter.Item{Title: "Manual Ep", TorrentHash: "bbbb"}
	c.SubmitManual(context.Background(), item, manualSub, 42, "Some Anime")
	assert.Equal(t, opts, adder.lastOpts)
}

func TestSubmitTransientFailureDoesNotInsert(t *testing.T) {
	adder := &fakeAdder{err: apperr.UpstreamUnavailable("qbit down", nil, time.Second)}
	history := newFakeHistory()
	c := New(adder, history, qbit.AddOptions{})
	sub := &models.Subscription{ID: 1}

	items := []filter.Item{{Title: "Ep1", TorrentHash: "aaaa"}}
	outcomes := c.SubmitSubscriptionItems(context.Background(), items, sub)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Deferred)
	assert.Error(t, outcomes[0].Error)
	assert.Equal(t, 0, history.insertN)
}

func TestSubmitPermanentFailureInsertsFailedRow(t *testing.T) {
	adder := &fakeAdder{err: apperr.UpstreamRejected("bad magnet", nil)}
	history := newFakeHistory()
	c := New(adder, history, qbit.AddOptions{})
	sub := &models.Subscription{ID: 1}

	items := []filter.Item{{Title: "Ep1", TorrentHash: "aaaa"}}
	outcomes := c.SubmitSubscriptionItems(context.Background(), items, sub)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Row)
	assert.Equal(t, models.StatusFailed, outcomes[0].Row.Status)
	assert.NotEmpty(t, outcomes[0].Row.ErrorMessage)
	assert.False(t, outcomes[0].Deferred)
}

func TestSubmitOrdersByPublishedAtAscending(t *testing.T) {
	adder := &fakeAdder{}
	history := newFakeHistory()
	c := New(adder, history, qbit.AddOptions{})
	sub := &models.Subscription{ID: 1}

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	items := []filter.Item{
		{Title: "Ep2", TorrentHash: "bbbb", PublishedAt: newer},
		{Title: "Ep1", TorrentHash: "aaaa", PublishedAt: older},
	}
	outcomes := c.SubmitSubscriptionItems(context.Background(), items, sub)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "Ep1", outcomes[0].Item.Title)
	assert.Equal(t, "Ep2", outcomes[1].Item.Title)
}

func TestSubmitManualDerivesHashFromMagnet(t *testing.T) {
	adder := &fakeAdder{}
	history := newFakeHistory()
	c := New(adder, history, qbit.AddOptions{})
	manualSub := &models.Subscription{ID: 99, BangumiID: models.ManualSentinelBangumiID, Title: models.ManualSentinelTitle}

	item := filter.Item{Title: "Manual Ep", MagnetLink: "magnet:?xt=urn:btih:deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}
	outcome := c.SubmitManual(context.Background(), item, manualSub, 42, "Some Anime")
	require.NoError(t, outcome.Error)
	require.NotNil(t, outcome.Row)
	assert.Equal(t, models.SourceManual, outcome.Row.Source)
	assert.Equal(t, int64(42), outcome.Row.AnimeBangumiID)
}

func TestSubmitManualRejectsWithoutHash(t *testing.T) {
	adder := &fakeAdder{}
	history := newFakeHistory()
	c := New(adder, history, qbit.AddOptions{})
	manualSub := &models.Subscription{ID: 99}

	item := filter.Item{Title: "Manual Ep"}
	outcome := c.SubmitManual(context.Background(), item, manualSub, 42, "Some Anime")
	require.Error(t, outcome.Error)
	assert.True(t, apperr.Is(outcome.Error, apperr.ErrValidation))
	assert.Equal(t, 0, adder.calls)
}

func TestSubmitIdempotentOnConcurrentInsert(t *testing.T) {
	adder := &fakeAdder{}
	history := newFakeHistory()
	existingRow := &models.DownloadHistory{TorrentHash: "AAAA", Status: models.StatusPending}
	history.rows["AAAA"] = existingRow

	c := New(adder, history, qbit.AddOptions{})
	sub := &models.Subscription{ID: 1}
	items := []filter.Item{{Title: "Ep1", TorrentHash: "aaaa"}}
	outcomes := c.SubmitSubscriptionItems(context.Background(), items, sub)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Error)
	assert.Same(t, existingRow, outcomes[0].Row)
}
