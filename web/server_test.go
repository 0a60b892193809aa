package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/download"
	"github.com/sunerpy/akari/internal/filter"
	"github.com/sunerpy/akari/internal/mikan"
	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

type fakeSubStore struct {
	subs    map[uint]*models.Subscription
	history map[uint][]models.DownloadHistory
	active  []models.DownloadHistory
	deleted []string
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{subs: map[uint]*models.Subscription{}, history: map[uint][]models.DownloadHistory{}}
}

func (f *fakeSubStore) ListSubscriptions() ([]models.Subscription, error) {
	out := make([]models.Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSubStore) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubStore) GetSubscriptionByBangumiID(bangumiID int64) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.BangumiID == bangumiID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSubStore) EnsureSubscription(bangumiID int64, title, mikanBangumiID string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.BangumiID == bangumiID {
			return s, nil
		}
	}
	id := uint(len(f.subs) + 1)
	sub := &models.Subscription{ID: id, BangumiID: bangumiID, Title: title, MikanBangumiID: mikanBangumiID, IsEnabled: true}
	f.subs[id] = sub
	return sub, nil
}

func (f *fakeSubStore) UpsertSubscription(sub *models.Subscription) error {
	if sub.ID == 0 {
		sub.ID = uint(len(f.subs) + 1)
	}
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeSubStore) DeleteSubscription(id uint) error {
	delete(f.subs, id)
	return nil
}

func (f *fakeSubStore) ListHistoryBySubscription(subscriptionID uint) ([]models.DownloadHistory, error) {
	return f.history[subscriptionID], nil
}

func (f *fakeSubStore) ListHistoryByBangumiID(bangumiID int64) ([]models.DownloadHistory, error) {
	var out []models.DownloadHistory
	for _, rows := range f.history {
		for _, r := range rows {
			if r.AnimeBangumiID == bangumiID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeSubStore) ListActiveHistory() ([]models.DownloadHistory, error) {
	return f.active, nil
}

func (f *fakeSubStore) DeleteByHash(hash string) error {
	f.deleted = append(f.deleted, models.NormalizeHash(hash))
	return nil
}

type fakeTorrentClient struct {
	listed      []qbit.TorrentInfo
	listErr     error
	pauseCalls  []string
	resumeCalls []string
	deleteCalls []string
}

func (f *fakeTorrentClient) ListTorrents(_ context.Context, _ string) ([]qbit.TorrentInfo, error) {
	return f.listed, f.listErr
}

func (f *fakeTorrentClient) Pause(_ context.Context, hash string) error {
	f.pauseCalls = append(f.pauseCalls, hash)
	return nil
}

func (f *fakeTorrentClient) Resume(_ context.Context, hash string) error {
	f.resumeCalls = append(f.resumeCalls, hash)
	return nil
}

func (f *fakeTorrentClient) Delete(_ context.Context, hash string, _ bool) error {
	f.deleteCalls = append(f.deleteCalls, hash)
	return nil
}

type fakeChecker struct {
	searchResults []mikan.SearchResult
	feed          *mikan.FeedResponse
	subgroups     []models.SubgroupMapping
	manualOutcome download.SubmissionOutcome
}

func (f *fakeChecker) Check(_ context.Context, _ models.Subscription) (bool, error) { return false, nil }

func (f *fakeChecker) FetchParsedFeed(_ context.Context, _, _ string, _ int64, _ string) (*mikan.FeedResponse, error) {
	return f.feed, nil
}

func (f *fakeChecker) SearchUpstream(_ context.Context, _ string) ([]mikan.SearchResult, error) {
	return f.searchResults, nil
}

func (f *fakeChecker) SyncSubgroups(_ context.Context, _ string) ([]models.SubgroupMapping, error) {
	return f.subgroups, nil
}

func (f *fakeChecker) SubmitManual(_ context.Context, _ filter.Item, _ int64, _ string) download.SubmissionOutcome {
	return f.manualOutcome
}

type fakePinger struct {
	kicked []uint
}

func (f *fakePinger) KickSubscription(id uint) bool {
	f.kicked = append(f.kicked, id)
	return true
}

func TestApiSubscriptionsListAndCreate(t *testing.T) {
	store := newFakeSubStore()
	srv := NewServer(store, &fakeChecker{}, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)

	body, _ := json.Marshal(models.Subscription{Title: "Example Show", BangumiID: 42})
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.apiSubscriptions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	rec = httptest.NewRecorder()
	srv.apiSubscriptions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "Example Show", subs[0].Title)
}

func TestApiEnsureSubscriptionIdempotent(t *testing.T) {
	store := newFakeSubStore()
	srv := NewServer(store, &fakeChecker{}, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)

	body, _ := json.Marshal(map[string]any{"bangumiId": 42, "title": "Example Show", "mikanBangumiId": "3000"})
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/ensure", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.apiEnsureSubscription(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var first models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	req = httptest.NewRequest(http.MethodPost, "/api/subscriptions/ensure", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	srv.apiEnsureSubscription(rec, req)
	var second models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.subs, 1)
}

func TestApiSubscriptionDetailNotFound(t *testing.T) {
	store := newFakeSubStore()
	srv := NewServer(store, &fakeChecker{}, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/99", nil)
	rec := httptest.NewRecorder()
	srv.apiSubscriptionDetail(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSubscriptionDeletesFiles(t *testing.T) {
	store := newFakeSubStore()
	store.subs[1] = &models.Subscription{ID: 1, Title: "Example Show"}
	store.history[1] = []models.DownloadHistory{{TorrentHash: "ABCDEF0123456789ABCDEF0123456789ABCDEF01"}}
	torrent := &fakeTorrentClient{}
	srv := NewServer(store, &fakeChecker{}, torrent, &fakePinger{}, "akari", nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/subscriptions/1?delete_files=true", nil)
	rec := httptest.NewRecorder()
	srv.apiSubscriptionDetail(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, torrent.deleteCalls, 1)
	_, stillExists := store.subs[1]
	assert.False(t, stillExists)
}

func TestApiTriggerCheckSingle(t *testing.T) {
	store := newFakeSubStore()
	store.subs[1] = &models.Subscription{ID: 1, IsEnabled: true}
	pinger := &fakePinger{}
	srv := NewServer(store, &fakeChecker{}, &fakeTorrentClient{}, pinger, "akari", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/check?subscription_id=1", nil)
	rec := httptest.NewRecorder()
	srv.apiTriggerCheck(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{1}, pinger.kicked)
}

func TestApiTriggerCheckMissingSubscription(t *testing.T) {
	store := newFakeSubStore()
	srv := NewServer(store, &fakeChecker{}, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/check?subscription_id=7", nil)
	rec := httptest.NewRecorder()
	srv.apiTriggerCheck(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApiHistoryRequiresAParameter(t *testing.T) {
	srv := NewServer(newFakeSubStore(), &fakeChecker{}, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.apiHistory(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApiSearchUpstream(t *testing.T) {
	checker := &fakeChecker{searchResults: []mikan.SearchResult{{MikanBangumiID: "3000", Title: "Example Show"}}}
	srv := NewServer(newFakeSubStore(), checker, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=Example", nil)
	rec := httptest.NewRecorder()
	srv.apiSearchUpstream(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []mikan.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
}

func TestApiSubmitManualValidationError(t *testing.T) {
	checker := &fakeChecker{manualOutcome: download.SubmissionOutcome{
		Error: apperr.Validation("no torrent hash derivable from submission", nil),
	}}
	srv := NewServer(newFakeSubStore(), checker, &fakeTorrentClient{}, &fakePinger{}, "akari", nil)

	body, _ := json.Marshal(map[string]any{"title": "Manual Show"})
	req := httptest.NewRequest(http.MethodPost, "/api/manual", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.apiSubmitManual(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApiListTorrentsMergesLiveState(t *testing.T) {
	store := newFakeSubStore()
	store.active = []models.DownloadHistory{{TorrentHash: "abcdef0123456789abcdef0123456789abcdef01", Status: models.StatusPending}}
	torrent := &fakeTorrentClient{listed: []qbit.TorrentInfo{{Hash: "ABCDEF0123456789ABCDEF0123456789ABCDEF01", State: "downloading", Progress: 0.5}}}
	srv := NewServer(store, &fakeChecker{}, torrent, &fakePinger{}, "akari", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/torrents", nil)
	rec := httptest.NewRecorder()
	srv.apiListTorrents(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []torrentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.True(t, views[0].Live)
	assert.Equal(t, models.StatusDownloading, views[0].Status)
}

func TestApiTorrentActionPauseAndDelete(t *testing.T) {
	store := newFakeSubStore()
	torrent := &fakeTorrentClient{}
	srv := NewServer(store, &fakeChecker{}, torrent, &fakePinger{}, "akari", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/torrents/ABCDEF01/pause", nil)
	rec := httptest.NewRecorder()
	srv.apiTorrentAction(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ABCDEF01"}, torrent.pauseCalls)

	req = httptest.NewRequest(http.MethodPost, "/api/torrents/ABCDEF01/delete?delete_files=true", nil)
	rec = httptest.NewRecorder()
	srv.apiTorrentAction(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ABCDEF01"}, torrent.deleteCalls)
	assert.Equal(t, []string{"ABCDEF01"}, store.deleted)
}
