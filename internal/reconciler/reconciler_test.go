package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

type fakeLister struct {
	mu       sync.Mutex
	torrents []qbit.TorrentInfo
	err      error
	calls    int
}

func (f *fakeLister) ListTorrents(ctx context.Context, category string) ([]qbit.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.torrents, nil
}

type fakeStore struct {
	mu      sync.Mutex
	applied []models.ProgressChange
}

func (f *fakeStore) UpdateProgressBatch(changes []models.ProgressChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, changes...)
	return nil
}

func TestStateMappingDownloading(t *testing.T) {
	lister := &fakeLister{torrents: []qbit.TorrentInfo{{Hash: "AAAA", State: "downloading", Progress: 0.42}}}
	store := &fakeStore{}
	r := New(lister, store, time.Hour, nil)
	r.tick(context.Background())

	require.Len(t, store.applied, 1)
	assert.Equal(t, models.StatusDownloading, store.applied[0].Status)
	assert.InDelta(t, 42.0, store.applied[0].Progress, 0.001)
}

func TestStateMappingCompletedClampsProgress(t *testing.T) {
	lister := &fakeLister{torrents: []qbit.TorrentInfo{{Hash: "AAAA", State: "uploading", Progress: 0.999}}}
	store := &fakeStore{}
	r := New(lister, store, time.Hour, nil)
	r.tick(context.Background())

	require.Len(t, store.applied, 1)
	assert.Equal(t, models.StatusCompleted, store.applied[0].Status)
	assert.Equal(t, 100.0, store.applied[0].Progress)
	assert.NotNil(t, store.applied[0].DownloadedAt)
}

func TestStateMappingErrorSetsMessage(t *testing.T) {
	lister := &fakeLister{torrents: []qbit.TorrentInfo{{Hash: "AAAA", State: "error"}}}
	store := &fakeStore{}
	r := New(lister, store, time.Hour, nil)
	r.tick(context.Background())

	require.Len(t, store.applied, 1)
	assert.Equal(t, models.StatusFailed, store.applied[0].Status)
	assert.Equal(t, "error", store.applied[0].ErrorMessage)
}

func TestUnknownStateSkipped(t *testing.T) {
	lister := &fakeLister{torrents: []qbit.TorrentInfo{{Hash: "AAAA", State: "some_future_state"}}}
	store := &fakeStore{}
	r := New(lister, store, time.Hour, nil)
	r.tick(context.Background())

	assert.Empty(t, store.applied)
}

func TestListTorrentsFailureDoesNotCascade(t *testing.T) {
	lister := &fakeLister{err: assertErr("qbit down")}
	store := &fakeStore{}
	r := New(lister, store, time.Hour, nil)
	require.NotPanics(t, func() { r.tick(context.Background()) })
	assert.Empty(t, store.applied)
}

func TestReconcilerLoopTicksOnPeriod(t *testing.T) {
	lister := &fakeLister{torrents: []qbit.TorrentInfo{{Hash: "AAAA", State: "downloading"}}}
	store := &fakeStore{}
	r := New(lister, store, 5*time.Millisecond, nil)
	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool {
		lister.mu.Lock()
		defer lister.mu.Unlock()
		return lister.calls >= 2
	}, time.Second, 5*time.Millisecond)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
