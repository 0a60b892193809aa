// Package reconciler keeps DownloadHistory realtime fields in sync with
// the torrent client without blocking the scheduler (spec.md §4.7).
package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

// TorrentLister is the narrow torrent-client surface the reconciler
// needs. Satisfied by *qbit.Client.
type TorrentLister interface {
	ListTorrents(ctx context.Context, category string) ([]qbit.TorrentInfo, error)
}

// ProgressStore is the narrow persistence-gateway surface the
// reconciler needs. Satisfied by *models.AnimeDB.
type ProgressStore interface {
	UpdateProgressBatch(changes []models.ProgressChange) error
}

// StateMapping is the qBittorrent state-string → DownloadStatus table from
// spec §4.7 step 3, exported so the web layer's on-demand realtime merge
// (§6 "list torrents with realtime merge") agrees with what this tick
// would persist for the same state string.
var StateMapping = map[string]models.DownloadStatus{
	"downloading": models.StatusDownloading,
	"forcedDL":    models.StatusDownloading,
	"metaDL":      models.StatusDownloading,
	"allocating":  models.StatusDownloading,
	"checkingDL":  models.StatusDownloading,
	"stalledDL":   models.StatusDownloading,

	"uploading":  models.StatusCompleted,
	"stalledUP":  models.StatusCompleted,
	"queuedUP":   models.StatusCompleted,
	"checkingUP": models.StatusCompleted,
	"forcedUP":   models.StatusCompleted,

	"pausedDL": models.StatusPending,
	"queuedDL": models.StatusPending,

	"error":        models.StatusFailed,
	"missingFiles": models.StatusFailed,
}

// Reconciler polls the torrent client on a fixed period and batch-persists
// every torrent's realtime progress fields.
type Reconciler struct {
	client TorrentLister
	store  ProgressStore
	period time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Reconciler. period defaults to 30s if non-positive;
// logger may be nil (a no-op logger is used).
func New(client TorrentLister, store ProgressStore, period time.Duration, logger *zap.Logger) *Reconciler {
	if period <= 0 {
		period = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{client: client, store: store, period: period, logger: logger}
}

// Start launches the reconciliation loop. Idempotent while running.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop signals shutdown and waits for the in-flight tick to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick performs the exact 5-step loop from spec §4.7. A failed
// ListTorrents call never cascades — it's logged and the loop simply
// waits for the next period (spec §5 "the reconciler's ListTorrents
// failure never cascades").
func (r *Reconciler) tick(ctx context.Context) {
	torrents, err := r.client.ListTorrents(ctx, "")
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("listing torrents for reconciliation failed", zap.Error(err))
		return
	}

	now := time.Now()
	changes := make([]models.ProgressChange, 0, len(torrents))
	for _, torrent := range torrents {
		status, ok := StateMapping[torrent.State]
		if !ok {
			continue
		}
		progress := torrent.Progress * 100
		var downloadedAt *time.Time
		if status == models.StatusCompleted {
			progress = 100
			downloadedAt = &now
		}

		change := models.ProgressChange{
			TorrentHash:   torrent.Hash,
			Status:        status,
			Progress:      progress,
			DownloadSpeed: torrent.DownloadSpeed,
			ETA:           torrent.ETA,
			NumSeeds:      torrent.NumSeeds,
			NumLeechers:   torrent.NumLeechs,
			SyncedAt:      now,
			DownloadedAt:  downloadedAt,
		}
		if status == models.StatusFailed {
			change.ErrorMessage = torrent.State
		}
		changes = append(changes, change)
	}

	if len(changes) == 0 {
		return
	}
	if err := r.store.UpdateProgressBatch(changes); err != nil {
		r.logger.Error("persisting reconciled progress failed", zap.Error(err))
	}
}
