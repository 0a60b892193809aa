// Package web exposes the §6 API surface over plain net/http: subscription
// CRUD, manual check triggers, history queries, upstream search/feed/subgroup
// reads, manual submission, and torrent-client control.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/download"
	"github.com/sunerpy/akari/internal/filter"
	"github.com/sunerpy/akari/internal/mikan"
	"github.com/sunerpy/akari/models"
	"github.com/sunerpy/akari/thirdpart/qbit"
)

// SubscriptionStore is the persistence-gateway surface the web layer needs
// beyond what Checker already narrows. Satisfied by *models.AnimeDB.
type SubscriptionStore interface {
	ListSubscriptions() ([]models.Subscription, error)
	GetSubscriptionByID(id uint) (*models.Subscription, error)
	GetSubscriptionByBangumiID(bangumiID int64) (*models.Subscription, error)
	EnsureSubscription(bangumiID int64, title, mikanBangumiID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	DeleteSubscription(id uint) error
	ListHistoryBySubscription(subscriptionID uint) ([]models.DownloadHistory, error)
	ListHistoryByBangumiID(bangumiID int64) ([]models.DownloadHistory, error)
	ListActiveHistory() ([]models.DownloadHistory, error)
	DeleteByHash(hash string) error
}

// TorrentClient is the narrow qBittorrent surface the web layer drives
// directly, on top of what the reconciler already polls in the background.
// Satisfied by *qbit.Client.
type TorrentClient interface {
	ListTorrents(ctx context.Context, category string) ([]qbit.TorrentInfo, error)
	Pause(ctx context.Context, hash string) error
	Resume(ctx context.Context, hash string) error
	Delete(ctx context.Context, hash string, deleteFiles bool) error
}

// Checker is the internal/check.Service surface the web layer reuses for
// every read and submission operation, so there is exactly one fetch/parse/
// filter/submit implementation shared with the scheduler.
type Checker interface {
	Check(ctx context.Context, sub models.Subscription) (bool, error)
	FetchParsedFeed(ctx context.Context, mikanBangumiID, subgroupID string, bangumiID int64, seasonName string) (*mikan.FeedResponse, error)
	SearchUpstream(ctx context.Context, query string) ([]mikan.SearchResult, error)
	SyncSubgroups(ctx context.Context, mikanBangumiID string) ([]models.SubgroupMapping, error)
	SubmitManual(ctx context.Context, item filter.Item, animeBangumiID int64, animeTitle string) download.SubmissionOutcome
}

// Pinger is the scheduler surface the web layer needs for the "trigger
// check" operation — an out-of-band run that bypasses the tick interval.
type Pinger interface {
	KickSubscription(id uint) bool
}

// Server wires the above collaborators into HTTP handlers. It carries no
// session/auth state — spec.md never describes a login boundary, so none is
// built (see DESIGN.md).
type Server struct {
	store    SubscriptionStore
	check    Checker
	torrent  TorrentClient
	sched    Pinger
	category string
	logger   *zap.Logger
}

// NewServer creates a Server. logger may be nil (a no-op logger is used).
func NewServer(store SubscriptionStore, check Checker, torrent TorrentClient, sched Pinger, category string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, check: check, torrent: torrent, sched: sched, category: category, logger: logger}
}

// Serve registers every route and blocks serving on addr.
func (s *Server) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/subscriptions", s.apiSubscriptions)
	mux.HandleFunc("/api/subscriptions/ensure", s.apiEnsureSubscription)
	mux.HandleFunc("/api/subscriptions/", s.apiSubscriptionDetail)
	mux.HandleFunc("/api/check", s.apiTriggerCheck)
	mux.HandleFunc("/api/history", s.apiHistory)
	mux.HandleFunc("/api/search", s.apiSearchUpstream)
	mux.HandleFunc("/api/feed", s.apiFetchParsedFeed)
	mux.HandleFunc("/api/subgroups", s.apiSubgroups)
	mux.HandleFunc("/api/manual", s.apiSubmitManual)
	mux.HandleFunc("/api/torrents", s.apiListTorrents)
	mux.HandleFunc("/api/torrents/", s.apiTorrentAction)
	return http.ListenAndServe(addr, mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apperr kind to an HTTP status: Validation to 400,
// NotFound to 404, UpstreamUnavailable to 503 (with a Retry-After header
// when the error carries a hint), Conflict to 409, everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case apperr.Is(err, apperr.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperr.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperr.Is(err, apperr.ErrUpstreamUnavailable):
		if retry, ok := apperr.RetryAfter(err); ok {
			w.Header().Set("Retry-After", formatRetrySeconds(retry))
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case apperr.Is(err, apperr.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func formatRetrySeconds(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
