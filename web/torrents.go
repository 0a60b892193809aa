package web

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/reconciler"
	"github.com/sunerpy/akari/models"
)

// torrentView merges a persisted history row with its live qBittorrent
// entry, when one exists, for the §6 "list torrents with realtime merge"
// operation. The reconciler already does this merge periodically and
// writes it back (spec §4.7); this is the same merge computed on demand
// for a caller that wants the current state right now, without the
// up-to-30s staleness of the last reconciler tick.
type torrentView struct {
	models.DownloadHistory
	Live bool `json:"live"`
}

// apiListTorrents implements that operation: every active history row,
// overlaid with whatever the live qBittorrent list reports for its hash. A
// row whose hash isn't present in the live list (already removed from the
// client, or the client is unreachable) is still returned using its last
// persisted state.
func (s *Server) apiListTorrents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rows, err := s.store.ListActiveHistory()
	if err != nil {
		writeError(w, err)
		return
	}

	live := make(map[string]qbitLiveState)
	if infos, err := s.torrent.ListTorrents(r.Context(), s.category); err == nil {
		for _, info := range infos {
			status, ok := statusFromQbitState(info.State)
			if !ok {
				continue
			}
			progress := info.Progress * 100
			if status == models.StatusCompleted {
				progress = 100
			}
			live[models.NormalizeHash(info.Hash)] = qbitLiveState{
				Status:        status,
				Progress:      progress,
				DownloadSpeed: info.DownloadSpeed,
				ETA:           info.ETA,
				NumSeeds:      info.NumSeeds,
				NumLeechers:   info.NumLeechs,
			}
		}
	} else {
		s.logger.Warn("realtime torrent list unavailable, serving persisted state", zap.Error(err))
	}

	views := make([]torrentView, 0, len(rows))
	for _, row := range rows {
		view := torrentView{DownloadHistory: row}
		if st, ok := live[models.NormalizeHash(row.TorrentHash)]; ok {
			view.Status = st.Status
			view.Progress = st.Progress
			view.DownloadSpeed = st.DownloadSpeed
			view.ETA = st.ETA
			view.NumSeeds = st.NumSeeds
			view.NumLeechers = st.NumLeechers
			view.Live = true
		}
		views = append(views, view)
	}
	writeJSON(w, views)
}

type qbitLiveState struct {
	Status        models.DownloadStatus
	Progress      float64
	DownloadSpeed int64
	ETA           int64
	NumSeeds      int
	NumLeechers   int
}

// statusFromQbitState reuses the reconciler's own state table, so an
// unrecognized state is skipped the same way the reconciler would skip it
// rather than guessing a status for it.
func statusFromQbitState(state string) (models.DownloadStatus, bool) {
	status, ok := reconciler.StateMapping[state]
	return status, ok
}

// apiTorrentAction implements "pause/resume/delete a torrent" (spec §6,
// §4.6), routed as POST /api/torrents/{hash}/{pause|resume|delete}.
func (s *Server) apiTorrentAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/torrents/")
	hash, action, ok := strings.Cut(rest, "/")
	if !ok || hash == "" || action == "" {
		writeError(w, apperr.Validation("expected /api/torrents/{hash}/{action}", nil))
		return
	}

	var err error
	switch action {
	case "pause":
		err = s.torrent.Pause(r.Context(), hash)
	case "resume":
		err = s.torrent.Resume(r.Context(), hash)
	case "delete":
		deleteFiles := r.URL.Query().Get("delete_files") == "true"
		if err = s.torrent.Delete(r.Context(), hash, deleteFiles); err == nil {
			err = s.store.DeleteByHash(hash)
		}
	default:
		writeError(w, apperr.Validation("unknown torrent action: "+action, nil))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": action + "d"})
}
